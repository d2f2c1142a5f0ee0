package diag

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rickgao/lotwatch/internal/model"
)

// Exception is one JSONL entry describing a dropped closing.
type Exception struct {
	Ts        time.Time `json:"ts"`
	Context   string    `json:"context"` // Where it failed (e.g., "upsert_closing")
	Cause     string    `json:"cause"`
	LotNumber string    `json:"lot_number,omitempty"`
	Title     string    `json:"title,omitempty"`
	Price     string    `json:"price,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
}

// ExceptionFor builds an Exception from a closing record.
func ExceptionFor(where string, rec model.ClosingRecord, cause error) Exception {
	e := Exception{
		Ts:        rec.ObservedAt,
		Context:   where,
		LotNumber: rec.LotNumber,
		Title:     rec.Title,
		Price:     rec.PriceText,
		Outcome:   string(rec.Outcome),
		SessionID: rec.SessionID.String(),
	}
	if cause != nil {
		e.Cause = cause.Error()
	}
	return e
}

// ExceptionLog appends Exception entries to a file, one JSON object per line.
// A nil *ExceptionLog discards writes. It is safe for concurrent use.
type ExceptionLog struct {
	mu   sync.Mutex
	path string
	file *os.File
	w    *bufio.Writer
}

// NewExceptionLog returns a log appending to path. A blank path returns nil.
func NewExceptionLog(path string) *ExceptionLog {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	return &ExceptionLog{path: path}
}

// Write appends e and flushes so tailers see it immediately.
func (l *ExceptionLog) Write(e Exception) error {
	if l == nil {
		return nil
	}
	if e.Ts.IsZero() {
		e.Ts = time.Now()
	}

	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode exception: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ensureOpenLocked(); err != nil {
		return err
	}
	if _, err := l.w.Write(b); err != nil {
		return err
	}
	if err := l.w.WriteByte('\n'); err != nil {
		return err
	}
	return l.w.Flush()
}

// Close flushes and closes the underlying file.
func (l *ExceptionLog) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	flushErr := l.w.Flush()
	closeErr := l.file.Close()
	l.file, l.w = nil, nil
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

func (l *ExceptionLog) ensureOpenLocked() error {
	if l.file != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create exception log dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open exception log: %w", err)
	}
	l.file = f
	l.w = bufio.NewWriterSize(f, 64*1024)
	return nil
}
