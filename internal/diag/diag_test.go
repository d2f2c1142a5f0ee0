package diag

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/lotwatch/internal/model"
)

func TestExceptionLog_Write(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "exceptions.jsonl")
	log := NewExceptionLog(path)
	defer log.Close()

	rec := model.ClosingRecord{
		SessionID:  uuid.New(),
		Title:      "2017 JEEP WRANGLER",
		LotNumber:  "38912345",
		PriceText:  "$12,400",
		Outcome:    model.OutcomeApproved,
		ObservedAt: time.Date(2024, 5, 2, 15, 0, 0, 0, time.UTC),
	}
	require.NoError(t, log.Write(ExceptionFor("upsert_closing", rec, errors.New("connection refused"))))
	require.NoError(t, log.Write(Exception{Context: "second"}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 2)

	first := lines[0]
	require.Equal(t, "upsert_closing", first["context"])
	require.Equal(t, "connection refused", first["cause"])
	require.Equal(t, "38912345", first["lot_number"])
	require.Equal(t, "$12,400", first["price"])
	require.Equal(t, "approved", first["outcome"])
	require.Equal(t, rec.SessionID.String(), first["session_id"])
	require.NotEmpty(t, lines[1]["ts"])
}

func TestExceptionLog_NilDiscards(t *testing.T) {
	log := NewExceptionLog("  ")
	require.Nil(t, log)
	require.NoError(t, log.Write(Exception{Context: "x"}))
	require.NoError(t, log.Close())
}

type fakeSource struct {
	frames map[string]string
}

func (f fakeSource) Source(_ context.Context, frame string) (string, error) {
	html, ok := f.frames[frame]
	if !ok {
		return "", errors.New("no such frame")
	}
	return html, nil
}

type failingSink struct{}

func (failingSink) Put(context.Context, string, []byte) error { return errors.New("bucket gone") }

func TestDumper_Capture(t *testing.T) {
	dir := t.TempDir()
	d := NewDumper(nil, FileSink{Dir: dir})
	d.now = func() time.Time { return time.Date(2024, 5, 2, 15, 4, 5, 0, time.UTC) }

	src := fakeSource{frames: map[string]string{
		"":       "<html>top</html>",
		"iframe": "<html>frame</html>",
	}}

	name, err := d.Capture(context.Background(), src, "iframe", "stalled session")
	require.NoError(t, err)
	require.Equal(t, "20240502T150405.000Z-stalled_session.html", name)

	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	require.Equal(t, "<html>frame</html>", string(data))

	// Missing frame falls back to the top document.
	name, err = d.Capture(context.Background(), src, "#gone", "join")
	require.NoError(t, err)
	data, err = os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	require.Equal(t, "<html>top</html>", string(data))
}

func TestDumper_SinkFailure(t *testing.T) {
	dir := t.TempDir()
	d := NewDumper(nil, failingSink{}, FileSink{Dir: dir})

	name, err := d.Dump(context.Background(), "stall", "<html/>")
	require.Error(t, err)

	// The healthy sink still received the dump.
	_, statErr := os.Stat(filepath.Join(dir, name))
	require.NoError(t, statErr)
}
