package page

import (
	"context"
	"time"
)

// Result is the outcome of a page operation.
type Result int

const (
	Found           Result = iota // Element present (or action performed)
	NotFound                      // No matching element
	TimedOut                      // Bounded wait expired
	NotInteractable               // Element present but the action failed
)

func (r Result) String() string {
	switch r {
	case Found:
		return "found"
	case NotFound:
		return "not_found"
	case TimedOut:
		return "timed_out"
	case NotInteractable:
		return "not_interactable"
	default:
		return "unknown"
	}
}

// Locator is a declarative element selector.
type Locator struct {
	Frame string `yaml:"frame"` // CSS selector of an iframe to search inside; empty for the top document
	CSS   string `yaml:"css"`   // CSS selector
	Text  string `yaml:"text"`  // If set, only elements whose trimmed text equals Text match
	Index int    `yaml:"index"` // Which match to use (0 = first)
}

// IsZero reports whether the locator selects nothing.
func (l Locator) IsZero() bool {
	return l.CSS == ""
}

func (l Locator) String() string {
	s := l.CSS
	if l.Frame != "" {
		s = l.Frame + " >> " + s
	}
	if l.Text != "" {
		s += " [text=" + l.Text + "]"
	}
	return s
}

// Reader queries the current page.
type Reader interface {
	// FindText returns the trimmed text of the located element.
	FindText(ctx context.Context, loc Locator) (string, Result)

	// FindMany returns the trimmed text of every matching element. An empty
	// slice means nothing matched.
	FindMany(ctx context.Context, loc Locator) []string

	// Click clicks the located element.
	Click(ctx context.Context, loc Locator) Result
}

// Browser is a Reader that can also drive navigation.
type Browser interface {
	Reader

	// Navigate loads url in the current tab.
	Navigate(ctx context.Context, url string) error

	// Fill types value into the located input.
	Fill(ctx context.Context, loc Locator, value string) Result

	// Source returns the HTML of the page (or of frame, when non-empty) for
	// diagnostic dumps.
	Source(ctx context.Context, frame string) (string, error)
}

// DefaultPollInterval is used by WaitUntil when interval is zero.
const DefaultPollInterval = 500 * time.Millisecond

// WaitUntil polls pred until it returns true, the timeout expires (TimedOut),
// or ctx is canceled (TimedOut).
func WaitUntil(ctx context.Context, pred func(ctx context.Context) bool, timeout, interval time.Duration) Result {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if pred(ctx) {
			return Found
		}
		select {
		case <-ctx.Done():
			return TimedOut
		case <-ticker.C:
		}
	}
}

// Exists reports whether loc matches an element on r.
func Exists(ctx context.Context, r Reader, loc Locator) bool {
	_, res := r.FindText(ctx, loc)
	return res == Found
}
