package page

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

const joinPage = `<html><body>
<div class="sale-end">Auction Ended</div>
<button class="bid" disabled>Join</button>
<button class="bid">Join</button>
<svg><text>Bid!</text><text>$1,500</text></svg>
</body></html>`

func TestSnapshot_FindText(t *testing.T) {
	s, err := NewSnapshot(joinPage)
	if err != nil {
		t.Fatalf("NewSnapshot() error = %v", err)
	}
	ctx := context.Background()

	tests := []struct {
		name string
		loc  Locator
		want string
		res  Result
	}{
		{"css", Locator{CSS: "div.sale-end"}, "Auction Ended", Found},
		{"text match", Locator{CSS: "div.sale-end", Text: "Auction Ended"}, "Auction Ended", Found},
		{"text mismatch", Locator{CSS: "div.sale-end", Text: "Live"}, "", NotFound},
		{"index", Locator{CSS: "svg text", Index: 1}, "$1,500", Found},
		{"index out of range", Locator{CSS: "svg text", Index: 5}, "", NotFound},
		{"missing", Locator{CSS: "div.titlelbl"}, "", NotFound},
		{"zero locator", Locator{}, "", NotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, res := s.FindText(ctx, tt.loc)
			if res != tt.res {
				t.Errorf("result = %v, want %v", res, tt.res)
			}
			if got != tt.want {
				t.Errorf("text = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSnapshot_Click(t *testing.T) {
	s, err := NewSnapshot(joinPage)
	if err != nil {
		t.Fatalf("NewSnapshot() error = %v", err)
	}
	ctx := context.Background()

	if got := s.Click(ctx, Locator{CSS: "button.bid", Index: 0}); got != NotInteractable {
		t.Errorf("Click(disabled) = %v, want %v", got, NotInteractable)
	}
	if got := s.Click(ctx, Locator{CSS: "button.bid", Index: 1}); got != Found {
		t.Errorf("Click(enabled) = %v, want %v", got, Found)
	}
	if got := s.Click(ctx, Locator{CSS: "button.join"}); got != NotFound {
		t.Errorf("Click(missing) = %v, want %v", got, NotFound)
	}
}

func TestSnapshot_FindMany(t *testing.T) {
	s, err := NewSnapshot(joinPage)
	if err != nil {
		t.Fatalf("NewSnapshot() error = %v", err)
	}
	got := s.FindMany(context.Background(), Locator{CSS: "svg text"})
	if len(got) != 2 || got[0] != "Bid!" || got[1] != "$1,500" {
		t.Errorf("FindMany() = %q", got)
	}
}

func TestWaitUntil(t *testing.T) {
	ctx := context.Background()

	var calls atomic.Int32
	res := WaitUntil(ctx, func(context.Context) bool {
		return calls.Add(1) >= 3
	}, time.Second, 5*time.Millisecond)
	if res != Found {
		t.Errorf("WaitUntil() = %v, want %v", res, Found)
	}

	res = WaitUntil(ctx, func(context.Context) bool { return false }, 30*time.Millisecond, 5*time.Millisecond)
	if res != TimedOut {
		t.Errorf("WaitUntil() = %v, want %v", res, TimedOut)
	}
}
