package replay

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rickgao/lotwatch/internal/feed"
	"github.com/rickgao/lotwatch/internal/model"
	"github.com/rickgao/lotwatch/internal/page"
)

var testSelectors = feed.Selectors{
	Status:    page.Locator{Frame: "iframe", CSS: "svg text"},
	Title:     page.Locator{Frame: "iframe", CSS: "div.titlelbl.ellipsis[title]"},
	LotNumber: page.Locator{Frame: "iframe", CSS: "a.titlelbl.ellipsis[href*='/lot/']"},
	Ended:     page.Locator{Frame: "iframe", CSS: "div.sale-end", Text: "Auction Ended"},
}

func frame(status, title, lot string) string {
	body := fmt.Sprintf(`<svg><text>%s</text></svg>`, status)
	if lot != "" {
		body += fmt.Sprintf(`<div class="titlelbl ellipsis" title="%[1]s">%[1]s</div>`, title)
		body += fmt.Sprintf(`<a class="titlelbl ellipsis" href="/lot/%[1]s">%[1]s</a>`, lot)
	}
	return "<html><body>" + body + "</body></html>"
}

func writeFrames(t *testing.T, frames ...string) string {
	t.Helper()
	dir := t.TempDir()
	for i, f := range frames {
		name := fmt.Sprintf("20261018T120000.%03dZ-tick.html", i)
		if err := os.WriteFile(filepath.Join(dir, name), []byte(f), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	// Ignored by Files.
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644)
	return dir
}

func TestRun(t *testing.T) {
	dir := writeFrames(t,
		frame("$9,500", "2019 HONDA CIVIC", "41234567"),
		frame("$9,750", "2019 HONDA CIVIC", "41234567"),
		frame("Sold!", "2019 HONDA CIVIC", "41234567"),
		frame("Sold!", "2019 HONDA CIVIC", "41234567"),
		frame("$3,100", "2015 FORD F-150", "55512345"),
		frame("Approval!", "2015 FORD F-150", "55512345"),
		`<html><body><div class="sale-end">Auction Ended</div></body></html>`,
		frame("$1", "NEVER READ", "1"),
	)

	files, err := Files(dir)
	if err != nil {
		t.Fatalf("Files() error = %v", err)
	}
	if len(files) != 8 {
		t.Fatalf("Files() = %d files, want 8", len(files))
	}

	rep, err := Run(context.Background(), testSelectors, files, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !rep.Ended {
		t.Error("Ended = false, want true")
	}
	if rep.Frames != 7 {
		t.Errorf("Frames = %d, want 7", rep.Frames)
	}
	if len(rep.Records) != 2 {
		t.Fatalf("Records = %d, want 2", len(rep.Records))
	}

	tests := []struct {
		lot     string
		price   string
		outcome model.Outcome
	}{
		{"41234567", "$9,750", model.OutcomeSold},
		{"55512345", "$3,100", model.OutcomeApproved},
	}
	for i, tt := range tests {
		got := rep.Records[i]
		if got.LotNumber != tt.lot || got.PriceText != tt.price || got.Outcome != tt.outcome {
			t.Errorf("Records[%d] = %s/%s/%s, want %s/%s/%s",
				i, got.LotNumber, got.PriceText, got.Outcome, tt.lot, tt.price, tt.outcome)
		}
	}
}

func TestFiles_MissingDir(t *testing.T) {
	if _, err := Files(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("Files() error = nil, want error")
	}
}
