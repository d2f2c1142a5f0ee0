package page

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// Snapshot is a Browser over a static HTML document. Frame scoping is ignored:
// dumps are taken from the frame document already.
//
// Navigate, Click, and Fill only check that their target exists, which is
// enough to replay recorded pages and to exercise selectors in tests.
type Snapshot struct {
	mu      sync.RWMutex
	doc     *goquery.Document
	html    string
	visited []string
}

// NewSnapshot parses html into a Snapshot.
func NewSnapshot(html string) (*Snapshot, error) {
	s := &Snapshot{}
	if err := s.Load(html); err != nil {
		return nil, err
	}
	return s, nil
}

// Load replaces the current document.
func (s *Snapshot) Load(html string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("parse snapshot html: %w", err)
	}
	s.mu.Lock()
	s.doc = doc
	s.html = html
	s.mu.Unlock()
	return nil
}

// Visited returns the URLs passed to Navigate, in order.
func (s *Snapshot) Visited() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.visited...)
}

func (s *Snapshot) matches(loc Locator) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil || loc.IsZero() {
		return nil
	}

	var out []string
	s.doc.Find(loc.CSS).Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if loc.Text != "" && text != loc.Text {
			return
		}
		out = append(out, text)
	})
	return out
}

// FindText implements Reader.
func (s *Snapshot) FindText(_ context.Context, loc Locator) (string, Result) {
	texts := s.matches(loc)
	if loc.Index < 0 || loc.Index >= len(texts) {
		return "", NotFound
	}
	return texts[loc.Index], Found
}

// FindMany implements Reader.
func (s *Snapshot) FindMany(_ context.Context, loc Locator) []string {
	return s.matches(loc)
}

// Click implements Reader. Disabled elements are not interactable.
func (s *Snapshot) Click(_ context.Context, loc Locator) Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil || loc.IsZero() {
		return NotFound
	}

	sel := s.doc.Find(loc.CSS).FilterFunction(func(_ int, sel *goquery.Selection) bool {
		return loc.Text == "" || strings.TrimSpace(sel.Text()) == loc.Text
	})
	if loc.Index < 0 || loc.Index >= sel.Length() {
		return NotFound
	}
	if _, disabled := sel.Eq(loc.Index).Attr("disabled"); disabled {
		return NotInteractable
	}
	return Found
}

// Navigate implements Browser.
func (s *Snapshot) Navigate(_ context.Context, url string) error {
	s.mu.Lock()
	s.visited = append(s.visited, url)
	s.mu.Unlock()
	return nil
}

// Fill implements Browser.
func (s *Snapshot) Fill(ctx context.Context, loc Locator, _ string) Result {
	_, res := s.FindText(ctx, loc)
	return res
}

// Source implements Browser.
func (s *Snapshot) Source(context.Context, string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.html, nil
}
