// Package replay runs saved page dumps through the feed readers and the
// auction state machine, one dump per tick, against an in-memory store.
//
// It is used to check selector changes and closing detection offline.
package replay

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/lotwatch/internal/auction"
	"github.com/rickgao/lotwatch/internal/feed"
	"github.com/rickgao/lotwatch/internal/model"
	"github.com/rickgao/lotwatch/internal/page"
	"github.com/rickgao/lotwatch/internal/store/memory"
	"github.com/rickgao/lotwatch/internal/writer"
)

// Report summarizes a replay.
type Report struct {
	Frames  int
	Ended   bool
	Stats   auction.Stats
	Records []model.ClosingRecord
}

// Files lists the .html files in dir. Dump names start with a UTC timestamp,
// so name order is capture order.
func Files(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read replay dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".html") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// Run feeds each file to a fresh session, in order, stopping early if the
// ended marker appears.
func Run(ctx context.Context, sel feed.Selectors, files []string, logger *slog.Logger) (Report, error) {
	if logger == nil {
		logger = slog.Default()
	}

	snap, err := page.NewSnapshot("")
	if err != nil {
		return Report{}, err
	}

	// Snapshots are static; one probe is enough.
	fcfg := feed.Config{
		ReadTimeout:     time.Second,
		EndProbeTimeout: time.Millisecond,
		EndProbeEvery:   time.Millisecond,
	}
	prices := feed.NewPriceFeed(fcfg, sel, snap, logger)
	lots := feed.NewLotIdentifier(fcfg, sel, snap)

	results := memory.New(0)
	recorder := writer.NewRecorder(writer.DefaultConfig(), results, nil, nil, logger)
	machine := auction.NewMachine(auction.Config{}, uuid.New(), prices, lots, recorder, logger)

	var rep Report
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return rep, err
		}

		html, err := os.ReadFile(path)
		if err != nil {
			return rep, fmt.Errorf("read %s: %w", path, err)
		}
		if err := snap.Load(string(html)); err != nil {
			return rep, fmt.Errorf("load %s: %w", path, err)
		}

		rep.Frames++
		if machine.Tick(ctx) == auction.StateEnded {
			rep.Ended = true
			break
		}
	}

	rep.Stats = machine.Stats()
	rep.Records = results.Records()
	return rep, nil
}
