package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/rickgao/lotwatch/internal/config"
	"github.com/rickgao/lotwatch/internal/database"
	"github.com/rickgao/lotwatch/internal/events"
	"github.com/rickgao/lotwatch/internal/model"
	"github.com/rickgao/lotwatch/internal/stream"
)

var (
	closingsSince  time.Duration
	closingsLimit  int
	closingsFollow string
)

var closingsCmd = &cobra.Command{
	Use:   "closings",
	Short: "List recorded closings, or follow a running monitor's stream",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if closingsFollow != "" {
			return followClosings(cmd, closingsFollow)
		}
		return listClosings(cmd)
	},
}

func init() {
	closingsCmd.Flags().DurationVar(&closingsSince, "since", 24*time.Hour, "how far back to list")
	closingsCmd.Flags().IntVar(&closingsLimit, "limit", 50, "maximum rows to list")
	closingsCmd.Flags().StringVar(&closingsFollow, "follow", "", "websocket URL of a running monitor (e.g. ws://localhost:8080/ws/closings)")
}

func listClosings(cmd *cobra.Command) error {
	cfg, err := config.LoadWithDefaults(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := database.Connect(cmd.Context(), cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	recs, err := database.NewClosingStore(pool).ListClosings(cmd.Context(), time.Now().Add(-closingsSince), closingsLimit)
	if err != nil {
		return err
	}

	renderClosings(cmd.OutOrStdout(), recs)
	return nil
}

func followClosings(cmd *cobra.Command, url string) error {
	cfg, err := config.LoadWithDefaults(configPath)
	if err != nil {
		cfg = config.Default()
	}
	logger, err := newLogger(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	err = stream.Follow(ctx, stream.FollowConfig{URL: url}, func(c events.Closing) {
		price := c.PriceText
		if price == "" {
			price = "-"
		}
		fmt.Fprintf(out, "%s  %-10s  %-8s  %-12s  %s\n",
			c.ObservedAt.Local().Format(time.TimeOnly), c.LotNumber, c.Outcome, price, c.Title)
	}, logger)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func renderClosings(w io.Writer, recs []model.ClosingRecord) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)

	t.AppendHeader(table.Row{"Observed", "Lot", "Title", "Price", "Outcome"})
	for _, r := range recs {
		price := r.PriceText
		if !r.PriceKnown() {
			price = "-"
		}
		t.AppendRow(table.Row{
			r.ObservedAt.Local().Format(time.DateTime),
			r.LotNumber,
			r.Title,
			price,
			string(r.Outcome),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "Total", len(recs)})
	t.Render()
}
