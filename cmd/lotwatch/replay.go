package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/rickgao/lotwatch/internal/config"
	"github.com/rickgao/lotwatch/internal/feed"
	"github.com/rickgao/lotwatch/internal/replay"
)

var replayCmd = &cobra.Command{
	Use:   "replay <dir>",
	Short: "Run saved page dumps through the closing detector",
	Long: `Replay feeds every .html file in <dir>, in name order, to a fresh
auction session backed by an in-memory store, and prints the closings it
would have recorded. Selectors come from --config when the file exists.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadWithDefaults(configPath)
		if errors.Is(err, fs.ErrNotExist) {
			cfg = config.Default()
		} else if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger, err := newLogger(cfg.Logging, os.Stderr)
		if err != nil {
			return err
		}

		files, err := replay.Files(args[0])
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return fmt.Errorf("no .html files in %s", args[0])
		}

		rep, err := replay.Run(cmd.Context(), feed.Selectors{
			Status:    cfg.Selectors.Status,
			Title:     cfg.Selectors.Title,
			LotNumber: cfg.Selectors.LotNumber,
			Ended:     cfg.Selectors.Ended,
		}, files, logger)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		renderClosings(out, rep.Records)
		fmt.Fprintf(out, "frames=%d ended=%t lot_switches=%d\n", rep.Frames, rep.Ended, rep.Stats.LotSwitches)
		return nil
	},
}
