package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fleetsim/internal/logging"
	"fleetsim/internal/sink"
)

var (
	replayInput     string
	replaySpeed     float64
	replayPrintOnly bool
	replayConfig    string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a recorded points log",
	Long:  "replay feeds points from a JSONL log (written by simulate --log-file) back into the configured backups or STDOUT.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayInput == "" {
			return fmt.Errorf("input file required")
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		cfg, err := loadConfig(replayConfig, "")
		if err != nil {
			return err
		}
		writer, w, err := replayWriter(ctx, cfg, replayPrintOnly)
		if err != nil {
			return err
		}
		defer w.Close()
		n, err := sink.ReplayLogFile(ctx, replayInput, writer, replaySpeed)
		logging.FromContext(ctx).Info("replay finished", "points", n, "input", replayInput)
		return err
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to points log file")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier (0 replays without delay)")
	replayCmd.Flags().BoolVar(&replayPrintOnly, "print-only", false, "Print points to STDOUT instead of writing to backup databases")
	replayCmd.Flags().StringVar(&replayConfig, "config", "", "Simulation configuration naming the backup databases")
	replayCmd.MarkFlagRequired("input")
}
