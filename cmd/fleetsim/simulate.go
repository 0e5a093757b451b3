package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"fleetsim/internal/admin"
	"fleetsim/internal/config"
	"fleetsim/internal/fleet"
	"fleetsim/internal/logging"
	"fleetsim/internal/scenario"
	"fleetsim/internal/sim"
	"fleetsim/internal/tsdb"
)

var (
	simPrintOnly  bool
	simConfigPath string
	simSchemaPath string
	simTick       time.Duration
	simLogFile    string
	simTUI        bool
	simAdminAddr  string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the real-time fleet simulator",
	Long:  "simulate evolves the configured fleet, fires failure scenarios and records metrics to the configured backups.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := loadConfig(simConfigPath, simSchemaPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("tick") && os.Getenv("TICK_INTERVAL") == "" {
			cfg.TickInterval = simTick
		}
		if cmd.Flags().Changed("admin-addr") {
			cfg.Admin.Addr = simAdminAddr
		}

		log := logging.FromContext(ctx)
		useTUI := simTUI && term.IsTerminal(int(os.Stdout.Fd()))
		if simTUI && !useTUI {
			log.Warn("stdout is not a terminal, TUI disabled")
		}
		if useTUI {
			// the TUI owns the screen
			log = logging.New(logging.Options{Level: "error", Writer: io.Discard})
		}
		ctx = logging.NewContext(ctx, log)

		w, err := newWriters(ctx, cfg, simPrintOnly, simLogFile, useTUI)
		if err != nil {
			return err
		}
		defer w.Close()

		simulator, store, err := build(ctx, cfg, w)
		if err != nil {
			return err
		}

		g, gctx := errgroup.WithContext(ctx)
		if cfg.Admin.Addr != "" {
			srv := admin.NewServer(simulator, store, log)
			g.Go(func() error { return srv.Start(gctx, cfg.Admin.Addr) })
		}
		g.Go(func() error {
			simulator.Start(context.WithoutCancel(gctx))
			<-gctx.Done()
			simulator.Stop()
			return nil
		})
		err = g.Wait()

		stats := store.GetStorageStats()
		sum := simulator.GetSummary()
		log.Info("fleet simulation stopped",
			"servers", sum.Total,
			"critical", sum.Critical,
			"points", stats.TotalPoints,
			"memory", humanize.Bytes(uint64(stats.MemoryBytes)))
		return err
	},
}

// loadConfig reads the YAML file, or falls back to the built-in defaults
// when no path is given.
func loadConfig(path, schema string) (*config.SimulationConfig, error) {
	if path == "" {
		cfg := config.Default()
		if err := cfg.ApplyEnv(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return config.Load(path, schema)
}

// build wires the fleet provider, scenario catalog, store and simulator.
func build(ctx context.Context, cfg *config.SimulationConfig, w *writers) (*sim.Simulator, *tsdb.Store, error) {
	log := logging.FromContext(ctx)

	seeds := cfg.Servers
	if len(seeds) == 0 {
		seeds = fleet.BuiltIn()
	}
	provider := fleet.NewStatic(seeds)
	if cfg.IncludeLocalHost {
		if local, err := fleet.LocalHost(ctx); err != nil {
			log.Warn("local host seed unavailable", "err", err)
		} else if !provider.Add(local) {
			log.Warn("local host seed duplicates a configured server", "server_id", local.ID)
		}
	}

	var scenarios []scenario.Scenario
	if cfg.ScenariosFile != "" {
		var err error
		if scenarios, err = scenario.Load(cfg.ScenariosFile); err != nil {
			return nil, nil, err
		}
	}

	store := tsdb.New(tsdb.Options{
		MaxPoints:      cfg.Store.MaxPoints,
		Retention:      cfg.Store.Retention(),
		BackupInterval: cfg.Store.BackupInterval,
		Backup:         w.backup,
	})
	if cfg.Store.SnapshotLoad && w.snapshot != nil {
		store.LoadSnapshot(ctx, w.snapshot)
	}
	if w.sqlite != nil {
		cutoff := time.Now().Add(-cfg.Store.Retention())
		if n, err := w.sqlite.DeleteOlderThan(ctx, cutoff); err != nil {
			log.Warn("sqlite prune failed", "err", err)
		} else if n > 0 {
			log.Info("sqlite backup pruned", "points", n, "before", cutoff)
		}
	}

	simulator, err := sim.New(sim.Options{
		Fleet:            provider,
		Scenarios:        scenarios,
		Store:            store,
		Cache:            w.cache,
		TickInterval:     cfg.TickInterval,
		EffectResolution: cfg.EffectResolution,
		Seed:             cfg.Seed,
	})
	if err != nil {
		return nil, nil, err
	}
	log.Info("fleet loaded", "cluster_id", cfg.ClusterID, "servers", len(provider.Servers()), "scenarios", len(simulator.Scenarios()))
	return simulator, store, nil
}

func init() {
	simulateCmd.Flags().BoolVar(&simPrintOnly, "print-only", false, "Print fleet snapshots to STDOUT instead of writing to backup databases")
	simulateCmd.Flags().StringVar(&simConfigPath, "config", "", "Path to simulation configuration YAML (built-in fleet when empty)")
	simulateCmd.Flags().StringVar(&simSchemaPath, "schema", "", "Path to CUE schema file (embedded schema when empty)")
	simulateCmd.Flags().DurationVar(&simTick, "tick", config.DefaultTickInterval, "Simulation tick interval (e.g. 5s, 30s)")
	simulateCmd.Flags().StringVar(&simLogFile, "log-file", "", "Path to export snapshots (JSONL); points go to <path>.points")
	simulateCmd.Flags().BoolVar(&simTUI, "tui", false, "Show a terminal dashboard instead of logs")
	simulateCmd.Flags().StringVar(&simAdminAddr, "admin-addr", "", "Admin API listen address, overrides the config file")
}
