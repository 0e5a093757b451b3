package main

import (
	"context"
	"errors"
	"fmt"

	"fleetsim/internal/config"
	"fleetsim/internal/logging"
	"fleetsim/internal/sim"
	"fleetsim/internal/sink"
	"fleetsim/internal/tsdb"
)

// writers bundles the sinks a run writes to.
type writers struct {
	cache    sim.CacheWriter     // nil when nothing consumes snapshots
	backup   tsdb.BackupWriter   // nil when no backup database is configured
	snapshot tsdb.SnapshotLoader // nil unless snapshot_load is set
	sqlite   *sink.SQLiteWriter
	closers  []func() error
}

// Close releases every opened sink.
func (w *writers) Close() error {
	var errs []error
	for i := len(w.closers) - 1; i >= 0; i-- {
		errs = append(errs, w.closers[i]())
	}
	return errors.Join(errs...)
}

// newWriters sets up cache and backup writers from the configuration and flags.
// printOnly replaces every backup database with STDOUT; logFile adds a JSONL
// export of snapshots (logFile) and points (logFile+".points").
func newWriters(ctx context.Context, cfg *config.SimulationConfig, printOnly bool, logFile string, tui bool) (*writers, error) {
	log := logging.FromContext(ctx)
	w := &writers{}
	var caches []sim.CacheWriter
	var backups []tsdb.BackupWriter

	switch {
	case tui:
		tw := sink.NewTUIWriter(cfg.ClusterID)
		w.closers = append(w.closers, tw.Close)
		caches = append(caches, tw)
	case printOnly:
		caches = append(caches, sink.NewJSONStdoutWriter())
	}

	if logFile != "" {
		fw, err := sink.NewFileWriter(logFile, logFile+".points")
		if err != nil {
			w.Close()
			return nil, err
		}
		w.closers = append(w.closers, fw.Close)
		caches = append(caches, fw)
		backups = append(backups, fw)
	}

	if !printOnly {
		var err error
		if backups, err = w.openBackups(ctx, cfg.Backup, backups); err != nil {
			w.Close()
			return nil, err
		}
	}

	if len(caches) > 0 {
		w.cache = sink.NewMultiWriter(caches, nil)
	}
	if len(backups) > 0 {
		w.backup = sink.NewMultiWriter(nil, backups)
	}
	if cfg.Store.SnapshotLoad && w.snapshot == nil {
		log.Warn("snapshot_load set but no SQLite or PostgreSQL backup is configured")
	}
	return w, nil
}

func (w *writers) openBackups(ctx context.Context, b config.Backup, backups []tsdb.BackupWriter) ([]tsdb.BackupWriter, error) {
	log := logging.FromContext(ctx)
	if b.GreptimeDBEndpoint != "" {
		db := b.GreptimeDBDatabase
		if db == "" {
			db = "public"
		}
		gw, err := sink.NewGreptimeDBWriter(b.GreptimeDBEndpoint, db, b.GreptimeDBTable)
		if err != nil {
			return nil, err
		}
		log.Info("greptimedb backup enabled", "endpoint", b.GreptimeDBEndpoint, "database", db)
		backups = append(backups, gw)
	}
	if b.SQLitePath != "" {
		sw, err := sink.OpenSQLite(b.SQLitePath)
		if err != nil {
			return nil, err
		}
		w.closers = append(w.closers, sw.Close)
		w.sqlite = sw
		w.snapshot = sw
		log.Info("sqlite backup enabled", "path", b.SQLitePath)
		backups = append(backups, sw)
	}
	if b.PostgresDSN != "" {
		pw, err := sink.ConnectPostgres(ctx, b.PostgresDSN, b.PostgresTable)
		if err != nil {
			return nil, err
		}
		w.closers = append(w.closers, func() error { return pw.Close(context.Background()) })
		if w.snapshot == nil {
			w.snapshot = pw
		}
		log.Info("postgres backup enabled")
		backups = append(backups, pw)
	}
	if b.FilePath != "" {
		fw, err := sink.NewFileWriter("", b.FilePath)
		if err != nil {
			return nil, fmt.Errorf("backup file: %w", err)
		}
		w.closers = append(w.closers, fw.Close)
		backups = append(backups, fw)
	}
	return backups, nil
}

// replayWriter chooses where replayed points go: the configured backup
// databases, or STDOUT when none is configured or printOnly is set.
func replayWriter(ctx context.Context, cfg *config.SimulationConfig, printOnly bool) (tsdb.BackupWriter, *writers, error) {
	w, err := newWriters(ctx, cfg, printOnly, "", false)
	if err != nil {
		return nil, nil, err
	}
	if w.backup == nil {
		logging.FromContext(ctx).Info("print-only mode: points will be printed to STDOUT")
		return sink.NewJSONStdoutWriter(), w, nil
	}
	return w.backup, w, nil
}
