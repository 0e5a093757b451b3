package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fleetsim/internal/config"
	"fleetsim/internal/logging"
	"fleetsim/internal/sink"
	"fleetsim/internal/telemetry"
)

func quietCtx() context.Context {
	return logging.NewContext(context.Background(), logging.Discard())
}

func TestNewWritersPrintOnly(t *testing.T) {
	cfg := config.Default()
	cfg.Backup.SQLitePath = filepath.Join(t.TempDir(), "ignored.db")
	w, err := newWriters(quietCtx(), cfg, true, "", false)
	if err != nil {
		t.Fatalf("newWriters returned error: %v", err)
	}
	defer w.Close()
	if w.cache == nil {
		t.Fatalf("expected a STDOUT cache writer")
	}
	if w.backup != nil || w.sqlite != nil {
		t.Fatalf("print-only must not open backup databases")
	}
	if _, err := os.Stat(cfg.Backup.SQLitePath); !os.IsNotExist(err) {
		t.Fatalf("sqlite file should not be created in print-only mode")
	}
}

func TestNewWritersNothingConfigured(t *testing.T) {
	w, err := newWriters(quietCtx(), config.Default(), false, "", false)
	if err != nil {
		t.Fatalf("newWriters returned error: %v", err)
	}
	defer w.Close()
	if w.cache != nil || w.backup != nil || w.snapshot != nil {
		t.Fatalf("expected no writers, got %+v", w)
	}
}

func TestNewWritersLogFileAndSQLite(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Backup.SQLitePath = filepath.Join(dir, "backup.db")
	logPath := filepath.Join(dir, "snapshots.jsonl")
	ctx := quietCtx()

	w, err := newWriters(ctx, cfg, false, logPath, false)
	if err != nil {
		t.Fatalf("newWriters returned error: %v", err)
	}
	if _, ok := w.cache.(*sink.MultiWriter); !ok {
		t.Fatalf("expected *sink.MultiWriter cache, got %T", w.cache)
	}
	if w.snapshot == nil || w.sqlite == nil {
		t.Fatalf("expected sqlite to serve as snapshot loader")
	}

	srv := telemetry.FromBase(telemetry.BaseServer{ID: "web-1", Role: telemetry.RoleWeb, CPUUsage: 30})
	if err := w.cache.CacheServerMetrics(ctx, []telemetry.ServerMetrics{srv}); err != nil {
		t.Fatalf("cache write failed: %v", err)
	}
	pt := telemetry.NewPoint(srv, time.Now().UTC())
	if err := w.backup.WriteBackup(ctx, []telemetry.Point{pt}); err != nil {
		t.Fatalf("backup write failed: %v", err)
	}
	recent, err := w.snapshot.LoadRecent(ctx, time.Now().Add(-time.Hour))
	if err != nil || len(recent) != 1 {
		t.Fatalf("expected 1 point in sqlite, got %d (%v)", len(recent), err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	for _, p := range []string{logPath, logPath + ".points"} {
		info, err := os.Stat(p)
		if err != nil {
			t.Fatalf("stat %s: %v", p, err)
		}
		if info.Size() == 0 {
			t.Fatalf("expected %s to be non-empty", p)
		}
	}

	// the points log is replayable
	n, err := sink.ReplayLogFile(ctx, logPath+".points", sink.NewMultiWriter(nil, nil), 0)
	if err != nil || n != 1 {
		t.Fatalf("replayed %d points (%v), want 1", n, err)
	}
}

func TestReplayWriterFallsBackToStdout(t *testing.T) {
	writer, w, err := replayWriter(quietCtx(), config.Default(), false)
	if err != nil {
		t.Fatalf("replayWriter: %v", err)
	}
	defer w.Close()
	if _, ok := writer.(*sink.JSONStdoutWriter); !ok {
		t.Fatalf("expected *sink.JSONStdoutWriter, got %T", writer)
	}
}

func TestBuildUsesConfiguredFleet(t *testing.T) {
	cfg := config.Default()
	cfg.Servers = []telemetry.BaseServer{
		{ID: "db-1", Role: telemetry.RoleDatabase, CPUUsage: 50},
		{ID: "web-1", Role: telemetry.RoleWeb, CPUUsage: 20},
	}
	cfg.ScenariosFile = filepath.Join("..", "..", "internal", "scenario", "testdata", "catalog.yaml")
	w := &writers{}
	simulator, store, err := build(quietCtx(), cfg, w)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := len(simulator.GetServers()); got != 2 {
		t.Fatalf("expected 2 servers, got %d", got)
	}
	if got := len(simulator.Scenarios()); got != 1 {
		t.Fatalf("expected scenarios from file, got %d", got)
	}
	simulator.Tick(quietCtx())
	if st := store.GetStorageStats(); st.TotalPoints != 2 {
		t.Fatalf("expected 2 stored points, got %d", st.TotalPoints)
	}
}

func TestBuildDefaultsToBuiltInFleet(t *testing.T) {
	simulator, _, err := build(quietCtx(), config.Default(), &writers{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := len(simulator.GetServers()); got == 0 {
		t.Fatalf("expected the built-in fleet")
	}
}
