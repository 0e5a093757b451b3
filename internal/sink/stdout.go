// Package sink holds the external writers the simulator and store feed:
// cache sinks for live fleet snapshots and backup sinks for time-series points.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"fleetsim/internal/sim"
	"fleetsim/internal/telemetry"
	"fleetsim/internal/tsdb"
)

var (
	_ sim.CacheWriter   = (*JSONStdoutWriter)(nil)
	_ tsdb.BackupWriter = (*JSONStdoutWriter)(nil)
)

// JSONStdoutWriter prints snapshots and points as JSON lines.
type JSONStdoutWriter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewJSONStdoutWriter creates a JSONStdoutWriter writing to os.Stdout.
func NewJSONStdoutWriter() *JSONStdoutWriter {
	return &JSONStdoutWriter{out: os.Stdout}
}

// CacheServerMetrics prints one line per server.
func (w *JSONStdoutWriter) CacheServerMetrics(_ context.Context, servers []telemetry.ServerMetrics) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, s := range servers {
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("encode server %s: %w", s.ID, err)
		}
		fmt.Fprintln(w.out, string(data))
	}
	return nil
}

// WriteBackup prints one line per point.
func (w *JSONStdoutWriter) WriteBackup(_ context.Context, points []telemetry.Point) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range points {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode point %s: %w", p.ServerID, err)
		}
		fmt.Fprintln(w.out, string(data))
	}
	return nil
}
