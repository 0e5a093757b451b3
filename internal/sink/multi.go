package sink

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"fleetsim/internal/sim"
	"fleetsim/internal/telemetry"
	"fleetsim/internal/tsdb"
)

// MultiWriter fans snapshots and points out to several writers.
type MultiWriter struct {
	caches  []sim.CacheWriter
	backups []tsdb.BackupWriter
}

// NewMultiWriter creates a new MultiWriter. Nil writers are skipped.
func NewMultiWriter(caches []sim.CacheWriter, backups []tsdb.BackupWriter) *MultiWriter {
	mw := &MultiWriter{}
	for _, c := range caches {
		if c != nil {
			mw.caches = append(mw.caches, c)
		}
	}
	for _, b := range backups {
		if b != nil {
			mw.backups = append(mw.backups, b)
		}
	}
	return mw
}

// CacheServerMetrics writes to every cache writer in order. A failing writer
// does not stop the others; all errors are joined.
func (mw *MultiWriter) CacheServerMetrics(ctx context.Context, servers []telemetry.ServerMetrics) error {
	var errs []error
	for _, w := range mw.caches {
		if err := w.CacheServerMetrics(ctx, servers); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", w, err))
		}
	}
	return errors.Join(errs...)
}

// WriteBackup writes to every backup writer concurrently and joins their errors.
func (mw *MultiWriter) WriteBackup(ctx context.Context, points []telemetry.Point) error {
	errs := make([]error, len(mw.backups))
	var g errgroup.Group
	for i, w := range mw.backups {
		g.Go(func() error {
			if err := w.WriteBackup(ctx, points); err != nil {
				errs[i] = fmt.Errorf("%T: %w", w, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// HasBackups reports whether any backup writer is configured.
func (mw *MultiWriter) HasBackups() bool { return len(mw.backups) > 0 }

// HasCaches reports whether any cache writer is configured.
func (mw *MultiWriter) HasCaches() bool { return len(mw.caches) > 0 }
