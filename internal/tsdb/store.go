// Package tsdb is a bounded in-memory time-series store for per-server
// metric samples. Buffers are capped by point count and by age.
package tsdb

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"fleetsim/internal/clock"
	"fleetsim/internal/logging"
	"fleetsim/internal/telemetry"
)

// Defaults applied by New.
const (
	DefaultMaxPoints      = 1440
	DefaultRetention      = 24 * time.Hour
	DefaultBackupInterval = 30 * time.Minute
)

// BackupWriter receives batches of points for durable storage.
type BackupWriter interface {
	WriteBackup(ctx context.Context, points []telemetry.Point) error
}

// SnapshotLoader returns previously backed up points newer than since.
type SnapshotLoader interface {
	LoadRecent(ctx context.Context, since time.Time) ([]telemetry.Point, error)
}

// Options configures a Store.
type Options struct {
	MaxPoints      int
	Retention      time.Duration
	BackupInterval time.Duration
	Backup         BackupWriter
	Clock          clock.Clock
}

// Store holds one time-ordered buffer per server.
type Store struct {
	mu         sync.RWMutex
	buffers    map[string][]telemetry.Point
	maxPoints  int
	retention  time.Duration
	interval   time.Duration
	backup     BackupWriter
	clock      clock.Clock
	lastBackup time.Time
}

// New creates an empty store.
func New(opts Options) *Store {
	if opts.MaxPoints <= 0 {
		opts.MaxPoints = DefaultMaxPoints
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	if opts.BackupInterval <= 0 {
		opts.BackupInterval = DefaultBackupInterval
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	return &Store{
		buffers:   make(map[string][]telemetry.Point),
		maxPoints: opts.MaxPoints,
		retention: opts.Retention,
		interval:  opts.BackupInterval,
		backup:    opts.Backup,
		clock:     opts.Clock,
	}
}

// StoreMetrics samples every server at the current time and appends the
// points to their buffers. Every buffer is then trimmed to the retention
// window, including servers absent from this batch. Backups are best effort.
func (s *Store) StoreMetrics(ctx context.Context, servers []telemetry.ServerMetrics) {
	if len(servers) == 0 {
		return
	}
	now := s.clock.Now()
	batch := make([]telemetry.Point, 0, len(servers))
	for _, srv := range servers {
		batch = append(batch, telemetry.NewPoint(srv, now))
	}

	s.mu.Lock()
	for _, p := range batch {
		s.buffers[p.ServerID] = s.insert(s.buffers[p.ServerID], p, now)
	}
	s.sweep(now)
	due := s.lastBackup.IsZero() || now.Sub(s.lastBackup) >= s.interval
	if due {
		s.lastBackup = now
	}
	s.mu.Unlock()

	if due {
		s.runBackup(ctx, batch)
	}
}

func (s *Store) runBackup(ctx context.Context, batch []telemetry.Point) {
	log := logging.FromContext(ctx)
	if s.backup == nil {
		log.Warn("no backup writer configured, skipping backup", "points", len(batch))
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("backup writer panicked", "panic", fmt.Sprint(r))
		}
	}()
	if err := s.backup.WriteBackup(ctx, batch); err != nil {
		log.Error("backup failed", "points", len(batch), "err", err)
		return
	}
	log.Debug("backup written", "points", len(batch))
}

// insert places p in time order and applies both eviction rules.
func (s *Store) insert(buf []telemetry.Point, p telemetry.Point, now time.Time) []telemetry.Point {
	i := sort.Search(len(buf), func(i int) bool { return buf[i].Timestamp.After(p.Timestamp) })
	buf = append(buf, telemetry.Point{})
	copy(buf[i+1:], buf[i:])
	buf[i] = p
	return s.evict(buf, now)
}

func (s *Store) evict(buf []telemetry.Point, now time.Time) []telemetry.Point {
	cutoff := now.Add(-s.retention)
	drop := sort.Search(len(buf), func(i int) bool { return !buf[i].Timestamp.Before(cutoff) })
	if over := len(buf) - drop - s.maxPoints; over > 0 {
		drop += over
	}
	if drop == 0 {
		return buf
	}
	// copy so the dropped prefix can be collected
	return append([]telemetry.Point(nil), buf[drop:]...)
}

// sweep evicts expired points from every buffer and drops servers left
// empty. It returns the number of points kept. Callers hold s.mu.
func (s *Store) sweep(now time.Time) int {
	n := 0
	for id, buf := range s.buffers {
		buf = s.evict(buf, now)
		if len(buf) == 0 {
			delete(s.buffers, id)
			continue
		}
		s.buffers[id] = buf
		n += len(buf)
	}
	return n
}

// LoadSnapshot seeds the buffers from a backup. Failures leave the store
// empty and are only logged. It returns the number of points loaded.
func (s *Store) LoadSnapshot(ctx context.Context, loader SnapshotLoader) int {
	log := logging.FromContext(ctx)
	if loader == nil {
		return 0
	}
	now := s.clock.Now()
	points, err := loader.LoadRecent(ctx, now.Add(-s.retention))
	if err != nil {
		log.Warn("snapshot load failed, starting empty", "err", err)
		return 0
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Timestamp.Before(points[j].Timestamp) })

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		s.buffers[p.ServerID] = append(s.buffers[p.ServerID], p)
	}
	n := s.sweep(now)
	log.Info("snapshot loaded", "points", n, "servers", len(s.buffers))
	return n
}
