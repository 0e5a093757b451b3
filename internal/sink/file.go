package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"fleetsim/internal/telemetry"
)

// FileWriter appends snapshots and backup points to JSONL files.
// The backup file can be fed back through ReplayLogFile.
type FileWriter struct {
	mu         sync.Mutex
	snapFile   *os.File
	backupFile *os.File
	snapEnc    *json.Encoder
	backupEnc  *json.Encoder
}

// NewFileWriter creates a FileWriter. Either path may be empty to skip that log.
func NewFileWriter(snapshotPath, backupPath string) (*FileWriter, error) {
	fw := &FileWriter{}
	if snapshotPath != "" {
		f, err := os.Create(snapshotPath)
		if err != nil {
			return nil, fmt.Errorf("create snapshot log: %w", err)
		}
		fw.snapFile = f
		fw.snapEnc = json.NewEncoder(f)
	}
	if backupPath != "" {
		f, err := os.Create(backupPath)
		if err != nil {
			fw.Close()
			return nil, fmt.Errorf("create backup log: %w", err)
		}
		fw.backupFile = f
		fw.backupEnc = json.NewEncoder(f)
	}
	return fw, nil
}

// CacheServerMetrics logs every server of a snapshot, if enabled.
func (f *FileWriter) CacheServerMetrics(_ context.Context, servers []telemetry.ServerMetrics) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snapEnc == nil {
		return nil
	}
	for _, s := range servers {
		if err := f.snapEnc.Encode(s); err != nil {
			return err
		}
	}
	return nil
}

// WriteBackup logs points, if enabled.
func (f *FileWriter) WriteBackup(_ context.Context, points []telemetry.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.backupEnc == nil {
		return nil
	}
	for _, p := range points {
		if err := f.backupEnc.Encode(p); err != nil {
			return err
		}
	}
	return nil
}

// Close closes any underlying files.
func (f *FileWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var errs []error
	if f.snapFile != nil {
		errs = append(errs, f.snapFile.Close())
		f.snapFile, f.snapEnc = nil, nil
	}
	if f.backupFile != nil {
		errs = append(errs, f.backupFile.Close())
		f.backupFile, f.backupEnc = nil, nil
	}
	return errors.Join(errs...)
}
