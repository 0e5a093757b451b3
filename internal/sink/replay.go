package sink

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"time"

	"fleetsim/internal/telemetry"
	"fleetsim/internal/tsdb"
)

// ReplayLog replays backup points from r to writer, one batch per distinct
// timestamp. A speed >0 scales the recorded gaps between batches; if
// speed <= 0, no artificial delay is inserted.
func ReplayLog(ctx context.Context, r io.Reader, writer tsdb.BackupWriter, speed float64) (int, error) {
	dec := json.NewDecoder(r)
	var (
		batch []telemetry.Point
		prev  time.Time
		total int
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := writer.WriteBackup(ctx, batch); err != nil {
			return err
		}
		total += len(batch)
		batch = nil
		return nil
	}
	for {
		var p telemetry.Point
		if err := dec.Decode(&p); err != nil {
			if errors.Is(err, io.EOF) {
				return total, flush()
			}
			return total, err
		}
		if len(batch) > 0 && !p.Timestamp.Equal(prev) {
			if err := flush(); err != nil {
				return total, err
			}
			if err := wait(ctx, p.Timestamp.Sub(prev), speed); err != nil {
				return total, err
			}
		}
		batch = append(batch, p)
		prev = p.Timestamp
	}
}

func wait(ctx context.Context, gap time.Duration, speed float64) error {
	if speed <= 0 || gap <= 0 {
		return ctx.Err()
	}
	if speed != 1 {
		gap = time.Duration(float64(gap) / speed)
	}
	t := time.NewTimer(gap)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReplayLogFile opens a file and replays its points.
func ReplayLogFile(ctx context.Context, path string, writer tsdb.BackupWriter, speed float64) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return ReplayLog(ctx, f, writer, speed)
}
