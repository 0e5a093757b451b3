package sink

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"fleetsim/internal/telemetry"
	"fleetsim/internal/tsdb"
)

var (
	_ tsdb.BackupWriter   = (*SQLiteWriter)(nil)
	_ tsdb.SnapshotLoader = (*SQLiteWriter)(nil)
)

// SQLiteWriter backs points up to a local SQLite database and can load them
// back for a cold start.
type SQLiteWriter struct {
	db *sql.DB
}

// OpenSQLite creates or opens a SQLite database at path.
// The parent directory is created if it does not exist.
func OpenSQLite(path string) (*SQLiteWriter, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sqlite backup: failed to create directory %s: %w", dir, err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("sqlite backup: failed to open database: %w", err)
	}
	w := &SQLiteWriter{db: db}
	if err := w.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return w, nil
}

func (w *SQLiteWriter) migrate() error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS metric_points (
			ts            INTEGER NOT NULL,
			server_id     TEXT    NOT NULL,
			hostname      TEXT    NOT NULL DEFAULT '',
			environment   TEXT    NOT NULL DEFAULT '',
			role          TEXT    NOT NULL DEFAULT '',
			cpu           REAL    NOT NULL DEFAULT 0,
			memory        REAL    NOT NULL DEFAULT 0,
			disk          REAL    NOT NULL DEFAULT 0,
			network_in    REAL    NOT NULL DEFAULT 0,
			network_out   REAL    NOT NULL DEFAULT 0,
			response_time REAL    NOT NULL DEFAULT 0,
			status        TEXT    NOT NULL DEFAULT '',
			alerts_count  INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_metric_points_ts ON metric_points (ts);`
	if _, err := w.db.Exec(ddl); err != nil {
		return fmt.Errorf("sqlite backup: migration failed: %w", err)
	}
	return nil
}

// WriteBackup inserts points in one transaction.
func (w *SQLiteWriter) WriteBackup(ctx context.Context, points []telemetry.Point) error {
	if len(points) == 0 {
		return nil
	}
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite backup: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO metric_points
			(ts, server_id, hostname, environment, role, cpu, memory, disk,
			 network_in, network_out, response_time, status, alerts_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite backup: prepare: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		_, err := stmt.ExecContext(ctx,
			p.Timestamp.UnixMilli(), p.ServerID, p.Hostname, p.Environment, string(p.Role),
			p.Metrics.CPU, p.Metrics.Memory, p.Metrics.Disk,
			p.Metrics.NetworkIn, p.Metrics.NetworkOut, p.Metrics.ResponseTime,
			string(p.Status), p.AlertsCount,
		)
		if err != nil {
			return fmt.Errorf("sqlite backup: insert %s: %w", p.ServerID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite backup: commit: %w", err)
	}
	return nil
}

// LoadRecent returns points newer than since, oldest first.
func (w *SQLiteWriter) LoadRecent(ctx context.Context, since time.Time) ([]telemetry.Point, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT ts, server_id, hostname, environment, role, cpu, memory, disk,
		       network_in, network_out, response_time, status, alerts_count
		FROM metric_points
		WHERE ts >= ?
		ORDER BY ts ASC`, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("sqlite backup: query: %w", err)
	}
	defer rows.Close()

	var out []telemetry.Point
	for rows.Next() {
		var (
			p          telemetry.Point
			ts         int64
			role, stat string
		)
		if err := rows.Scan(&ts, &p.ServerID, &p.Hostname, &p.Environment, &role,
			&p.Metrics.CPU, &p.Metrics.Memory, &p.Metrics.Disk,
			&p.Metrics.NetworkIn, &p.Metrics.NetworkOut, &p.Metrics.ResponseTime,
			&stat, &p.AlertsCount); err != nil {
			return nil, fmt.Errorf("sqlite backup: scan: %w", err)
		}
		p.Timestamp = time.UnixMilli(ts).UTC()
		p.Role = telemetry.Role(role)
		p.Status = telemetry.Status(stat)
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteOlderThan removes points older than cutoff and returns how many were removed.
func (w *SQLiteWriter) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := w.db.ExecContext(ctx, `DELETE FROM metric_points WHERE ts < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("sqlite backup: prune: %w", err)
	}
	return res.RowsAffected()
}

// Close releases database resources.
func (w *SQLiteWriter) Close() error {
	return w.db.Close()
}
