package sink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"fleetsim/internal/telemetry"
	"fleetsim/internal/tsdb"
)

var (
	_ tsdb.BackupWriter   = (*PostgresWriter)(nil)
	_ tsdb.SnapshotLoader = (*PostgresWriter)(nil)
)

var pointColumns = []string{
	"ts", "server_id", "hostname", "environment", "role",
	"cpu", "memory", "disk", "network_in", "network_out", "response_time",
	"status", "alerts_count",
}

// PostgresWriter backs points up to PostgreSQL using COPY.
type PostgresWriter struct {
	mu    sync.Mutex // pgx.Conn is not safe for concurrent use
	conn  *pgx.Conn
	table pgx.Identifier
}

// ConnectPostgres opens a connection and creates the points table if needed.
func ConnectPostgres(ctx context.Context, dsn, table string) (*PostgresWriter, error) {
	if table == "" {
		table = telemetry.MetricsTableName
	}
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres backup: connect: %w", err)
	}
	w := &PostgresWriter{conn: conn, table: pgx.Identifier{table}}
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			ts            TIMESTAMPTZ      NOT NULL,
			server_id     TEXT             NOT NULL,
			hostname      TEXT             NOT NULL DEFAULT '',
			environment   TEXT             NOT NULL DEFAULT '',
			role          TEXT             NOT NULL DEFAULT '',
			cpu           DOUBLE PRECISION NOT NULL DEFAULT 0,
			memory        DOUBLE PRECISION NOT NULL DEFAULT 0,
			disk          DOUBLE PRECISION NOT NULL DEFAULT 0,
			network_in    DOUBLE PRECISION NOT NULL DEFAULT 0,
			network_out   DOUBLE PRECISION NOT NULL DEFAULT 0,
			response_time DOUBLE PRECISION NOT NULL DEFAULT 0,
			status        TEXT             NOT NULL DEFAULT '',
			alerts_count  INTEGER          NOT NULL DEFAULT 0
		)`, w.table.Sanitize())
	if _, err := conn.Exec(ctx, ddl); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("postgres backup: create table: %w", err)
	}
	return w, nil
}

// pointRows converts points to COPY rows in pointColumns order.
func pointRows(points []telemetry.Point) [][]any {
	rows := make([][]any, 0, len(points))
	for _, p := range points {
		rows = append(rows, []any{
			p.Timestamp, p.ServerID, p.Hostname, p.Environment, string(p.Role),
			p.Metrics.CPU, p.Metrics.Memory, p.Metrics.Disk,
			p.Metrics.NetworkIn, p.Metrics.NetworkOut, p.Metrics.ResponseTime,
			string(p.Status), int32(p.AlertsCount),
		})
	}
	return rows
}

// WriteBackup copies points into the table.
func (w *PostgresWriter) WriteBackup(ctx context.Context, points []telemetry.Point) error {
	if len(points) == 0 {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	n, err := w.conn.CopyFrom(ctx, w.table, pointColumns, pgx.CopyFromRows(pointRows(points)))
	if err != nil {
		return fmt.Errorf("postgres backup: copy: %w", err)
	}
	if int(n) != len(points) {
		return fmt.Errorf("postgres backup: copied %d of %d points", n, len(points))
	}
	return nil
}

// LoadRecent returns points newer than since, oldest first.
func (w *PostgresWriter) LoadRecent(ctx context.Context, since time.Time) ([]telemetry.Point, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	q := fmt.Sprintf(`SELECT ts, server_id, hostname, environment, role, cpu, memory, disk,
		network_in, network_out, response_time, status, alerts_count
		FROM %s WHERE ts >= $1 ORDER BY ts ASC`, w.table.Sanitize())
	rows, err := w.conn.Query(ctx, q, since)
	if err != nil {
		return nil, fmt.Errorf("postgres backup: query: %w", err)
	}
	defer rows.Close()

	var out []telemetry.Point
	for rows.Next() {
		var (
			p          telemetry.Point
			role, stat string
			alerts     int32
		)
		if err := rows.Scan(&p.Timestamp, &p.ServerID, &p.Hostname, &p.Environment, &role,
			&p.Metrics.CPU, &p.Metrics.Memory, &p.Metrics.Disk,
			&p.Metrics.NetworkIn, &p.Metrics.NetworkOut, &p.Metrics.ResponseTime,
			&stat, &alerts); err != nil {
			return nil, fmt.Errorf("postgres backup: scan: %w", err)
		}
		p.Role = telemetry.Role(role)
		p.Status = telemetry.Status(stat)
		p.AlertsCount = int(alerts)
		out = append(out, p)
	}
	return out, rows.Err()
}

// Close closes the connection.
func (w *PostgresWriter) Close(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.Close(ctx)
}
