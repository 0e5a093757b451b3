package sink

import (
	"context"
	"fmt"
	"net"
	"strconv"

	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"
	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"

	"fleetsim/internal/logging"
	"fleetsim/internal/telemetry"
)

const defaultGreptimePort = 4001

// greptimeClient is the subset of the ingester client the writer uses.
type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeDBWriter backs points up to GreptimeDB via the ingester client.
type GreptimeDBWriter struct {
	client greptimeClient
	table  string
}

// NewGreptimeDBWriter connects to endpoint ("host" or "host:port").
// An empty table name falls back to telemetry.MetricsTableName.
func NewGreptimeDBWriter(endpoint, database, tableName string) (*GreptimeDBWriter, error) {
	host, port := endpoint, defaultGreptimePort
	if h, p, err := net.SplitHostPort(endpoint); err == nil {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("greptimedb endpoint %q: invalid port: %w", endpoint, err)
		}
		host, port = h, n
	}
	cfg := greptime.NewConfig(host).WithPort(port).WithDatabase(database)
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("greptimedb client: %w", err)
	}
	if tableName == "" {
		tableName = telemetry.MetricsTableName
	}
	return &GreptimeDBWriter{client: client, table: tableName}, nil
}

// WriteBackup inserts points as rows of the metrics table. Server id, role
// and environment are tag columns.
func (w *GreptimeDBWriter) WriteBackup(ctx context.Context, points []telemetry.Point) error {
	if len(points) == 0 {
		return nil
	}
	tbl, err := w.newTable()
	if err != nil {
		return err
	}
	for _, p := range points {
		err := tbl.AddRow(
			p.ServerID,
			string(p.Role),
			p.Environment,
			p.Hostname,
			p.Metrics.CPU,
			p.Metrics.Memory,
			p.Metrics.Disk,
			p.Metrics.NetworkIn,
			p.Metrics.NetworkOut,
			p.Metrics.ResponseTime,
			string(p.Status),
			int64(p.AlertsCount),
			p.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("greptimedb row %s: %w", p.ServerID, err)
		}
	}
	if _, err := w.client.Write(ctx, tbl); err != nil {
		return fmt.Errorf("greptimedb write: %w", err)
	}
	logging.FromContext(ctx).Debug("greptimedb rows written", "table", w.table, "rows", len(points))
	return nil
}

func (w *GreptimeDBWriter) newTable() (*table.Table, error) {
	tbl, err := table.New(w.table)
	if err != nil {
		return nil, fmt.Errorf("greptimedb table %s: %w", w.table, err)
	}
	for _, tag := range []string{"server_id", "role", "environment"} {
		if err := tbl.AddTagColumn(tag, types.STRING); err != nil {
			return nil, err
		}
	}
	fields := []struct {
		name string
		typ  types.ColumnType
	}{
		{"hostname", types.STRING},
		{"cpu", types.FLOAT64},
		{"memory", types.FLOAT64},
		{"disk", types.FLOAT64},
		{"network_in", types.FLOAT64},
		{"network_out", types.FLOAT64},
		{"response_time", types.FLOAT64},
		{"status", types.STRING},
		{"alerts_count", types.INT64},
	}
	for _, f := range fields {
		if err := tbl.AddFieldColumn(f.name, f.typ); err != nil {
			return nil, err
		}
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return nil, err
	}
	return tbl, nil
}
