package sink

import (
	"context"
	"errors"
	"testing"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
)

type mockGreptimeClient struct {
	table *table.Table
	calls int
	err   error
}

func (m *mockGreptimeClient) Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error) {
	m.calls++
	if len(tables) > 0 {
		m.table = tables[0]
	}
	return &gpb.GreptimeResponse{}, m.err
}

func TestGreptimeWriterPoints(t *testing.T) {
	m := &mockGreptimeClient{}
	w := &GreptimeDBWriter{client: m, table: "server_metrics"}

	if err := w.WriteBackup(context.Background(), samplePoints()); err != nil {
		t.Fatalf("WriteBackup: %v", err)
	}
	if m.table == nil {
		t.Fatalf("expected table to be captured")
	}
	rows := m.table.GetRows()
	if len(rows.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows.Rows))
	}
	if len(rows.Schema) != 13 {
		t.Fatalf("unexpected schema length: %d", len(rows.Schema))
	}
	if rows.Schema[0].SemanticType != gpb.SemanticType_TAG {
		t.Fatalf("server_id should be a tag column, got %v", rows.Schema[0].SemanticType)
	}
	if rows.Schema[12].SemanticType != gpb.SemanticType_TIMESTAMP {
		t.Fatalf("ts should be the time index, got %v", rows.Schema[12].SemanticType)
	}
	if got := rows.Rows[1].Values[0].GetStringValue(); got != "db-1" {
		t.Fatalf("server_id = %s, want db-1", got)
	}
	if got := rows.Rows[1].Values[1].GetStringValue(); got != "database" {
		t.Fatalf("role = %s, want database", got)
	}
	if got := rows.Rows[1].Values[4].GetF64Value(); got != 91 {
		t.Fatalf("cpu = %f, want 91", got)
	}
	if got := rows.Rows[1].Values[11].GetI64Value(); got != 2 {
		t.Fatalf("alerts_count = %d, want 2", got)
	}
}

func TestGreptimeWriterSkipsEmptyBatch(t *testing.T) {
	m := &mockGreptimeClient{}
	w := &GreptimeDBWriter{client: m, table: "server_metrics"}
	if err := w.WriteBackup(context.Background(), nil); err != nil {
		t.Fatalf("WriteBackup: %v", err)
	}
	if m.calls != 0 {
		t.Fatalf("empty batch should not reach the client")
	}
}

func TestGreptimeWriterPropagatesErrors(t *testing.T) {
	m := &mockGreptimeClient{err: errors.New("unavailable")}
	w := &GreptimeDBWriter{client: m, table: "server_metrics"}
	if err := w.WriteBackup(context.Background(), samplePoints()); err == nil {
		t.Fatalf("expected write error")
	}
}
