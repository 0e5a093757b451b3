package telemetry

import (
	"math/rand"
	"testing"
	"time"
)

func TestDriftStaysWithinAmplitude(t *testing.T) {
	gen := NewGenerator(rand.New(rand.NewSource(7)))
	for i := 0; i < 200; i++ {
		s := ServerMetrics{ID: "web-1", Role: RoleWeb, CPUUsage: 50, MemoryUsage: 50, DiskUsage: 50, ResponseTime: 100, NetworkIn: 40, NetworkOut: 30}
		gen.Drift(&s)
		if d := s.CPUUsage - 50; d < -DriftCPU || d > DriftCPU {
			t.Fatalf("cpu drift %f exceeds ±%f", d, DriftCPU)
		}
		if d := s.MemoryUsage - 50; d < -DriftMemory || d > DriftMemory {
			t.Fatalf("memory drift %f exceeds ±%f", d, DriftMemory)
		}
		if d := s.DiskUsage - 50; d < -DriftDisk || d > DriftDisk {
			t.Fatalf("disk drift %f exceeds ±%f", d, DriftDisk)
		}
		if s.Gauges["requests_per_sec"] <= 0 {
			t.Fatalf("expected web gauge, got %+v", s.Gauges)
		}
	}
}

func TestDriftClampsAtBounds(t *testing.T) {
	gen := NewGenerator(rand.New(rand.NewSource(1)))
	for i := 0; i < 100; i++ {
		s := ServerMetrics{Role: RoleCache, CPUUsage: 100, MemoryUsage: 0, DiskUsage: 99.5}
		gen.Drift(&s)
		if s.CPUUsage > 100 || s.MemoryUsage < 0 || s.DiskUsage > 100 {
			t.Fatalf("values escaped bounds: %+v", s)
		}
	}
}

func TestNormalWithinRange(t *testing.T) {
	gen := NewGenerator(rand.New(rand.NewSource(3)))
	r := Range{Min: 20, Max: 45}
	for i := 0; i < 100; i++ {
		if v := gen.Normal(r); v < r.Min || v >= r.Max {
			t.Fatalf("Normal(%v)=%f out of range", r, v)
		}
	}
	if got := gen.Between(5, 5); got != 5 {
		t.Fatalf("Between on empty range = %f, want 5", got)
	}
}

func TestMetricClamp(t *testing.T) {
	cases := []struct {
		m    Metric
		in   float64
		want float64
	}{
		{MetricCPU, 140, 100},
		{MetricDisk, -3, 0},
		{MetricResponseTime, 250, 250},
		{MetricResponseTime, 20000, MaxResponseTimeMs},
		{MetricNetworkIn, 2000, MaxNetworkMbps},
	}
	for _, c := range cases {
		if got := c.m.Clamp(c.in); got != c.want {
			t.Errorf("%s.Clamp(%f)=%f, want %f", c.m, c.in, got, c.want)
		}
	}
}

func TestScenarioMembershipIsIdempotent(t *testing.T) {
	s := FromBase(BaseServer{ID: "db-1", Role: RoleDatabase})
	if !s.AddScenario("database_overload") {
		t.Fatalf("first insert should succeed")
	}
	if s.AddScenario("database_overload") {
		t.Fatalf("second insert should be a no-op")
	}
	if len(s.ActiveScenarios) != 1 {
		t.Fatalf("expected one scenario, got %v", s.ActiveScenarios)
	}
	if !s.RemoveScenario("database_overload") || s.RemoveScenario("database_overload") {
		t.Fatalf("remove should succeed exactly once")
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := FromBase(BaseServer{ID: "web-1", Role: RoleWeb})
	s.AddScenario("traffic_spike")
	s.Alerts = append(s.Alerts, Alert{ID: "a1"})
	s.Gauges = map[string]float64{"requests_per_sec": 10}

	c := s.Clone()
	c.ActiveScenarios[0] = "changed"
	c.Alerts[0].Resolved = true
	c.Gauges["requests_per_sec"] = 99

	if s.ActiveScenarios[0] != "traffic_spike" || s.Alerts[0].Resolved || s.Gauges["requests_per_sec"] != 10 {
		t.Fatalf("clone shares state with original: %+v", s)
	}
}

func TestNewPointCountsOpenAlerts(t *testing.T) {
	s := FromBase(BaseServer{ID: "api-1", Hostname: "api-1.example.com", Role: RoleAPI, CPUUsage: 42})
	s.Alerts = []Alert{{ID: "a"}, {ID: "b", Resolved: true}}
	ts := time.Unix(100, 0).UTC()
	p := NewPoint(s, ts)
	if p.AlertsCount != 1 {
		t.Fatalf("alerts count = %d, want 1", p.AlertsCount)
	}
	if p.Metrics.CPU != 42 || !p.Timestamp.Equal(ts) || p.Hostname != "api-1.example.com" {
		t.Fatalf("unexpected point: %+v", p)
	}
}

func TestPointTableName(t *testing.T) {
	orig := MetricsTableName
	MetricsTableName = "custom"
	defer func() { MetricsTableName = orig }()
	if (Point{}).TableName() != "custom" {
		t.Errorf("expected custom table name, got %s", (Point{}).TableName())
	}
}
