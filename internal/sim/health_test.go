package sim

import (
	"testing"

	"fleetsim/internal/servertype"
	"fleetsim/internal/telemetry"
)

func TestHealthScore(t *testing.T) {
	c := servertype.Characteristics{CPUWeight: 1, MemoryWeight: 1, DiskWeight: 1, ResponseTimeBase: 100}
	cases := []struct {
		name string
		srv  telemetry.ServerMetrics
		want int
	}{
		{"idle and fast", telemetry.ServerMetrics{ResponseTime: 50}, 100},
		{"saturated and slow", telemetry.ServerMetrics{CPUUsage: 100, MemoryUsage: 100, DiskUsage: 100, ResponseTime: 10000}, 0},
		{"half loaded", telemetry.ServerMetrics{CPUUsage: 50, MemoryUsage: 50, DiskUsage: 50, ResponseTime: 200}, 50},
		{"zero response time", telemetry.ServerMetrics{CPUUsage: 100, MemoryUsage: 100, DiskUsage: 100}, 20},
	}
	for _, tc := range cases {
		if got := HealthScore(&tc.srv, c); got != tc.want {
			t.Errorf("%s: got %d want %d", tc.name, got, tc.want)
		}
	}
}

func TestHealthScoreZeroWeights(t *testing.T) {
	srv := telemetry.ServerMetrics{CPUUsage: 10, ResponseTime: 10}
	got := HealthScore(&srv, servertype.Characteristics{ResponseTimeBase: 10})
	if got < 0 || got > 100 {
		t.Fatalf("score %d out of range", got)
	}
}

func TestPredictStatus(t *testing.T) {
	cases := []struct {
		score     int
		stability float64
		want      telemetry.Status
	}{
		{100, 1, telemetry.StatusHealthy},
		{60, 1, telemetry.StatusHealthy},
		{60, 0.9, telemetry.StatusWarning},
		{30, 1, telemetry.StatusWarning},
		{29, 1, telemetry.StatusCritical},
		{40, 0.5, telemetry.StatusCritical},
	}
	for _, tc := range cases {
		if got := PredictStatus(tc.score, tc.stability); got != tc.want {
			t.Errorf("PredictStatus(%d, %.2f) = %s, want %s", tc.score, tc.stability, got, tc.want)
		}
	}
}

func TestCascadeRiskCapped(t *testing.T) {
	defs := map[telemetry.Role]servertype.Definition{
		telemetry.RoleStorage: {BaseRisk: 90},
		telemetry.RoleWeb:     {Dependencies: []telemetry.Role{telemetry.RoleStorage}},
		telemetry.RoleAPI:     {Dependencies: []telemetry.Role{telemetry.RoleStorage}},
	}
	r := servertype.NewRegistry(defs)
	if got := CascadeRisk(r, telemetry.RoleStorage); got != 100 {
		t.Fatalf("risk = %d, want 100", got)
	}
	if got := CascadeRisk(servertype.Default(), telemetry.RoleMonitoring); got != 5 {
		t.Fatalf("monitoring risk = %d, want 5", got)
	}
}

func TestDependencyHealth(t *testing.T) {
	seeds := []telemetry.BaseServer{
		{ID: "web", Role: telemetry.RoleWeb, ResponseTime: 100},
		{ID: "api-1", Role: telemetry.RoleAPI, CPUUsage: 100, MemoryUsage: 100, DiskUsage: 100, ResponseTime: 10000},
		{ID: "api-2", Role: telemetry.RoleAPI, ResponseTime: 100},
		{ID: "mon", Role: telemetry.RoleMonitoring, ResponseTime: 100},
	}
	s, _ := newTestSim(t, seeds, nil, nil)
	api1, _ := s.GetServerByID("api-1")
	api2, _ := s.GetServerByID("api-2")
	web, _ := s.GetServerByID("web")
	// web depends on api and cache; there is no cache server
	want := (api1.HealthScore + api2.HealthScore + 1) / 2
	if web.DependencyHealth != want {
		t.Fatalf("web dependency health = %d, want %d", web.DependencyHealth, want)
	}
	if mon, _ := s.GetServerByID("mon"); mon.DependencyHealth != 100 {
		t.Fatalf("monitoring dependency health = %d, want 100", mon.DependencyHealth)
	}
}
