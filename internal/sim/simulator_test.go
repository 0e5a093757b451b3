package sim

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"fleetsim/internal/clock"
	"fleetsim/internal/fleet"
	"fleetsim/internal/logging"
	"fleetsim/internal/scenario"
	"fleetsim/internal/telemetry"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type countingStore struct {
	mu      sync.Mutex
	calls   int
	batches [][]telemetry.ServerMetrics
}

func (c *countingStore) StoreMetrics(_ context.Context, servers []telemetry.ServerMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.batches = append(c.batches, servers)
}

func (c *countingStore) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type failingCache struct{ calls int }

func (f *failingCache) CacheServerMetrics(context.Context, []telemetry.ServerMetrics) error {
	f.calls++
	return errors.New("cache unavailable")
}

type panickingStore struct{}

func (panickingStore) StoreMetrics(context.Context, []telemetry.ServerMetrics) {
	panic("store exploded")
}

func quietCtx() context.Context {
	return logging.NewContext(context.Background(), logging.Discard())
}

func dbServer(id string, cpu float64) telemetry.BaseServer {
	return telemetry.BaseServer{
		ID: id, Role: telemetry.RoleDatabase, Environment: "production",
		CPUUsage: cpu, MemoryUsage: 50, DiskUsage: 40, ResponseTime: 50, NetworkIn: 30, NetworkOut: 30,
	}
}

func overload(prob float64, recovery time.Duration, delay time.Duration) scenario.Scenario {
	return scenario.Scenario{
		ID:      "database_overload",
		Name:    "Database overload",
		Trigger: scenario.Trigger{Role: telemetry.RoleDatabase, Metric: telemetry.MetricCPU, Threshold: 85, Operator: scenario.OpGTE},
		CascadeEffects: []scenario.CascadeEffect{{
			Delay:      delay,
			TargetRole: telemetry.RoleDatabase,
			Metric:     telemetry.MetricCPU,
			Impact:     scenario.Impact{Multiplier: 1.4},
			Message:    "Database CPU saturation",
			Severity:   telemetry.SeverityWarning,
		}},
		RecoveryTime: recovery,
		Probability:  prob,
	}
}

func newTestSim(t *testing.T, seeds []telemetry.BaseServer, scenarios []scenario.Scenario, clk clock.Clock) (*Simulator, *countingStore) {
	t.Helper()
	store := &countingStore{}
	s, err := New(Options{
		Fleet:     fleet.NewStatic(seeds),
		Scenarios: scenarios,
		Store:     store,
		Clock:     clk,
		Seed:      42,
	})
	if err != nil {
		t.Fatalf("new simulator: %v", err)
	}
	return s, store
}

func TestNewRequiresFleet(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatalf("expected error without fleet provider")
	}
}

func TestNewRejectsInvalidScenarios(t *testing.T) {
	bad := overload(2, time.Minute, time.Second)
	_, err := New(Options{Fleet: fleet.NewStatic(nil), Scenarios: []scenario.Scenario{bad}})
	if !errors.Is(err, scenario.ErrInvalidScenario) {
		t.Fatalf("expected ErrInvalidScenario, got %v", err)
	}
}

func TestConcreteDatabaseOverload(t *testing.T) {
	clk := clock.NewManual(t0)
	s, _ := newTestSim(t, []telemetry.BaseServer{dbServer("db-1", 86), dbServer("db-2", 60)},
		[]scenario.Scenario{overload(1, 5*time.Minute, 15*time.Second)}, clk)
	ctx := quietCtx()

	s.mu.Lock()
	s.evaluateTriggers(ctx, clk.Now())
	s.mu.Unlock()

	if diff := cmp.Diff([]string{"database_overload"}, s.GetActiveScenarios()); diff != "" {
		t.Fatalf("active scenarios (-want +got):\n%s", diff)
	}
	db1, _ := s.GetServerByID("db-1")
	if !db1.HasScenario("database_overload") || len(db1.Alerts) != 1 {
		t.Fatalf("triggering server not marked: %+v", db1)
	}

	// effect not yet due
	clk.Advance(14 * time.Second)
	s.FireDue(ctx)
	if db2, _ := s.GetServerByID("db-2"); db2.CPUUsage != 60 {
		t.Fatalf("effect fired early, cpu = %f", db2.CPUUsage)
	}

	clk.Advance(time.Second)
	s.FireDue(ctx)
	db2, _ := s.GetServerByID("db-2")
	if db2.CPUUsage != 84 {
		t.Fatalf("db-2 cpu = %f, want 84", db2.CPUUsage)
	}
	if len(db2.Alerts) != 1 || db2.Alerts[0].Severity != telemetry.SeverityWarning || db2.Alerts[0].RootCause != "database_overload" {
		t.Fatalf("unexpected alerts on db-2: %+v", db2.Alerts)
	}
	if !db2.HasScenario("database_overload") {
		t.Fatalf("db-2 should carry the scenario after the cascade")
	}
	db1, _ = s.GetServerByID("db-1")
	if db1.CPUUsage != 100 {
		t.Fatalf("db-1 cpu = %f, want clamp to 100", db1.CPUUsage)
	}
	if len(db1.ActiveScenarios) != 1 {
		t.Fatalf("scenario id inserted twice: %v", db1.ActiveScenarios)
	}
}

func TestScenarioLifecycle(t *testing.T) {
	clk := clock.NewManual(t0)
	s, _ := newTestSim(t, []telemetry.BaseServer{dbServer("db-1", 90)},
		[]scenario.Scenario{overload(1, 120*time.Second, 10*time.Second)}, clk)
	ctx := quietCtx()

	s.Tick(ctx)
	if got := s.GetActiveScenarios(); len(got) != 1 {
		t.Fatalf("expected activation on first tick, got %v", got)
	}

	clk.Advance(60 * time.Second)
	s.Tick(ctx)
	srv, _ := s.GetServerByID("db-1")
	if srv.RecoveryProgress < 49 || srv.RecoveryProgress > 51 {
		t.Fatalf("recovery progress = %d, want ~50", srv.RecoveryProgress)
	}
	details := s.ActiveScenarioDetails()
	if len(details) != 1 || details[0].TriggeringServerID != "db-1" {
		t.Fatalf("unexpected details %+v", details)
	}

	clk.Advance(60*time.Second + time.Millisecond)
	s.Tick(ctx)
	if got := s.GetActiveScenarios(); len(got) != 0 {
		t.Fatalf("scenario still active after recovery: %v", got)
	}
	srv, _ = s.GetServerByID("db-1")
	if len(srv.ActiveScenarios) != 0 || srv.RecoveryProgress != 0 {
		t.Fatalf("server not cleared: %+v", srv)
	}
	if len(srv.Alerts) == 0 {
		t.Fatalf("alerts must never be deleted")
	}
	for _, a := range srv.Alerts {
		if a.RootCause == "database_overload" && !a.Resolved {
			t.Fatalf("alert %s not resolved", a.ID)
		}
	}
}

func TestEffectsOfRecoveredScenarioAreDropped(t *testing.T) {
	clk := clock.NewManual(t0)
	s, _ := newTestSim(t, []telemetry.BaseServer{dbServer("db-1", 90), dbServer("db-2", 50)},
		[]scenario.Scenario{overload(1, time.Minute, 10*time.Minute)}, clk)
	ctx := quietCtx()

	s.mu.Lock()
	s.evaluateTriggers(ctx, clk.Now())
	s.sweepRecovery(ctx, clk.Now().Add(2*time.Minute))
	s.mu.Unlock()

	clk.Advance(10 * time.Minute)
	s.FireDue(ctx)
	db2, _ := s.GetServerByID("db-2")
	if db2.CPUUsage != 50 || len(db2.Alerts) != 0 {
		t.Fatalf("effect of recovered scenario applied: %+v", db2)
	}
}

func TestZeroProbabilityNeverActivates(t *testing.T) {
	clk := clock.NewManual(t0)
	s, _ := newTestSim(t, []telemetry.BaseServer{dbServer("db-1", 99)},
		[]scenario.Scenario{overload(0, time.Minute, time.Second)}, clk)
	ctx := quietCtx()
	for i := 0; i < 50; i++ {
		s.Tick(ctx)
		clk.Advance(30 * time.Second)
	}
	if got := s.GetActiveScenarios(); len(got) != 0 {
		t.Fatalf("unexpected activation %v", got)
	}
}

func TestFirstMatchingServerWins(t *testing.T) {
	clk := clock.NewManual(t0)
	s, _ := newTestSim(t, []telemetry.BaseServer{dbServer("db-1", 10), dbServer("db-2", 90), dbServer("db-3", 95)},
		[]scenario.Scenario{overload(1, time.Minute, time.Second)}, clk)
	s.mu.Lock()
	s.evaluateTriggers(quietCtx(), clk.Now())
	s.mu.Unlock()
	details := s.ActiveScenarioDetails()
	if len(details) != 1 || details[0].TriggeringServerID != "db-2" {
		t.Fatalf("expected db-2 to trigger, got %+v", details)
	}
}

func TestTickPersists(t *testing.T) {
	clk := clock.NewManual(t0)
	seeds := []telemetry.BaseServer{dbServer("db-1", 10), dbServer("db-2", 20)}
	provider := fleet.NewStatic(seeds)
	store := &countingStore{}
	cache := &failingCache{}
	s, err := New(Options{Fleet: provider, Scenarios: []scenario.Scenario{}, Store: store, Cache: cache, Clock: clk, Seed: 7})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s.Tick(quietCtx())
	if store.count() != 1 || len(store.batches[0]) != 2 {
		t.Fatalf("store not fed the full batch")
	}
	if cache.calls != 1 {
		t.Fatalf("cache called %d times", cache.calls)
	}
	want, _ := s.GetServerByID("db-1")
	if got := provider.Servers()[0]; got.CPUUsage != want.CPUUsage || got.Status != want.Status {
		t.Fatalf("fleet provider not synced: %+v vs %+v", got, want)
	}
}

func TestTickSurvivesPanickingStore(t *testing.T) {
	s, err := New(Options{
		Fleet:     fleet.NewStatic([]telemetry.BaseServer{dbServer("db-1", 10)}),
		Scenarios: []scenario.Scenario{},
		Store:     panickingStore{},
		Clock:     clock.NewManual(t0),
		Seed:      1,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s.Tick(quietCtx())
	s.Tick(quietCtx())
}

func TestStartTwiceRunsOneLoop(t *testing.T) {
	store := &countingStore{}
	s, err := New(Options{
		Fleet:        fleet.NewStatic([]telemetry.BaseServer{dbServer("db-1", 10)}),
		Scenarios:    []scenario.Scenario{},
		Store:        store,
		TickInterval: time.Hour,
		Seed:         1,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := quietCtx()
	s.Start(ctx)
	s.Start(ctx)
	if !s.IsRunning() {
		t.Fatalf("expected running")
	}
	deadline := time.Now().Add(2 * time.Second)
	for store.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	if n := store.count(); n != 1 {
		t.Fatalf("expected exactly one initial tick, got %d", n)
	}
	s.Stop()
	s.Stop()
	if s.IsRunning() {
		t.Fatalf("expected stopped")
	}
}

func TestStartStopsWithContext(t *testing.T) {
	s, err := New(Options{Fleet: fleet.NewStatic(nil), Scenarios: []scenario.Scenario{}, TickInterval: time.Hour})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx, cancel := context.WithCancel(quietCtx())
	s.Start(ctx)
	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for s.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.IsRunning() {
		t.Fatalf("simulator still running after context cancel")
	}
}

func TestGetServersReturnsCopies(t *testing.T) {
	s, _ := newTestSim(t, []telemetry.BaseServer{dbServer("db-1", 90)},
		[]scenario.Scenario{overload(1, time.Minute, time.Second)}, clock.NewManual(t0))
	s.Tick(quietCtx())
	got := s.GetServers()
	got[0].CPUUsage = -1
	got[0].ActiveScenarios[0] = "tampered"
	got[0].Alerts[0].Resolved = true
	again, _ := s.GetServerByID("db-1")
	if again.CPUUsage == -1 || again.ActiveScenarios[0] != "database_overload" || again.Alerts[0].Resolved {
		t.Fatalf("caller mutation leaked into simulator state")
	}
	if _, ok := s.GetServerByID("nope"); ok {
		t.Fatalf("unknown id reported as found")
	}
}

func TestSummary(t *testing.T) {
	seeds := []telemetry.BaseServer{
		{ID: "ok", Role: telemetry.RoleCache, CPUUsage: 10, MemoryUsage: 10, DiskUsage: 10, ResponseTime: 5},
		{ID: "bad", Role: telemetry.RoleDatabase, CPUUsage: 100, MemoryUsage: 100, DiskUsage: 100, ResponseTime: 5000},
	}
	s, _ := newTestSim(t, seeds, []scenario.Scenario{}, clock.NewManual(t0))
	sum := s.GetSummary()
	if sum.Total != 2 || sum.Healthy != 1 || sum.Critical != 1 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	// database and cache both sit above the high-risk line
	if sum.HighCascadeRisk != 2 {
		t.Fatalf("high cascade risk = %d, want 2", sum.HighCascadeRisk)
	}
	ok, _ := s.GetServerByID("ok")
	bad, _ := s.GetServerByID("bad")
	want := float64(ok.HealthScore+bad.HealthScore) / 2
	if sum.AverageHealthScore != want {
		t.Fatalf("average = %f, want %f", sum.AverageHealthScore, want)
	}
}

func TestTriggerScenario(t *testing.T) {
	s, _ := newTestSim(t, []telemetry.BaseServer{dbServer("db-1", 10)},
		[]scenario.Scenario{overload(0, time.Minute, time.Second)}, clock.NewManual(t0))
	ctx := quietCtx()
	if err := s.TriggerScenario(ctx, "database_overload"); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if err := s.TriggerScenario(ctx, "database_overload"); !errors.Is(err, ErrScenarioActive) {
		t.Fatalf("expected ErrScenarioActive, got %v", err)
	}
	if err := s.TriggerScenario(ctx, "ghost"); !errors.Is(err, ErrUnknownScenario) {
		t.Fatalf("expected ErrUnknownScenario, got %v", err)
	}
}

func TestHealthBoundsOverLongRun(t *testing.T) {
	clk := clock.NewManual(t0)
	s, err := New(Options{
		Fleet: fleet.NewStatic(fleet.BuiltIn()),
		Clock: clk,
		Seed:  99,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	// raise every probability so scenarios actually fire
	for i := range s.scenarios {
		s.scenarios[i].Probability = 0.5
	}
	ctx := quietCtx()
	for i := 0; i < 400; i++ {
		s.Tick(ctx)
		clk.Advance(5 * time.Second)
		s.FireDue(ctx)
		for _, srv := range s.GetServers() {
			if srv.HealthScore < 0 || srv.HealthScore > 100 {
				t.Fatalf("health score out of bounds: %s = %d", srv.ID, srv.HealthScore)
			}
			def, _ := s.registry.Lookup(srv.Role)
			if got := PredictStatus(srv.HealthScore, def.Characteristics.StabilityFactor); got != srv.PredictedStatus {
				t.Fatalf("%s predicted status %s inconsistent with score %d", srv.ID, srv.PredictedStatus, srv.HealthScore)
			}
			for _, m := range telemetry.Metrics() {
				v, _ := srv.Value(m)
				lo, hi := m.Bounds()
				if v < lo || v > hi {
					t.Fatalf("%s %s = %f outside [%f,%f]", srv.ID, m, v, lo, hi)
				}
			}
		}
	}
}
