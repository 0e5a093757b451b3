// Simulator evolving a fleet of virtual servers under failure scenarios
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"fleetsim/internal/clock"
	"fleetsim/internal/fleet"
	"fleetsim/internal/logging"
	"fleetsim/internal/scenario"
	"fleetsim/internal/servertype"
	"fleetsim/internal/telemetry"
)

// Defaults applied by New.
const (
	DefaultTickInterval     = 30 * time.Second
	DefaultEffectResolution = time.Second
	// HighCascadeRisk is the cascade risk above which a server counts as high risk.
	HighCascadeRisk = 60
)

// Errors returned by TriggerScenario.
var (
	ErrUnknownScenario  = errors.New("unknown scenario")
	ErrScenarioActive   = errors.New("scenario already active")
	ErrNoEligibleServer = errors.New("no server matches the scenario trigger role")
)

// MetricsStore ingests the snapshot batch produced by each tick.
type MetricsStore interface {
	StoreMetrics(ctx context.Context, servers []telemetry.ServerMetrics)
}

// CacheWriter is a best-effort sink for the latest fleet snapshot.
type CacheWriter interface {
	CacheServerMetrics(ctx context.Context, servers []telemetry.ServerMetrics) error
}

// Options configures a Simulator.
type Options struct {
	Fleet     fleet.Provider
	Registry  *servertype.Registry
	Scenarios []scenario.Scenario // nil selects scenario.BuiltIn()
	Store     MetricsStore
	Cache     CacheWriter

	TickInterval     time.Duration
	EffectResolution time.Duration
	Clock            clock.Clock
	Seed             int64 // 0 seeds from the wall clock
}

// ActiveScenario is the runtime record of an activated scenario.
type ActiveScenario struct {
	ScenarioID         string    `json:"scenario_id"`
	Name               string    `json:"name"`
	StartTime          time.Time `json:"start_time"`
	TriggeringServerID string    `json:"triggering_server_id"`
	RecoveryProgress   int       `json:"recovery_progress"`
	AffectedServers    []string  `json:"affected_servers"`

	epoch uint64
}

// Summary aggregates the fleet's current health.
type Summary struct {
	Total              int     `json:"total"`
	Healthy            int     `json:"healthy"`
	Warning            int     `json:"warning"`
	Critical           int     `json:"critical"`
	AverageHealthScore float64 `json:"average_health_score"`
	HighCascadeRisk    int     `json:"high_cascade_risk"`
	ActiveScenarios    int     `json:"active_scenarios"`
}

// Simulator owns the live server state. All mutation happens under mu.
type Simulator struct {
	mu       sync.Mutex
	servers  []telemetry.ServerMetrics
	fleet    fleet.Provider
	registry *servertype.Registry

	scenarios []scenario.Scenario
	byID      map[string]scenario.Scenario
	active    map[string]ActiveScenario
	pending   effectQueue
	epoch     uint64
	seq       uint64

	store MetricsStore
	cache CacheWriter

	tickInterval time.Duration
	resolution   time.Duration
	clock        clock.Clock
	rand         *rand.Rand
	gen          *telemetry.Generator

	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	log     *slog.Logger
}

// New builds a simulator from the fleet provider's current records.
func New(opts Options) (*Simulator, error) {
	if opts.Fleet == nil {
		return nil, errors.New("sim: fleet provider is required")
	}
	if opts.Registry == nil {
		opts.Registry = servertype.Default()
	}
	if opts.Scenarios == nil {
		opts.Scenarios = scenario.BuiltIn()
	}
	if err := scenario.Validate(opts.Scenarios); err != nil {
		return nil, fmt.Errorf("sim: %w", err)
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.EffectResolution <= 0 {
		opts.EffectResolution = DefaultEffectResolution
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	r := rand.New(rand.NewSource(seed))

	s := &Simulator{
		fleet:        opts.Fleet,
		registry:     opts.Registry,
		scenarios:    append([]scenario.Scenario(nil), opts.Scenarios...),
		byID:         scenario.Index(opts.Scenarios),
		active:       make(map[string]ActiveScenario),
		store:        opts.Store,
		cache:        opts.Cache,
		tickInterval: opts.TickInterval,
		resolution:   opts.EffectResolution,
		clock:        opts.Clock,
		rand:         r,
		gen:          telemetry.NewGenerator(r),
		log:          slog.Default(),
	}
	for _, b := range opts.Fleet.Servers() {
		s.servers = append(s.servers, telemetry.FromBase(b))
	}
	s.recompute(s.clock.Now())
	return s, nil
}

// Start launches the run loop. Calling Start on a running simulator only logs a warning.
func (s *Simulator) Start(ctx context.Context) {
	log := logging.FromContext(ctx)
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		log.Warn("simulator already running")
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.running = true
	s.cancel = cancel
	s.done = done
	s.log = log
	s.mu.Unlock()

	go s.run(runCtx, done)
}

// Stop halts the run loop and waits for it to exit. Pending cascade effects
// stay queued and fire on the next Start or FireDue call.
func (s *Simulator) Stop() {
	s.mu.Lock()
	if !s.running {
		log := s.log
		s.mu.Unlock()
		log.Warn("simulator not running")
		return
	}
	cancel, done := s.cancel, s.done
	s.running = false
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	cancel()
	<-done
}

// IsRunning reports whether the run loop is active.
func (s *Simulator) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Simulator) run(ctx context.Context, done chan struct{}) {
	log := logging.FromContext(ctx)
	defer func() {
		s.mu.Lock()
		if s.done == done {
			s.running = false
			s.cancel = nil
			s.done = nil
		}
		s.mu.Unlock()
		close(done)
	}()

	log.Info("starting simulator", "tick_interval", s.tickInterval, "servers", len(s.servers), "scenarios", len(s.scenarios))
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()
	effects := time.NewTicker(s.resolution)
	defer effects.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ticker.C:
			s.Tick(ctx)
		case <-effects.C:
			s.FireDue(ctx)
		case <-ctx.Done():
			log.Info("stopping simulator")
			return
		}
	}
}

// GetServers returns deep copies of every server in fleet order.
func (s *Simulator) GetServers() []telemetry.ServerMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// GetServerByID returns a copy of one server.
func (s *Simulator) GetServerByID(id string) (telemetry.ServerMetrics, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, srv := range s.servers {
		if srv.ID == id {
			return srv.Clone(), true
		}
	}
	return telemetry.ServerMetrics{}, false
}

// GetActiveScenarios returns the ids of active scenarios, sorted.
func (s *Simulator) GetActiveScenarios() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeIDs()
}

// ActiveScenarioDetails returns the runtime record of every active scenario.
func (s *Simulator) ActiveScenarioDetails() []ActiveScenario {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ActiveScenario, 0, len(s.active))
	for _, id := range s.activeIDs() {
		a := s.active[id]
		a.AffectedServers = []string{}
		for _, srv := range s.servers {
			if srv.HasScenario(id) {
				a.AffectedServers = append(a.AffectedServers, srv.ID)
				a.RecoveryProgress = srv.RecoveryProgress
			}
		}
		out = append(out, a)
	}
	return out
}

// Scenarios returns the catalog the simulator was built with.
func (s *Simulator) Scenarios() []scenario.Scenario {
	return append([]scenario.Scenario(nil), s.scenarios...)
}

// GetSummary counts servers by predicted status.
func (s *Simulator) GetSummary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := Summary{Total: len(s.servers), ActiveScenarios: len(s.active)}
	total := 0
	for _, srv := range s.servers {
		switch srv.PredictedStatus {
		case telemetry.StatusCritical:
			sum.Critical++
		case telemetry.StatusWarning:
			sum.Warning++
		default:
			sum.Healthy++
		}
		if srv.CascadeRisk > HighCascadeRisk {
			sum.HighCascadeRisk++
		}
		total += srv.HealthScore
	}
	if sum.Total > 0 {
		sum.AverageHealthScore = math.Round(float64(total)/float64(sum.Total)*10) / 10
	}
	return sum
}

// TriggerScenario activates a scenario immediately against the first server
// of its trigger role, ignoring probability and threshold.
func (s *Simulator) TriggerScenario(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownScenario, id)
	}
	if _, active := s.active[id]; active {
		return fmt.Errorf("%w: %q", ErrScenarioActive, id)
	}
	for i := range s.servers {
		if s.servers[i].Role == sc.Trigger.Role {
			now := s.clock.Now()
			s.activate(ctx, sc, &s.servers[i], now)
			s.recompute(now)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNoEligibleServer, sc.Trigger.Role)
}

func (s *Simulator) snapshot() []telemetry.ServerMetrics {
	out := make([]telemetry.ServerMetrics, len(s.servers))
	for i, srv := range s.servers {
		out[i] = srv.Clone()
	}
	return out
}

func (s *Simulator) activeIDs() []string {
	ids := make([]string, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
