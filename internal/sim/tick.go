package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"fleetsim/internal/logging"
	"fleetsim/internal/scenario"
	"fleetsim/internal/telemetry"
)

// Alert types.
const (
	AlertScenarioTriggered = "scenario_triggered"
	AlertCascadeEffect     = "cascade_effect"
)

// guard runs fn and logs instead of propagating a panic.
func guard(log *slog.Logger, step string, fn func(), attrs ...any) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("simulation step failed", append([]any{"step", step, "panic", fmt.Sprint(r)}, attrs...)...)
		}
	}()
	fn()
}

// Tick advances the simulation by one interval and persists the result.
func (s *Simulator) Tick(ctx context.Context) {
	log := logging.FromContext(ctx)

	s.mu.Lock()
	now := s.clock.Now()
	s.applyDue(ctx, now)
	s.evaluateTriggers(ctx, now)
	s.sweepRecovery(ctx, now)
	s.drift()
	s.recompute(now)
	batch := s.snapshot()
	active := len(s.active)
	s.mu.Unlock()

	log.Debug("tick", "servers", len(batch), "active_scenarios", active)
	s.persist(ctx, batch)
}

// FireDue applies every cascade effect whose fire time has passed.
func (s *Simulator) FireDue(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	if s.applyDue(ctx, now) > 0 {
		s.recompute(now)
	}
}

// evaluateTriggers draws once per inactive scenario and activates it against
// the first matching server in fleet order.
func (s *Simulator) evaluateTriggers(ctx context.Context, now time.Time) {
	log := logging.FromContext(ctx)
	for _, sc := range s.scenarios {
		if _, active := s.active[sc.ID]; active {
			continue
		}
		guard(log, "trigger", func() {
			if s.rand.Float64() >= sc.Probability {
				return
			}
			for i := range s.servers {
				srv := &s.servers[i]
				if srv.Role != sc.Trigger.Role {
					continue
				}
				v, ok := srv.Value(sc.Trigger.Metric)
				if ok && sc.Trigger.Matches(v) {
					s.activate(ctx, sc, srv, now)
					return
				}
			}
		}, "scenario_id", sc.ID)
	}
}

// activate records the scenario, marks the triggering server and schedules
// every cascade effect relative to now.
func (s *Simulator) activate(ctx context.Context, sc scenario.Scenario, srv *telemetry.ServerMetrics, now time.Time) {
	s.epoch++
	s.active[sc.ID] = ActiveScenario{
		ScenarioID:         sc.ID,
		Name:               sc.Name,
		StartTime:          now,
		TriggeringServerID: srv.ID,
		epoch:              s.epoch,
	}
	srv.AddScenario(sc.ID)
	v, _ := srv.Value(sc.Trigger.Metric)
	srv.Alerts = append(srv.Alerts, telemetry.Alert{
		ID:        s.newID(),
		ServerID:  srv.ID,
		Type:      AlertScenarioTriggered,
		Message:   fmt.Sprintf("%s: %s %s %g (observed %g)", sc.Name, sc.Trigger.Metric, sc.Trigger.Operator, sc.Trigger.Threshold, v),
		Severity:  telemetry.SeverityWarning,
		Timestamp: now,
		RootCause: sc.ID,
	})
	for _, e := range sc.CascadeEffects {
		s.seq++
		s.pending.schedule(&pendingEffect{
			fireAt:     now.Add(e.Delay),
			seq:        s.seq,
			scenarioID: sc.ID,
			epoch:      s.epoch,
			effect:     e,
		})
	}
	logging.FromContext(ctx).Info("scenario activated", "scenario_id", sc.ID, "server_id", srv.ID, "effects", len(sc.CascadeEffects))
}

// applyDue fires due effects and returns how many were applied.
func (s *Simulator) applyDue(ctx context.Context, now time.Time) int {
	log := logging.FromContext(ctx)
	applied := 0
	for _, pe := range s.pending.popDue(now) {
		a, ok := s.active[pe.scenarioID]
		if !ok || a.epoch != pe.epoch {
			log.Debug("dropping effect of inactive scenario", "scenario_id", pe.scenarioID)
			continue
		}
		guard(log, "cascade", func() {
			s.applyEffect(pe, now)
			applied++
		}, "scenario_id", pe.scenarioID, "target_role", pe.effect.TargetRole)
	}
	return applied
}

func (s *Simulator) applyEffect(pe *pendingEffect, now time.Time) {
	e := pe.effect
	for i := range s.servers {
		srv := &s.servers[i]
		if srv.Role != e.TargetRole {
			continue
		}
		old, ok := srv.Value(e.Metric)
		if !ok {
			continue
		}
		srv.SetValue(e.Metric, math.Round(old*e.Impact.Multiplier))
		srv.Alerts = append(srv.Alerts, telemetry.Alert{
			ID:        s.newID(),
			ServerID:  srv.ID,
			Type:      AlertCascadeEffect,
			Message:   e.Message,
			Severity:  e.Severity,
			Timestamp: now,
			RootCause: pe.scenarioID,
		})
		srv.AddScenario(pe.scenarioID)
	}
}

// sweepRecovery retires scenarios whose recovery window elapsed and updates
// recovery progress on the rest.
func (s *Simulator) sweepRecovery(ctx context.Context, now time.Time) {
	log := logging.FromContext(ctx)
	for _, id := range s.activeIDs() {
		a := s.active[id]
		sc, ok := s.byID[id]
		if !ok {
			delete(s.active, id)
			continue
		}
		guard(log, "recovery", func() {
			elapsed := now.Sub(a.StartTime)
			if elapsed >= sc.RecoveryTime {
				s.recover(sc)
				delete(s.active, id)
				log.Info("scenario recovered", "scenario_id", id, "elapsed", elapsed)
				return
			}
			progress := int(math.Round(100 * float64(elapsed) / float64(sc.RecoveryTime)))
			for i := range s.servers {
				if s.servers[i].HasScenario(id) {
					s.servers[i].RecoveryProgress = progress
				}
			}
		}, "scenario_id", id)
	}
}

// recover removes the scenario from its carriers, resolves its alerts and
// blends the affected metrics back towards normal.
func (s *Simulator) recover(sc scenario.Scenario) {
	metrics := sc.AffectedMetrics()
	for i := range s.servers {
		srv := &s.servers[i]
		for j := range srv.Alerts {
			if srv.Alerts[j].RootCause == sc.ID {
				srv.Alerts[j].Resolved = true
			}
		}
		if !srv.RemoveScenario(sc.ID) {
			continue
		}
		srv.RecoveryProgress = 0
		for _, m := range metrics {
			old, ok := srv.Value(m)
			if !ok {
				continue
			}
			normal := s.gen.Normal(s.registry.Baseline(srv.Role, m))
			srv.SetValue(m, 0.8*old+0.2*normal)
		}
	}
}

// drift applies baseline noise to servers without active scenarios.
func (s *Simulator) drift() {
	for i := range s.servers {
		srv := &s.servers[i]
		if len(srv.ActiveScenarios) == 0 {
			s.gen.Drift(srv)
			continue
		}
		srv.Gauges = s.gen.RoleGauges(srv)
	}
}

// persist hands a copied batch to the fleet provider, the store and the cache.
func (s *Simulator) persist(ctx context.Context, batch []telemetry.ServerMetrics) {
	log := logging.FromContext(ctx)
	guard(log, "sync", func() {
		for i := range batch {
			if !s.fleet.Sync(batch[i].Base()) {
				log.Debug("fleet provider has no record", "server_id", batch[i].ID)
			}
		}
	})
	if s.store != nil {
		guard(log, "store", func() { s.store.StoreMetrics(ctx, batch) })
	}
	if s.cache != nil {
		guard(log, "cache", func() {
			if err := s.cache.CacheServerMetrics(ctx, batch); err != nil {
				log.Error("cache write failed", "servers", len(batch), "err", err)
			}
		})
	}
}

// newID draws a UUID from the simulator's random source.
func (s *Simulator) newID() string {
	id, err := uuid.NewRandomFromReader(s.rand)
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
