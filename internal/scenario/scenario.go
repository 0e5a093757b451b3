// Package scenario defines failure scenarios: a trigger on one server role,
// delayed cascade effects across roles and a bounded recovery window.
package scenario

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"fleetsim/internal/telemetry"
)

// ErrInvalidScenario is wrapped by every validation failure.
var ErrInvalidScenario = errors.New("invalid scenario")

// Operator compares a metric value against a trigger threshold.
type Operator string

// Supported trigger operators.
const (
	OpGTE Operator = ">="
	OpGT  Operator = ">"
	OpLTE Operator = "<="
	OpLT  Operator = "<"
	OpEQ  Operator = "=="
)

// Valid reports whether op is a supported operator.
func (op Operator) Valid() bool {
	switch op {
	case OpGTE, OpGT, OpLTE, OpLT, OpEQ:
		return true
	}
	return false
}

// Trigger activates a scenario when a server of Role has Metric satisfying
// Operator against Threshold.
type Trigger struct {
	Role      telemetry.Role   `json:"role" yaml:"role"`
	Metric    telemetry.Metric `json:"metric" yaml:"metric"`
	Threshold float64          `json:"threshold" yaml:"threshold"`
	Operator  Operator         `json:"operator" yaml:"operator"`
}

// Matches reports whether value satisfies the trigger condition.
func (t Trigger) Matches(value float64) bool {
	switch t.Operator {
	case OpGTE:
		return value >= t.Threshold
	case OpGT:
		return value > t.Threshold
	case OpLTE:
		return value <= t.Threshold
	case OpLT:
		return value < t.Threshold
	case OpEQ:
		return value == t.Threshold
	}
	return false
}

// Impact scales the target metric.
type Impact struct {
	Multiplier float64 `json:"multiplier" yaml:"multiplier"`
}

// CascadeEffect is one delayed mutation applied to every server of TargetRole.
type CascadeEffect struct {
	Delay      time.Duration      `json:"delay"`
	TargetRole telemetry.Role     `json:"target_role"`
	Metric     telemetry.Metric   `json:"metric"`
	Impact     Impact             `json:"impact"`
	Message    string             `json:"message"`
	Severity   telemetry.Severity `json:"severity"`
}

// Scenario is a named failure template.
type Scenario struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Trigger        Trigger         `json:"trigger"`
	CascadeEffects []CascadeEffect `json:"cascade_effects"`
	RecoveryTime   time.Duration   `json:"recovery_time"`
	Probability    float64         `json:"probability"`
}

// AffectedMetrics returns the trigger metric followed by every cascade
// metric, without duplicates.
func (s Scenario) AffectedMetrics() []telemetry.Metric {
	seen := map[telemetry.Metric]bool{s.Trigger.Metric: true}
	out := []telemetry.Metric{s.Trigger.Metric}
	for _, e := range s.CascadeEffects {
		if seen[e.Metric] {
			continue
		}
		seen[e.Metric] = true
		out = append(out, e.Metric)
	}
	return out
}

// Validate checks a single scenario.
func (s Scenario) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidScenario)
	}
	if s.Probability < 0 || s.Probability > 1 {
		return fmt.Errorf("%w: %s: probability %.3f outside [0,1]", ErrInvalidScenario, s.ID, s.Probability)
	}
	if s.RecoveryTime <= 0 {
		return fmt.Errorf("%w: %s: recovery time must be positive", ErrInvalidScenario, s.ID)
	}
	if !s.Trigger.Operator.Valid() {
		return fmt.Errorf("%w: %s: unknown operator %q", ErrInvalidScenario, s.ID, s.Trigger.Operator)
	}
	if !s.Trigger.Metric.Valid() {
		return fmt.Errorf("%w: %s: unknown trigger metric %q", ErrInvalidScenario, s.ID, s.Trigger.Metric)
	}
	for i, e := range s.CascadeEffects {
		if !e.Metric.Valid() {
			return fmt.Errorf("%w: %s: effect %d: unknown metric %q", ErrInvalidScenario, s.ID, i, e.Metric)
		}
		if e.Delay < 0 {
			return fmt.Errorf("%w: %s: effect %d: negative delay", ErrInvalidScenario, s.ID, i)
		}
		if e.Impact.Multiplier < 0 {
			return fmt.Errorf("%w: %s: effect %d: negative multiplier", ErrInvalidScenario, s.ID, i)
		}
	}
	return nil
}

// Validate checks every scenario and rejects duplicate ids.
func Validate(scenarios []Scenario) error {
	ids := make(map[string]bool, len(scenarios))
	for _, s := range scenarios {
		if err := s.Validate(); err != nil {
			return err
		}
		if ids[s.ID] {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidScenario, s.ID)
		}
		ids[s.ID] = true
	}
	return nil
}

type fileEffect struct {
	DelayMs    int64              `yaml:"delay_ms"`
	TargetRole telemetry.Role     `yaml:"target_role"`
	Metric     telemetry.Metric   `yaml:"metric"`
	Multiplier float64            `yaml:"multiplier"`
	Message    string             `yaml:"message"`
	Severity   telemetry.Severity `yaml:"severity"`
}

type fileScenario struct {
	ID             string       `yaml:"id"`
	Name           string       `yaml:"name"`
	Description    string       `yaml:"description,omitempty"`
	Trigger        Trigger      `yaml:"trigger"`
	CascadeEffects []fileEffect `yaml:"cascade_effects"`
	RecoveryTimeMs int64        `yaml:"recovery_time_ms"`
	Probability    float64      `yaml:"probability"`
}

type catalogFile struct {
	Scenarios []fileScenario `yaml:"scenarios"`
}

// Load reads a YAML scenario catalog from disk and validates it.
func Load(path string) ([]Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenarios: %w", err)
	}
	return Parse(b)
}

// Parse decodes a YAML scenario catalog.
func Parse(b []byte) ([]Scenario, error) {
	var f catalogFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse scenarios: %w", err)
	}
	out := make([]Scenario, 0, len(f.Scenarios))
	for _, fs := range f.Scenarios {
		s := Scenario{
			ID:           fs.ID,
			Name:         fs.Name,
			Description:  fs.Description,
			Trigger:      fs.Trigger,
			RecoveryTime: time.Duration(fs.RecoveryTimeMs) * time.Millisecond,
			Probability:  fs.Probability,
		}
		for _, fe := range fs.CascadeEffects {
			sev := fe.Severity
			if sev == "" {
				sev = telemetry.SeverityWarning
			}
			s.CascadeEffects = append(s.CascadeEffects, CascadeEffect{
				Delay:      time.Duration(fe.DelayMs) * time.Millisecond,
				TargetRole: fe.TargetRole,
				Metric:     fe.Metric,
				Impact:     Impact{Multiplier: fe.Multiplier},
				Message:    fe.Message,
				Severity:   sev,
			})
		}
		out = append(out, s)
	}
	if err := Validate(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Marshal encodes scenarios in the catalog file format.
func Marshal(scenarios []Scenario) ([]byte, error) {
	f := catalogFile{Scenarios: make([]fileScenario, 0, len(scenarios))}
	for _, s := range scenarios {
		fs := fileScenario{
			ID:             s.ID,
			Name:           s.Name,
			Description:    s.Description,
			Trigger:        s.Trigger,
			RecoveryTimeMs: s.RecoveryTime.Milliseconds(),
			Probability:    s.Probability,
		}
		for _, e := range s.CascadeEffects {
			fs.CascadeEffects = append(fs.CascadeEffects, fileEffect{
				DelayMs:    e.Delay.Milliseconds(),
				TargetRole: e.TargetRole,
				Metric:     e.Metric,
				Multiplier: e.Impact.Multiplier,
				Message:    e.Message,
				Severity:   e.Severity,
			})
		}
		f.Scenarios = append(f.Scenarios, fs)
	}
	return yaml.Marshal(f)
}

// Index maps scenarios by id.
func Index(scenarios []Scenario) map[string]Scenario {
	m := make(map[string]Scenario, len(scenarios))
	for _, s := range scenarios {
		m[s.ID] = s
	}
	return m
}
