// Package servertype holds the static per-role characteristics of simulated
// servers and the dependency graph between roles.
package servertype

import (
	"errors"
	"fmt"

	"fleetsim/internal/telemetry"
)

// MinWeight is the floor applied to the total resource weight of a role so
// that health computation never divides by zero.
const MinWeight = 0.01

// ErrUnknownRole is returned when a role has no registered definition.
var ErrUnknownRole = errors.New("servertype: unknown role")

// Characteristics weight a role's resources when computing health.
type Characteristics struct {
	CPUWeight        float64
	MemoryWeight     float64
	DiskWeight       float64
	ResponseTimeBase float64 // ms considered fully responsive
	StabilityFactor  float64
}

// TotalWeight returns the summed resource weight, floored at MinWeight.
func (c Characteristics) TotalWeight() float64 {
	total := c.CPUWeight + c.MemoryWeight + c.DiskWeight
	if total < MinWeight {
		return MinWeight
	}
	return total
}

// Definition describes one server role.
type Definition struct {
	Role            telemetry.Role
	Characteristics Characteristics
	// Dependencies are the roles this role's dependency health is averaged from.
	Dependencies []telemetry.Role
	// BaseRisk is the role's cascade risk before impact is accounted for.
	BaseRisk int
	// Baseline holds the normal operating range per metric.
	Baseline map[telemetry.Metric]telemetry.Range
}

// Registry answers lookups against a set of role definitions.
type Registry struct {
	defs    map[telemetry.Role]Definition
	impacts map[telemetry.Role]int
}

// NewRegistry indexes defs and precomputes impact counts.
func NewRegistry(defs map[telemetry.Role]Definition) *Registry {
	r := &Registry{defs: make(map[telemetry.Role]Definition, len(defs)), impacts: make(map[telemetry.Role]int)}
	for role, d := range defs {
		d.Role = role
		r.defs[role] = d
	}
	for _, d := range r.defs {
		seen := make(map[telemetry.Role]bool)
		for _, dep := range d.Dependencies {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			r.impacts[dep]++
		}
	}
	return r
}

// Default returns a registry over the built-in definitions.
func Default() *Registry {
	return NewRegistry(BuiltIn())
}

// Lookup returns the definition for role. Unknown roles get a neutral
// definition and ok=false.
func (r *Registry) Lookup(role telemetry.Role) (Definition, bool) {
	d, ok := r.defs[role]
	if !ok {
		return fallback(role), false
	}
	return d, true
}

// Require is Lookup that reports unknown roles as ErrUnknownRole.
func (r *Registry) Require(role telemetry.Role) (Definition, error) {
	d, ok := r.Lookup(role)
	if !ok {
		return d, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	return d, nil
}

// Dependencies returns the roles role depends on.
func (r *Registry) Dependencies(role telemetry.Role) []telemetry.Role {
	d, _ := r.Lookup(role)
	return append([]telemetry.Role(nil), d.Dependencies...)
}

// ImpactCount returns how many roles list role as a dependency.
func (r *Registry) ImpactCount(role telemetry.Role) int {
	return r.impacts[role]
}

// BaseRisk returns the role's base cascade risk.
func (r *Registry) BaseRisk(role telemetry.Role) int {
	d, _ := r.Lookup(role)
	return d.BaseRisk
}

// Baseline returns the normal range of metric for role.
func (r *Registry) Baseline(role telemetry.Role, metric telemetry.Metric) telemetry.Range {
	d, _ := r.Lookup(role)
	if rng, ok := d.Baseline[metric]; ok {
		return rng
	}
	return defaultBaseline[metric]
}

func fallback(role telemetry.Role) Definition {
	return Definition{
		Role: role,
		Characteristics: Characteristics{
			CPUWeight:        1,
			MemoryWeight:     1,
			DiskWeight:       1,
			ResponseTimeBase: 200,
			StabilityFactor:  1,
		},
		BaseRisk: 10,
		Baseline: defaultBaseline,
	}
}
