package telemetry

import (
	"math"
	"math/rand"
)

// Range is an inclusive interval of plausible values for a metric.
type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Mid returns the centre of the range.
func (r Range) Mid() float64 { return (r.Min + r.Max) / 2 }

// Drift amplitudes, in percentage points, applied to servers without active scenarios.
const (
	DriftCPU    = 3.0
	DriftMemory = 3.0
	DriftDisk   = 1.5
	// relative jitter for response time and network throughput
	driftRelative = 0.05
)

// Generator produces baseline noise and "normal" values from a seeded source.
type Generator struct {
	rand *rand.Rand
}

// NewGenerator creates a generator drawing from r.
func NewGenerator(r *rand.Rand) *Generator {
	return &Generator{rand: r}
}

// Between draws uniformly from [lo, hi).
func (g *Generator) Between(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + g.rand.Float64()*(hi-lo)
}

// Normal draws a value from a role baseline range.
func (g *Generator) Normal(r Range) float64 {
	return g.Between(r.Min, r.Max)
}

// symmetric returns a uniform value in [-amp, amp).
func (g *Generator) symmetric(amp float64) float64 {
	return (g.rand.Float64()*2 - 1) * amp
}

// Drift applies small symmetric noise to a server's metrics and clamps them.
func (g *Generator) Drift(s *ServerMetrics) {
	s.SetValue(MetricCPU, s.CPUUsage+g.symmetric(DriftCPU))
	s.SetValue(MetricMemory, s.MemoryUsage+g.symmetric(DriftMemory))
	s.SetValue(MetricDisk, s.DiskUsage+g.symmetric(DriftDisk))
	s.SetValue(MetricResponseTime, s.ResponseTime*(1+g.symmetric(driftRelative)))
	s.SetValue(MetricNetworkIn, s.NetworkIn*(1+g.symmetric(driftRelative)))
	s.SetValue(MetricNetworkOut, s.NetworkOut*(1+g.symmetric(driftRelative)))
	s.Gauges = g.RoleGauges(s)
}

// RoleGauges derives role-specific gauges from the server's load.
func (g *Generator) RoleGauges(s *ServerMetrics) map[string]float64 {
	load := s.CPUUsage / MaxPercent
	switch s.Role {
	case RoleWeb:
		return map[string]float64{"requests_per_sec": round1(200 + 1800*load + g.symmetric(25))}
	case RoleAPI:
		return map[string]float64{"requests_per_sec": round1(150 + 1200*load + g.symmetric(20))}
	case RoleDatabase:
		return map[string]float64{
			"active_connections": math.Round(20 + 280*load),
			"replication_lag_ms": round1(math.Max(0, 5+200*load*load+g.symmetric(3))),
		}
	case RoleCache:
		return map[string]float64{"hit_ratio": round1(math.Max(0, 99-40*load+g.symmetric(1)))}
	case RoleStorage:
		return map[string]float64{"iops": math.Round(500 + 4500*load)}
	case RoleLoadBalancer:
		return map[string]float64{"active_sessions": math.Round(1000 + 9000*load)}
	}
	return nil
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
