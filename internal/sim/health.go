package sim

import (
	"math"
	"time"

	"fleetsim/internal/servertype"
	"fleetsim/internal/telemetry"
)

// Status thresholds applied to health score times stability.
const (
	criticalBelow = 30
	warningBelow  = 60
	riskPerImpact = 15
)

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// HealthScore blends inverse resource usage (80%) with responsiveness (20%).
func HealthScore(s *telemetry.ServerMetrics, c servertype.Characteristics) int {
	resource := (c.CPUWeight*(100-s.CPUUsage) +
		c.MemoryWeight*(100-s.MemoryUsage) +
		c.DiskWeight*(100-s.DiskUsage)) / c.TotalWeight()
	responsiveness := 100 * clamp(c.ResponseTimeBase/math.Max(s.ResponseTime, 1), 0, 1)
	return int(math.Round(clamp(0.8*resource+0.2*responsiveness, 0, 100)))
}

// PredictStatus maps a health score and stability factor to a status.
func PredictStatus(score int, stability float64) telemetry.Status {
	v := float64(score) * stability
	switch {
	case v < criticalBelow:
		return telemetry.StatusCritical
	case v < warningBelow:
		return telemetry.StatusWarning
	default:
		return telemetry.StatusHealthy
	}
}

// CascadeRisk is the role's base risk plus a fixed amount per dependent role.
func CascadeRisk(r *servertype.Registry, role telemetry.Role) int {
	risk := r.BaseRisk(role) + riskPerImpact*r.ImpactCount(role)
	if risk > 100 {
		return 100
	}
	if risk < 0 {
		return 0
	}
	return risk
}

// recompute refreshes every derived field. Dependency health reads the
// health scores computed in the same pass.
func (s *Simulator) recompute(now time.Time) {
	byRole := make(map[telemetry.Role][]int)
	for i := range s.servers {
		srv := &s.servers[i]
		def, _ := s.registry.Lookup(srv.Role)
		srv.HealthScore = HealthScore(srv, def.Characteristics)
		srv.PredictedStatus = PredictStatus(srv.HealthScore, def.Characteristics.StabilityFactor)
		srv.Status = srv.PredictedStatus
		srv.CascadeRisk = CascadeRisk(s.registry, srv.Role)
		srv.LastUpdated = now
		byRole[srv.Role] = append(byRole[srv.Role], srv.HealthScore)
	}
	for i := range s.servers {
		srv := &s.servers[i]
		sum, n := 0, 0
		for _, dep := range s.registry.Dependencies(srv.Role) {
			for _, h := range byRole[dep] {
				sum += h
				n++
			}
		}
		if n == 0 {
			srv.DependencyHealth = 100
			continue
		}
		srv.DependencyHealth = int(math.Round(float64(sum) / float64(n)))
	}
}
