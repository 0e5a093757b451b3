package servertype

import "fleetsim/internal/telemetry"

type rng = telemetry.Range

var defaultBaseline = map[telemetry.Metric]telemetry.Range{
	telemetry.MetricCPU:          {Min: 20, Max: 50},
	telemetry.MetricMemory:       {Min: 30, Max: 60},
	telemetry.MetricDisk:         {Min: 20, Max: 50},
	telemetry.MetricResponseTime: {Min: 80, Max: 200},
	telemetry.MetricNetworkIn:    {Min: 10, Max: 60},
	telemetry.MetricNetworkOut:   {Min: 10, Max: 50},
}

// BuiltIn returns the static role table.
func BuiltIn() map[telemetry.Role]Definition {
	return map[telemetry.Role]Definition{
		telemetry.RoleWeb: {
			Characteristics: Characteristics{CPUWeight: 0.4, MemoryWeight: 0.3, DiskWeight: 0.1, ResponseTimeBase: 200, StabilityFactor: 0.95},
			Dependencies:    []telemetry.Role{telemetry.RoleAPI, telemetry.RoleCache},
			BaseRisk:        20,
			Baseline: map[telemetry.Metric]telemetry.Range{
				telemetry.MetricCPU:          rng{Min: 20, Max: 45},
				telemetry.MetricMemory:       rng{Min: 30, Max: 55},
				telemetry.MetricDisk:         rng{Min: 20, Max: 40},
				telemetry.MetricResponseTime: rng{Min: 80, Max: 180},
				telemetry.MetricNetworkIn:    rng{Min: 40, Max: 120},
				telemetry.MetricNetworkOut:   rng{Min: 60, Max: 180},
			},
		},
		telemetry.RoleAPI: {
			Characteristics: Characteristics{CPUWeight: 0.4, MemoryWeight: 0.4, DiskWeight: 0.1, ResponseTimeBase: 250, StabilityFactor: 0.9},
			Dependencies:    []telemetry.Role{telemetry.RoleDatabase, telemetry.RoleCache},
			BaseRisk:        30,
			Baseline: map[telemetry.Metric]telemetry.Range{
				telemetry.MetricCPU:          rng{Min: 25, Max: 50},
				telemetry.MetricMemory:       rng{Min: 35, Max: 60},
				telemetry.MetricDisk:         rng{Min: 20, Max: 40},
				telemetry.MetricResponseTime: rng{Min: 100, Max: 220},
				telemetry.MetricNetworkIn:    rng{Min: 30, Max: 90},
				telemetry.MetricNetworkOut:   rng{Min: 30, Max: 90},
			},
		},
		telemetry.RoleDatabase: {
			Characteristics: Characteristics{CPUWeight: 0.35, MemoryWeight: 0.4, DiskWeight: 0.25, ResponseTimeBase: 100, StabilityFactor: 0.85},
			Dependencies:    []telemetry.Role{telemetry.RoleStorage},
			BaseRisk:        50,
			Baseline: map[telemetry.Metric]telemetry.Range{
				telemetry.MetricCPU:          rng{Min: 30, Max: 55},
				telemetry.MetricMemory:       rng{Min: 50, Max: 75},
				telemetry.MetricDisk:         rng{Min: 40, Max: 65},
				telemetry.MetricResponseTime: rng{Min: 20, Max: 80},
				telemetry.MetricNetworkIn:    rng{Min: 20, Max: 80},
				telemetry.MetricNetworkOut:   rng{Min: 20, Max: 80},
			},
		},
		telemetry.RoleCache: {
			Characteristics: Characteristics{CPUWeight: 0.2, MemoryWeight: 0.7, DiskWeight: 0.1, ResponseTimeBase: 20, StabilityFactor: 0.95},
			BaseRisk:        35,
			Baseline: map[telemetry.Metric]telemetry.Range{
				telemetry.MetricCPU:          rng{Min: 10, Max: 35},
				telemetry.MetricMemory:       rng{Min: 55, Max: 80},
				telemetry.MetricDisk:         rng{Min: 10, Max: 30},
				telemetry.MetricResponseTime: rng{Min: 2, Max: 15},
				telemetry.MetricNetworkIn:    rng{Min: 30, Max: 100},
				telemetry.MetricNetworkOut:   rng{Min: 30, Max: 100},
			},
		},
		telemetry.RoleStorage: {
			Characteristics: Characteristics{CPUWeight: 0.15, MemoryWeight: 0.25, DiskWeight: 0.6, ResponseTimeBase: 150, StabilityFactor: 0.9},
			BaseRisk:        40,
			Baseline: map[telemetry.Metric]telemetry.Range{
				telemetry.MetricCPU:          rng{Min: 10, Max: 30},
				telemetry.MetricMemory:       rng{Min: 25, Max: 50},
				telemetry.MetricDisk:         rng{Min: 50, Max: 75},
				telemetry.MetricResponseTime: rng{Min: 40, Max: 140},
				telemetry.MetricNetworkIn:    rng{Min: 20, Max: 150},
				telemetry.MetricNetworkOut:   rng{Min: 20, Max: 150},
			},
		},
		telemetry.RoleLoadBalancer: {
			Characteristics: Characteristics{CPUWeight: 0.5, MemoryWeight: 0.3, DiskWeight: 0.05, ResponseTimeBase: 50, StabilityFactor: 0.95},
			Dependencies:    []telemetry.Role{telemetry.RoleWeb},
			BaseRisk:        45,
			Baseline: map[telemetry.Metric]telemetry.Range{
				telemetry.MetricCPU:          rng{Min: 15, Max: 40},
				telemetry.MetricMemory:       rng{Min: 20, Max: 40},
				telemetry.MetricDisk:         rng{Min: 10, Max: 25},
				telemetry.MetricResponseTime: rng{Min: 5, Max: 40},
				telemetry.MetricNetworkIn:    rng{Min: 100, Max: 300},
				telemetry.MetricNetworkOut:   rng{Min: 100, Max: 300},
			},
		},
		telemetry.RoleMonitoring: {
			Characteristics: Characteristics{CPUWeight: 0.3, MemoryWeight: 0.3, DiskWeight: 0.4, ResponseTimeBase: 300, StabilityFactor: 1.0},
			BaseRisk:        5,
			Baseline: map[telemetry.Metric]telemetry.Range{
				telemetry.MetricCPU:          rng{Min: 10, Max: 30},
				telemetry.MetricMemory:       rng{Min: 30, Max: 50},
				telemetry.MetricDisk:         rng{Min: 30, Max: 60},
				telemetry.MetricResponseTime: rng{Min: 100, Max: 250},
				telemetry.MetricNetworkIn:    rng{Min: 10, Max: 40},
				telemetry.MetricNetworkOut:   rng{Min: 5, Max: 20},
			},
		},
	}
}
