package scenario

import (
	"time"

	"fleetsim/internal/telemetry"
)

// BuiltIn returns the default failure catalog.
func BuiltIn() []Scenario {
	return []Scenario{
		{
			ID:          "database_overload",
			Name:        "Database overload",
			Description: "Primary database saturates its CPU; slow queries back up into the API and web tiers.",
			Trigger:     Trigger{Role: telemetry.RoleDatabase, Metric: telemetry.MetricCPU, Threshold: 85, Operator: OpGTE},
			CascadeEffects: []CascadeEffect{
				{Delay: 15 * time.Second, TargetRole: telemetry.RoleDatabase, Metric: telemetry.MetricCPU, Impact: Impact{Multiplier: 1.4}, Message: "Database CPU saturation spreading across replicas", Severity: telemetry.SeverityWarning},
				{Delay: 30 * time.Second, TargetRole: telemetry.RoleAPI, Metric: telemetry.MetricResponseTime, Impact: Impact{Multiplier: 2.5}, Message: "API latency rising on slow database queries", Severity: telemetry.SeverityWarning},
				{Delay: 45 * time.Second, TargetRole: telemetry.RoleWeb, Metric: telemetry.MetricResponseTime, Impact: Impact{Multiplier: 1.8}, Message: "Web response time degraded by upstream API latency", Severity: telemetry.SeverityCritical},
			},
			RecoveryTime: 5 * time.Minute,
			Probability:  0.15,
		},
		{
			ID:          "memory_leak",
			Name:        "Memory leak",
			Description: "An API release leaks memory until the process starts swapping.",
			Trigger:     Trigger{Role: telemetry.RoleAPI, Metric: telemetry.MetricMemory, Threshold: 80, Operator: OpGTE},
			CascadeEffects: []CascadeEffect{
				{Delay: 20 * time.Second, TargetRole: telemetry.RoleAPI, Metric: telemetry.MetricMemory, Impact: Impact{Multiplier: 1.25}, Message: "API heap growth continuing", Severity: telemetry.SeverityWarning},
				{Delay: 40 * time.Second, TargetRole: telemetry.RoleAPI, Metric: telemetry.MetricCPU, Impact: Impact{Multiplier: 1.5}, Message: "Garbage collection pressure on API servers", Severity: telemetry.SeverityCritical},
			},
			RecoveryTime: 4 * time.Minute,
			Probability:  0.1,
		},
		{
			ID:          "traffic_spike",
			Name:        "Traffic spike",
			Description: "A burst of inbound traffic overloads the web tier and the load balancers in front of it.",
			Trigger:     Trigger{Role: telemetry.RoleWeb, Metric: telemetry.MetricCPU, Threshold: 70, Operator: OpGTE},
			CascadeEffects: []CascadeEffect{
				{Delay: 5 * time.Second, TargetRole: telemetry.RoleLoadBalancer, Metric: telemetry.MetricNetworkIn, Impact: Impact{Multiplier: 2}, Message: "Inbound connections surging at the edge", Severity: telemetry.SeverityInfo},
				{Delay: 10 * time.Second, TargetRole: telemetry.RoleWeb, Metric: telemetry.MetricCPU, Impact: Impact{Multiplier: 1.3}, Message: "Web workers saturated by request volume", Severity: telemetry.SeverityWarning},
				{Delay: 25 * time.Second, TargetRole: telemetry.RoleAPI, Metric: telemetry.MetricCPU, Impact: Impact{Multiplier: 1.2}, Message: "API tier absorbing traffic spike", Severity: telemetry.SeverityWarning},
			},
			RecoveryTime: 3 * time.Minute,
			Probability:  0.2,
		},
		{
			ID:          "disk_full",
			Name:        "Disk full",
			Description: "Storage volumes fill up and database writes start to stall.",
			Trigger:     Trigger{Role: telemetry.RoleStorage, Metric: telemetry.MetricDisk, Threshold: 85, Operator: OpGTE},
			CascadeEffects: []CascadeEffect{
				{Delay: 10 * time.Second, TargetRole: telemetry.RoleStorage, Metric: telemetry.MetricDisk, Impact: Impact{Multiplier: 1.1}, Message: "Storage volume nearly exhausted", Severity: telemetry.SeverityCritical},
				{Delay: 30 * time.Second, TargetRole: telemetry.RoleDatabase, Metric: telemetry.MetricResponseTime, Impact: Impact{Multiplier: 3}, Message: "Database writes stalling on full storage", Severity: telemetry.SeverityCritical},
			},
			RecoveryTime: 6 * time.Minute,
			Probability:  0.08,
		},
		{
			ID:          "cache_invalidation",
			Name:        "Cache invalidation",
			Description: "A mass cache flush sends every read straight to the database.",
			Trigger:     Trigger{Role: telemetry.RoleCache, Metric: telemetry.MetricMemory, Threshold: 60, Operator: OpLTE},
			CascadeEffects: []CascadeEffect{
				{Delay: 5 * time.Second, TargetRole: telemetry.RoleDatabase, Metric: telemetry.MetricCPU, Impact: Impact{Multiplier: 1.5}, Message: "Cache misses driving database load", Severity: telemetry.SeverityWarning},
				{Delay: 20 * time.Second, TargetRole: telemetry.RoleAPI, Metric: telemetry.MetricResponseTime, Impact: Impact{Multiplier: 1.6}, Message: "API latency up while cache warms", Severity: telemetry.SeverityWarning},
			},
			RecoveryTime: 2 * time.Minute,
			Probability:  0.12,
		},
		{
			ID:          "network_partition",
			Name:        "Network partition",
			Description: "Packet loss between the load balancers and the web tier.",
			Trigger:     Trigger{Role: telemetry.RoleLoadBalancer, Metric: telemetry.MetricResponseTime, Threshold: 30, Operator: OpGTE},
			CascadeEffects: []CascadeEffect{
				{Delay: 5 * time.Second, TargetRole: telemetry.RoleLoadBalancer, Metric: telemetry.MetricResponseTime, Impact: Impact{Multiplier: 4}, Message: "Health checks timing out across the partition", Severity: telemetry.SeverityCritical},
				{Delay: 15 * time.Second, TargetRole: telemetry.RoleWeb, Metric: telemetry.MetricNetworkIn, Impact: Impact{Multiplier: 0.4}, Message: "Web tier receiving a fraction of expected traffic", Severity: telemetry.SeverityWarning},
			},
			RecoveryTime: 3 * time.Minute,
			Probability:  0.05,
		},
		{
			ID:          "cpu_thermal",
			Name:        "CPU thermal throttling",
			Description: "Storage nodes throttle under sustained load.",
			Trigger:     Trigger{Role: telemetry.RoleStorage, Metric: telemetry.MetricCPU, Threshold: 25, Operator: OpGTE},
			CascadeEffects: []CascadeEffect{
				{Delay: 10 * time.Second, TargetRole: telemetry.RoleStorage, Metric: telemetry.MetricResponseTime, Impact: Impact{Multiplier: 2}, Message: "Throttled storage nodes serving I/O slowly", Severity: telemetry.SeverityWarning},
			},
			RecoveryTime: 2 * time.Minute,
			Probability:  0.05,
		},
		{
			ID:          "connection_pool",
			Name:        "Connection pool exhaustion",
			Description: "API servers run out of database connections.",
			Trigger:     Trigger{Role: telemetry.RoleAPI, Metric: telemetry.MetricResponseTime, Threshold: 200, Operator: OpGT},
			CascadeEffects: []CascadeEffect{
				{Delay: 10 * time.Second, TargetRole: telemetry.RoleAPI, Metric: telemetry.MetricResponseTime, Impact: Impact{Multiplier: 2}, Message: "Requests queued waiting for database connections", Severity: telemetry.SeverityCritical},
				{Delay: 20 * time.Second, TargetRole: telemetry.RoleDatabase, Metric: telemetry.MetricMemory, Impact: Impact{Multiplier: 1.2}, Message: "Database holding idle connections", Severity: telemetry.SeverityInfo},
			},
			RecoveryTime: 150 * time.Second,
			Probability:  0.1,
		},
	}
}
