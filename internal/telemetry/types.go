// Server state, alert and time-series point types shared by the simulator, the store and the sinks
package telemetry

import (
	"os"
	"time"
)

// Role identifies the function a server plays in the fleet.
type Role string

// Known server roles.
const (
	RoleWeb          Role = "web"
	RoleAPI          Role = "api"
	RoleDatabase     Role = "database"
	RoleCache        Role = "cache"
	RoleStorage      Role = "storage"
	RoleLoadBalancer Role = "load-balancer"
	RoleMonitoring   Role = "monitoring"
)

// Roles lists every known role in a stable order.
func Roles() []Role {
	return []Role{RoleWeb, RoleAPI, RoleDatabase, RoleCache, RoleStorage, RoleLoadBalancer, RoleMonitoring}
}

// Metric names a mutable server measurement.
type Metric string

// Metric names as used by scenarios and queries.
const (
	MetricCPU          Metric = "cpu_usage"
	MetricMemory       Metric = "memory_usage"
	MetricDisk         Metric = "disk_usage"
	MetricResponseTime Metric = "response_time"
	MetricNetworkIn    Metric = "network_in"
	MetricNetworkOut   Metric = "network_out"
)

// Metrics lists every metric in a stable order.
func Metrics() []Metric {
	return []Metric{MetricCPU, MetricMemory, MetricDisk, MetricNetworkIn, MetricNetworkOut, MetricResponseTime}
}

// Upper bounds used when clamping metric values.
const (
	MaxPercent        = 100.0
	MaxResponseTimeMs = 10000.0
	MaxNetworkMbps    = 1000.0
)

// Bounds returns the valid [min, max] range of a metric.
func (m Metric) Bounds() (float64, float64) {
	switch m {
	case MetricResponseTime:
		return 0, MaxResponseTimeMs
	case MetricNetworkIn, MetricNetworkOut:
		return 0, MaxNetworkMbps
	default:
		return 0, MaxPercent
	}
}

// Clamp limits v to the metric's bounds.
func (m Metric) Clamp(v float64) float64 {
	lo, hi := m.Bounds()
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Valid reports whether m is a known metric.
func (m Metric) Valid() bool {
	for _, known := range Metrics() {
		if m == known {
			return true
		}
	}
	return false
}

// Status is the categorical health label of a server.
type Status string

// Server status constants.
const (
	StatusHealthy  Status = "healthy"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

// Severity classifies alerts.
type Severity string

// Alert severities.
const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is raised against a server while a scenario affects it.
type Alert struct {
	ID        string    `json:"id"`
	ServerID  string    `json:"server_id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
	Resolved  bool      `json:"resolved"`
	RootCause string    `json:"root_cause"`
}

// BaseServer is the seed record owned by the fleet provider.
type BaseServer struct {
	ID           string  `json:"id" yaml:"id"`
	Hostname     string  `json:"hostname" yaml:"hostname"`
	Role         Role    `json:"role" yaml:"role"`
	Environment  string  `json:"environment" yaml:"environment"`
	CPUUsage     float64 `json:"cpu_usage" yaml:"cpu_usage"`
	MemoryUsage  float64 `json:"memory_usage" yaml:"memory_usage"`
	DiskUsage    float64 `json:"disk_usage" yaml:"disk_usage"`
	ResponseTime float64 `json:"response_time" yaml:"response_time"`
	NetworkIn    float64 `json:"network_in" yaml:"network_in"`
	NetworkOut   float64 `json:"network_out" yaml:"network_out"`
	Alerts       []Alert `json:"alerts,omitempty" yaml:"-"`
	Status       Status  `json:"status" yaml:"status"`
}

// ServerMetrics is the live simulated state of one server.
type ServerMetrics struct {
	ID           string  `json:"id"`
	Hostname     string  `json:"hostname"`
	Role         Role    `json:"role"`
	Environment  string  `json:"environment"`
	CPUUsage     float64 `json:"cpu_usage"`
	MemoryUsage  float64 `json:"memory_usage"`
	DiskUsage    float64 `json:"disk_usage"`
	ResponseTime float64 `json:"response_time"`
	NetworkIn    float64 `json:"network_in"`
	NetworkOut   float64 `json:"network_out"`
	Alerts       []Alert `json:"alerts"`
	Status       Status  `json:"status"`

	HealthScore      int                `json:"health_score"`
	PredictedStatus  Status             `json:"predicted_status"`
	CascadeRisk      int                `json:"cascade_risk"`
	DependencyHealth int                `json:"dependency_health"`
	ActiveScenarios  []string           `json:"active_scenarios"`
	RecoveryProgress int                `json:"recovery_progress"`
	Gauges           map[string]float64 `json:"gauges,omitempty"`
	LastUpdated      time.Time          `json:"last_updated"`
}

// FromBase builds the initial live state for a seed record.
func FromBase(b BaseServer) ServerMetrics {
	s := ServerMetrics{
		ID:               b.ID,
		Hostname:         b.Hostname,
		Role:             b.Role,
		Environment:      b.Environment,
		CPUUsage:         b.CPUUsage,
		MemoryUsage:      b.MemoryUsage,
		DiskUsage:        b.DiskUsage,
		ResponseTime:     b.ResponseTime,
		NetworkIn:        b.NetworkIn,
		NetworkOut:       b.NetworkOut,
		Alerts:           append([]Alert(nil), b.Alerts...),
		Status:           b.Status,
		HealthScore:      100,
		PredictedStatus:  StatusHealthy,
		DependencyHealth: 100,
		ActiveScenarios:  []string{},
	}
	if s.Status == "" {
		s.Status = StatusHealthy
	}
	if s.Hostname == "" {
		s.Hostname = s.ID
	}
	return s
}

// Base returns the fields mirrored back to the fleet provider.
func (s *ServerMetrics) Base() BaseServer {
	return BaseServer{
		ID:           s.ID,
		Hostname:     s.Hostname,
		Role:         s.Role,
		Environment:  s.Environment,
		CPUUsage:     s.CPUUsage,
		MemoryUsage:  s.MemoryUsage,
		DiskUsage:    s.DiskUsage,
		ResponseTime: s.ResponseTime,
		NetworkIn:    s.NetworkIn,
		NetworkOut:   s.NetworkOut,
		Alerts:       append([]Alert(nil), s.Alerts...),
		Status:       s.Status,
	}
}

// Value returns the current value of a metric.
func (s *ServerMetrics) Value(m Metric) (float64, bool) {
	switch m {
	case MetricCPU:
		return s.CPUUsage, true
	case MetricMemory:
		return s.MemoryUsage, true
	case MetricDisk:
		return s.DiskUsage, true
	case MetricResponseTime:
		return s.ResponseTime, true
	case MetricNetworkIn:
		return s.NetworkIn, true
	case MetricNetworkOut:
		return s.NetworkOut, true
	}
	return 0, false
}

// SetValue stores a clamped metric value. Unknown metrics are ignored.
func (s *ServerMetrics) SetValue(m Metric, v float64) bool {
	v = m.Clamp(v)
	switch m {
	case MetricCPU:
		s.CPUUsage = v
	case MetricMemory:
		s.MemoryUsage = v
	case MetricDisk:
		s.DiskUsage = v
	case MetricResponseTime:
		s.ResponseTime = v
	case MetricNetworkIn:
		s.NetworkIn = v
	case MetricNetworkOut:
		s.NetworkOut = v
	default:
		return false
	}
	return true
}

// HasScenario reports whether id is in the server's active scenario set.
func (s *ServerMetrics) HasScenario(id string) bool {
	for _, a := range s.ActiveScenarios {
		if a == id {
			return true
		}
	}
	return false
}

// AddScenario inserts id into the active set. Returns false if already present.
func (s *ServerMetrics) AddScenario(id string) bool {
	if s.HasScenario(id) {
		return false
	}
	s.ActiveScenarios = append(s.ActiveScenarios, id)
	return true
}

// RemoveScenario drops id from the active set. Returns false if it was absent.
func (s *ServerMetrics) RemoveScenario(id string) bool {
	for i, a := range s.ActiveScenarios {
		if a == id {
			s.ActiveScenarios = append(s.ActiveScenarios[:i], s.ActiveScenarios[i+1:]...)
			return true
		}
	}
	return false
}

// UnresolvedAlerts counts alerts that are still open.
func (s *ServerMetrics) UnresolvedAlerts() int {
	n := 0
	for _, a := range s.Alerts {
		if !a.Resolved {
			n++
		}
	}
	return n
}

// Clone returns a deep copy safe to hand to callers.
func (s ServerMetrics) Clone() ServerMetrics {
	c := s
	c.Alerts = append([]Alert(nil), s.Alerts...)
	c.ActiveScenarios = append([]string{}, s.ActiveScenarios...)
	if s.Gauges != nil {
		c.Gauges = make(map[string]float64, len(s.Gauges))
		for k, v := range s.Gauges {
			c.Gauges[k] = v
		}
	}
	return c
}

// PointMetrics holds the sampled metric values of a Point.
type PointMetrics struct {
	CPU          float64 `json:"cpu"`
	Memory       float64 `json:"memory"`
	Disk         float64 `json:"disk"`
	NetworkIn    float64 `json:"network_in"`
	NetworkOut   float64 `json:"network_out"`
	ResponseTime float64 `json:"response_time"`
}

// Value returns the sampled value of a metric.
func (p PointMetrics) Value(m Metric) (float64, bool) {
	switch m {
	case MetricCPU:
		return p.CPU, true
	case MetricMemory:
		return p.Memory, true
	case MetricDisk:
		return p.Disk, true
	case MetricResponseTime:
		return p.ResponseTime, true
	case MetricNetworkIn:
		return p.NetworkIn, true
	case MetricNetworkOut:
		return p.NetworkOut, true
	}
	return 0, false
}

// Point is one immutable time-series sample for a server.
type Point struct {
	Timestamp   time.Time    `json:"ts"` // TIME INDEX
	ServerID    string       `json:"server_id"`
	Hostname    string       `json:"hostname"`
	Environment string       `json:"environment"`
	Role        Role         `json:"role"`
	Metrics     PointMetrics `json:"metrics"`
	Status      Status       `json:"status"`
	AlertsCount int          `json:"alerts_count"`
}

// NewPoint samples a server at ts.
func NewPoint(s ServerMetrics, ts time.Time) Point {
	return Point{
		Timestamp:   ts,
		ServerID:    s.ID,
		Hostname:    s.Hostname,
		Environment: s.Environment,
		Role:        s.Role,
		Metrics: PointMetrics{
			CPU:          s.CPUUsage,
			Memory:       s.MemoryUsage,
			Disk:         s.DiskUsage,
			NetworkIn:    s.NetworkIn,
			NetworkOut:   s.NetworkOut,
			ResponseTime: s.ResponseTime,
		},
		Status:      s.Status,
		AlertsCount: s.UnresolvedAlerts(),
	}
}

// MetricsTableName holds the table name used when writing points to GreptimeDB.
// It defaults to "server_metrics" but can be overridden via the
// GREPTIMEDB_TABLE environment variable.
var MetricsTableName = func() string {
	if env := os.Getenv("GREPTIMEDB_TABLE"); env != "" {
		return env
	}
	return "server_metrics"
}()

func (Point) TableName() string {
	return MetricsTableName
}
