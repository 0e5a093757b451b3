package tsdb

import (
	"math"
	"regexp"
	"strconv"
	"time"

	"fleetsim/internal/telemetry"
)

// DefaultRange is used when a time range cannot be parsed.
const DefaultRange = time.Hour

var rangePattern = regexp.MustCompile(`^(\d+)([mhd])$`)

// ParseTimeRange parses "<n>m", "<n>h" or "<n>d". Anything else, including
// windows too large for a time.Duration, yields DefaultRange.
func ParseTimeRange(s string) time.Duration {
	m := rangePattern.FindStringSubmatch(s)
	if m == nil {
		return DefaultRange
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return DefaultRange
	}
	unit := time.Minute
	switch m[2] {
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	}
	if int64(n) > math.MaxInt64/int64(unit) {
		return DefaultRange
	}
	return time.Duration(n) * unit
}

// Aggregations summarise each requested metric over the query window.
type Aggregations struct {
	Avg    map[telemetry.Metric]float64 `json:"avg"`
	Max    map[telemetry.Metric]float64 `json:"max"`
	Min    map[telemetry.Metric]float64 `json:"min"`
	Latest map[telemetry.Metric]float64 `json:"latest"`
}

// QueryResult is the answer to QueryMetrics.
type QueryResult struct {
	ServerID     string            `json:"server_id"`
	TimeRange    string            `json:"time_range"`
	Points       []telemetry.Point `json:"points"`
	Aggregations Aggregations      `json:"aggregations"`
}

// SeriesPoint is one value of a single metric.
type SeriesPoint struct {
	Timestamp time.Time `json:"ts"`
	Value     float64   `json:"value"`
}

// window returns the points of id inside [now-d, now]. Callers hold s.mu.
func (s *Store) window(id string, d time.Duration) []telemetry.Point {
	now := s.clock.Now()
	from := now.Add(-d)
	var out []telemetry.Point
	for _, p := range s.buffers[id] {
		if p.Timestamp.Before(from) || p.Timestamp.After(now) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// QueryMetrics returns the points of serverID within timeRange plus
// aggregations of the requested metrics (all metrics when none are given).
// Unknown metric names are ignored. An unknown server yields an empty result.
func (s *Store) QueryMetrics(serverID, timeRange string, metrics []telemetry.Metric) QueryResult {
	var wanted []telemetry.Metric
	for _, m := range metrics {
		if m.Valid() {
			wanted = append(wanted, m)
		}
	}
	if len(wanted) == 0 {
		wanted = telemetry.Metrics()
	}

	s.mu.RLock()
	points := s.window(serverID, ParseTimeRange(timeRange))
	s.mu.RUnlock()

	res := QueryResult{
		ServerID:  serverID,
		TimeRange: timeRange,
		Points:    append([]telemetry.Point{}, points...),
		Aggregations: Aggregations{
			Avg:    make(map[telemetry.Metric]float64, len(wanted)),
			Max:    make(map[telemetry.Metric]float64, len(wanted)),
			Min:    make(map[telemetry.Metric]float64, len(wanted)),
			Latest: make(map[telemetry.Metric]float64, len(wanted)),
		},
	}
	for _, m := range wanted {
		if len(points) == 0 {
			res.Aggregations.Avg[m] = 0
			res.Aggregations.Max[m] = 0
			res.Aggregations.Min[m] = 0
			res.Aggregations.Latest[m] = 0
			continue
		}
		sum, lo, hi := 0.0, math.Inf(1), math.Inf(-1)
		for _, p := range points {
			v, _ := p.Metrics.Value(m)
			sum += v
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		latest, _ := points[len(points)-1].Metrics.Value(m)
		res.Aggregations.Avg[m] = sum / float64(len(points))
		res.Aggregations.Max[m] = hi
		res.Aggregations.Min[m] = lo
		res.Aggregations.Latest[m] = latest
	}
	return res
}

// QueryMultipleServers returns one series of metric per requested id.
// Ids without data map to an empty series.
func (s *Store) QueryMultipleServers(ids []string, timeRange string, metric telemetry.Metric) map[string][]SeriesPoint {
	d := ParseTimeRange(timeRange)
	out := make(map[string][]SeriesPoint, len(ids))
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range ids {
		series := []SeriesPoint{}
		if metric.Valid() {
			for _, p := range s.window(id, d) {
				v, _ := p.Metrics.Value(metric)
				series = append(series, SeriesPoint{Timestamp: p.Timestamp, Value: v})
			}
		}
		out[id] = series
	}
	return out
}

// Stats describes the store's footprint.
type Stats struct {
	TotalServers int       `json:"total_servers"`
	TotalPoints  int       `json:"total_points"`
	Oldest       time.Time `json:"oldest,omitzero"`
	Newest       time.Time `json:"newest,omitzero"`
	MemoryBytes  int64     `json:"memory_bytes"`
}

// approximate fixed cost of one Point: timestamp, six floats, int and string headers
const pointOverhead = 24 + 6*8 + 8 + 5*16

// GetStorageStats reports counts, the time span and an estimated memory footprint.
func (s *Store) GetStorageStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{TotalServers: len(s.buffers)}
	for _, buf := range s.buffers {
		if len(buf) == 0 {
			continue
		}
		st.TotalPoints += len(buf)
		if first := buf[0].Timestamp; st.Oldest.IsZero() || first.Before(st.Oldest) {
			st.Oldest = first
		}
		if last := buf[len(buf)-1].Timestamp; last.After(st.Newest) {
			st.Newest = last
		}
		for _, p := range buf {
			st.MemoryBytes += int64(pointOverhead + len(p.ServerID) + len(p.Hostname) + len(p.Environment) + len(p.Role) + len(p.Status))
		}
	}
	return st
}
