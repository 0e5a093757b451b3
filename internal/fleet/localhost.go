package fleet

import (
	"context"
	"fmt"
	"math"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"fleetsim/internal/telemetry"
)

// LocalHost builds a seed record from the machine the simulator runs on.
// The record starts from real usage and evolves like any other server.
func LocalHost(ctx context.Context) (telemetry.BaseServer, error) {
	h, err := host.InfoWithContext(ctx)
	if err != nil {
		return telemetry.BaseServer{}, fmt.Errorf("host info: %w", err)
	}
	s := telemetry.BaseServer{
		ID:           "local-" + h.Hostname,
		Hostname:     h.Hostname,
		Role:         telemetry.RoleMonitoring,
		Environment:  "local",
		ResponseTime: 150,
		Status:       telemetry.StatusHealthy,
	}
	if c, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(c) > 0 {
		s.CPUUsage = round1(c[0])
	}
	if v, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		s.MemoryUsage = round1(v.UsedPercent)
	}
	if d, err := disk.UsageWithContext(ctx, "/"); err == nil {
		s.DiskUsage = round1(d.UsedPercent)
	}
	return s, nil
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
