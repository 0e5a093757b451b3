package fleet

import "fleetsim/internal/telemetry"

func seed(id string, role telemetry.Role, env string, cpu, mem, disk, rt, in, out float64) telemetry.BaseServer {
	return telemetry.BaseServer{
		ID:           id,
		Hostname:     id + ".fleet.internal",
		Role:         role,
		Environment:  env,
		CPUUsage:     cpu,
		MemoryUsage:  mem,
		DiskUsage:    disk,
		ResponseTime: rt,
		NetworkIn:    in,
		NetworkOut:   out,
		Status:       telemetry.StatusHealthy,
	}
}

// BuiltIn returns the default demo fleet.
func BuiltIn() []telemetry.BaseServer {
	return []telemetry.BaseServer{
		seed("lb-prd-01", telemetry.RoleLoadBalancer, "production", 28, 31, 15, 22, 210, 205),
		seed("lb-prd-02", telemetry.RoleLoadBalancer, "production", 24, 29, 14, 18, 180, 176),
		seed("web-prd-01", telemetry.RoleWeb, "production", 42, 48, 33, 140, 85, 120),
		seed("web-prd-02", telemetry.RoleWeb, "production", 38, 45, 31, 128, 80, 112),
		seed("web-stg-01", telemetry.RoleWeb, "staging", 18, 33, 25, 96, 12, 15),
		seed("api-prd-01", telemetry.RoleAPI, "production", 47, 58, 29, 185, 64, 70),
		seed("api-prd-02", telemetry.RoleAPI, "production", 44, 55, 27, 172, 60, 66),
		seed("api-stg-01", telemetry.RoleAPI, "staging", 21, 40, 22, 120, 9, 10),
		seed("db-prd-01", telemetry.RoleDatabase, "production", 62, 71, 58, 45, 52, 61),
		seed("db-prd-02", telemetry.RoleDatabase, "production", 48, 66, 55, 38, 40, 44),
		seed("cache-prd-01", telemetry.RoleCache, "production", 22, 72, 18, 6, 70, 75),
		seed("cache-prd-02", telemetry.RoleCache, "production", 19, 68, 17, 5, 62, 66),
		seed("storage-prd-01", telemetry.RoleStorage, "production", 21, 37, 71, 90, 95, 88),
		seed("monitoring-01", telemetry.RoleMonitoring, "production", 17, 41, 46, 180, 25, 12),
	}
}
