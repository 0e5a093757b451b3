// YAML config loader with CUE validation integration
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"fleetsim/internal/telemetry"
)

// Defaults applied by Load and Default.
const (
	DefaultClusterID        = "fleetsim-local"
	DefaultTickInterval     = 30 * time.Second
	DefaultEffectResolution = time.Second
	DefaultMaxPoints        = 1440
	DefaultRetentionHours   = 24
	DefaultBackupInterval   = 30 * time.Minute
)

// Store configures the in-memory time-series store.
type Store struct {
	MaxPoints      int           `yaml:"max_points"`
	RetentionHours int           `yaml:"retention_hours"`
	BackupInterval time.Duration `yaml:"backup_interval"`
	SnapshotLoad   bool          `yaml:"snapshot_load"`
}

// Retention returns the retention window as a duration.
func (s Store) Retention() time.Duration {
	return time.Duration(s.RetentionHours) * time.Hour
}

// Admin configures the JSON admin API. An empty address disables it.
type Admin struct {
	Addr string `yaml:"addr"`
}

// Backup selects the backup databases points are written to.
type Backup struct {
	GreptimeDBEndpoint string `yaml:"greptimedb_endpoint"`
	GreptimeDBDatabase string `yaml:"greptimedb_database"`
	GreptimeDBTable    string `yaml:"greptimedb_table"`
	SQLitePath         string `yaml:"sqlite_path"`
	PostgresDSN        string `yaml:"postgres_dsn"`
	PostgresTable      string `yaml:"postgres_table"`
	FilePath           string `yaml:"file_path"`
}

// SimulationConfig is the root configuration of a fleetsim run.
type SimulationConfig struct {
	ClusterID        string                 `yaml:"cluster_id"`
	TickInterval     time.Duration          `yaml:"tick_interval"`
	EffectResolution time.Duration          `yaml:"effect_resolution"`
	Seed             int64                  `yaml:"seed"`
	IncludeLocalHost bool                   `yaml:"include_local_host"`
	ScenariosFile    string                 `yaml:"scenarios_file"`
	Servers          []telemetry.BaseServer `yaml:"servers"`
	Store            Store                  `yaml:"store"`
	Admin            Admin                  `yaml:"admin"`
	Backup           Backup                 `yaml:"backup"`
}

// Default returns the configuration used when no file is given: the
// built-in fleet and scenario catalog with default timings.
func Default() *SimulationConfig {
	cfg := &SimulationConfig{}
	cfg.applyDefaults()
	return cfg
}

// Load loads YAML config and validates it against a CUE schema. An empty
// schema path selects the embedded schema. Environment overrides are applied
// after parsing.
func Load(configPath, cueSchemaPath string) (*SimulationConfig, error) {
	if err := ValidateWithCue(configPath, cueSchemaPath); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	var cfg SimulationConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("cannot unmarshal YAML config: %w", err)
	}
	if err := cfg.checkServers(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *SimulationConfig) checkServers() error {
	seen := make(map[string]bool, len(c.Servers))
	var errs []error
	for _, s := range c.Servers {
		if seen[s.ID] {
			errs = append(errs, fmt.Errorf("duplicate server id %q", s.ID))
		}
		seen[s.ID] = true
	}
	return errors.Join(errs...)
}

func (c *SimulationConfig) applyDefaults() {
	if c.ClusterID == "" {
		c.ClusterID = DefaultClusterID
	}
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.EffectResolution <= 0 {
		c.EffectResolution = DefaultEffectResolution
	}
	if c.Store.MaxPoints <= 0 {
		c.Store.MaxPoints = DefaultMaxPoints
	}
	if c.Store.RetentionHours <= 0 {
		c.Store.RetentionHours = DefaultRetentionHours
	}
	if c.Store.BackupInterval <= 0 {
		c.Store.BackupInterval = DefaultBackupInterval
	}
}

// ApplyEnv overrides fields from CLUSTER_ID, TICK_INTERVAL,
// GREPTIMEDB_ENDPOINT, GREPTIMEDB_DATABASE, GREPTIMEDB_TABLE,
// BACKUP_SQLITE_PATH and BACKUP_POSTGRES_DSN.
func (c *SimulationConfig) ApplyEnv() error {
	if v := os.Getenv("CLUSTER_ID"); v != "" {
		c.ClusterID = v
	}
	if v := os.Getenv("TICK_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid TICK_INTERVAL %q", v)
		}
		c.TickInterval = d
	}
	for env, field := range map[string]*string{
		"GREPTIMEDB_ENDPOINT": &c.Backup.GreptimeDBEndpoint,
		"GREPTIMEDB_DATABASE": &c.Backup.GreptimeDBDatabase,
		"GREPTIMEDB_TABLE":    &c.Backup.GreptimeDBTable,
		"BACKUP_SQLITE_PATH":  &c.Backup.SQLitePath,
		"BACKUP_POSTGRES_DSN": &c.Backup.PostgresDSN,
	} {
		if v := os.Getenv(env); v != "" {
			*field = v
		}
	}
	return nil
}
