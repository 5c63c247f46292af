// Package config loads GraphLite's engine configuration from the
// <root>/conf/ directory (§4.1), following the teacher's env-flag-first
// style (pkg/config.IsWALEnabled) but backed by a YAML file for the
// settings that need more than a boolean.
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds tunables consulted across the engine. Zero value is not
// valid; use Default() or Load().
type Config struct {
	// WALEnabled mirrors the teacher's NORNICDB_WAL_ENABLED feature flag.
	WALEnabled bool `yaml:"wal_enabled"`

	// WALSyncMode is "immediate", "batch", or "none" (§4.2 group-commit).
	WALSyncMode string `yaml:"wal_sync_mode"`

	// WALBatchSyncInterval is the fsync batching window for "batch" mode.
	WALBatchSyncInterval time.Duration `yaml:"wal_batch_sync_interval"`

	// WALSegmentMaxBytes triggers segment rotation (§4.2 rotate()).
	WALSegmentMaxBytes int64 `yaml:"wal_segment_max_bytes"`

	// MemoryBudgetBytes caps in-flight result materialization (§4.5.6).
	MemoryBudgetBytes int64 `yaml:"memory_budget_bytes"`

	// SessionIdleTimeout is the idle-session sweep threshold (§5, 1h default).
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout"`

	// SchemaEnforcement is one of "strict", "advisory", "disabled" (§7, §9).
	SchemaEnforcement string `yaml:"schema_enforcement"`
}

// Default returns GraphLite's baseline configuration.
func Default() *Config {
	return &Config{
		WALEnabled:            true,
		WALSyncMode:           "batch",
		WALBatchSyncInterval:  100 * time.Millisecond,
		WALSegmentMaxBytes:    64 * 1024 * 1024,
		MemoryBudgetBytes:     512 * 1024 * 1024,
		SessionIdleTimeout:    time.Hour,
		SchemaEnforcement:     "advisory",
	}
}

// Load reads <root>/conf/engine.yaml if present, falling back to Default(),
// then applies environment-variable overrides (matching the teacher's
// env-flag precedence: explicit env vars win over file config).
func Load(confDir string) (*Config, error) {
	cfg := Default()

	path := confDir + "/engine.yaml"
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("GRAPHLITE_WAL_ENABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.WALEnabled = b
		}
	}
	if v, ok := os.LookupEnv("GRAPHLITE_WAL_SYNC_MODE"); ok {
		cfg.WALSyncMode = v
	}
	if v, ok := os.LookupEnv("GRAPHLITE_MEMORY_BUDGET_BYTES"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MemoryBudgetBytes = n
		}
	}
	if v, ok := os.LookupEnv("GRAPHLITE_SESSION_IDLE_TIMEOUT"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SessionIdleTimeout = d
		}
	}
	if v, ok := os.LookupEnv("GRAPHLITE_SCHEMA_ENFORCEMENT"); ok {
		cfg.SchemaEnforcement = v
	}
}

// Save writes cfg to <root>/conf/engine.yaml, creating the directory if
// needed. Used by bootstrap/admin flows that adjust config programmatically.
func Save(confDir string, cfg *Config) error {
	if err := os.MkdirAll(confDir, 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(confDir+"/engine.yaml", data, 0o644)
}
