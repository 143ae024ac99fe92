package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Engine.MaxDepth != 10 {
		t.Errorf("Engine.MaxDepth = %d, want 10", cfg.Engine.MaxDepth)
	}
	if cfg.Engine.ExecutionTimeout != 30*time.Second {
		t.Errorf("Engine.ExecutionTimeout = %v, want 30s", cfg.Engine.ExecutionTimeout)
	}
	if cfg.Store.Backend != BackendMemory {
		t.Errorf("Store.Backend = %s, want memory", cfg.Store.Backend)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging defaults = %s/%s, want info/json", cfg.Logging.Level, cfg.Logging.Format)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("default configuration should validate: %v", err)
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Engine.PoolSize = 2
	cfg.Cache.DefaultTTL = time.Hour
	ApplyDefaults(cfg)

	if cfg.Engine.PoolSize != 2 {
		t.Errorf("explicit PoolSize overwritten: %d", cfg.Engine.PoolSize)
	}
	if cfg.Cache.DefaultTTL != time.Hour {
		t.Errorf("explicit DefaultTTL overwritten: %v", cfg.Cache.DefaultTTL)
	}
	if cfg.Engine.MaxDepth != 10 {
		t.Errorf("zero MaxDepth should get the default, got %d", cfg.Engine.MaxDepth)
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
engine:
  max_depth: 6
  execution_timeout: 10s
store:
  backend: file
  path: ./atoms
  watch: true
logging:
  level: debug
  format: text
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Engine.MaxDepth != 6 || cfg.Engine.ExecutionTimeout != 10*time.Second {
		t.Errorf("engine = %+v, want max_depth 6, timeout 10s", cfg.Engine)
	}
	if cfg.Store.Backend != BackendFile || !cfg.Store.Watch {
		t.Errorf("store = %+v, want watched file backend", cfg.Store)
	}
	// Unset sections still get defaults.
	if cfg.Engine.PoolSize != 8 || cfg.Cache.MaxEntries != 10000 {
		t.Errorf("defaults not applied: pool=%d cache=%d", cfg.Engine.PoolSize, cfg.Cache.MaxEntries)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
engine:
  pool_size: 4
`)
	t.Setenv("ATLAS_ENGINE_POOL_SIZE", "16")
	t.Setenv("ATLAS_STORE_BACKEND", "file")
	t.Setenv("ATLAS_STORE_PATH", "/etc/atlas/atoms")
	t.Setenv("ATLAS_LOGGING_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Engine.PoolSize != 16 {
		t.Errorf("env override lost: PoolSize = %d, want 16", cfg.Engine.PoolSize)
	}
	if cfg.Store.Backend != BackendFile || cfg.Store.Path != "/etc/atlas/atoms" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %s, want warn", cfg.Logging.Level)
	}
}

func TestLoad_Failures(t *testing.T) {
	if _, err := Load("/no/such/config.yaml"); err == nil {
		t.Error("Load() on a missing file should fail")
	}

	if _, err := Load(writeConfig(t, "engine: [not, a, mapping]\n")); err == nil {
		t.Error("Load() on malformed YAML should fail")
	}

	// Valid YAML that fails validation.
	if _, err := Load(writeConfig(t, "store:\n  backend: etcd\n")); err == nil {
		t.Error("Load() with an unknown backend should fail validation")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max depth", func(c *Config) { c.Engine.MaxDepth = -1 }},
		{"non-positive timeout", func(c *Config) { c.Engine.ExecutionTimeout = -time.Second }},
		{"zero pool size", func(c *Config) { c.Engine.PoolSize = -1 }},
		{"negative queue", func(c *Config) { c.Engine.QueueCapacity = -1 }},
		{"file backend without path", func(c *Config) { c.Store.Backend = BackendFile; c.Store.Path = "" }},
		{"sqlite stats without path", func(c *Config) { c.Stats.Backend = BackendSQLite; c.Stats.Path = "" }},
		{"file stats backend", func(c *Config) { c.Stats.Backend = BackendFile }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"unknown log format", func(c *Config) { c.Logging.Format = "logfmt" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("Validate() should fail")
			}
		})
	}
}
