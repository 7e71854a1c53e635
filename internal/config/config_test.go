package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig_Validates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Path = filepath.Join(t.TempDir(), "test.db")

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"empty host", func(c *Config) { c.Server.Host = "" }},
		{"empty store path", func(c *Config) { c.Store.Path = "" }},
		{"bad encoding", func(c *Config) { c.Ingest.Encoding = "utf-16" }},
		{"negative threads", func(c *Config) { c.Pipeline.NumThreads = -1 }},
		{"zero min batch", func(c *Config) { c.Pipeline.MinBatchSize = 0 }},
		{"max below min", func(c *Config) { c.Pipeline.MaxBatchSize = 10; c.Pipeline.MinBatchSize = 100 }},
		{"initial out of bounds", func(c *Config) { c.Pipeline.InitialBatchSize = 1 }},
		{"inverted watermarks", func(c *Config) { c.Pipeline.QueueHighWatermark = 1; c.Pipeline.QueueLowWatermark = 10 }},
		{"monitor without paths", func(c *Config) { c.Monitor.Enabled = true; c.Monitor.Paths = nil }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Store.Path = filepath.Join(t.TempDir(), "test.db")
			tt.mutate(cfg)

			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `
server:
  port: 9090
ingest:
  log_type: json
  file_path: /var/log/app.json
pipeline:
  num_threads: 2
store:
  path: ` + filepath.Join(t.TempDir(), "cfg.db") + `
`
	path := filepath.Join(t.TempDir(), "logsieve.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Ingest.LogType != "json" {
		t.Errorf("expected log_type json, got %s", cfg.Ingest.LogType)
	}
	if cfg.Pipeline.NumThreads != 2 {
		t.Errorf("expected 2 threads, got %d", cfg.Pipeline.NumThreads)
	}
	// Unset keys keep their defaults
	if cfg.Pipeline.InitialBatchSize != 1000 {
		t.Errorf("expected default batch size, got %d", cfg.Pipeline.InitialBatchSize)
	}
}

func TestLoadFromFile_Missing(t *testing.T) {
	if _, err := LoadFromFile("/nonexistent/logsieve.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LOGSIEVE_PORT", "7070")
	t.Setenv("LOGSIEVE_LOG_TYPE", "csv")
	t.Setenv("LOGSIEVE_NUM_THREADS", "8")

	cfg := DefaultConfig()
	cfg.LoadFromEnv()

	if cfg.Server.Port != 7070 {
		t.Errorf("expected port 7070, got %d", cfg.Server.Port)
	}
	if cfg.Ingest.LogType != "csv" {
		t.Errorf("expected log_type csv, got %s", cfg.Ingest.LogType)
	}
	if cfg.Pipeline.NumThreads != 8 {
		t.Errorf("expected 8 threads, got %d", cfg.Pipeline.NumThreads)
	}
}
