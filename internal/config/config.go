package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" json:"server"`
	Store    StoreConfig    `yaml:"store" json:"store"`
	Ingest   IngestConfig   `yaml:"ingest" json:"ingest"`
	Pipeline PipelineConfig `yaml:"pipeline" json:"pipeline"`
	Monitor  MonitorConfig  `yaml:"monitor" json:"monitor"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port" json:"port"`
	Host           string   `yaml:"host" json:"host"`
	ReadTimeout    int      `yaml:"read_timeout" json:"read_timeout"`   // seconds
	WriteTimeout   int      `yaml:"write_timeout" json:"write_timeout"` // seconds
	IdleTimeout    int      `yaml:"idle_timeout" json:"idle_timeout"`   // seconds
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
	LogRequests    bool     `yaml:"log_requests" json:"log_requests"`
}

// StoreConfig holds analytical store configuration
type StoreConfig struct {
	Path            string `yaml:"path" json:"path"`
	MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime"` // minutes
	MemoryLimitMB   int64  `yaml:"memory_limit_mb" json:"memory_limit_mb"`
	ChunkSize       int    `yaml:"chunk_size" json:"chunk_size"` // lines per chunk table
	ForceChunking   bool   `yaml:"force_chunking" json:"force_chunking"`
}

// IngestConfig describes the input file and how to parse it
type IngestConfig struct {
	FilePath            string   `yaml:"file_path" json:"file_path"`
	LogType             string   `yaml:"log_type" json:"log_type"` // csv, tsv, json, drain, anything else = regex
	LogPattern          string   `yaml:"log_pattern" json:"log_pattern"`
	Delimiter           string   `yaml:"delimiter" json:"delimiter"`
	ColumnNames         []string `yaml:"column_names" json:"column_names"`
	TimestampFormat     string   `yaml:"timestamp_format" json:"timestamp_format"`
	HasHeader           bool     `yaml:"has_header" json:"has_header"`
	LogicalLines        bool     `yaml:"logical_lines" json:"logical_lines"`
	Encoding            string   `yaml:"encoding" json:"encoding"`
	Decompress          bool     `yaml:"decompress" json:"decompress"`
	UseMemoryMapping    bool     `yaml:"use_memory_mapping" json:"use_memory_mapping"`
	EnablePreprocessing bool     `yaml:"enable_preprocessing" json:"enable_preprocessing"`

	// Preprocessor passes, applied in order before parsing
	DelimiterPatterns []Replacement `yaml:"delimiter_patterns" json:"delimiter_patterns"`
	CustomReplaceList []Replacement `yaml:"custom_replace_list" json:"custom_replace_list"`
}

// Replacement is a single (pattern, replacement) preprocessing rule
type Replacement struct {
	Pattern     string `yaml:"pattern" json:"pattern"`
	Replacement string `yaml:"replacement" json:"replacement"`
}

// PipelineConfig holds worker pool and batching configuration
type PipelineConfig struct {
	NumThreads         int `yaml:"num_threads" json:"num_threads"` // 0 = hardware concurrency
	InitialBatchSize   int `yaml:"initial_batch_size" json:"initial_batch_size"`
	MinBatchSize       int `yaml:"min_batch_size" json:"min_batch_size"`
	MaxBatchSize       int `yaml:"max_batch_size" json:"max_batch_size"`
	QueueLowWatermark  int `yaml:"queue_low_watermark" json:"queue_low_watermark"`
	QueueHighWatermark int `yaml:"queue_high_watermark" json:"queue_high_watermark"`
}

// MonitorConfig holds live-tail ingestion configuration
type MonitorConfig struct {
	Enabled       bool     `yaml:"enabled" json:"enabled"`
	Paths         []string `yaml:"paths" json:"paths"`
	TableName     string   `yaml:"table_name" json:"table_name"`
	BatchSize     int      `yaml:"batch_size" json:"batch_size"`
	FlushInterval int      `yaml:"flush_interval" json:"flush_interval"` // seconds
	Deduplicate   bool     `yaml:"deduplicate" json:"deduplicate"`
}

// LoggingConfig holds application logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			Host:           "0.0.0.0",
			ReadTimeout:    15,
			WriteTimeout:   15,
			IdleTimeout:    60,
			AllowedOrigins: []string{"*"},
			LogRequests:    true,
		},
		Store: StoreConfig{
			Path:            "logsieve.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5, // minutes
			MemoryLimitMB:   512,
			ChunkSize:       10000,
		},
		Ingest: IngestConfig{
			LogType:         "regex",
			LogPattern:      `^(?P<timestamp>\S+)\s+(?P<level>\S+)\s+(?P<message>.*)$`,
			Delimiter:       ",",
			TimestampFormat: time.RFC3339,
			Encoding:        "utf-8",
		},
		Pipeline: PipelineConfig{
			NumThreads:         0, // hardware concurrency
			InitialBatchSize:   1000,
			MinBatchSize:       100,
			MaxBatchSize:       10000,
			QueueLowWatermark:  4,
			QueueHighWatermark: 64,
		},
		Monitor: MonitorConfig{
			TableName:     "tailed_logs",
			BatchSize:     1000,
			FlushInterval: 5,
			Deduplicate:   true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, fmt.Errorf("configuration file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("failed to read configuration file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return config, fmt.Errorf("failed to parse configuration file: %w", err)
	}

	config.LoadFromEnv()

	if err := config.Validate(); err != nil {
		return config, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// LoadFromEnv loads configuration overrides from environment variables
func (c *Config) LoadFromEnv() {
	if port := os.Getenv("LOGSIEVE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if host := os.Getenv("LOGSIEVE_HOST"); host != "" {
		c.Server.Host = host
	}

	if origins := os.Getenv("LOGSIEVE_ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = strings.Split(origins, ",")
	}

	if dbPath := os.Getenv("LOGSIEVE_STORE_PATH"); dbPath != "" {
		c.Store.Path = dbPath
	}

	if maxConns := os.Getenv("LOGSIEVE_STORE_MAX_CONNS"); maxConns != "" {
		if m, err := strconv.Atoi(maxConns); err == nil {
			c.Store.MaxOpenConns = m
		}
	}

	if filePath := os.Getenv("LOGSIEVE_FILE_PATH"); filePath != "" {
		c.Ingest.FilePath = filePath
	}

	if logType := os.Getenv("LOGSIEVE_LOG_TYPE"); logType != "" {
		c.Ingest.LogType = logType
	}

	if pattern := os.Getenv("LOGSIEVE_LOG_PATTERN"); pattern != "" {
		c.Ingest.LogPattern = pattern
	}

	if threads := os.Getenv("LOGSIEVE_NUM_THREADS"); threads != "" {
		if n, err := strconv.Atoi(threads); err == nil {
			c.Pipeline.NumThreads = n
		}
	}

	if paths := os.Getenv("LOGSIEVE_MONITOR_PATHS"); paths != "" {
		c.Monitor.Paths = strings.Split(paths, ",")
		c.Monitor.Enabled = true
	}

	if logLevel := os.Getenv("LOGSIEVE_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}

	if c.Store.Path == "" {
		return fmt.Errorf("store path cannot be empty")
	}

	dbDir := filepath.Dir(c.Store.Path)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return fmt.Errorf("cannot create store directory %s: %w", dbDir, err)
	}

	if c.Store.MaxOpenConns < 1 {
		return fmt.Errorf("store max_open_conns must be at least 1")
	}

	if c.Store.ChunkSize < 1 {
		return fmt.Errorf("store chunk_size must be at least 1")
	}

	if enc := strings.ToLower(c.Ingest.Encoding); enc != "utf-8" && enc != "ascii" {
		return fmt.Errorf("unsupported encoding: %s", c.Ingest.Encoding)
	}

	if c.Pipeline.NumThreads < 0 {
		return fmt.Errorf("num_threads cannot be negative")
	}

	if c.Pipeline.MinBatchSize < 1 {
		return fmt.Errorf("min_batch_size must be at least 1")
	}

	if c.Pipeline.MaxBatchSize < c.Pipeline.MinBatchSize {
		return fmt.Errorf("max_batch_size must be >= min_batch_size")
	}

	if c.Pipeline.InitialBatchSize < c.Pipeline.MinBatchSize || c.Pipeline.InitialBatchSize > c.Pipeline.MaxBatchSize {
		return fmt.Errorf("initial_batch_size must be within [min_batch_size, max_batch_size]")
	}

	if c.Pipeline.QueueHighWatermark <= c.Pipeline.QueueLowWatermark {
		return fmt.Errorf("queue_high_watermark must be greater than queue_low_watermark")
	}

	if c.Monitor.Enabled && len(c.Monitor.Paths) == 0 {
		return fmt.Errorf("monitor enabled but no paths configured")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Logging.File != "" {
		logDir := filepath.Dir(c.Logging.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return fmt.Errorf("cannot create log directory %s: %w", logDir, err)
		}
	}

	return nil
}

// SaveToFile saves the configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	return nil
}

// GetServerAddress returns the full server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetStoreConnMaxLifetime returns the connection max lifetime as a duration
func (c *Config) GetStoreConnMaxLifetime() time.Duration {
	return time.Duration(c.Store.ConnMaxLifetime) * time.Minute
}

// GetMonitorFlushInterval returns the monitor flush interval as a duration
func (c *Config) GetMonitorFlushInterval() time.Duration {
	return time.Duration(c.Monitor.FlushInterval) * time.Second
}
