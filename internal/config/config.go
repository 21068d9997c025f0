// Package config provides configuration management for dvrtsdecode using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort          = 8080
	defaultServerTimeout       = 30 * time.Second
	defaultShutdownTimeout     = 10 * time.Second
	defaultMaxOpenConns        = 10
	defaultMaxIdleConns        = 5
	defaultConnMaxIdleTime     = 30 * time.Minute
	defaultRingBufferCapacity  = 16 * 1024 * 1024
	defaultRingBufferMaxPull   = 64 * 1024
	defaultRingCompactionRatio = 0.9
	defaultScratchPackets      = 10
	defaultWatchInterval       = "*/5 * * * *"
	defaultDiagnosticsDir      = "./data/diagnostics"
	defaultHistoryExportDir    = "./data/history-export"
)

// Config holds all configuration for the application.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Decode      DecodeConfig      `mapstructure:"decode"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics"`
	Sink        SinkConfig        `mapstructure:"sink"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// ServerConfig holds HTTP server configuration for the job-status API.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig holds the decode-history ledger connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// StorageConfig holds file storage configuration.
type StorageConfig struct {
	BaseDir   string `mapstructure:"base_dir"`
	OutputDir string `mapstructure:"output_dir"`
	TempDir   string `mapstructure:"temp_dir"`
	WatchDir  string `mapstructure:"watch_dir"` // scanned by the scheduler for new container files
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// DecodeConfig holds tuning knobs for the transport-stream reassembly engine.
type DecodeConfig struct {
	// RingBufferCapacity is the initial byte capacity of the producer/consumer ring buffer.
	RingBufferCapacity ByteSize `mapstructure:"ring_buffer_capacity"`
	// RingBufferMaxPull bounds how many bytes the producer pulls from the source per fill.
	RingBufferMaxPull ByteSize `mapstructure:"ring_buffer_max_pull"`
	// RingBufferCompactionRatio is the read_pos/capacity threshold that triggers compaction.
	RingBufferCompactionRatio float64 `mapstructure:"ring_buffer_compaction_ratio"`
	// ScratchPackets is loaded and validated (at least 1) but not read by the
	// decode pipeline: the per-PID pending limit is fixed at ten packets in tsprocess.
	ScratchPackets int `mapstructure:"scratch_packets"`
	// FailFast is loaded from configuration but not read by the decode
	// pipeline: a rejected packet group always ends the whole decode job.
	FailFast bool `mapstructure:"fail_fast"`
}

// SchedulerConfig holds watch-folder scheduling configuration.
type SchedulerConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	CronSchedule     string `mapstructure:"cron_schedule"`
	CatchupOnStartup bool   `mapstructure:"catchup_on_startup"`
}

// DiagnosticsConfig holds configuration for rejected packet-group dumps.
type DiagnosticsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Directory string `mapstructure:"directory"`
}

// SinkConfig selects and configures where cleartext transport-stream output is written.
type SinkConfig struct {
	Type     string         `mapstructure:"type"` // file, s3
	S3       S3SinkConfig   `mapstructure:"s3"`
	HistoryExportDir string `mapstructure:"history_export_dir"`
}

// S3SinkConfig configures the S3 output sink.
type S3SinkConfig struct {
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// MetricsConfig holds Prometheus metrics exposition configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with DVRTSDECODE_ and use underscores for nesting.
// Example: DVRTSDECODE_SERVER_PORT=8080.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("dvrtsdecode")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/dvrtsdecode")
		v.AddConfigPath("$HOME/.dvrtsdecode")
	}

	v.SetEnvPrefix("DVRTSDECODE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "dvrtsdecode.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	// Storage defaults
	v.SetDefault("storage.base_dir", "./data")
	v.SetDefault("storage.output_dir", "output")
	v.SetDefault("storage.temp_dir", "temp")
	v.SetDefault("storage.watch_dir", "./data/incoming")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Decode defaults
	v.SetDefault("decode.ring_buffer_capacity", defaultRingBufferCapacity)
	v.SetDefault("decode.ring_buffer_max_pull", defaultRingBufferMaxPull)
	v.SetDefault("decode.ring_buffer_compaction_ratio", defaultRingCompactionRatio)
	v.SetDefault("decode.scratch_packets", defaultScratchPackets)
	v.SetDefault("decode.fail_fast", false)

	// Scheduler defaults
	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.cron_schedule", defaultWatchInterval)
	v.SetDefault("scheduler.catchup_on_startup", true)

	// Diagnostics defaults
	v.SetDefault("diagnostics.enabled", true)
	v.SetDefault("diagnostics.directory", defaultDiagnosticsDir)

	// Sink defaults
	v.SetDefault("sink.type", "file")
	v.SetDefault("sink.history_export_dir", defaultHistoryExportDir)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Decode.RingBufferCapacity.Bytes() < 188 {
		return fmt.Errorf("decode.ring_buffer_capacity must be at least one TS packet")
	}
	if c.Decode.RingBufferCompactionRatio <= 0 || c.Decode.RingBufferCompactionRatio >= 1 {
		return fmt.Errorf("decode.ring_buffer_compaction_ratio must be between 0 and 1")
	}
	if c.Decode.ScratchPackets < 1 {
		return fmt.Errorf("decode.scratch_packets must be at least 1")
	}

	validSinks := map[string]bool{"file": true, "s3": true}
	if !validSinks[c.Sink.Type] {
		return fmt.Errorf("sink.type must be one of: file, s3")
	}
	if c.Sink.Type == "s3" && c.Sink.S3.Bucket == "" {
		return fmt.Errorf("sink.s3.bucket is required when sink.type is s3")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// OutputPath returns the full path to the output directory.
func (c *StorageConfig) OutputPath() string {
	return fmt.Sprintf("%s/%s", c.BaseDir, c.OutputDir)
}

// TempPath returns the full path to the temp directory.
func (c *StorageConfig) TempPath() string {
	return fmt.Sprintf("%s/%s", c.BaseDir, c.TempDir)
}
