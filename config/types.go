package config

import (
	"fmt"
	"time"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Backend       BackendConfig       `mapstructure:"backend"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Nats          NatsConfig          `mapstructure:"nats"`
	Locks         LocksConfig         `mapstructure:"locks"`
	Health        HealthConfig        `mapstructure:"health"`
	Ops           OpsConfig           `mapstructure:"ops"`
	Shutdown      ShutdownConfig      `mapstructure:"shutdown"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

type ServerConfig struct {
	// Name and Version identify this server to MCP clients.
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// BackendConfig describes the admin backend that owns all durable
// task/project/sprint state. The server is a client of this API.
type BackendConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`

	// TimeoutMs bounds every outbound call. Zero means 10000.
	TimeoutMs int `mapstructure:"timeout_ms"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	PoolSize int    `mapstructure:"pool_size"`
}

type NatsConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

type LocksConfig struct {
	// TTL is how long an acquired lock is held before redis expires it.
	TTL time.Duration `mapstructure:"ttl"`

	// SweepInterval controls how often the expiry sweep runs.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type HealthConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

// OpsConfig configures the internal HTTP endpoint serving health and
// Prometheus metrics. It is never exposed publicly.
type OpsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

type ShutdownConfig struct {
	// Timeout is the global budget for the whole cleanup sequence.
	Timeout time.Duration `mapstructure:"timeout"`
}

type ObservabilityConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	ServiceName    string  `mapstructure:"service_name"`
	ServiceVersion string  `mapstructure:"service_version"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	OTLPInsecure   bool    `mapstructure:"otlp_insecure"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

type LoggingConfig struct {
	Level  string              `mapstructure:"level"`
	Format string              `mapstructure:"format"`
	Output LoggingOutputConfig `mapstructure:"output"`
}

type LoggingOutputConfig struct {
	// Stderr is the default sink. Stdout carries MCP protocol frames and
	// must never receive diagnostics.
	Stderr bool             `mapstructure:"stderr"`
	File   LogFileConfig    `mapstructure:"file"`
	Loki   LokiOutputConfig `mapstructure:"loki"`
}

type LogFileConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type LokiOutputConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// Validate checks the parts of the config that have no safe default.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if c.Ops.Enabled && (c.Ops.Port <= 0 || c.Ops.Port > 65535) {
		return fmt.Errorf("ops.port must be a valid port, got %d", c.Ops.Port)
	}
	if c.Observability.SamplingRate < 0 || c.Observability.SamplingRate > 1 {
		return fmt.Errorf("observability.sampling_rate must be in [0,1], got %f", c.Observability.SamplingRate)
	}
	return nil
}

// ApplyDefaults fills zero values that have sensible defaults so the rest
// of the code never re-checks them.
func (c *Config) ApplyDefaults() {
	if c.Server.Name == "" {
		c.Server.Name = "tasklane"
	}
	if c.Server.Version == "" {
		c.Server.Version = "dev"
	}
	if c.Server.Environment == "" {
		c.Server.Environment = "development"
	}
	if c.Backend.TimeoutMs <= 0 {
		c.Backend.TimeoutMs = 10_000
	}
	if c.Locks.TTL <= 0 {
		c.Locks.TTL = 30 * time.Second
	}
	if c.Locks.SweepInterval <= 0 {
		c.Locks.SweepInterval = 5 * time.Second
	}
	if c.Health.Interval <= 0 {
		c.Health.Interval = 15 * time.Second
	}
	if c.Health.ProbeTimeout <= 0 {
		c.Health.ProbeTimeout = 3 * time.Second
	}
	if c.Shutdown.Timeout <= 0 {
		c.Shutdown.Timeout = 30 * time.Second
	}
	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = c.Server.Name
	}
	if c.Observability.ServiceVersion == "" {
		c.Observability.ServiceVersion = c.Server.Version
	}
}
