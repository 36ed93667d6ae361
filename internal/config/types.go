package config

import (
	"maps"
	"slices"
	"time"
)

// Config holds the application configuration.
type Config struct {
	Extension     ExtensionConfig     `mapstructure:"extension"`
	ORM           ORMConfig           `mapstructure:"orm"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// ExtensionConfig controls what the registration extension contributes.
type ExtensionConfig struct {
	// Driver is the target database driver. Empty disables custom function registration.
	Driver string `mapstructure:"driver"`
	// ReapplyPolicy is "idempotent" or "strict"; see registration.Policy.
	ReapplyPolicy string `mapstructure:"reapply_policy"`
}

// ORMConfig controls the query configuration service.
type ORMConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// PoolConfig holds connection pool parameters.
type PoolConfig struct {
	MaxOpen     int           `mapstructure:"max_open"`
	MaxIdle     int           `mapstructure:"max_idle"`
	MaxLifetime time.Duration `mapstructure:"max_lifetime"`
}

// ConnectionConfig describes one named database connection.
type ConnectionConfig struct {
	// Driver names the database family: mysql, pgx/postgres or sqlite.
	Driver string `mapstructure:"driver"`
	// DSN is passed to the driver as is, apart from an interactively entered password.
	DSN string `mapstructure:"dsn"`
	// DSNFile is a path to a file containing the DSN. "@-" reads stdin.
	DSNFile string `mapstructure:"dsn_file"`
	// PasswordPrompt asks for the password on the terminal and injects it into the DSN.
	PasswordPrompt bool       `mapstructure:"password_prompt"`
	Pool           PoolConfig `mapstructure:"pool"`
}

// DatabaseConfig holds the connection set.
type DatabaseConfig struct {
	Connections map[string]ConnectionConfig `mapstructure:"connections"`
	// Default is a shorthand for a connection named "default", settable from flags and env.
	Default ConnectionConfig `mapstructure:"default"`
	// Pool applies to every connection without pool settings of its own.
	Pool PoolConfig `mapstructure:"pool"`
	// PingOnStartup checks every connection once the container is initialized.
	PingOnStartup bool          `mapstructure:"ping_on_startup"`
	PingTimeout   time.Duration `mapstructure:"ping_timeout"`
}

// ConnectionNames returns the configured connection names in sorted order.
func (d *DatabaseConfig) ConnectionNames() []string {
	return slices.Sorted(maps.Keys(d.Connections))
}

// LoggingConfig holds logging parameters.
type LoggingConfig struct {
	Level          string `mapstructure:"level"`           // debug, info, warn, error
	Format         string `mapstructure:"format"`          // json, text
	ExportsEnabled bool   `mapstructure:"exports_enabled"` // Enable OTLP log export
}

// ObservabilityConfig holds observability parameters.
type ObservabilityConfig struct {
	ServiceName         string        `mapstructure:"service_name"`
	ServiceVersion      string        `mapstructure:"service_version"`
	Environment         string        `mapstructure:"environment"`
	MetricsEnabled      bool          `mapstructure:"metrics_enabled"`
	MetricsFile         string        `mapstructure:"metrics_file"`
	TracingEnabled      bool          `mapstructure:"tracing_enabled"`
	TraceSampleRatio    float64       `mapstructure:"trace_sample_ratio"`
	SQLCommenterEnabled bool          `mapstructure:"sqlcommenter_enabled"`
	Logging             LoggingConfig `mapstructure:"logging"`

	// Global OTLP settings (defaults for all signals)
	OTLP OTLPConfig `mapstructure:"otlp"`

	// Signal-specific overrides (optional)
	Traces *OTLPConfig `mapstructure:"traces,omitempty"`
	Logs   *OTLPConfig `mapstructure:"logs,omitempty"`
}

// OTLPConfig holds OTLP exporter configuration
type OTLPConfig struct {
	Endpoint          string            `mapstructure:"endpoint"`
	Protocol          string            `mapstructure:"protocol"` // "grpc", "http/protobuf"
	Insecure          bool              `mapstructure:"insecure"`
	TLSCertFile       string            `mapstructure:"tls_cert_file"`
	TLSClientCertFile string            `mapstructure:"tls_client_cert_file"`
	TLSClientKeyFile  string            `mapstructure:"tls_client_key_file"`
	Headers           map[string]string `mapstructure:"headers"`
	Timeout           time.Duration     `mapstructure:"timeout"`
	Compression       string            `mapstructure:"compression"` // "none", "gzip"
}

// TracesConfig returns the effective OTLP config for traces
func (c *ObservabilityConfig) TracesConfig() OTLPConfig {
	if c.Traces != nil {
		return mergeOTLPConfigs(c.OTLP, *c.Traces)
	}
	return c.OTLP
}

// LogsConfig returns the effective OTLP config for logs
func (c *ObservabilityConfig) LogsConfig() OTLPConfig {
	if c.Logs != nil {
		return mergeOTLPConfigs(c.OTLP, *c.Logs)
	}
	return c.OTLP
}

// mergeOTLPConfigs lays the non-empty fields of override over base
func mergeOTLPConfigs(base OTLPConfig, override OTLPConfig) OTLPConfig {
	result := base

	if override.Endpoint != "" {
		result.Endpoint = override.Endpoint
	}
	if override.Protocol != "" {
		result.Protocol = override.Protocol
	}
	// a present override block always decides Insecure
	result.Insecure = override.Insecure

	if override.TLSCertFile != "" {
		result.TLSCertFile = override.TLSCertFile
	}
	if override.TLSClientCertFile != "" {
		result.TLSClientCertFile = override.TLSClientCertFile
	}
	if override.TLSClientKeyFile != "" {
		result.TLSClientKeyFile = override.TLSClientKeyFile
	}
	if override.Headers != nil {
		result.Headers = make(map[string]string, len(base.Headers)+len(override.Headers))
		maps.Copy(result.Headers, base.Headers)
		maps.Copy(result.Headers, override.Headers)
	}
	if override.Timeout != 0 {
		result.Timeout = override.Timeout
	}
	if override.Compression != "" {
		result.Compression = override.Compression
	}

	return result
}
