package config

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// EnvPrefix prefixes every environment variable, e.g. ORMEXT_EXTENSION_DRIVER.
const EnvPrefix = "ORMEXT"

// DefaultConnectionName names the connection configured through database.default.*.
const DefaultConnectionName = "default"

var defineFlagsOnce sync.Once

// promptPassword asks for the password of the named connection without echo.
var promptPassword = func(name string) (string, error) {
	fmt.Printf("Enter password for connection %q: ", name)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(bytePassword), nil
}

// Load loads configuration from the process command line with the following precedence:
// 1. Command line flags
// 2. Environment variables
// 3. Config file
// 4. Default values
func Load() (*Config, error) {
	defineFlagsOnce.Do(func() { defineFlags(pflag.CommandLine) })
	if !pflag.Parsed() {
		pflag.Parse()
	}
	return load(pflag.CommandLine)
}

// LoadFlags defines the configuration flags on fs, parses args and loads the configuration.
func LoadFlags(fs *pflag.FlagSet, args []string) (*Config, error) {
	defineFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return load(fs)
}

func load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// --- Config file ---
	cfgPath, _ := fs.GetString("config")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.SetConfigName("ormext")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/ormext/")
		v.AddConfigPath("$HOME/.ormext")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if cfgPath != "" {
			return nil, fmt.Errorf("failed to read config file %q: %w", cfgPath, err)
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// --- Environment variables ---
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// --- Flags ---
	bindChangedFlagsToViper(fs, v)

	var cfg Config
	if err := v.UnmarshalExact(
		&cfg,
		viper.DecodeHook(
			mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				stringToStringSliceHookFunc(","),
			),
		),
	); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := resolveConnections(&cfg.Database); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolveConnections folds the default connection into the set, then reads DSN files
// and prompts for passwords.
func resolveConnections(d *DatabaseConfig) error {
	if d.Default.DSN != "" || d.Default.DSNFile != "" {
		if d.Connections == nil {
			d.Connections = make(map[string]ConnectionConfig)
		}
		if _, exists := d.Connections[DefaultConnectionName]; exists {
			return fmt.Errorf("connection %q is configured both under database.default and database.connections", DefaultConnectionName)
		}
		d.Connections[DefaultConnectionName] = d.Default
	}

	if err := validateSingleStdinFileSource(d); err != nil {
		return err
	}

	for _, name := range d.ConnectionNames() {
		conn := d.Connections[name]
		if conn.Pool == (PoolConfig{}) {
			conn.Pool = d.Pool
		}
		if conn.DSN == "" && conn.DSNFile != "" {
			dsn, err := readSecretFile(conn.DSNFile)
			if err != nil {
				return fmt.Errorf("failed to read DSN file of connection %q: %w", name, err)
			}
			conn.DSN = dsn
		}
		if conn.PasswordPrompt {
			pwd, err := promptPassword(name)
			if err != nil {
				return fmt.Errorf("failed to read password of connection %q: %w", name, err)
			}
			dsn, err := conn.WithPassword(pwd)
			if err != nil {
				return fmt.Errorf("connection %q: %w", name, err)
			}
			conn.DSN = dsn
		}
		d.Connections[name] = conn
	}
	return nil
}

// bindChangedFlagsToViper copies only explicitly-set flags into Viper,
// preserving precedence: flags > env > file > defaults.
func bindChangedFlagsToViper(fs *pflag.FlagSet, v *viper.Viper) {
	fs.Visit(func(f *pflag.Flag) {
		if f.Name == "config" || f.Name == "version" || f.Name == "check" {
			return
		}

		switch f.Value.Type() {
		case "string":
			val, _ := fs.GetString(f.Name)
			v.Set(f.Name, val)
		case "int":
			val, _ := fs.GetInt(f.Name)
			v.Set(f.Name, val)
		case "bool":
			val, _ := fs.GetBool(f.Name)
			v.Set(f.Name, val)
		case "float64":
			val, _ := fs.GetFloat64(f.Name)
			v.Set(f.Name, val)
		case "duration":
			val, _ := fs.GetDuration(f.Name)
			v.Set(f.Name, val)
		default:
			v.Set(f.Name, f.Value.String())
		}
	})
}

// defineFlags defines all command line flags using canonical snake_case keys.
func defineFlags(fs *pflag.FlagSet) {
	// Extension flags
	fs.String("extension.driver", "", "Target database driver enabling custom query functions (mysql, pdo_mysql, pgsql, ...)")
	fs.String("extension.reapply_policy", "", "Handling of types already registered: idempotent or strict")
	fs.Bool("orm.enabled", false, "Register the query configuration service")

	// Default connection flags
	fs.String("database.default.driver", "", "Driver of the default connection (mysql, pgx, sqlite)")
	fs.String("database.default.dsn", "", "DSN of the default connection")
	fs.String("database.default.dsn_file", "", "Path to file containing the default connection DSN (use @- for stdin)")
	fs.Bool("database.default.password_prompt", false, "Prompt for the default connection password")
	fs.Int("database.pool.max_open", 0, "Maximum open connections per connection pool")
	fs.Int("database.pool.max_idle", 0, "Maximum idle connections per connection pool")
	fs.Duration("database.pool.max_lifetime", 0, "Connection max lifetime (e.g. 5m, 30s)")
	fs.Bool("database.ping_on_startup", false, "Ping every connection after initialization")
	fs.Duration("database.ping_timeout", 0, "Timeout for the startup ping")

	// Observability flags
	fs.String("observability.service_name", "", "Service name for observability")
	fs.String("observability.service_version", "", "Service version for observability")
	fs.String("observability.environment", "", "Environment name (dev, staging, prod)")
	fs.Bool("observability.metrics_enabled", false, "Enable metrics collection")
	fs.String("observability.metrics_file", "", "Write collected metrics in Prometheus text format to this file after bootstrap")
	fs.Bool("observability.tracing_enabled", false, "Enable distributed tracing")
	fs.Float64("observability.trace_sample_ratio", 0, "Trace sampling ratio from 0.0 to 1.0")
	fs.Bool("observability.sqlcommenter_enabled", false, "Inject trace context into SQL queries")

	// Logging flags (under observability)
	fs.String("observability.logging.level", "", "Log level (debug, info, warn, error)")
	fs.String("observability.logging.format", "", "Log format (json, text)")
	fs.Bool("observability.logging.exports_enabled", false, "Enable OTLP log export")

	// Global OTLP flags
	fs.String("observability.otlp.endpoint", "", "OTLP endpoint for all signals (e.g., localhost:4317)")
	fs.String("observability.otlp.protocol", "", "OTLP protocol for all signals (grpc, http/protobuf)")
	fs.Bool("observability.otlp.insecure", false, "Use insecure connection (no TLS)")
	fs.String("observability.otlp.tls_cert_file", "", "Path to TLS certificate file for server verification")
	fs.String("observability.otlp.tls_client_cert_file", "", "Path to client certificate file for mTLS")
	fs.String("observability.otlp.tls_client_key_file", "", "Path to client key file for mTLS")
	fs.Duration("observability.otlp.timeout", 0, "OTLP export timeout")
	fs.String("observability.otlp.compression", "", "OTLP compression (none, gzip)")

	fs.StringP("config", "c", "", "Config file path")
}

// setDefaults sets default values (lowest precedence).
func setDefaults(v *viper.Viper) {
	v.SetDefault("extension.driver", "")
	v.SetDefault("extension.reapply_policy", "idempotent")
	v.SetDefault("orm.enabled", true)

	v.SetDefault("database.default.driver", "mysql")
	v.SetDefault("database.default.dsn", "")
	v.SetDefault("database.default.dsn_file", "")
	v.SetDefault("database.default.password_prompt", false)
	v.SetDefault("database.pool.max_open", 10)
	v.SetDefault("database.pool.max_idle", 2)
	v.SetDefault("database.pool.max_lifetime", 5*time.Minute)
	v.SetDefault("database.ping_on_startup", false)
	v.SetDefault("database.ping_timeout", 5*time.Second)

	v.SetDefault("observability.service_name", "ormext")
	v.SetDefault("observability.service_version", "")
	v.SetDefault("observability.environment", "development")
	v.SetDefault("observability.metrics_enabled", false)
	v.SetDefault("observability.metrics_file", "")
	v.SetDefault("observability.tracing_enabled", false)
	v.SetDefault("observability.trace_sample_ratio", 1.0)
	v.SetDefault("observability.sqlcommenter_enabled", false)

	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "text")
	v.SetDefault("observability.logging.exports_enabled", false)

	v.SetDefault("observability.otlp.endpoint", "localhost:4317")
	v.SetDefault("observability.otlp.protocol", "grpc")
	v.SetDefault("observability.otlp.insecure", false)
	v.SetDefault("observability.otlp.tls_cert_file", "")
	v.SetDefault("observability.otlp.tls_client_cert_file", "")
	v.SetDefault("observability.otlp.tls_client_key_file", "")
	v.SetDefault("observability.otlp.timeout", 10*time.Second)
	v.SetDefault("observability.otlp.compression", "gzip")
}

func readSecretFile(path string) (string, error) {
	var data []byte
	var err error

	if path == "@-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func validateSingleStdinFileSource(d *DatabaseConfig) error {
	var configured []string
	for _, name := range d.ConnectionNames() {
		if strings.TrimSpace(d.Connections[name].DSNFile) == "@-" {
			configured = append(configured, "database.connections."+name+".dsn_file")
		}
	}

	if len(configured) > 1 {
		return fmt.Errorf(
			"multiple stdin-backed file settings use @- (%s); only one @- source is allowed",
			strings.Join(configured, ", "),
		)
	}
	return nil
}

func stringToStringSliceHookFunc(sep string) mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf([]string{}) {
			return data, nil
		}

		raw := strings.TrimSpace(data.(string))
		if raw == "" {
			return []string{}, nil
		}

		parts := strings.Split(raw, sep)
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, nil
	}
}
