package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"ormext/internal/observability"
	"ormext/internal/registration"
)

// ValidationError represents a configuration validation error with context.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// ValidationResult contains the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error returns a combined error message if there are validation errors.
func (r *ValidationResult) Error() string {
	if !r.HasErrors() {
		return ""
	}
	var msgs []string
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasError reports whether an error was recorded for field.
func (r *ValidationResult) HasError(field string) bool {
	for _, e := range r.Errors {
		if e.Field == field {
			return true
		}
	}
	return false
}

// Validate checks the configuration for errors and returns validation results.
// It returns both errors (fatal) and warnings (non-fatal issues).
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}

	c.Extension.validate(result)
	if c.Extension.Driver != "" && !c.ORM.Enabled {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "orm.enabled",
			Message: "extension.driver is set but the query configuration service is disabled",
			Hint:    "enable orm.enabled or clear extension.driver",
		})
	}
	c.Database.validate(result)
	c.Observability.validate(result)

	return result
}

func (e *ExtensionConfig) validate(result *ValidationResult) {
	if err := registration.CheckDriver(e.Driver); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "extension.driver",
			Message: fmt.Sprintf("invalid driver %q", e.Driver),
			Hint:    "valid values are: " + strings.Join(registration.Drivers(), ", ") + " (or empty to disable functions)",
		})
	}
	if _, err := registration.ParsePolicy(e.ReapplyPolicy); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "extension.reapply_policy",
			Message: fmt.Sprintf("invalid reapply policy %q", e.ReapplyPolicy),
			Hint:    "valid values are: idempotent, strict",
		})
	}
}

func (d *DatabaseConfig) validate(result *ValidationResult) {
	if len(d.Connections) == 0 {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "database.connections",
			Message: "no connections configured",
			Hint:    "types are still registered in the catalog but no platform receives mappings",
		})
	}

	for _, name := range d.ConnectionNames() {
		d.Connections[name].validate("database.connections."+name, result)
	}

	if d.PingTimeout < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.ping_timeout",
			Message: "ping_timeout cannot be negative",
		})
	}
}

func (c ConnectionConfig) validate(prefix string, result *ValidationResult) {
	if _, ok := c.Family(); !ok {
		result.Errors = append(result.Errors, ValidationError{
			Field:   prefix + ".driver",
			Message: fmt.Sprintf("unsupported driver %q", c.Driver),
			Hint:    "valid values are: mysql, pgx, postgres, sqlite",
		})
	} else if err := c.CheckDSN(); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   prefix + ".dsn",
			Message: fmt.Sprintf("invalid dsn: %v", err),
			Hint:    "set dsn or dsn_file to a DSN accepted by the driver",
		})
	}

	if c.Pool.MaxOpen < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   prefix + ".pool.max_open",
			Message: "max_open cannot be negative",
		})
	}
	if c.Pool.MaxIdle < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   prefix + ".pool.max_idle",
			Message: "max_idle cannot be negative",
		})
	}
	if c.Pool.MaxIdle > c.Pool.MaxOpen && c.Pool.MaxOpen > 0 {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   prefix + ".pool.max_idle",
			Message: "max_idle is greater than max_open",
			Hint:    "idle connections will be limited to max_open",
		})
	}
}

func (o *ObservabilityConfig) validate(result *ValidationResult) {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[o.Logging.Level] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.logging.level",
			Message: fmt.Sprintf("invalid log level %q", o.Logging.Level),
			Hint:    "valid values are: debug, info, warn, error",
		})
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[o.Logging.Format] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.logging.format",
			Message: fmt.Sprintf("invalid log format %q", o.Logging.Format),
			Hint:    "valid values are: json, text",
		})
	}

	if o.TraceSampleRatio < 0 || o.TraceSampleRatio > 1 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.trace_sample_ratio",
			Message: fmt.Sprintf("trace_sample_ratio %v is outside 0.0-1.0", o.TraceSampleRatio),
		})
	}

	if o.SQLCommenterEnabled && !o.TracingEnabled {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "observability.sqlcommenter_enabled",
			Message: "sqlcommenter has no trace context to inject while tracing is disabled",
		})
	}

	if o.MetricsFile != "" && !o.MetricsEnabled {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "observability.metrics_file",
			Message: "metrics_file is set but metrics are disabled",
			Hint:    "set observability.metrics_enabled to write the file",
		})
	}

	o.OTLP.validate("observability.otlp", result)
	if o.Traces != nil {
		o.Traces.validate("observability.traces", result)
	}
	if o.Logs != nil {
		o.Logs.validate("observability.logs", result)
	}
}

func (o *OTLPConfig) validate(prefix string, result *ValidationResult) {
	protocol, err := observability.ParseOTLPProtocol(o.Protocol)
	if err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   prefix + ".protocol",
			Message: err.Error(),
			Hint:    "valid values are: grpc, http/protobuf",
		})
	} else if protocol == "http/protobuf" && !validOTLPEndpoint(o.Endpoint) {
		result.Errors = append(result.Errors, ValidationError{
			Field:   prefix + ".endpoint",
			Message: fmt.Sprintf("invalid OTLP endpoint %q for http/protobuf", o.Endpoint),
			Hint:    "use host:port or a full URL",
		})
	}

	validCompressions := map[string]bool{"": true, "none": true, "gzip": true}
	if !validCompressions[o.Compression] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   prefix + ".compression",
			Message: fmt.Sprintf("invalid OTLP compression %q", o.Compression),
			Hint:    "valid values are: none, gzip",
		})
	}
}

func validOTLPEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	if strings.Contains(endpoint, "://") {
		parsed, err := url.Parse(endpoint)
		if err != nil {
			return false
		}
		return parsed.Host != ""
	}
	_, _, err := net.SplitHostPort(endpoint)
	return err == nil
}
