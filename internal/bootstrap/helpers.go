package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"ormext/internal/config"
	"ormext/internal/container"
	"ormext/internal/dbconn"
	"ormext/internal/dbtype"
	"ormext/internal/extension"
	"ormext/internal/logging"
	"ormext/internal/observability"
	"ormext/internal/ormconfig"
)

// QueryConfigurationService names the query configuration definition.
const QueryConfigurationService = "orm.configuration"

// ConnectionServicePrefix prefixes connection definition names.
const ConnectionServicePrefix = "dbal.connection."

// InitLogger creates the process logger and, when log export is enabled, the OTLP logger provider.
// Records go to stderr so stdout stays free for the report.
func InitLogger(ctx context.Context, cfg *config.Config) (*logging.Logger, *observability.LoggerProvider, error) {
	loggerCfg := logging.Config{
		Level:       cfg.Observability.Logging.Level,
		Format:      cfg.Observability.Logging.Format,
		ServiceName: cfg.Observability.ServiceName,
		Output:      os.Stderr,
	}
	logger := logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)

	if !cfg.Observability.Logging.ExportsEnabled {
		return logger, nil, nil
	}

	logsConfig := cfg.Observability.LogsConfig()
	logger.Info("initializing OpenTelemetry logging",
		slog.String("service_name", cfg.Observability.ServiceName),
		slog.String("otlp_endpoint", logsConfig.Endpoint),
		slog.String("otlp_protocol", logsConfig.Protocol),
		slog.Bool("insecure", logsConfig.Insecure),
	)

	loggerProvider, err := observability.InitLoggerProvider(ctx, otelConfig(cfg, logsConfig, nil))
	if err != nil {
		return nil, nil, err
	}

	loggerCfg.LoggerProvider = loggerProvider.Provider()
	logger = logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)
	logger.Info("OpenTelemetry logging initialized successfully")

	return logger, loggerProvider, nil
}

func otelConfig(cfg *config.Config, otlp config.OTLPConfig, reg prometheus.Registerer) observability.Config {
	return observability.Config{
		ServiceName:      cfg.Observability.ServiceName,
		ServiceVersion:   cfg.Observability.ServiceVersion,
		Environment:      cfg.Observability.Environment,
		TraceSampleRatio: cfg.Observability.TraceSampleRatio,
		Registerer:       reg,
		OTLP: observability.OTLPConfig{
			Endpoint:       otlp.Endpoint,
			Protocol:       otlp.Protocol,
			Insecure:       otlp.Insecure,
			CAFile:         otlp.TLSCertFile,
			ClientCertFile: otlp.TLSClientCertFile,
			ClientKeyFile:  otlp.TLSClientKeyFile,
			Headers:        otlp.Headers,
			Timeout:        otlp.Timeout,
			Gzip:           otlp.Compression == "gzip",
		},
	}
}

func initMetrics(cfg *config.Config, logger *logging.Logger, reg prometheus.Registerer) (*observability.MeterProvider, *observability.RegistrationMetrics, error) {
	if !cfg.Observability.MetricsEnabled {
		return nil, nil, nil
	}

	logger.Info("initializing OpenTelemetry metrics",
		slog.String("service_name", cfg.Observability.ServiceName),
		slog.String("environment", cfg.Observability.Environment),
	)

	meterProvider, err := observability.InitMeterProvider(otelConfig(cfg, config.OTLPConfig{}, reg))
	if err != nil {
		return nil, nil, err
	}

	metrics, err := observability.InitRegistrationMetrics(logger.Logger)
	if err != nil {
		_ = meterProvider.Shutdown(context.Background(), logger.Logger)
		return nil, nil, err
	}
	return meterProvider, metrics, nil
}

func initTracing(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*observability.TracerProvider, error) {
	if !cfg.Observability.TracingEnabled {
		return nil, nil
	}

	tracesConfig := cfg.Observability.TracesConfig()
	logger.Info("initializing OpenTelemetry tracing",
		slog.String("service_name", cfg.Observability.ServiceName),
		slog.String("otlp_endpoint", tracesConfig.Endpoint),
		slog.String("otlp_protocol", tracesConfig.Protocol),
		slog.Bool("insecure", tracesConfig.Insecure),
	)

	tracerProvider, err := observability.InitTracerProvider(ctx, otelConfig(cfg, tracesConfig, nil))
	if err != nil {
		return nil, err
	}

	logger.Info("OpenTelemetry tracing initialized successfully")
	return tracerProvider, nil
}

// defineServices adds the connection and query configuration definitions to b.
func defineServices(b *container.Builder, cfg *config.Config, catalog *dbtype.Catalog, logger *logging.Logger) error {
	opts := dbconn.Options{
		Metrics:      cfg.Observability.MetricsEnabled,
		Tracing:      cfg.Observability.TracingEnabled,
		SQLCommenter: cfg.Observability.SQLCommenterEnabled,
		Logger:       logger.Logger,
	}

	for _, name := range cfg.Database.ConnectionNames() {
		connCfg := cfg.Database.Connections[name]
		dbCfg := dbconn.Config{
			Name:            name,
			Driver:          connCfg.Driver,
			DSN:             connCfg.DSN,
			MaxOpenConns:    connCfg.Pool.MaxOpen,
			MaxIdleConns:    connCfg.Pool.MaxIdle,
			ConnMaxLifetime: connCfg.Pool.MaxLifetime,
		}
		err := b.Add(&container.Definition{
			Name: ConnectionServicePrefix + name,
			Kind: extension.KindConnection,
			Factory: func(context.Context) (any, error) {
				return dbconn.Open(dbCfg, catalog, opts)
			},
		})
		if err != nil {
			return err
		}
	}

	if !cfg.ORM.Enabled {
		return nil
	}
	return b.Add(&container.Definition{
		Name: QueryConfigurationService,
		Kind: extension.KindQueryConfiguration,
		Factory: func(context.Context) (any, error) {
			return ormconfig.NewConfiguration(), nil
		},
	})
}

func pingConnections(ctx context.Context, cfg *config.Config, c *container.Container) error {
	conns, err := container.ServicesOf[*dbconn.Connection](c, extension.KindConnection)
	if err != nil {
		return err
	}
	if len(conns) == 0 {
		return nil
	}
	if cfg.Database.PingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Database.PingTimeout)
		defer cancel()
	}
	if err := dbconn.PingAll(ctx, conns); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}
