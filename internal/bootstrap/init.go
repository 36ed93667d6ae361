package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ormext/internal/container"
	"ormext/internal/extension"
	"ormext/internal/registration"
)

// Init runs the bootstrap sequence. It is idempotent.
func (a *App) Init(ctx context.Context) error {
	a.stateMu.Lock()
	if a.initialized {
		a.stateMu.Unlock()
		return nil
	}
	a.stateMu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	buildID := uuid.NewString()
	logger := a.logger.WithBuildID(buildID)

	cleanup := cleanupStack{}
	success := false
	defer func() {
		if !success {
			cleanup.run(context.Background(), logger)
		}
	}()

	if a.loggerProvider != nil {
		cleanup.push("logger provider", func(shutdownCtx context.Context) error {
			return a.loggerProvider.Shutdown(shutdownCtx, logger.Logger)
		})
	}

	meterProvider, metrics, err := initMetrics(a.cfg, logger, a.registerer)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry metrics: %w", err)
	}
	if meterProvider != nil {
		cleanup.push("meter provider", func(shutdownCtx context.Context) error {
			return meterProvider.Shutdown(shutdownCtx, logger.Logger)
		})
	}

	tracerProvider, err := initTracing(ctx, a.cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry tracing: %w", err)
	}
	if tracerProvider != nil {
		cleanup.push("tracer provider", func(shutdownCtx context.Context) error {
			return tracerProvider.Shutdown(shutdownCtx, logger.Logger)
		})
	}

	if err := registration.ValidateTables(); err != nil {
		return fmt.Errorf("invalid registration tables: %w", err)
	}
	policy, err := registration.ParsePolicy(a.cfg.Extension.ReapplyPolicy)
	if err != nil {
		return err
	}

	ext, err := extension.New(extension.Options{
		Driver:  a.cfg.Extension.Driver,
		Policy:  policy,
		Catalog: a.catalog,
		Logger:  logger.Logger,
		Metrics: metrics,
	})
	if err != nil {
		return err
	}

	builder := container.NewBuilder()
	if err := defineServices(builder, a.cfg, a.catalog, logger); err != nil {
		return fmt.Errorf("failed to define services: %w", err)
	}
	builder.AddExtension(ext)

	c, err := builder.Compile(ctx)
	if err != nil {
		return fmt.Errorf("failed to compile container: %w", err)
	}
	cleanup.push("container", func(_ context.Context) error {
		return c.Close()
	})

	plan := c.Plan()
	logger.Info("container compiled",
		slog.Int("initializers", plan.Count(container.PhaseInitialize)),
		slog.Int("setups", plan.Count(container.PhaseSetup)),
		slog.String("fingerprint", registration.Fingerprint()),
	)

	start := time.Now()
	err = c.Initialize(ctx)
	if metrics != nil {
		metrics.RecordPhase(ctx, "initialize", time.Since(start), err == nil)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}

	if a.cfg.Database.PingOnStartup {
		if err := pingConnections(ctx, a.cfg, c); err != nil {
			return fmt.Errorf("failed to verify database connections: %w", err)
		}
		logger.Info("database connections verified")
	}

	a.stateMu.Lock()
	a.buildID = buildID
	a.logger = logger
	a.meterProvider = meterProvider
	a.tracerProvider = tracerProvider
	a.metrics = metrics
	a.ext = ext
	a.container = c
	a.cleanup = cleanup
	a.initialized = true
	a.stateMu.Unlock()

	success = true
	return nil
}
