package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"ormext/internal/bootstrap"
	"ormext/internal/config"
	"ormext/internal/logging"
	"ormext/internal/observability"
)

var (
	// Version is set at build time via -ldflags "-X main.Version=...".
	Version = "dev"
	Commit  = "none"
)

func main() {
	if err := run(); err != nil {
		slog.Error("bootstrap error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	pflag.Bool("version", false, "Print version and exit")
	pflag.Bool("check", false, "Validate the configuration and exit without bootstrapping")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if showVersion, _ := pflag.CommandLine.GetBool("version"); showVersion {
		fmt.Printf("ormext %s (%s)\n", Version, Commit)
		return nil
	}

	if cfg.Observability.ServiceVersion == "" {
		cfg.Observability.ServiceVersion = Version
	}

	if err := checkConfig(cfg); err != nil {
		return err
	}
	if checkOnly, _ := pflag.CommandLine.GetBool("check"); checkOnly {
		slog.Info("configuration is valid")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, loggerProvider, err := bootstrap.InitLogger(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	return execute(ctx, cfg, logger, loggerProvider, os.Stdout)
}

// execute bootstraps the registrations, writes the report to out and, when configured,
// the collected metrics to the metrics file.
func execute(ctx context.Context, cfg *config.Config, logger *logging.Logger, loggerProvider *observability.LoggerProvider, out io.Writer) error {
	registry := prometheus.NewRegistry()
	app, err := bootstrap.New(cfg, logger, bootstrap.WithRegisterer(registry))
	if err != nil {
		if loggerProvider != nil {
			_ = loggerProvider.Shutdown(context.Background(), logger.Logger)
		}
		return err
	}
	app.AttachLoggerProvider(loggerProvider)
	defer func() { _ = app.Shutdown(context.Background()) }()

	if err := app.Init(ctx); err != nil {
		return err
	}

	report, err := app.Report()
	if err != nil {
		return err
	}
	if err := writeReport(out, report); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if path := cfg.Observability.MetricsFile; path != "" && cfg.Observability.MetricsEnabled {
		if err := prometheus.WriteToTextfile(path, registry); err != nil {
			return fmt.Errorf("failed to write metrics file: %w", err)
		}
		logger.Info("metrics written", slog.String("path", path))
	}

	logger.Info("bootstrap complete",
		slog.Int("types", len(report.Types)),
		slog.Int("connections", len(report.Connections)),
		slog.Int("functions", report.Extension.FunctionsRegistered),
	)
	return nil
}

// checkConfig logs validation warnings and errors, failing on any error.
func checkConfig(cfg *config.Config) error {
	validationResult := cfg.Validate()
	for _, warn := range validationResult.Warnings {
		slog.Warn("configuration warning",
			slog.String("field", warn.Field),
			slog.String("message", warn.Message),
			slog.String("hint", warn.Hint),
		)
	}
	if validationResult.HasErrors() {
		for _, err := range validationResult.Errors {
			slog.Error("configuration error",
				slog.String("field", err.Field),
				slog.String("message", err.Message),
				slog.String("hint", err.Hint),
			)
		}
		return fmt.Errorf("configuration validation failed")
	}
	return nil
}

func writeReport(w io.Writer, report *bootstrap.Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return err
	}
	return enc.Close()
}
