package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Registration scopes.
const (
	ScopeConnection = "connection"
	ScopeGlobal     = "global"
)

// RegistrationMetrics counts type and function registrations and times bootstrap phases.
type RegistrationMetrics struct {
	typesCounter     metric.Int64Counter
	functionsCounter metric.Int64Counter
	phaseHist        metric.Float64Histogram
	lastGlobalApply  atomic.Int64
}

// InitRegistrationMetrics initializes registration metrics on the global meter provider.
func InitRegistrationMetrics(logger *slog.Logger) (*RegistrationMetrics, error) {
	meter := otel.Meter("ormext")

	typesCounter, err := meter.Int64Counter(
		"ormext.types.registered",
		metric.WithDescription("Number of type registrations applied"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create type registration counter: %w", err)
	}

	functionsCounter, err := meter.Int64Counter(
		"ormext.functions.registered",
		metric.WithDescription("Number of custom query functions registered"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create function registration counter: %w", err)
	}

	phaseHist, err := meter.Float64Histogram(
		"ormext.bootstrap.phase.duration",
		metric.WithDescription("Duration of registration phases in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create phase duration histogram: %w", err)
	}

	lastApplyGauge, err := meter.Int64ObservableGauge(
		"ormext.types.last_global_apply_unix",
		metric.WithDescription("Unix timestamp of the last global type registration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create last global apply gauge: %w", err)
	}

	metrics := &RegistrationMetrics{
		typesCounter:     typesCounter,
		functionsCounter: functionsCounter,
		phaseHist:        phaseHist,
	}

	_, err = meter.RegisterCallback(
		func(ctx context.Context, observer metric.Observer) error {
			if value := metrics.lastGlobalApply.Load(); value > 0 {
				observer.ObserveInt64(lastApplyGauge, value)
			}
			return nil
		},
		lastApplyGauge,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register last global apply gauge callback: %w", err)
	}

	if logger != nil {
		logger.Info("registration metrics initialized")
	}
	return metrics, nil
}

// RecordTypes records count type registrations of mode within scope.
func (m *RegistrationMetrics) RecordTypes(ctx context.Context, scope, mode string, count int) {
	m.typesCounter.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("mode", mode),
	))
	if scope == ScopeGlobal {
		m.lastGlobalApply.Store(time.Now().Unix())
	}
}

// RecordFunctions records count function registrations of category.
func (m *RegistrationMetrics) RecordFunctions(ctx context.Context, category string, count int) {
	m.functionsCounter.Add(ctx, int64(count), metric.WithAttributes(attribute.String("category", category)))
}

// RecordPhase records how long a registration phase took.
func (m *RegistrationMetrics) RecordPhase(ctx context.Context, phase string, duration time.Duration, success bool) {
	m.phaseHist.Record(ctx, float64(duration.Microseconds())/1000, metric.WithAttributes(
		attribute.String("phase", phase),
		attribute.Bool("success", success),
	))
}
