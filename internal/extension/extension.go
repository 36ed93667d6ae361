// Package extension registers the custom types and query functions into a container build.
//
// An Extension moves through three phases. During BuildPhase it schedules the
// function registrations on the single query configuration service (only when a
// target driver is configured) and the type mappings on every connection. During
// GeneratedCodeHook it adds the initializer applying the types to the catalog.
// After that it is Terminal and rejects further hooks.
package extension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ormext/internal/container"
	"ormext/internal/dbtype"
	"ormext/internal/observability"
	"ormext/internal/ormconfig"
	"ormext/internal/registration"
)

// Service kinds the extension looks for.
const (
	KindConnection         container.Kind = "dbal.connection"
	KindQueryConfiguration container.Kind = "orm.configuration"
)

// Phase is the lifecycle position of an Extension.
type Phase int

const (
	BuildPhase Phase = iota
	GeneratedCodeHook
	Terminal
)

func (p Phase) String() string {
	switch p {
	case BuildPhase:
		return "build"
	case GeneratedCodeHook:
		return "generated_code_hook"
	case Terminal:
		return "terminal"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// ErrPhaseOrder is returned when a hook runs outside its phase.
var ErrPhaseOrder = errors.New("extension: hook called out of phase order")

// Options configures an Extension.
type Options struct {
	Driver  string
	Policy  registration.Policy
	Catalog *dbtype.Catalog
	Logger  *slog.Logger
	Metrics *observability.RegistrationMetrics
}

// Stats summarizes what the extension scheduled and applied.
type Stats struct {
	Phase                string `yaml:"phase"`
	Driver               string `yaml:"driver,omitempty"`
	Policy               string `yaml:"reapply_policy"`
	ConnectionsScheduled int    `yaml:"connections_scheduled"`
	ConnectionMappings   int    `yaml:"connection_mappings"`
	FunctionsRegistered  int    `yaml:"functions_registered"`
	GlobalApplied        bool   `yaml:"global_applied"`
}

// Extension is the registration driver plugged into a container build.
type Extension struct {
	driver  string
	policy  registration.Policy
	catalog *dbtype.Catalog
	logger  *slog.Logger
	metrics *observability.RegistrationMetrics

	mu    sync.Mutex
	phase Phase
	stats Stats
}

// New validates opts and returns an Extension in BuildPhase.
func New(opts Options) (*Extension, error) {
	if err := registration.CheckDriver(opts.Driver); err != nil {
		return nil, err
	}
	if opts.Catalog == nil {
		return nil, errors.New("extension: type catalog is required")
	}
	policy := opts.Policy
	if policy == "" {
		policy = registration.Idempotent
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Extension{
		driver:  opts.Driver,
		policy:  policy,
		catalog: opts.Catalog,
		logger:  logger.With(slog.String("component", "extension")),
		metrics: opts.Metrics,
	}, nil
}

// Phase returns the current phase.
func (e *Extension) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// Stats returns a snapshot of the registration counters.
func (e *Extension) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.stats
	s.Phase = e.phase.String()
	s.Driver = e.driver
	s.Policy = string(e.policy)
	return s
}

// BeforeCompile schedules function and connection type registrations.
func (e *Extension) BeforeCompile(ctx context.Context, b *container.Builder) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase != BuildPhase {
		return fmt.Errorf("%w: before compile in %s phase", ErrPhaseOrder, e.phase)
	}

	ctx, span := startSpan(ctx, "ormext.extension.before_compile", attribute.String("ormext.driver", e.driver))
	start := time.Now()
	defer func() {
		e.finishPhase(ctx, span, BuildPhase, start, err)
	}()

	if e.driver != "" {
		def, err := b.DefinitionByKind(KindQueryConfiguration)
		if err != nil {
			return fmt.Errorf("driver %q set: %w", e.driver, err)
		}
		if err := def.AddSetup("register custom query functions", e.registerFunctions); err != nil {
			return err
		}
		e.logger.Debug("scheduled function registration", slog.String("service", def.Name))
	} else {
		e.logger.Debug("no target driver, skipping function registration")
	}

	conns := b.FindByKind(KindConnection)
	for _, def := range conns {
		if err := def.AddSetup("register type mappings", e.registerConnectionTypes); err != nil {
			return err
		}
	}
	e.stats.ConnectionsScheduled = len(conns)
	span.SetAttributes(attribute.Int("ormext.connections", len(conns)))

	e.phase = GeneratedCodeHook
	return nil
}

// AfterCompile schedules the one-time global type registration.
func (e *Extension) AfterCompile(ctx context.Context, b *container.Builder) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase != GeneratedCodeHook {
		return fmt.Errorf("%w: after compile in %s phase", ErrPhaseOrder, e.phase)
	}

	ctx, span := startSpan(ctx, "ormext.extension.after_compile")
	start := time.Now()
	defer func() {
		e.finishPhase(ctx, span, GeneratedCodeHook, start, err)
	}()

	b.AddInitializer("apply types to catalog", e.applyGlobally)
	e.phase = Terminal
	return nil
}

func (e *Extension) finishPhase(ctx context.Context, span trace.Span, phase Phase, start time.Time, err error) {
	elapsed := time.Since(start)
	if err != nil {
		recordSpanError(span, err)
		e.logger.Error("registration phase failed", slog.String("phase", phase.String()), slog.String("error", err.Error()))
	} else {
		e.logger.Info("registration phase completed", slog.String("phase", phase.String()), slog.Duration("duration", elapsed))
	}
	span.End()
	if e.metrics != nil {
		e.metrics.RecordPhase(ctx, phase.String(), elapsed, err == nil)
	}
}

func (e *Extension) registerFunctions(ctx context.Context, svc any) error {
	registrar, ok := svc.(registration.FunctionRegistrar)
	if !ok {
		return fmt.Errorf("query configuration service %T cannot register functions", svc)
	}
	n, err := registration.ApplyFunctionsIfConfigured(e.driver, registrar)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.stats.FunctionsRegistered += n
	e.mu.Unlock()

	if e.metrics != nil {
		for _, cat := range ormconfig.Categories {
			e.metrics.RecordFunctions(ctx, string(cat), len(registration.Functions(cat)))
		}
	}
	e.logger.Info("custom query functions registered", slog.Int("count", n), slog.String("driver", e.driver))
	return nil
}

func (e *Extension) registerConnectionTypes(ctx context.Context, svc any) error {
	conn, ok := svc.(registration.Connection)
	if !ok {
		return fmt.Errorf("connection service %T has no database platform", svc)
	}
	n, err := registration.ApplyToConnection(conn)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.stats.ConnectionMappings += n
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.RecordTypes(ctx, observability.ScopeConnection, registration.Override.String(), len(registration.OverridingTypes()))
		e.metrics.RecordTypes(ctx, observability.ScopeConnection, registration.New.String(), len(registration.NewTypes()))
	}
	attrs := []any{slog.Int("mappings", n)}
	if named, ok := svc.(interface{ Name() string }); ok {
		attrs = append(attrs, slog.String("connection", named.Name()))
	}
	e.logger.Debug("connection type mappings registered", attrs...)
	return nil
}

func (e *Extension) applyGlobally(ctx context.Context) (err error) {
	ctx, span := startSpan(ctx, "ormext.extension.apply_globally", attribute.String("ormext.reapply_policy", string(e.policy)))
	defer func() {
		recordSpanError(span, err)
		span.End()
	}()

	if err := registration.ApplyGlobally(e.catalog, e.policy); err != nil {
		return err
	}

	e.mu.Lock()
	e.stats.GlobalApplied = true
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.RecordTypes(ctx, observability.ScopeGlobal, registration.Override.String(), len(registration.OverridingTypes()))
		e.metrics.RecordTypes(ctx, observability.ScopeGlobal, registration.New.String(), len(registration.NewTypes()))
	}
	e.logger.Info("types applied to catalog", slog.Int("types", len(e.catalog.Names())))
	return nil
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer("ormext/extension")
	ctx, span := tracer.Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

func recordSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
