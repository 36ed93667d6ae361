// Package bootstrap runs the explicit start-up sequence: observability, connection
// definitions, container compilation with the registration extension, and initialization.
package bootstrap

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"ormext/internal/config"
	"ormext/internal/container"
	"ormext/internal/dbtype"
	"ormext/internal/extension"
	"ormext/internal/logging"
	"ormext/internal/observability"
)

// App owns the resources of one bootstrap run.
type App struct {
	cfg        *config.Config
	logger     *logging.Logger
	catalog    *dbtype.Catalog
	registerer prometheus.Registerer

	loggerProvider *observability.LoggerProvider

	buildID        string
	meterProvider  *observability.MeterProvider
	tracerProvider *observability.TracerProvider
	metrics        *observability.RegistrationMetrics
	ext            *extension.Extension
	container      *container.Container

	cleanup cleanupStack

	stateMu     sync.Mutex
	initialized bool

	shutdownOnce sync.Once
}

// Option customizes an App.
type Option func(*App)

// WithCatalog makes the App register types into catalog instead of a fresh one.
func WithCatalog(catalog *dbtype.Catalog) Option {
	return func(a *App) { a.catalog = catalog }
}

// WithRegisterer sends Prometheus collectors to reg instead of the default registerer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(a *App) { a.registerer = reg }
}

// New creates an App lifecycle wrapper.
func New(cfg *config.Config, logger *logging.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	a := &App{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	if a.catalog == nil {
		a.catalog = dbtype.NewCatalog()
	}
	return a, nil
}

// AttachLoggerProvider registers an optional logger provider for shutdown cleanup.
func (a *App) AttachLoggerProvider(provider *observability.LoggerProvider) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.loggerProvider = provider
}

// Catalog returns the type catalog the App registers into.
func (a *App) Catalog() *dbtype.Catalog {
	return a.catalog
}

// Container returns the initialized container, or nil before Init succeeds.
func (a *App) Container() *container.Container {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.container
}
