package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Freezer is implemented by services that must reject changes once set up.
type Freezer interface {
	Freeze()
}

// Container executes a compiled plan.
type Container struct {
	defs         []*Definition
	initializers []Initializer

	mu       sync.Mutex
	services map[string]any
	order    []string

	initOnce sync.Once
	initErr  error
}

func newContainer(defs []*Definition, initializers []Initializer) *Container {
	return &Container{
		defs:         append([]*Definition(nil), defs...),
		initializers: append([]Initializer(nil), initializers...),
		services:     make(map[string]any, len(defs)),
	}
}

// Plan lists the deferred calls the container runs on Initialize.
func (c *Container) Plan() Plan {
	return buildPlan(c.defs, c.initializers)
}

// Initialize runs the initializers, then creates every service and applies its setups,
// then freezes services implementing Freezer. Only the first call does work; later
// calls return the first result.
func (c *Container) Initialize(ctx context.Context) error {
	c.initOnce.Do(func() {
		c.initErr = c.initialize(ctx)
	})
	return c.initErr
}

func (c *Container) initialize(ctx context.Context) error {
	for _, in := range c.initializers {
		if err := in.Run(ctx); err != nil {
			return fmt.Errorf("initializer %q: %w", in.Description, err)
		}
	}

	for _, def := range c.defs {
		if _, err := c.instantiate(ctx, def); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, name := range c.order {
		if f, ok := c.services[name].(Freezer); ok {
			f.Freeze()
		}
	}
	return nil
}

func (c *Container) instantiate(ctx context.Context, def *Definition) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if svc, ok := c.services[def.Name]; ok {
		return svc, nil
	}

	svc, err := def.Factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("create service %q: %w", def.Name, err)
	}
	// registered before setups run so Close still releases it if a setup fails
	c.services[def.Name] = svc
	c.order = append(c.order, def.Name)

	for _, s := range def.setups {
		if err := s.Apply(ctx, svc); err != nil {
			return nil, fmt.Errorf("service %q: setup %q: %w", def.Name, s.Description, err)
		}
	}
	return svc, nil
}

// Get returns the service named name. The container must be initialized.
func (c *Container) Get(name string) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	svc, ok := c.services[name]
	if !ok {
		return nil, fmt.Errorf("service %q: %w", name, ErrMissingService)
	}
	return svc, nil
}

// ByKind returns the created services of kind, in declaration order.
func (c *Container) ByKind(kind Kind) []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []any
	for _, def := range c.defs {
		if def.Kind != kind {
			continue
		}
		if svc, ok := c.services[def.Name]; ok {
			out = append(out, svc)
		}
	}
	return out
}

// Close closes created services implementing io.Closer, in reverse creation order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for i := len(c.order) - 1; i >= 0; i-- {
		name := c.order[i]
		if closer, ok := c.services[name].(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %q: %w", name, err))
			}
		}
	}
	c.services = make(map[string]any)
	c.order = nil
	return errors.Join(errs...)
}

// ServiceOf returns the only created service of kind, asserted to T.
func ServiceOf[T any](c *Container, kind Kind) (T, error) {
	var zero T
	services := c.ByKind(kind)
	switch len(services) {
	case 0:
		return zero, fmt.Errorf("service of kind %q: %w", kind, ErrMissingService)
	case 1:
	default:
		return zero, fmt.Errorf("%d services of kind %q: %w", len(services), kind, ErrAmbiguousService)
	}
	svc, ok := services[0].(T)
	if !ok {
		return zero, fmt.Errorf("service of kind %q is %T, not %T", kind, services[0], zero)
	}
	return svc, nil
}

// ServicesOf returns every created service of kind asserted to T.
func ServicesOf[T any](c *Container, kind Kind) ([]T, error) {
	var out []T
	for _, svc := range c.ByKind(kind) {
		typed, ok := svc.(T)
		if !ok {
			var zero T
			return nil, fmt.Errorf("service of kind %q is %T, not %T", kind, svc, zero)
		}
		out = append(out, typed)
	}
	return out, nil
}
