// Package container is a small service container with an explicit two-step lifecycle.
//
// Building collects service definitions and, through extensions, the deferred
// setup calls to run on each service plus the initializers to run once at
// start-up. Nothing is executed while building: the result is a plan. A built
// Container executes that plan in Initialize: initializers first, then every
// service is created and its setups applied in declaration order.
package container

import (
	"context"
	"errors"
	"fmt"
)

// Kind groups services that play the same role, e.g. every database connection.
type Kind string

// Factory creates a service instance.
type Factory func(ctx context.Context) (any, error)

// Setup is a deferred call applied to a service right after it is created.
type Setup struct {
	Description string
	Apply       func(ctx context.Context, service any) error
}

// Initializer is a deferred call run once when the container is initialized.
type Initializer struct {
	Description string
	Run         func(ctx context.Context) error
}

// Definition describes how to create one service.
type Definition struct {
	Name    string
	Kind    Kind
	Factory Factory

	setups []Setup
	sealed bool
}

// AddSetup schedules fn to run on the service once it is created.
func (d *Definition) AddSetup(description string, fn func(ctx context.Context, service any) error) error {
	if d.sealed {
		return fmt.Errorf("service %q: %w", d.Name, ErrCompiled)
	}
	d.setups = append(d.setups, Setup{Description: description, Apply: fn})
	return nil
}

// Setups returns the scheduled setups in order.
func (d *Definition) Setups() []Setup {
	return append([]Setup(nil), d.setups...)
}

var (
	// ErrCompiled is returned when changing a builder or definition after compilation.
	ErrCompiled = errors.New("container: already compiled")
	// ErrMissingService is returned when no definition matches a lookup.
	ErrMissingService = errors.New("container: missing service")
	// ErrAmbiguousService is returned when several definitions match a single-service lookup.
	ErrAmbiguousService = errors.New("container: ambiguous service")
)

// Extension contributes to a build at the two compilation hooks.
type Extension interface {
	// BeforeCompile runs once every service is defined; it may schedule setups.
	BeforeCompile(ctx context.Context, b *Builder) error
	// AfterCompile runs once definitions are sealed; it may only add initializers.
	AfterCompile(ctx context.Context, b *Builder) error
}

// Builder collects definitions and deferred calls.
type Builder struct {
	defs         []*Definition
	byName       map[string]*Definition
	initializers []Initializer
	extensions   []Extension
	compiled     bool
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{byName: make(map[string]*Definition)}
}

// Add registers a definition. Names must be unique.
func (b *Builder) Add(def *Definition) error {
	if b.compiled {
		return ErrCompiled
	}
	if def == nil || def.Name == "" || def.Kind == "" || def.Factory == nil {
		return errors.New("container: definition needs a name, a kind and a factory")
	}
	if _, exists := b.byName[def.Name]; exists {
		return fmt.Errorf("container: service %q already defined", def.Name)
	}
	b.defs = append(b.defs, def)
	b.byName[def.Name] = def
	return nil
}

// AddExtension registers an extension for Compile.
func (b *Builder) AddExtension(ext Extension) {
	b.extensions = append(b.extensions, ext)
}

// Definition returns the definition named name.
func (b *Builder) Definition(name string) (*Definition, bool) {
	def, ok := b.byName[name]
	return def, ok
}

// FindByKind returns every definition of kind, in declaration order.
func (b *Builder) FindByKind(kind Kind) []*Definition {
	var out []*Definition
	for _, def := range b.defs {
		if def.Kind == kind {
			out = append(out, def)
		}
	}
	return out
}

// DefinitionByKind returns the only definition of kind.
func (b *Builder) DefinitionByKind(kind Kind) (*Definition, error) {
	defs := b.FindByKind(kind)
	switch len(defs) {
	case 0:
		return nil, fmt.Errorf("service of kind %q: %w", kind, ErrMissingService)
	case 1:
		return defs[0], nil
	default:
		return nil, fmt.Errorf("%d services of kind %q: %w", len(defs), kind, ErrAmbiguousService)
	}
}

// AddInitializer schedules fn to run once when the container is initialized.
func (b *Builder) AddInitializer(description string, fn func(ctx context.Context) error) {
	b.initializers = append(b.initializers, Initializer{Description: description, Run: fn})
}

// Compile runs the extension hooks and returns the container holding the resulting plan.
func (b *Builder) Compile(ctx context.Context) (*Container, error) {
	if b.compiled {
		return nil, ErrCompiled
	}
	for _, ext := range b.extensions {
		if err := ext.BeforeCompile(ctx, b); err != nil {
			return nil, fmt.Errorf("before compile: %w", err)
		}
	}

	b.compiled = true
	for _, def := range b.defs {
		def.sealed = true
	}

	for _, ext := range b.extensions {
		if err := ext.AfterCompile(ctx, b); err != nil {
			return nil, fmt.Errorf("after compile: %w", err)
		}
	}

	return newContainer(b.defs, b.initializers), nil
}

// Plan lists every deferred call in the order Initialize runs them.
func (b *Builder) Plan() Plan {
	return buildPlan(b.defs, b.initializers)
}
