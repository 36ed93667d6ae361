package registration

import (
	"errors"
	"fmt"
	"strings"

	"ormext/internal/dbtype"
	"ormext/internal/ormconfig"
	"ormext/internal/platform"
)

// Policy decides how ApplyGlobally treats a catalog that already holds its new types.
type Policy string

const (
	// Idempotent accepts a new type already bound to the declared handler.
	Idempotent Policy = "idempotent"
	// Strict fails on any new type that already exists.
	Strict Policy = "strict"
)

// ParsePolicy converts a configured value; empty means Idempotent.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", Idempotent:
		return Idempotent, nil
	case Strict:
		return Strict, nil
	default:
		return "", fmt.Errorf("unknown reapply policy %q (want %q or %q)", s, Idempotent, Strict)
	}
}

// Connection is anything exposing the platform of a database connection.
type Connection interface {
	DatabasePlatform() *platform.Platform
}

// FunctionRegistrar receives custom query functions, one channel per category.
type FunctionRegistrar interface {
	AddCustomDatetimeFunction(name, handler string) error
	AddCustomNumericFunction(name, handler string) error
	AddCustomStringFunction(name, handler string) error
}

// ApplyToConnection registers every storage kind -> logical type pair on the connection platform.
// It returns the number of pairs registered.
func ApplyToConnection(conn Connection) (int, error) {
	p := conn.DatabasePlatform()
	if p == nil {
		return 0, errors.New("connection has no platform")
	}
	n := 0
	for _, m := range TypeMappings() {
		if err := p.RegisterTypeMapping(m.StorageKind, m.LogicalName); err != nil {
			return n, fmt.Errorf("register %s type mapping %s -> %s: %w", m.Mode, m.StorageKind, m.LogicalName, err)
		}
		n++
	}
	return n, nil
}

// ApplyGlobally overrides the base types and adds the new ones on catalog.
func ApplyGlobally(catalog *dbtype.Catalog, policy Policy) error {
	for _, m := range overridingTypes {
		if err := catalog.Override(m.LogicalName, m.Handler); err != nil {
			return fmt.Errorf("override type %q: %w", m.LogicalName, err)
		}
	}
	for _, m := range newTypes {
		err := catalog.Add(m.LogicalName, m.Handler)
		if err == nil {
			continue
		}
		var dup *dbtype.DuplicateTypeError
		if policy == Idempotent && errors.As(err, &dup) && dup.Existing == m.Handler.ID() {
			continue
		}
		return fmt.Errorf("add type %q: %w", m.LogicalName, err)
	}
	return nil
}

// ApplyFunctionsIfConfigured registers every custom function on cfg unless driver is empty.
// It returns the number of functions registered.
func ApplyFunctionsIfConfigured(driver string, cfg FunctionRegistrar) (int, error) {
	if strings.TrimSpace(driver) == "" {
		return 0, nil
	}
	n := 0
	for _, f := range FunctionMappings() {
		if err := RegisterFunction(cfg, f); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// RegisterFunction sends one function through the channel of its category.
func RegisterFunction(cfg FunctionRegistrar, f FunctionMapping) error {
	var err error
	switch f.Category {
	case ormconfig.Datetime:
		err = cfg.AddCustomDatetimeFunction(f.Name, f.Handler)
	case ormconfig.Numeric:
		err = cfg.AddCustomNumericFunction(f.Name, f.Handler)
	case ormconfig.String:
		err = cfg.AddCustomStringFunction(f.Name, f.Handler)
	default:
		err = fmt.Errorf("unknown function category %q", f.Category)
	}
	if err != nil {
		return fmt.Errorf("register %s function %q: %w", f.Category, f.Name, err)
	}
	return nil
}
