// Package ormconfig holds the query compiler settings shared by every entity manager,
// in particular the custom functions the query language may call.
package ormconfig

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Category selects the parser channel a custom function is dispatched through.
type Category string

const (
	Datetime Category = "datetime"
	Numeric  Category = "numeric"
	String   Category = "string"
)

// Categories lists every category in registration order.
var Categories = []Category{Datetime, Numeric, String}

var (
	// ErrFrozen is returned when registering a function after Freeze.
	ErrFrozen = errors.New("ormconfig: configuration is frozen")
	// ErrReservedName is returned when a custom function would shadow a built-in one.
	ErrReservedName = errors.New("ormconfig: reserved function name")
	// ErrDuplicateFunction is returned when a name is bound to two handlers in one category.
	ErrDuplicateFunction = errors.New("ormconfig: duplicate function")
	// ErrFunctionNameCase is returned for a name that is not lower-case; lookups fold the probe only.
	ErrFunctionNameCase = errors.New("ormconfig: function name must be lower-case")
)

// FunctionNameCollisionError reports a custom function named like a built-in one.
type FunctionNameCollisionError struct {
	Name     string
	Category Category
}

func (e *FunctionNameCollisionError) Error() string {
	return fmt.Sprintf("custom %s function %q collides with a built-in function", e.Category, e.Name)
}

func (e *FunctionNameCollisionError) Is(target error) bool { return target == ErrReservedName }

// DuplicateFunctionError reports a second handler for a name already registered in a category.
type DuplicateFunctionError struct {
	Name     string
	Category Category
	Existing string
	Handler  string
}

func (e *DuplicateFunctionError) Error() string {
	return fmt.Sprintf("custom %s function %q already registered with handler %q (got %q)", e.Category, e.Name, e.Existing, e.Handler)
}

func (e *DuplicateFunctionError) Is(target error) bool { return target == ErrDuplicateFunction }

// Function is one registered custom function.
type Function struct {
	Name     string   `yaml:"name"`
	Handler  string   `yaml:"handler"`
	Category Category `yaml:"category"`
}

// Configuration is the query-configuration service.
// It is safe for concurrent use.
type Configuration struct {
	mu        sync.RWMutex
	functions map[Category]map[string]string
	frozen    bool
}

// NewConfiguration returns an empty, unfrozen configuration.
func NewConfiguration() *Configuration {
	functions := make(map[Category]map[string]string, len(Categories))
	for _, c := range Categories {
		functions[c] = make(map[string]string)
	}
	return &Configuration{functions: functions}
}

// AddCustomDatetimeFunction registers a function returning a date/time value.
func (c *Configuration) AddCustomDatetimeFunction(name, handler string) error {
	return c.add(Datetime, name, handler)
}

// AddCustomNumericFunction registers a function returning a number.
func (c *Configuration) AddCustomNumericFunction(name, handler string) error {
	return c.add(Numeric, name, handler)
}

// AddCustomStringFunction registers a function returning a string.
func (c *Configuration) AddCustomStringFunction(name, handler string) error {
	return c.add(String, name, handler)
}

// AddCustomFunction registers name through the channel of category.
func (c *Configuration) AddCustomFunction(category Category, name, handler string) error {
	return c.add(category, name, handler)
}

func (c *Configuration) add(category Category, name, handler string) error {
	if name == "" || handler == "" {
		return fmt.Errorf("ormconfig: %s function needs a name and a handler", category)
	}
	if isReserved(name) {
		return &FunctionNameCollisionError{Name: name, Category: category}
	}
	if name != strings.ToLower(name) {
		return fmt.Errorf("add %s function %q: %w", category, name, ErrFunctionNameCase)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen {
		return fmt.Errorf("add %s function %q: %w", category, name, ErrFrozen)
	}
	registry, ok := c.functions[category]
	if !ok {
		return fmt.Errorf("ormconfig: unknown function category %q", category)
	}
	if existing, ok := registry[name]; ok {
		if existing == handler {
			return nil
		}
		return &DuplicateFunctionError{Name: name, Category: category, Existing: existing, Handler: handler}
	}
	registry[name] = handler
	return nil
}

// CustomDatetimeFunction returns the handler of a datetime function; name is matched case-insensitively.
func (c *Configuration) CustomDatetimeFunction(name string) (string, bool) {
	return c.lookup(Datetime, name)
}

// CustomNumericFunction returns the handler of a numeric function; name is matched case-insensitively.
func (c *Configuration) CustomNumericFunction(name string) (string, bool) {
	return c.lookup(Numeric, name)
}

// CustomStringFunction returns the handler of a string function; name is matched case-insensitively.
func (c *Configuration) CustomStringFunction(name string) (string, bool) {
	return c.lookup(String, name)
}

func (c *Configuration) lookup(category Category, name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	handler, ok := c.functions[category][strings.ToLower(name)]
	return handler, ok
}

// Functions returns the functions of one category sorted by name.
func (c *Configuration) Functions(category Category) []Function {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Function, 0, len(c.functions[category]))
	for name, handler := range c.functions[category] {
		out = append(out, Function{Name: name, Handler: handler, Category: category})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// FunctionCount returns the number of custom functions across all categories.
func (c *Configuration) FunctionCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, registry := range c.functions {
		n += len(registry)
	}
	return n
}

// Freeze rejects any further registration. It is idempotent.
func (c *Configuration) Freeze() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frozen = true
}

// Frozen reports whether Freeze was called.
func (c *Configuration) Frozen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frozen
}
