package dbtype

import (
	"sort"
	"sync"
)

// Catalog maps logical type names to handlers. It replaces a process-wide type
// registry: callers own a Catalog and pass it to whatever mutates or reads it.
// The zero value is an empty catalog without base types. It is safe for concurrent use.
type Catalog struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewCatalog returns a catalog holding the base types.
func NewCatalog() *Catalog {
	return &Catalog{handlers: baseHandlers()}
}

// Reset drops every registration and restores the base types.
func (c *Catalog) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = baseHandlers()
}

// Has reports whether name is registered.
func (c *Catalog) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.handlers[name]
	return ok
}

// Lookup returns the handler bound to name.
func (c *Catalog) Lookup(name string) (Handler, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.handlers[name]
	if !ok {
		return nil, &UnknownTypeError{Name: name}
	}
	return h, nil
}

// Add binds a new logical name. It fails with a DuplicateTypeError if name is taken.
func (c *Catalog) Add(name string, h Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.handlers[name]; ok {
		return &DuplicateTypeError{Name: name, Existing: existing.ID()}
	}
	if c.handlers == nil {
		c.handlers = make(map[string]Handler)
	}
	c.handlers[name] = h
	return nil
}

// Override replaces the handler of an existing logical name.
// It fails with a MissingBaseTypeError if name was never registered.
func (c *Catalog) Override(name string, h Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.handlers[name]; !ok {
		return &MissingBaseTypeError{Name: name}
	}
	c.handlers[name] = h
	return nil
}

// Names returns the registered logical names in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.handlers))
	for name := range c.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
