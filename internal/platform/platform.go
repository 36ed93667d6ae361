// Package platform describes the SQL dialect behind a connection: how native column
// types map onto logical types and how statements are built for it.
package platform

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	sq "github.com/Masterminds/squirrel"

	"ormext/internal/dbtype"
)

// Family identifies a SQL dialect.
type Family string

const (
	MySQL      Family = "mysql"
	PostgreSQL Family = "postgresql"
	SQLite     Family = "sqlite"
)

// FamilyOf resolves a database/sql driver name or a configured driver alias to its family.
func FamilyOf(driver string) (Family, bool) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "mysql", "mysql2", "pdo_mysql":
		return MySQL, true
	case "pgx", "pgsql", "postgres", "postgresql", "pdo_pgsql":
		return PostgreSQL, true
	case "sqlite", "sqlite3", "pdo_sqlite":
		return SQLite, true
	default:
		return "", false
	}
}

// Mapping is one storage kind -> logical type registration.
type Mapping struct {
	StorageKind string `yaml:"storage_kind"`
	LogicalName string `yaml:"logical_name"`
}

func (m Mapping) String() string { return m.StorageKind + " -> " + m.LogicalName }

// Platform holds the type mapping table of one connection.
// It is safe for concurrent use.
type Platform struct {
	family  Family
	catalog *dbtype.Catalog
	builder sq.StatementBuilderType

	mu      sync.RWMutex
	typeMap map[string]string
	custom  []Mapping
}

// New creates a platform for family. Logical names registered later are checked against catalog.
func New(family Family, catalog *dbtype.Catalog) (*Platform, error) {
	defaults, ok := defaultMappings[family]
	if !ok {
		return nil, fmt.Errorf("unsupported platform %q", family)
	}
	if catalog == nil {
		return nil, fmt.Errorf("platform %q: type catalog is required", family)
	}
	typeMap := make(map[string]string, len(defaults))
	for k, v := range defaults {
		typeMap[k] = v
	}
	var format sq.PlaceholderFormat = sq.Question
	if family == PostgreSQL {
		format = sq.Dollar
	}
	return &Platform{
		family:  family,
		catalog: catalog,
		builder: sq.StatementBuilder.PlaceholderFormat(format),
		typeMap: typeMap,
	}, nil
}

// ForDriver creates the platform matching a database/sql driver name.
func ForDriver(driver string, catalog *dbtype.Catalog) (*Platform, error) {
	family, ok := FamilyOf(driver)
	if !ok {
		return nil, fmt.Errorf("no platform for driver %q", driver)
	}
	return New(family, catalog)
}

// Family returns the dialect of the platform.
func (p *Platform) Family() Family { return p.family }

// RegisterTypeMapping maps a native storage kind onto a logical type.
// The storage kind is matched case-insensitively; the logical type must exist in the catalog.
func (p *Platform) RegisterTypeMapping(storageKind, logicalName string) error {
	storageKind = strings.ToLower(strings.TrimSpace(storageKind))
	if storageKind == "" {
		return fmt.Errorf("platform %s: empty storage kind for type %q", p.family, logicalName)
	}
	if !p.catalog.Has(logicalName) {
		return fmt.Errorf("platform %s: cannot map %q: %w", p.family, storageKind, &dbtype.UnknownTypeError{Name: logicalName})
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.typeMap[storageKind] = logicalName
	m := Mapping{StorageKind: storageKind, LogicalName: logicalName}
	for _, existing := range p.custom {
		if existing == m {
			return nil
		}
	}
	p.custom = append(p.custom, m)
	return nil
}

// TypeFor returns the logical type a native storage kind resolves to.
// When several registrations share a storage kind the latest one wins.
func (p *Platform) TypeFor(storageKind string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	name, ok := p.typeMap[strings.ToLower(strings.TrimSpace(storageKind))]
	return name, ok
}

// HasMapping reports whether storageKind -> logicalName was registered on this platform.
func (p *Platform) HasMapping(storageKind, logicalName string) bool {
	want := Mapping{StorageKind: strings.ToLower(storageKind), LogicalName: logicalName}
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, m := range p.custom {
		if m == want {
			return true
		}
	}
	return false
}

// CustomMappings returns the mappings registered on top of the platform defaults, in registration order.
func (p *Platform) CustomMappings() []Mapping {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Mapping, len(p.custom))
	copy(out, p.custom)
	return out
}

// StorageKinds returns every native storage kind the platform knows, sorted.
func (p *Platform) StorageKinds() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	kinds := make([]string, 0, len(p.typeMap))
	for k := range p.typeMap {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// StatementBuilder returns a squirrel builder using the platform placeholder format.
func (p *Platform) StatementBuilder() sq.StatementBuilderType { return p.builder }

// VersionQuery returns the statement reporting the server version.
func (p *Platform) VersionQuery() (string, []any, error) {
	var column string
	switch p.family {
	case PostgreSQL:
		column = "version()"
	case SQLite:
		column = "sqlite_version()"
	default:
		column = "VERSION()"
	}
	return p.builder.Select(column).ToSql()
}
