package registration

import (
	"fmt"
	"strings"

	"github.com/zeebo/xxh3"

	"ormext/internal/ormconfig"
)

// ValidateTables checks the declared tables: logical names are unique across
// overriding and new types, and function names are lower-case and unique per category.
func ValidateTables() error {
	return validate(TypeMappings(), FunctionMappings())
}

func validate(types []TypeMapping, functions []FunctionMapping) error {
	seen := make(map[string]Mode, len(types))
	for _, m := range types {
		if m.LogicalName == "" || m.StorageKind == "" || m.Handler == nil {
			return fmt.Errorf("incomplete type mapping %+v", m)
		}
		if prev, ok := seen[m.LogicalName]; ok {
			return fmt.Errorf("type %q declared twice (%s and %s)", m.LogicalName, prev, m.Mode)
		}
		seen[m.LogicalName] = m.Mode
	}

	names := make(map[ormconfig.Category]map[string]bool)
	for _, f := range functions {
		if f.Name == "" || f.Handler == "" {
			return fmt.Errorf("incomplete %s function mapping %+v", f.Category, f)
		}
		if f.Name != strings.ToLower(f.Name) {
			return fmt.Errorf("%s function %q must be lower-case", f.Category, f.Name)
		}
		if ormconfig.IsReserved(f.Name) {
			return &ormconfig.FunctionNameCollisionError{Name: f.Name, Category: f.Category}
		}
		if names[f.Category] == nil {
			names[f.Category] = make(map[string]bool)
		}
		if names[f.Category][f.Name] {
			return fmt.Errorf("%s function %q declared twice", f.Category, f.Name)
		}
		names[f.Category][f.Name] = true
	}
	return nil
}

// Fingerprint hashes the declared tables. Two builds with the same fingerprint
// schedule the same registrations, so a cached build plan can be reused.
func Fingerprint() string {
	var b strings.Builder
	for _, m := range TypeMappings() {
		fmt.Fprintf(&b, "type|%s|%s|%s|%s\n", m.Mode, m.LogicalName, m.Handler.ID(), m.StorageKind)
	}
	for _, f := range FunctionMappings() {
		fmt.Fprintf(&b, "func|%s|%s|%s\n", f.Category, f.Name, f.Handler)
	}
	return fmt.Sprintf("%016x", xxh3.HashString(b.String()))
}
