package registration

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrUnsupportedDriver is returned for a target driver outside Drivers.
var ErrUnsupportedDriver = errors.New("unsupported target driver")

var drivers = []string{
	"mysql", "mysql2", "pdo_mysql",
	"pgsql", "postgres", "postgresql", "pdo_pgsql",
}

// Drivers lists the accepted target driver identifiers.
func Drivers() []string {
	return slices.Clone(drivers)
}

// IsSupportedDriver reports whether name is an accepted target driver. Empty is not a driver.
func IsSupportedDriver(name string) bool {
	return slices.Contains(drivers, name)
}

// CheckDriver accepts an empty driver (function registration disabled) or a supported one.
func CheckDriver(name string) error {
	if name == "" || IsSupportedDriver(name) {
		return nil
	}
	return fmt.Errorf("%w %q (want one of %s)", ErrUnsupportedDriver, name, strings.Join(drivers, ", "))
}
