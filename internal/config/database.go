package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"

	"ormext/internal/platform"
)

// Family returns the database family of the connection driver.
func (c ConnectionConfig) Family() (platform.Family, bool) {
	return platform.FamilyOf(c.Driver)
}

// CheckDSN parses the DSN with the driver of its family.
func (c ConnectionConfig) CheckDSN() error {
	family, ok := c.Family()
	if !ok {
		return fmt.Errorf("unknown driver %q", c.Driver)
	}
	if strings.TrimSpace(c.DSN) == "" {
		return errors.New("dsn is empty")
	}
	switch family {
	case platform.MySQL:
		if _, err := mysql.ParseDSN(c.DSN); err != nil {
			return err
		}
	case platform.PostgreSQL:
		if _, err := pgx.ParseConfig(c.DSN); err != nil {
			return err
		}
	}
	return nil
}

// WithPassword returns the DSN with its password replaced.
func (c ConnectionConfig) WithPassword(password string) (string, error) {
	family, ok := c.Family()
	if !ok {
		return "", fmt.Errorf("unknown driver %q", c.Driver)
	}
	switch family {
	case platform.MySQL:
		parsed, err := mysql.ParseDSN(c.DSN)
		if err != nil {
			return "", fmt.Errorf("parse mysql dsn: %w", err)
		}
		parsed.Passwd = password
		return parsed.FormatDSN(), nil
	case platform.PostgreSQL:
		if strings.HasPrefix(c.DSN, "postgres://") || strings.HasPrefix(c.DSN, "postgresql://") {
			u, err := url.Parse(c.DSN)
			if err != nil {
				return "", fmt.Errorf("parse postgres url: %w", err)
			}
			user := ""
			if u.User != nil {
				user = u.User.Username()
			}
			u.User = url.UserPassword(user, password)
			return u.String(), nil
		}
		quoted := strings.ReplaceAll(strings.ReplaceAll(password, `\`, `\\`), `'`, `\'`)
		return strings.TrimSpace(c.DSN) + " password='" + quoted + "'", nil
	default:
		return "", fmt.Errorf("driver %q does not use passwords", c.Driver)
	}
}
