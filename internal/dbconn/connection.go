// Package dbconn opens the database connections the service container exposes
// and pairs each one with the platform describing its dialect.
package dbconn

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"ormext/internal/dbtype"
	"ormext/internal/platform"
)

// Config describes one named connection.
type Config struct {
	Name            string
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Options control connection instrumentation.
type Options struct {
	Metrics      bool
	Tracing      bool
	SQLCommenter bool
	Logger       *slog.Logger
}

// Connection is a database handle plus the platform of its dialect.
type Connection struct {
	name     string
	driver   string
	db       *sql.DB
	platform *platform.Platform

	statsReg interface{ Unregister() error }
}

// New wraps an already opened handle.
func New(name, driver string, db *sql.DB, p *platform.Platform) *Connection {
	return &Connection{name: name, driver: driver, db: db, platform: p}
}

// Open opens the connection described by cfg. Nothing is sent to the server until first use.
func Open(cfg Config, catalog *dbtype.Catalog, opts Options) (*Connection, error) {
	family, ok := platform.FamilyOf(cfg.Driver)
	if !ok {
		return nil, fmt.Errorf("connection %q: unsupported driver %q", cfg.Name, cfg.Driver)
	}
	p, err := platform.New(family, catalog)
	if err != nil {
		return nil, fmt.Errorf("connection %q: %w", cfg.Name, err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	driverName := sqlDriverName(family)
	var (
		db       *sql.DB
		statsReg interface{ Unregister() error }
	)
	if opts.Metrics || opts.Tracing {
		attrs := otelsql.WithAttributes(dbSystem(family))
		otelOpts := []otelsql.Option{attrs}
		if opts.Tracing {
			otelOpts = append(otelOpts, otelsql.WithSpanOptions(otelsql.SpanOptions{
				DisableErrSkip: true,
			}))
			if opts.SQLCommenter {
				otelOpts = append(otelOpts, otelsql.WithSQLCommenter(true))
			}
		} else if opts.SQLCommenter {
			logger.Warn("SQLCommenter requires tracing to be enabled - skipping SQLCommenter",
				slog.String("connection", cfg.Name),
			)
		}

		db, err = otelsql.Open(driverName, cfg.DSN, otelOpts...)
		if err != nil {
			return nil, fmt.Errorf("connection %q: %w", cfg.Name, err)
		}
		if opts.Metrics {
			statsReg, err = otelsql.RegisterDBStatsMetrics(db, attrs)
			if err != nil {
				logger.Warn("failed to register DB stats metrics",
					slog.String("connection", cfg.Name),
					slog.String("error", err.Error()),
				)
			}
		}
	} else {
		db, err = sql.Open(driverName, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("connection %q: %w", cfg.Name, err)
		}
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	logger.Debug("database connection opened",
		slog.String("connection", cfg.Name),
		slog.String("driver", driverName),
		slog.String("platform", string(family)),
		slog.Bool("instrumented", opts.Metrics || opts.Tracing),
	)

	return &Connection{
		name:     cfg.Name,
		driver:   cfg.Driver,
		db:       db,
		platform: p,
		statsReg: statsReg,
	}, nil
}

func sqlDriverName(family platform.Family) string {
	switch family {
	case platform.PostgreSQL:
		return "pgx"
	case platform.SQLite:
		return "sqlite"
	default:
		return "mysql"
	}
}

func dbSystem(family platform.Family) attribute.KeyValue {
	switch family {
	case platform.PostgreSQL:
		return semconv.DBSystemPostgreSQL
	case platform.SQLite:
		return semconv.DBSystemSqlite
	default:
		return semconv.DBSystemMySQL
	}
}

// Name returns the configured connection name.
func (c *Connection) Name() string { return c.name }

// Driver returns the configured driver name.
func (c *Connection) Driver() string { return c.driver }

// DB returns the underlying handle.
func (c *Connection) DB() *sql.DB { return c.db }

// DatabasePlatform returns the platform of the connection dialect.
func (c *Connection) DatabasePlatform() *platform.Platform { return c.platform }

// ServerVersion asks the server for its version string.
func (c *Connection) ServerVersion(ctx context.Context) (string, error) {
	if c.db == nil {
		return "", sql.ErrConnDone
	}
	query, args, err := c.platform.VersionQuery()
	if err != nil {
		return "", err
	}
	var version string
	if err := c.db.QueryRowContext(ctx, query, args...).Scan(&version); err != nil {
		return "", fmt.Errorf("connection %q: server version: %w", c.name, err)
	}
	return version, nil
}

// Close releases the handle and its metrics registration.
func (c *Connection) Close() error {
	if c.statsReg != nil {
		_ = c.statsReg.Unregister()
	}
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// PingAll checks every connection concurrently and returns the first failure.
func PingAll(ctx context.Context, conns []*Connection) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, conn := range conns {
		g.Go(func() error {
			if conn.db == nil {
				return fmt.Errorf("connection %q: %w", conn.name, sql.ErrConnDone)
			}
			if err := conn.db.PingContext(ctx); err != nil {
				return fmt.Errorf("connection %q: %w", conn.name, err)
			}
			return nil
		})
	}
	return g.Wait()
}
