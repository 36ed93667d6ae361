package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ormext/internal/config"
	"ormext/internal/container"
	"ormext/internal/dbconn"
	"ormext/internal/dbtype"
	"ormext/internal/extension"
	"ormext/internal/logging"
	"ormext/internal/ormconfig"
)

func testConfig(driver string, connections ...string) *config.Config {
	cfg := &config.Config{
		Extension: config.ExtensionConfig{Driver: driver, ReapplyPolicy: "idempotent"},
		ORM:       config.ORMConfig{Enabled: true},
		Database:  config.DatabaseConfig{Connections: map[string]config.ConnectionConfig{}},
		Observability: config.ObservabilityConfig{
			ServiceName: "ormext-test",
			Logging:     config.LoggingConfig{Level: "debug", Format: "text"},
		},
	}
	for _, name := range connections {
		cfg.Database.Connections[name] = config.ConnectionConfig{Driver: "sqlite", DSN: ":memory:"}
	}
	return cfg
}

func testLogger(buf *bytes.Buffer) *logging.Logger {
	return logging.NewLogger(logging.Config{Level: "debug", Format: "text", Output: buf})
}

func newApp(t *testing.T, cfg *config.Config, opts ...Option) (*App, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	app, err := New(cfg, testLogger(&buf), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Shutdown(context.Background()) })
	return app, &buf
}

func TestNew_RequiresConfigAndLogger(t *testing.T) {
	_, err := New(nil, testLogger(&bytes.Buffer{}))
	assert.Error(t, err)

	_, err = New(testConfig(""), nil)
	assert.Error(t, err)
}

func TestApp_InitReportShutdown(t *testing.T) {
	cfg := testConfig("pdo_mysql", "main", "reports")
	cfg.Database.PingOnStartup = true
	app, logs := newApp(t, cfg)

	_, err := app.Report()
	assert.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, app.Init(context.Background()))

	report, err := app.Report()
	require.NoError(t, err)

	_, err = uuid.Parse(report.BuildID)
	assert.NoError(t, err)
	assert.Len(t, report.Fingerprint, 16)
	assert.Contains(t, logs.String(), "build_id="+report.BuildID)

	assert.True(t, report.Extension.GlobalApplied)
	assert.Equal(t, 26, report.Extension.FunctionsRegistered)
	assert.Equal(t, 2, report.Extension.ConnectionsScheduled)
	assert.Equal(t, 8, report.Extension.ConnectionMappings)

	assert.Equal(t, 1, report.Plan.Count(container.PhaseInitialize))
	assert.Equal(t, 3, report.Plan.Count(container.PhaseSetup))

	require.Len(t, report.Connections, 2)
	assert.Equal(t, "main", report.Connections[0].Name)
	assert.Len(t, report.Connections[0].Mappings, 4)

	assert.Len(t, report.Functions[string(ormconfig.Numeric)], 16)
	assert.Len(t, report.Functions[string(ormconfig.Datetime)], 4)
	assert.Len(t, report.Functions[string(ormconfig.String)], 6)

	handlers := map[string]string{}
	for _, tr := range report.Types {
		handlers[tr.Name] = tr.Handler
	}
	assert.Equal(t, dbtype.ArrayTypeID, handlers[dbtype.Array])
	assert.Equal(t, dbtype.MoneyTypeID, handlers[dbtype.Money])

	// second Init is a no-op
	require.NoError(t, app.Init(context.Background()))
	again, err := app.Report()
	require.NoError(t, err)
	assert.Equal(t, report.BuildID, again.BuildID)

	conns, err := container.ServicesOf[*dbconn.Connection](app.Container(), extension.KindConnection)
	require.NoError(t, err)
	require.NoError(t, app.Shutdown(context.Background()))
	require.NoError(t, app.Shutdown(context.Background()))
	assert.Error(t, conns[0].DB().Ping())
}

func TestApp_NoDriverRegistersNoFunctions(t *testing.T) {
	app, _ := newApp(t, testConfig("", "main"))
	require.NoError(t, app.Init(context.Background()))

	report, err := app.Report()
	require.NoError(t, err)
	assert.Empty(t, report.Functions)
	assert.Zero(t, report.Extension.FunctionsRegistered)
	assert.Len(t, report.Connections[0].Mappings, 4)
}

func TestApp_InitFailures(t *testing.T) {
	t.Run("driver without query configuration", func(t *testing.T) {
		cfg := testConfig("mysql", "main")
		cfg.ORM.Enabled = false
		app, _ := newApp(t, cfg)

		err := app.Init(context.Background())
		assert.ErrorIs(t, err, container.ErrMissingService)
		assert.Nil(t, app.Container())
	})

	t.Run("invalid policy", func(t *testing.T) {
		cfg := testConfig("")
		cfg.Extension.ReapplyPolicy = "sometimes"
		app, _ := newApp(t, cfg)
		assert.Error(t, app.Init(context.Background()))
	})

	t.Run("unsupported connection driver", func(t *testing.T) {
		cfg := testConfig("")
		cfg.Database.Connections["legacy"] = config.ConnectionConfig{Driver: "mssql", DSN: "sqlserver://x"}
		app, _ := newApp(t, cfg)

		err := app.Init(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported driver")
	})
}

func TestApp_ReapplyOnSharedCatalog(t *testing.T) {
	t.Run("idempotent", func(t *testing.T) {
		catalog := dbtype.NewCatalog()
		first, _ := newApp(t, testConfig("", "main"), WithCatalog(catalog))
		require.NoError(t, first.Init(context.Background()))

		second, _ := newApp(t, testConfig("", "main"), WithCatalog(catalog))
		require.NoError(t, second.Init(context.Background()))
		assert.Same(t, catalog, second.Catalog())
	})

	t.Run("strict", func(t *testing.T) {
		catalog := dbtype.NewCatalog()
		cfg := testConfig("")
		cfg.Extension.ReapplyPolicy = "strict"

		first, _ := newApp(t, cfg, WithCatalog(catalog))
		require.NoError(t, first.Init(context.Background()))

		second, _ := newApp(t, cfg, WithCatalog(catalog))
		assert.ErrorIs(t, second.Init(context.Background()), dbtype.ErrDuplicateType)
	})
}

func TestApp_MetricsExported(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := testConfig("postgresql", "main")
	cfg.Observability.MetricsEnabled = true
	app, _ := newApp(t, cfg, WithRegisterer(reg))
	require.NoError(t, app.Init(context.Background()))

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, mf := range families {
		names = append(names, strings.ReplaceAll(mf.GetName(), ".", "_"))
	}
	joined := strings.Join(names, " ")
	assert.Contains(t, joined, "ormext_functions_registered")
	assert.Contains(t, joined, "ormext_types_registered")
	assert.Contains(t, joined, "ormext_bootstrap_phase_duration")
}

func TestCleanupStack_RunsInReverseOrder(t *testing.T) {
	var order []string
	var s cleanupStack
	s.push("first", func(context.Context) error {
		order = append(order, "first")
		return nil
	})
	s.push("second", func(context.Context) error {
		order = append(order, "second")
		return errors.New("ignored")
	})

	var buf bytes.Buffer
	s.run(context.Background(), testLogger(&buf))
	assert.Equal(t, []string{"second", "first"}, order)
	assert.Contains(t, buf.String(), "cleanup error")

	s.run(context.Background(), nil)
	assert.Len(t, order, 2)
}
