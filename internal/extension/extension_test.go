package extension

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ormext/internal/container"
	"ormext/internal/dbconn"
	"ormext/internal/dbtype"
	"ormext/internal/ormconfig"
	"ormext/internal/platform"
	"ormext/internal/registration"
)

type buildOptions struct {
	driver      string
	policy      registration.Policy
	withConfig  bool
	connections int
}

func compile(t *testing.T, catalog *dbtype.Catalog, opts buildOptions) (*container.Container, *Extension) {
	t.Helper()
	ext, err := New(Options{Driver: opts.driver, Policy: opts.policy, Catalog: catalog})
	require.NoError(t, err)

	b := container.NewBuilder()
	if opts.withConfig {
		require.NoError(t, b.Add(&container.Definition{
			Name:    "orm.configuration",
			Kind:    KindQueryConfiguration,
			Factory: func(context.Context) (any, error) { return ormconfig.NewConfiguration(), nil },
		}))
	}
	for i := 0; i < opts.connections; i++ {
		name := fmt.Sprintf("conn%d", i)
		require.NoError(t, b.Add(&container.Definition{
			Name: name,
			Kind: KindConnection,
			Factory: func(context.Context) (any, error) {
				p, err := platform.New(platform.MySQL, catalog)
				if err != nil {
					return nil, err
				}
				return dbconn.New(name, "mysql", nil, p), nil
			},
		}))
	}
	b.AddExtension(ext)

	c, err := b.Compile(context.Background())
	require.NoError(t, err)
	return c, ext
}

func TestNew_RejectsInvalidDriver(t *testing.T) {
	_, err := New(Options{Driver: "invalid_driver_name", Catalog: dbtype.NewCatalog()})
	assert.ErrorIs(t, err, registration.ErrUnsupportedDriver)

	_, err = New(Options{Driver: "mysql"})
	assert.Error(t, err)
}

func TestExtension_Nothing(t *testing.T) {
	catalog := dbtype.NewCatalog()
	c, ext := compile(t, catalog, buildOptions{})

	assert.Equal(t, Terminal, ext.Phase())
	assert.Equal(t, 1, c.Plan().Count(container.PhaseInitialize))
	assert.Zero(t, c.Plan().Count(container.PhaseSetup))

	require.NoError(t, c.Initialize(context.Background()))
	assert.True(t, catalog.Has(dbtype.Money))
	assert.True(t, ext.Stats().GlobalApplied)
}

func TestExtension_DriverRegistersFunctions(t *testing.T) {
	for _, driver := range registration.Drivers() {
		t.Run(driver, func(t *testing.T) {
			catalog := dbtype.NewCatalog()
			c, ext := compile(t, catalog, buildOptions{driver: driver, withConfig: true, connections: 1})
			require.NoError(t, c.Initialize(context.Background()))

			cfg, err := container.ServiceOf[*ormconfig.Configuration](c, KindQueryConfiguration)
			require.NoError(t, err)
			assert.Len(t, cfg.Functions(ormconfig.Datetime), 4)
			assert.Len(t, cfg.Functions(ormconfig.Numeric), 16)
			assert.Len(t, cfg.Functions(ormconfig.String), 6)
			assert.Equal(t, 26, cfg.FunctionCount())
			assert.True(t, cfg.Frozen())

			handler, ok := cfg.CustomNumericFunction("TIMESTAMPDIFF")
			require.True(t, ok)
			assert.Equal(t, registration.TimestampDiff, handler)

			stats := ext.Stats()
			assert.Equal(t, 26, stats.FunctionsRegistered)
			assert.Equal(t, driver, stats.Driver)
			assert.Equal(t, "terminal", stats.Phase)
			assert.True(t, stats.GlobalApplied)
		})
	}
	assert.Len(t, registration.Drivers(), 7)
}

func TestExtension_ConnectionMappingsWithoutDriver(t *testing.T) {
	catalog := dbtype.NewCatalog()
	c, ext := compile(t, catalog, buildOptions{withConfig: true, connections: 1})
	require.NoError(t, c.Initialize(context.Background()))

	cfg, err := container.ServiceOf[*ormconfig.Configuration](c, KindQueryConfiguration)
	require.NoError(t, err)
	assert.Zero(t, cfg.FunctionCount())

	conn, err := container.ServiceOf[*dbconn.Connection](c, KindConnection)
	require.NoError(t, err)
	p := conn.DatabasePlatform()
	for _, m := range registration.TypeMappings() {
		assert.True(t, p.HasMapping(m.StorageKind, m.LogicalName), m.LogicalName)
	}
	assert.Len(t, p.CustomMappings(), len(registration.TypeMappings()))
	assert.Equal(t, 4, ext.Stats().ConnectionMappings)
}

func TestExtension_MappingsPerConnection(t *testing.T) {
	catalog := dbtype.NewCatalog()
	c, ext := compile(t, catalog, buildOptions{connections: 3})
	assert.Equal(t, 3, c.Plan().Count(container.PhaseSetup))
	require.NoError(t, c.Initialize(context.Background()))

	stats := ext.Stats()
	assert.Equal(t, 3, stats.ConnectionsScheduled)
	assert.Equal(t, 3*len(registration.TypeMappings()), stats.ConnectionMappings)
}

func TestExtension_DriverWithoutConfigurationService(t *testing.T) {
	ext, err := New(Options{Driver: "mysql", Catalog: dbtype.NewCatalog()})
	require.NoError(t, err)

	b := container.NewBuilder()
	b.AddExtension(ext)
	_, err = b.Compile(context.Background())
	assert.ErrorIs(t, err, container.ErrMissingService)
	assert.Equal(t, BuildPhase, ext.Phase())
}

func TestExtension_GlobalHandlersAfterInit(t *testing.T) {
	catalog := dbtype.NewCatalog()
	c, _ := compile(t, catalog, buildOptions{})
	require.NoError(t, c.Initialize(context.Background()))

	for _, m := range registration.TypeMappings() {
		h, err := catalog.Lookup(m.LogicalName)
		require.NoError(t, err)
		assert.Equal(t, m.Handler.ID(), h.ID(), m.LogicalName)
	}
}

func TestExtension_ReapplyWithoutReset(t *testing.T) {
	t.Run("idempotent", func(t *testing.T) {
		catalog := dbtype.NewCatalog()
		first, _ := compile(t, catalog, buildOptions{connections: 1})
		require.NoError(t, first.Initialize(context.Background()))

		second, _ := compile(t, catalog, buildOptions{policy: registration.Idempotent, connections: 1})
		require.NoError(t, second.Initialize(context.Background()))

		h, err := catalog.Lookup(dbtype.Array)
		require.NoError(t, err)
		assert.Equal(t, dbtype.ArrayTypeID, h.ID())
	})

	t.Run("strict", func(t *testing.T) {
		catalog := dbtype.NewCatalog()
		first, _ := compile(t, catalog, buildOptions{policy: registration.Strict})
		require.NoError(t, first.Initialize(context.Background()))

		second, _ := compile(t, catalog, buildOptions{policy: registration.Strict})
		assert.ErrorIs(t, second.Initialize(context.Background()), dbtype.ErrDuplicateType)
	})

	t.Run("strict after reset", func(t *testing.T) {
		catalog := dbtype.NewCatalog()
		first, _ := compile(t, catalog, buildOptions{policy: registration.Strict})
		require.NoError(t, first.Initialize(context.Background()))

		catalog.Reset()
		second, _ := compile(t, catalog, buildOptions{policy: registration.Strict})
		require.NoError(t, second.Initialize(context.Background()))
	})
}

func TestExtension_PhaseOrder(t *testing.T) {
	ext, err := New(Options{Catalog: dbtype.NewCatalog()})
	require.NoError(t, err)
	b := container.NewBuilder()
	ctx := context.Background()

	assert.ErrorIs(t, ext.AfterCompile(ctx, b), ErrPhaseOrder)

	require.NoError(t, ext.BeforeCompile(ctx, b))
	assert.Equal(t, GeneratedCodeHook, ext.Phase())
	assert.ErrorIs(t, ext.BeforeCompile(ctx, b), ErrPhaseOrder)

	require.NoError(t, ext.AfterCompile(ctx, b))
	assert.Equal(t, Terminal, ext.Phase())
	assert.ErrorIs(t, ext.AfterCompile(ctx, b), ErrPhaseOrder)
	assert.ErrorIs(t, ext.BeforeCompile(ctx, b), ErrPhaseOrder)
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "build", BuildPhase.String())
	assert.Equal(t, "generated_code_hook", GeneratedCodeHook.String())
	assert.Equal(t, "terminal", Terminal.String())
	assert.Equal(t, "phase(7)", Phase(7).String())
}
