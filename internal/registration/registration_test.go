package registration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ormext/internal/dbtype"
	"ormext/internal/ormconfig"
	"ormext/internal/platform"
)

type fakeConnection struct {
	p *platform.Platform
}

func (f fakeConnection) DatabasePlatform() *platform.Platform { return f.p }

func TestTables(t *testing.T) {
	require.NoError(t, ValidateTables())

	assert.Len(t, Functions(ormconfig.Datetime), 4)
	assert.Len(t, Functions(ormconfig.Numeric), 16)
	assert.Len(t, Functions(ormconfig.String), 6)
	assert.Len(t, FunctionMappings(), 26)
	assert.Len(t, OverridingTypes(), 2)
	assert.Len(t, NewTypes(), 2)

	for _, f := range Functions(ormconfig.Numeric) {
		assert.Equal(t, ormconfig.Numeric, f.Category)
	}
}

func TestValidate_Rejects(t *testing.T) {
	dupType := []TypeMapping{
		{LogicalName: "money", Handler: dbtype.MoneyType{}, StorageKind: "decimal", Mode: Override},
		{LogicalName: "money", Handler: dbtype.MoneyType{}, StorageKind: "decimal", Mode: New},
	}
	assert.ErrorContains(t, validate(dupType, nil), "declared twice")

	upper := []FunctionMapping{{Name: "MD5", Handler: SimpleFunction, Category: ormconfig.String}}
	assert.ErrorContains(t, validate(nil, upper), "lower-case")

	reserved := []FunctionMapping{{Name: "count", Handler: SimpleFunction, Category: ormconfig.Numeric}}
	assert.ErrorIs(t, validate(nil, reserved), ormconfig.ErrReservedName)

	dupFunc := []FunctionMapping{
		{Name: "day", Handler: SimpleFunction, Category: ormconfig.Numeric},
		{Name: "day", Handler: SimpleFunction, Category: ormconfig.Numeric},
	}
	assert.ErrorContains(t, validate(nil, dupFunc), "declared twice")
}

func TestApplyGlobally(t *testing.T) {
	catalog := dbtype.NewCatalog()

	require.NoError(t, ApplyGlobally(catalog, Idempotent))

	for _, m := range TypeMappings() {
		h, err := catalog.Lookup(m.LogicalName)
		require.NoError(t, err)
		assert.Equal(t, m.Handler.ID(), h.ID(), m.LogicalName)
	}
}

func TestApplyGlobally_ReapplyAfterReset(t *testing.T) {
	catalog := dbtype.NewCatalog()
	require.NoError(t, ApplyGlobally(catalog, Strict))
	first := catalog.Names()

	catalog.Reset()
	require.NoError(t, ApplyGlobally(catalog, Strict))
	assert.Equal(t, first, catalog.Names())
}

func TestApplyGlobally_PriorRegistrationWithoutReset(t *testing.T) {
	catalog := dbtype.NewCatalog()
	require.NoError(t, ApplyGlobally(catalog, Idempotent))

	require.NoError(t, ApplyGlobally(catalog, Idempotent))
	h, err := catalog.Lookup(dbtype.Array)
	require.NoError(t, err)
	assert.Equal(t, dbtype.ArrayTypeID, h.ID())

	err = ApplyGlobally(catalog, Strict)
	require.Error(t, err)
	assert.True(t, dbtype.IsDuplicateType(err))
}

func TestApplyGlobally_ForeignHandlerIsNotIgnored(t *testing.T) {
	catalog := dbtype.NewCatalog()
	require.NoError(t, catalog.Add(dbtype.Money, dbtype.PercentType{}))

	err := ApplyGlobally(catalog, Idempotent)
	require.Error(t, err)
	assert.True(t, dbtype.IsDuplicateType(err))
}

func TestApplyGlobally_MissingBaseType(t *testing.T) {
	err := ApplyGlobally(&dbtype.Catalog{}, Idempotent)
	require.Error(t, err)
	assert.True(t, dbtype.IsMissingBaseType(err))
}

func TestApplyToConnection(t *testing.T) {
	catalog := dbtype.NewCatalog()
	require.NoError(t, ApplyGlobally(catalog, Idempotent))

	p, err := platform.New(platform.MySQL, catalog)
	require.NoError(t, err)

	n, err := ApplyToConnection(fakeConnection{p: p})
	require.NoError(t, err)
	assert.Equal(t, len(TypeMappings()), n)
	assert.Len(t, p.CustomMappings(), len(TypeMappings()))

	for _, m := range TypeMappings() {
		assert.True(t, p.HasMapping(m.StorageKind, m.LogicalName), m.LogicalName)
	}
}

func TestApplyToConnection_BeforeGlobalApply(t *testing.T) {
	p, err := platform.New(platform.PostgreSQL, dbtype.NewCatalog())
	require.NoError(t, err)

	_, err = ApplyToConnection(fakeConnection{p: p})
	require.Error(t, err)
	assert.True(t, dbtype.IsUnknownType(err))

	_, err = ApplyToConnection(fakeConnection{})
	assert.Error(t, err)
}

func TestApplyFunctionsIfConfigured(t *testing.T) {
	cfg := ormconfig.NewConfiguration()

	n, err := ApplyFunctionsIfConfigured("", cfg)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, cfg.FunctionCount())

	n, err = ApplyFunctionsIfConfigured("pdo_mysql", cfg)
	require.NoError(t, err)
	assert.Equal(t, 26, n)
	assert.Len(t, cfg.Functions(ormconfig.Datetime), 4)
	assert.Len(t, cfg.Functions(ormconfig.Numeric), 16)
	assert.Len(t, cfg.Functions(ormconfig.String), 6)

	h, ok := cfg.CustomDatetimeFunction("convert_tz")
	require.True(t, ok)
	assert.Equal(t, ConvertTz, h)
}

func TestRegisterFunction_UnknownCategory(t *testing.T) {
	err := RegisterFunction(ormconfig.NewConfiguration(), FunctionMapping{Name: "x", Handler: "X", Category: "bool"})
	assert.ErrorContains(t, err, "unknown function category")
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, Idempotent, p)

	p, err = ParsePolicy("STRICT")
	require.NoError(t, err)
	assert.Equal(t, Strict, p)

	_, err = ParsePolicy("sometimes")
	assert.Error(t, err)
}

func TestFingerprint_Stable(t *testing.T) {
	assert.Equal(t, Fingerprint(), Fingerprint())
	assert.NotEmpty(t, Fingerprint())
}

func TestCheckDriver(t *testing.T) {
	for _, d := range []string{"", "mysql", "mysql2", "pdo_mysql", "pgsql", "postgres", "postgresql", "pdo_pgsql"} {
		assert.NoError(t, CheckDriver(d), d)
	}
	for _, d := range []string{"invalid_driver_name", "MySQL", "sqlite", " mysql"} {
		assert.ErrorIs(t, CheckDriver(d), ErrUnsupportedDriver, d)
	}
	assert.Len(t, Drivers(), 7)
	assert.False(t, IsSupportedDriver(""))
}
