package dbconn

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ormext/internal/dbtype"
	"ormext/internal/platform"
)

func TestServerVersion(t *testing.T) {
	tests := []struct {
		name   string
		family platform.Family
		query  string
	}{
		{name: "mysql", family: platform.MySQL, query: "SELECT VERSION()"},
		{name: "postgresql", family: platform.PostgreSQL, query: "SELECT version()"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock db: %v", err)
			}
			defer db.Close()

			p, err := platform.New(tt.family, dbtype.NewCatalog())
			require.NoError(t, err)

			mock.ExpectQuery(regexp.QuoteMeta(tt.query)).
				WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow("8.0.36"))

			conn := New("default", string(tt.family), db, p)
			version, err := conn.ServerVersion(context.Background())
			require.NoError(t, err)
			assert.Equal(t, "8.0.36", version)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestServerVersion_Error(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	p, err := platform.New(platform.MySQL, dbtype.NewCatalog())
	require.NoError(t, err)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT VERSION()")).WillReturnError(sql.ErrConnDone)

	_, err = New("primary", "mysql", db, p).ServerVersion(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.Contains(t, err.Error(), `"primary"`)
}

func TestOpen_SQLite(t *testing.T) {
	conn, err := Open(Config{Name: "local", Driver: "sqlite", DSN: ":memory:", MaxOpenConns: 1}, dbtype.NewCatalog(), Options{})
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, "local", conn.Name())
	assert.Equal(t, platform.SQLite, conn.DatabasePlatform().Family())

	require.NoError(t, PingAll(context.Background(), []*Connection{conn}))

	version, err := conn.ServerVersion(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, version)
}

func TestOpen_Instrumented(t *testing.T) {
	conn, err := Open(Config{Name: "traced", Driver: "sqlite", DSN: ":memory:"}, dbtype.NewCatalog(), Options{Metrics: true, Tracing: true, SQLCommenter: true})
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, PingAll(context.Background(), []*Connection{conn}))
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(Config{Name: "x", Driver: "oracle"}, dbtype.NewCatalog(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported driver")
}

func TestPingAll_Failure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	p, err := platform.New(platform.MySQL, dbtype.NewCatalog())
	require.NoError(t, err)
	mock.ExpectPing().WillReturnError(sql.ErrConnDone)

	err = PingAll(context.Background(), []*Connection{New("broken", "mysql", db, p)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `connection "broken"`)

	err = PingAll(context.Background(), []*Connection{New("nil", "mysql", nil, p)})
	assert.ErrorIs(t, err, sql.ErrConnDone)
}
