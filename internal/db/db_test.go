package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrator_SQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "drive.db")

	database, err := Init("sqlite", path+"?_pragma=foreign_keys(1)")
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(database) })

	m, err := NewMigrator(database.DB, "sqlite")
	require.NoError(t, err)

	states, err := m.Status(ctx)
	require.NoError(t, err)
	want := []MigrationState{{Version: 1, File: "00001_create_users.sql"}}
	if diff := cmp.Diff(want, states); diff != "" {
		t.Errorf("status before up (-want +got):\n%s", diff)
	}

	require.NoError(t, m.Up(ctx))

	var count int
	err = database.Get(&count, `SELECT COUNT(*) FROM users`)
	require.NoError(t, err)
	assert.Zero(t, count)

	states, err = m.Status(ctx)
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.True(t, states[0].Applied)

	// Up is idempotent.
	require.NoError(t, RunMigrations(ctx, database.DB, "sqlite"))

	require.NoError(t, m.Down(ctx))
	err = database.Get(&count, `SELECT COUNT(*) FROM users`)
	assert.Error(t, err, "users table should be dropped")
}

func TestGetDialect(t *testing.T) {
	assert.Equal(t, goose.DialectSQLite3, getDialect("sqlite"))
	assert.Equal(t, goose.DialectPostgres, getDialect("pgx"))
	assert.Equal(t, goose.Dialect("mysql"), getDialect("mysql"))
}

func TestNewMigrator_UnknownDialect(t *testing.T) {
	database, err := Init("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(database) })

	_, err = NewMigrator(database.DB, "oracle")
	assert.Error(t, err)
}

func TestEnsureSQLiteDir_Memory(t *testing.T) {
	assert.NoError(t, ensureSQLiteDir(":memory:"))
	assert.NoError(t, ensureSQLiteDir("file::memory:?cache=shared"))
}
