// Package databasetest opens throwaway databases migrated with the production schema.
package databasetest

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keneth217/bank/internal/infrastructure/database"
)

// NewSQLite returns a migrated SQLite database in a per-test temp directory. It is closed on cleanup.
func NewSQLite(t testing.TB) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "bank.db")
	require.NoError(t, database.Migrate(database.SQLite, database.SQLiteMigrationURL(path)))

	db, err := database.NewSQLiteDB(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}
