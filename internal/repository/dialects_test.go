package repository

import (
	"database/sql"
	"testing"

	"github.com/hitoshi/habitvote/internal/testutil"
)

// forEachDialect はSQLiteとPostgreSQLの両方でfnを実行する。
// PostgreSQLはTEST_DATABASE_URLが設定されている場合のみ実行される。
func forEachDialect(t *testing.T, fn func(t *testing.T, db *sql.DB, dialect Dialect)) {
	t.Helper()

	t.Run("sqlite", func(t *testing.T) {
		fn(t, testutil.NewTestDB(t), DialectSQLite)
	})
	t.Run("postgres", func(t *testing.T) {
		fn(t, testutil.NewPostgresTestDB(t), DialectPostgres)
	})
}
