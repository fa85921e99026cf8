// Package testutil はテスト用の共通ヘルパーを提供する。
package testutil

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/hitoshi/habitvote/internal/database"
)

// PostgresURLEnv はPostgreSQLを使うテストの接続先を指定する環境変数名。
const PostgresURLEnv = "TEST_DATABASE_URL"

// NewTestDB はマイグレーション適用済みのインメモリSQLiteデータベースを返す。
// テスト終了時に自動でクローズされる。
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(database.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if err := database.MigrateDB(database.DriverSQLite, db); err != nil {
		db.Close()
		t.Fatalf("failed to apply migrations: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// NewPostgresTestDB はテストごとに専用スキーマを作成し、マイグレーション適用済みの接続を返す。
// TEST_DATABASE_URLが未設定、または接続できない場合はテストをスキップする。
// スキーマはテスト終了時に削除される。
func NewPostgresTestDB(t *testing.T) *sql.DB {
	t.Helper()

	baseURL := os.Getenv(PostgresURLEnv)
	if baseURL == "" {
		t.Skipf("%s is not set", PostgresURLEnv)
	}

	admin, err := database.Open(database.DriverPostgres, baseURL)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := admin.Ping(); err != nil {
		admin.Close()
		t.Skipf("テスト用データベースに接続できません（スキップ）: %v", err)
	}

	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if _, err := admin.Exec("CREATE SCHEMA " + schema); err != nil {
		admin.Close()
		t.Fatalf("failed to create schema: %v", err)
	}

	schemaURL, err := withSearchPath(baseURL, schema)
	if err != nil {
		admin.Close()
		t.Fatalf("invalid %s: %v", PostgresURLEnv, err)
	}

	db, err := database.Open(database.DriverPostgres, schemaURL)
	if err != nil {
		admin.Close()
		t.Fatalf("failed to open database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
		if _, err := admin.Exec("DROP SCHEMA " + schema + " CASCADE"); err != nil {
			t.Logf("failed to drop schema %s: %v", schema, err)
		}
		admin.Close()
	})

	if err := database.MigrateDB(database.DriverPostgres, db); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}

	return db
}

// withSearchPath は接続URLにsearch_pathを付与する。lib/pqは未知のパラメータをセッション設定として送る。
func withSearchPath(rawURL, schema string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
