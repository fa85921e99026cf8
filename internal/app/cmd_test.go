package app

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/habitvote/internal/auth"
)

func TestRun_Token_IssuesVerifiableToken(t *testing.T) {
	setTestEnv(t)

	var logs, out bytes.Buffer
	if err := Run(&logs, &out, []string{"token", "42", "--email", "dev@example.com"}); err != nil {
		t.Fatalf("Run(token) error = %v", err)
	}

	token := strings.TrimSpace(out.String())
	claims, err := auth.NewVerifier(auth.TokenConfig{
		Secret: []byte("test-jwt-secret-32bytes-long!!!!"),
		Issuer: "habitvote",
	}).Verify(token)
	if err != nil {
		t.Fatalf("issued token should verify: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("UserID = %d, want 42", claims.UserID)
	}
	if claims.Email != "dev@example.com" {
		t.Errorf("Email = %q, want dev@example.com", claims.Email)
	}
	if ttl := claims.ExpiresAt.Sub(claims.IssuedAt); ttl != 7*24*time.Hour {
		t.Errorf("ttl = %v, want 168h", ttl)
	}
}

func TestRun_Token_InvalidUserID(t *testing.T) {
	setTestEnv(t)

	for _, arg := range []string{"abc", "0", "-3"} {
		var logs, out bytes.Buffer
		if err := Run(&logs, &out, []string{"token", arg}); err == nil {
			t.Errorf("Run(token %s) should fail", arg)
		}
	}
}

func TestRun_Token_RequiresArgument(t *testing.T) {
	setTestEnv(t)

	var logs, out bytes.Buffer
	if err := Run(&logs, &out, []string{"token"}); err == nil {
		t.Error("Run(token) without userId should fail")
	}
}

// migrate → seed-identity の順に実行すると主identityが作成され、再実行しても同じIDが返ること
func TestRun_MigrateAndSeedIdentity_SQLite(t *testing.T) {
	setTestEnv(t)
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", filepath.Join(t.TempDir(), "habitvote.db"))

	var logs bytes.Buffer
	if err := Run(&logs, &bytes.Buffer{}, []string{"migrate"}); err != nil {
		t.Fatalf("Run(migrate) error = %v\nlogs: %s", err, logs.String())
	}

	var first, second bytes.Buffer
	if err := Run(&logs, &first, []string{"seed-identity", "7"}); err != nil {
		t.Fatalf("Run(seed-identity) error = %v", err)
	}
	if err := Run(&logs, &second, []string{"seed-identity", "7"}); err != nil {
		t.Fatalf("Run(seed-identity) second error = %v", err)
	}

	if strings.TrimSpace(first.String()) == "" {
		t.Fatal("seed-identity should print the identity id")
	}
	if first.String() != second.String() {
		t.Errorf("seed-identity ids differ: %q vs %q", first.String(), second.String())
	}
}

func TestRun_WithMissingEnv_ReturnsError(t *testing.T) {
	setTestEnv(t)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")

	var buf bytes.Buffer
	if err := Run(&buf, &buf, []string{"serve"}); err == nil {
		t.Fatal("Run with missing env should return error")
	}
}

func TestRun_UnknownCommand_ReturnsError(t *testing.T) {
	var buf bytes.Buffer
	if err := Run(&buf, &buf, []string{"worker"}); err == nil {
		t.Error("Run(worker) should fail")
	}
}

// サーバーが起動していない場合、healthcheckはエラーを返すこと
func TestRun_Healthcheck_NoServer(t *testing.T) {
	t.Setenv("SERVER_PORT", "1")

	var buf bytes.Buffer
	if err := Run(&buf, &buf, []string{"healthcheck"}); err == nil {
		t.Error("healthcheck should fail when nothing is listening")
	}
}

func TestNewRootCommand_RegistersSubcommands(t *testing.T) {
	root := NewRootCommand(&bytes.Buffer{}, &bytes.Buffer{})

	for _, name := range []Command{CommandServe, CommandMigrate, CommandHealthcheck, CommandToken, CommandSeedIdentity} {
		cmd, _, err := root.Find([]string{string(name)})
		if err != nil || cmd == root {
			t.Errorf("subcommand %q not registered", name)
		}
	}
	if root.PersistentFlags().Lookup("config") == nil {
		t.Error("--config flag should be registered")
	}
}
