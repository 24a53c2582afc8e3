package testutil

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/onnwee/livewatch/store"
)

// PostgresStore returns a migrated Postgres-backed store scoped to a fresh
// profile whose rows are deleted when the test ends. It skips the test if
// TEST_PG_DSN is not set.
func PostgresStore(t *testing.T) *store.PostgresStore {
	t.Helper()
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set")
	}
	db, err := store.Connect(dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := store.Migrate(context.Background(), db); err != nil {
		_ = db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	profile := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	t.Cleanup(func() {
		_, _ = db.ExecContext(context.Background(), `DELETE FROM viewer_state WHERE profile LIKE $1`, profile+"%")
		_ = db.Close()
	})
	return &store.PostgresStore{DB: db, Profile: profile}
}
