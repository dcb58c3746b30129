package testutil

import (
	"testing"

	"fstash/internal/database"
	"fstash/internal/database/migrations"
	"fstash/internal/model"
)

// NewTestStore creates a new in-memory SQLite store with schema applied.
// The store is automatically closed when the test completes.
func NewTestStore(t *testing.T) *database.SQLiteStore {
	t.Helper()

	store, err := database.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	if err := migrations.MigrateUp(store.DB()); err != nil {
		store.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

// CreateTestUser inserts an account with the given name and rank. The
// password is always "secret".
func CreateTestUser(t *testing.T, store *database.SQLiteStore, name string, rank model.Rank) *model.User {
	t.Helper()

	hash, err := model.HashPassword("secret")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	u, err := store.CreateUser(name, hash, rank)
	if err != nil {
		t.Fatalf("failed to create user %s: %v", name, err)
	}
	return u
}
