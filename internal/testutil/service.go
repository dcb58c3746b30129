package testutil

import (
	"testing"

	"fstash/internal/stash"
	"fstash/internal/vault"
)

// NewTestService builds a full service over an in-memory store, a
// t.TempDir storage root and a memory vault. Returns the service and
// the vault for snapshot assertions.
func NewTestService(t *testing.T) (*stash.Service, *vault.MemoryVault) {
	t.Helper()

	store := NewTestStore(t)

	resolver, err := stash.NewResolver(t.TempDir(), "users")
	if err != nil {
		t.Fatalf("failed to create resolver: %v", err)
	}

	v := vault.NewMemoryVault()
	svc := stash.NewService(store, resolver, v, nil, nil, FixedClock(), NewStubIDGenerator())
	return svc, v
}
