package stash

import (
	"context"
	"io"
)

// Vault is an archival backend for export snapshots. Snapshots stream
// through io.Reader so large trees never load into memory. Keys are
// opaque to the vault; the service derives them from the exported user
// and a fresh snapshot ID.
type Vault interface {
	// PutSnapshot stores the snapshot read from r under key. Writing the
	// same key twice replaces the previous snapshot.
	PutSnapshot(ctx context.Context, key string, r io.Reader) error

	// ValidateSetup verifies that the vault is accessible and properly
	// configured.
	ValidateSetup(ctx context.Context) error
}
