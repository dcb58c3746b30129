package vault

import (
	"context"
	"io"
	"sync"

	"fstash/internal/stash"
)

// MemoryVault keeps snapshots in a map. It exists for tests and for
// configurations that only want the export path exercised without
// persistent storage.
type MemoryVault struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
}

func NewMemoryVault() *MemoryVault {
	return &MemoryVault{snapshots: make(map[string][]byte)}
}

func (v *MemoryVault) PutSnapshot(ctx context.Context, key string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.snapshots[key] = data
	return nil
}

func (v *MemoryVault) ValidateSetup(ctx context.Context) error {
	return ctx.Err()
}

// Snapshot returns the stored bytes for key, or nil if absent.
func (v *MemoryVault) Snapshot(key string) []byte {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.snapshots[key]
}

// Keys returns the keys of all stored snapshots.
func (v *MemoryVault) Keys() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	keys := make([]string, 0, len(v.snapshots))
	for k := range v.snapshots {
		keys = append(keys, k)
	}
	return keys
}

var _ stash.Vault = (*MemoryVault)(nil)
