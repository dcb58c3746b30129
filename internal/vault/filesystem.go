package vault

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"fstash/internal/stash"
)

// FileSystemVault stores snapshots as files under a root directory:
//
//	<root>/snapshots/<key>
//
// Keys may contain slashes (user-id prefixes); intermediate directories
// are created on demand. Writes go through a temp file plus rename, so a
// reader never sees a partially written snapshot.
type FileSystemVault struct {
	name string
	root string
}

// NewFileSystemVault creates a filesystem vault rooted at the given path.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	if err := os.MkdirAll(filepath.Join(root, "snapshots"), 0755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}
	return &FileSystemVault{name: name, root: root}, nil
}

// PutSnapshot stores the snapshot read from r under key, replacing any
// previous snapshot with the same key.
func (v *FileSystemVault) PutSnapshot(ctx context.Context, key string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dest := filepath.Join(v.root, "snapshots", filepath.FromSlash(key))
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("finalizing snapshot: %w", err)
	}

	success = true
	return nil
}

// ValidateSetup verifies the vault directories are accessible.
func (v *FileSystemVault) ValidateSetup(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, dir := range []string{v.root, filepath.Join(v.root, "snapshots")} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("vault directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("vault path is not a directory: %s", dir)
		}
	}
	return nil
}

var _ stash.Vault = (*FileSystemVault)(nil)
