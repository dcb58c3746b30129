package vault

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fstash/internal/config"
)

func TestFileSystemVaultPutSnapshot(t *testing.T) {
	root := t.TempDir()
	v, err := NewFileSystemVault("test", root)
	if err != nil {
		t.Fatalf("NewFileSystemVault() error: %v", err)
	}
	ctx := context.Background()

	t.Run("stores under nested key", func(t *testing.T) {
		err := v.PutSnapshot(ctx, "7/20240115T103000Z-abc.tar.gz", strings.NewReader("snapshot-bytes"))
		if err != nil {
			t.Fatalf("PutSnapshot() error: %v", err)
		}

		data, err := os.ReadFile(filepath.Join(root, "snapshots", "7", "20240115T103000Z-abc.tar.gz"))
		if err != nil {
			t.Fatalf("reading stored snapshot: %v", err)
		}
		if string(data) != "snapshot-bytes" {
			t.Errorf("content = %q, want %q", data, "snapshot-bytes")
		}
	})

	t.Run("replaces existing key", func(t *testing.T) {
		if err := v.PutSnapshot(ctx, "dup", strings.NewReader("one")); err != nil {
			t.Fatal(err)
		}
		if err := v.PutSnapshot(ctx, "dup", strings.NewReader("two")); err != nil {
			t.Fatal(err)
		}
		data, _ := os.ReadFile(filepath.Join(root, "snapshots", "dup"))
		if string(data) != "two" {
			t.Errorf("content = %q, want %q", data, "two")
		}
	})

	t.Run("leaves no temp files", func(t *testing.T) {
		entries, err := os.ReadDir(filepath.Join(root, "snapshots"))
		if err != nil {
			t.Fatal(err)
		}
		for _, entry := range entries {
			if strings.HasPrefix(entry.Name(), ".tmp-") {
				t.Errorf("stray temp file %s", entry.Name())
			}
		}
	})

	t.Run("cancelled context fails", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()
		if err := v.PutSnapshot(cancelled, "late", strings.NewReader("x")); err == nil {
			t.Error("PutSnapshot(cancelled ctx) expected error")
		}
	})
}

func TestFileSystemVaultValidateSetup(t *testing.T) {
	root := t.TempDir()
	v, err := NewFileSystemVault("test", root)
	if err != nil {
		t.Fatal(err)
	}

	if err := v.ValidateSetup(context.Background()); err != nil {
		t.Errorf("ValidateSetup() error: %v", err)
	}

	if err := os.RemoveAll(filepath.Join(root, "snapshots")); err != nil {
		t.Fatal(err)
	}
	if err := v.ValidateSetup(context.Background()); err == nil {
		t.Error("ValidateSetup() after removing snapshots dir expected error")
	}
}

func TestMemoryVault(t *testing.T) {
	v := NewMemoryVault()
	ctx := context.Background()

	if err := v.PutSnapshot(ctx, "a/b", strings.NewReader("data")); err != nil {
		t.Fatalf("PutSnapshot() error: %v", err)
	}
	if got := v.Snapshot("a/b"); string(got) != "data" {
		t.Errorf("Snapshot() = %q, want %q", got, "data")
	}
	if got := v.Snapshot("missing"); got != nil {
		t.Errorf("Snapshot(missing) = %v, want nil", got)
	}
	if keys := v.Keys(); len(keys) != 1 || keys[0] != "a/b" {
		t.Errorf("Keys() = %v, want [a/b]", keys)
	}
	if err := v.ValidateSetup(ctx); err != nil {
		t.Errorf("ValidateSetup() error: %v", err)
	}
}

func TestNewVaultFromConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		v, err := NewVaultFromConfig(ctx, config.VaultConfig{Type: "memory", Name: "m"})
		if err != nil {
			t.Fatalf("NewVaultFromConfig() error: %v", err)
		}
		if _, ok := v.(*MemoryVault); !ok {
			t.Errorf("got %T, want *MemoryVault", v)
		}
	})

	t.Run("filesystem", func(t *testing.T) {
		v, err := NewVaultFromConfig(ctx, config.VaultConfig{
			Type:        "filesystem",
			Name:        "fs",
			FSVaultRoot: t.TempDir(),
		})
		if err != nil {
			t.Fatalf("NewVaultFromConfig() error: %v", err)
		}
		if _, ok := v.(*FileSystemVault); !ok {
			t.Errorf("got %T, want *FileSystemVault", v)
		}
	})

	t.Run("filesystem without root fails", func(t *testing.T) {
		if _, err := NewVaultFromConfig(ctx, config.VaultConfig{Type: "filesystem", Name: "fs"}); err == nil {
			t.Error("expected error for missing fs_vault_root")
		}
	})

	t.Run("s3 without bucket fails", func(t *testing.T) {
		if _, err := NewVaultFromConfig(ctx, config.VaultConfig{Type: "s3", Name: "s3"}); err == nil {
			t.Error("expected error for missing s3_bucket")
		}
	})

	t.Run("unknown type fails", func(t *testing.T) {
		if _, err := NewVaultFromConfig(ctx, config.VaultConfig{Type: "tape", Name: "t"}); err == nil {
			t.Error("expected error for unknown type")
		}
	})
}
