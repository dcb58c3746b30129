package vault

import (
	"context"
	"fmt"

	"fstash/internal/config"
	"fstash/internal/stash"
)

// NewVaultFromConfig creates a Vault implementation based on the vault config type.
func NewVaultFromConfig(ctx context.Context, cfg config.VaultConfig) (stash.Vault, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryVault(), nil
	case "s3":
		if cfg.S3Bucket == "" || cfg.S3Region == "" {
			return nil, fmt.Errorf("s3 vault requires s3_bucket and s3_region to be set")
		}
		return NewS3Vault(ctx, cfg)
	case "filesystem":
		if cfg.FSVaultRoot == "" {
			return nil, fmt.Errorf("filesystem vault requires fs_vault_root to be set")
		}
		return NewFileSystemVault(cfg.Name, cfg.FSVaultRoot)
	default:
		return nil, fmt.Errorf("unknown vault type: %s", cfg.Type)
	}
}
