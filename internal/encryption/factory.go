package encryption

import (
	"fstash/internal/config"
	"fstash/internal/stash"
)

// NewEncryptorFromConfig creates an Encryptor from the encryption config
// section. Returns nil when encryption is disabled; callers treat a nil
// encryptor as "store snapshots in plaintext".
func NewEncryptorFromConfig(cfg config.EncryptionConfig) stash.Encryptor {
	if !cfg.Enabled {
		return nil
	}
	return NewAgeEncryptor(cfg)
}
