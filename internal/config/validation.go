package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks a Config with struct-tag rules plus the cross-field
// rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	names := make(map[string]bool)
	for i, v := range cfg.Vaults {
		if names[v.Name] {
			return fmt.Errorf("vaults[%d]: duplicate vault name %q", i, v.Name)
		}
		names[v.Name] = true

		switch v.Type {
		case "s3":
			if v.S3Bucket == "" || v.S3Region == "" {
				return fmt.Errorf("vaults[%d]: s3 vault needs s3_bucket and s3_region", i)
			}
		case "filesystem":
			if v.FSVaultRoot == "" {
				return fmt.Errorf("vaults[%d]: filesystem vault needs fs_vault_root", i)
			}
		}
	}

	if cfg.Database.Type == "sqlite" && cfg.Database.DataDir == "" {
		return fmt.Errorf("database: data_dir required for sqlite")
	}

	if cfg.Encryption.Enabled {
		if cfg.Encryption.PublicKeyPath == "" || cfg.Encryption.PrivateKeyPath == "" {
			return fmt.Errorf("encryption: key paths required when enabled")
		}
	}

	return nil
}

// formatValidationError turns validator errors into a readable message.
func formatValidationError(err error) error {
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		e := errs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
