package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the main configuration for fstash.
type Config struct {
	// DataDir roots the storage layout; user trees live under
	// <DataDir>/<UsersDir>/<user-id>/{public,private}.
	DataDir  string `toml:"data_dir" validate:"required"`
	UsersDir string `toml:"users_dir" validate:"required"`
	LogDir   string `toml:"log_dir" validate:"required"`

	Database   DatabaseConfig   `toml:"database"`
	Vaults     []VaultConfig    `toml:"vaults" validate:"dive"`
	Encryption EncryptionConfig `toml:"encryption"`
}

// DatabaseConfig selects the identity store backend. Tagged union: the
// Type field decides which other fields apply.
type DatabaseConfig struct {
	Type    string `toml:"type" validate:"required,oneof=sqlite memory"`
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// VaultConfig describes one snapshot vault backend. Tagged union on Type.
type VaultConfig struct {
	Type string `toml:"type" validate:"required,oneof=memory s3 filesystem"`
	Name string `toml:"name" validate:"required"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty"` // custom endpoint for MinIO etc.
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// Filesystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// EncryptionConfig holds the age key pair used to encrypt export
// snapshots. Snapshots go out unencrypted when Enabled is false.
type EncryptionConfig struct {
	Enabled        bool   `toml:"enabled"`
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// NewConfig creates a Config with defaults rooted at baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		DataDir:  filepath.Join(baseDir, "data"),
		UsersDir: "users",
		LogDir:   filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Encryption: EncryptionConfig{
			PublicKeyPath:  filepath.Join(baseDir, "keys", "fstash.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "fstash.key"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return nil
}

// ReadFromFile reads and validates a Config from the given path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes a new config file at path. Fails if one already exists.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
