package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"fstash/internal/config"
	"fstash/internal/database"
	"fstash/internal/database/migrations"
	"fstash/internal/encryption"
	"fstash/internal/model"
	"fstash/internal/stash"
	"fstash/internal/vault"
)

// StashApp is the application layer between the CLI and the stash service.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw strings, and manages the store lifecycle on Close.
type StashApp struct {
	cfg     *config.Config
	store   *database.SQLiteStore
	vault   stash.Vault
	service *stash.Service
	logFile *os.File
}

// NewStashApp creates a fully wired StashApp from the given config.
// command identifies the CLI command being run (e.g. "user add", "storage mv");
// it tags every log line of the session. The caller must call Close when done.
func NewStashApp(ctx context.Context, cfg *config.Config, command string) (*StashApp, error) {
	store, err := database.NewStoreFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}

	if cfg.Database.Type == "sqlite" {
		if err := migrations.CheckSchemaStatus(store.DB()); err != nil {
			store.Close()
			return nil, fmt.Errorf("database schema out of date (run `fstash db migrate`): %w", err)
		}
	}

	resolver, err := stash.NewResolver(cfg.DataDir, cfg.UsersDir)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating resolver: %w", err)
	}

	// Vaults only matter for exports; a deployment without them still
	// serves every storage operation.
	var v stash.Vault
	if len(cfg.Vaults) > 0 {
		v, err = vault.NewVaultFromConfig(ctx, cfg.Vaults[0])
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("creating vault: %w", err)
		}
	}

	enc := encryption.NewEncryptorFromConfig(cfg.Encryption)

	sessionID := fmt.Sprintf("%s %s", time.Now().UTC().Format("20060102T150405Z"), command)
	logger, logFile, err := newLogger(cfg.LogDir, sessionID)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	svc := stash.NewService(store, resolver, v, enc, &slogAdapter{l: logger}, stash.RealClock{}, stash.UUIDGenerator{})

	return &StashApp{
		cfg:     cfg,
		store:   store,
		vault:   v,
		service: svc,
		logFile: logFile,
	}, nil
}

// Service exposes the underlying stash service for callers that need the
// typed API directly.
func (a *StashApp) Service() *stash.Service { return a.service }

// Authenticate verifies a name/password pair and returns the account.
func (a *StashApp) Authenticate(name, password string) (*model.User, error) {
	return a.service.Authenticate(name, password)
}

// Do parses raw operation, owner, visibility and option strings into a
// request and dispatches it.
func (a *StashApp) Do(ctx context.Context, actor *model.User, operation, owner, visibility, path string, payload io.Reader, options map[string]string) (*stash.Result, error) {
	op, err := stash.ParseOperation(operation)
	if err != nil {
		return nil, err
	}
	return a.service.Do(ctx, &stash.Request{
		Actor:      actor,
		Op:         op,
		Owner:      owner,
		Visibility: visibility,
		Path:       path,
		Payload:    payload,
		Options:    options,
	})
}

// Bootstrap seeds the first Owner account on an empty store.
func (a *StashApp) Bootstrap(name, password string) (*model.User, error) {
	return a.service.Bootstrap(name, password)
}

// ListUsers returns all accounts ordered by ID.
func (a *StashApp) ListUsers(actor *model.User) ([]*model.User, error) {
	if actor == nil {
		return nil, stash.ErrNotAuthenticated
	}
	if actor.Rank < model.RankAdmin {
		return nil, fmt.Errorf("listing users requires Admin: %w", stash.ErrUnauthorized)
	}
	return a.store.ListUsers()
}

// SetupEncryption generates the export encryption key pair. The public
// key lands in plaintext; the private key is wrapped with the passphrase.
func (a *StashApp) SetupEncryption(passphrase string) error {
	if !a.cfg.Encryption.Enabled {
		return fmt.Errorf("encryption is disabled in config")
	}
	return encryption.NewAgeEncryptor(a.cfg.Encryption).Setup(passphrase)
}

// ValidateSetup verifies the configured vault is reachable.
func (a *StashApp) ValidateSetup(ctx context.Context) error {
	if a.vault == nil {
		return fmt.Errorf("no vault configured")
	}
	return a.vault.ValidateSetup(ctx)
}

// Close closes the store and the log file.
func (a *StashApp) Close() error {
	var firstErr error
	if err := a.store.Close(); err != nil {
		firstErr = fmt.Errorf("closing store: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
