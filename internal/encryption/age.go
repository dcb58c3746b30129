package encryption

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"filippo.io/age"

	"fstash/internal/config"
	"fstash/internal/stash"
)

// AgeEncryptor implements stash.Encryptor using filippo.io/age with X25519
// keys. The public key sits on disk in plaintext so the service can encrypt
// export snapshots unattended; the private key is wrapped with the operator's
// passphrase via age's scrypt recipient and is only ever needed for offline
// restores.
type AgeEncryptor struct {
	publicKeyPath  string
	privateKeyPath string

	// recipient caches the parsed public key after the first Encrypt.
	recipient age.Recipient
}

var _ stash.Encryptor = (*AgeEncryptor)(nil)

// NewAgeEncryptor creates a new AgeEncryptor from configuration.
func NewAgeEncryptor(cfg config.EncryptionConfig) *AgeEncryptor {
	return &AgeEncryptor{
		publicKeyPath:  cfg.PublicKeyPath,
		privateKeyPath: cfg.PrivateKeyPath,
	}
}

// Setup generates an X25519 key pair. The public half is written in
// plaintext; the private half is passphrase-encrypted before it touches disk.
func (e *AgeEncryptor) Setup(passphrase string) error {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generating key pair: %w", err)
	}

	for _, p := range []string{e.publicKeyPath, e.privateKeyPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0700); err != nil {
			return fmt.Errorf("creating key directory: %w", err)
		}
	}

	if err := os.WriteFile(e.publicKeyPath, []byte(identity.Recipient().String()+"\n"), 0644); err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}

	if err := e.writePrivateKey(identity, passphrase); err != nil {
		return err
	}

	e.recipient = identity.Recipient()
	return nil
}

func (e *AgeEncryptor) writePrivateKey(identity *age.X25519Identity, passphrase string) error {
	privFile, err := os.OpenFile(e.privateKeyPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating private key file: %w", err)
	}
	defer privFile.Close()

	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt recipient: %w", err)
	}

	w, err := age.Encrypt(privFile, recipient)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.WriteString(w, identity.String()+"\n"); err != nil {
		return fmt.Errorf("writing encrypted private key: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing encrypted private key: %w", err)
	}
	return nil
}

// Encrypt reads plaintext from r and writes age ciphertext to w using the
// stored public key.
func (e *AgeEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if e.recipient == nil {
		recipient, err := loadRecipient(e.publicKeyPath)
		if err != nil {
			return err
		}
		e.recipient = recipient
	}

	encWriter, err := age.Encrypt(w, e.recipient)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.Copy(encWriter, r); err != nil {
		return fmt.Errorf("encrypting data: %w", err)
	}
	if err := encWriter.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}
	return nil
}

// IsConfigured returns true if both key files exist.
func (e *AgeEncryptor) IsConfigured() bool {
	if _, err := os.Stat(e.publicKeyPath); err != nil {
		return false
	}
	if _, err := os.Stat(e.privateKeyPath); err != nil {
		return false
	}
	return true
}

func loadRecipient(path string) (age.Recipient, error) {
	pubData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading public key: %w", err)
	}

	recipients, err := age.ParseRecipients(bytes.NewReader(pubData))
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("no recipients found in public key file")
	}
	return recipients[0], nil
}

// DecryptSnapshot decrypts an exported snapshot with the passphrase-wrapped
// private key at privateKeyPath. It is the restore-side counterpart to
// Encrypt, used by the CLI and never by the service itself.
func DecryptSnapshot(privateKeyPath, passphrase string, r io.Reader, w io.Writer) error {
	privData, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return fmt.Errorf("reading private key file: %w", err)
	}

	scrypt, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt identity: %w", err)
	}

	keyReader, err := age.Decrypt(bytes.NewReader(privData), scrypt)
	if err != nil {
		return fmt.Errorf("decrypting private key: %w", err)
	}
	keyData, err := io.ReadAll(keyReader)
	if err != nil {
		return fmt.Errorf("reading decrypted private key: %w", err)
	}

	identities, err := age.ParseIdentities(bytes.NewReader(keyData))
	if err != nil {
		return fmt.Errorf("parsing private key: %w", err)
	}
	if len(identities) == 0 {
		return fmt.Errorf("no identities found in private key")
	}

	plainReader, err := age.Decrypt(r, identities...)
	if err != nil {
		return fmt.Errorf("decrypting snapshot: %w", err)
	}
	if _, err := io.Copy(w, plainReader); err != nil {
		return fmt.Errorf("reading decrypted snapshot: %w", err)
	}
	return nil
}
