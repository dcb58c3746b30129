package encryption

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fstash/internal/config"
)

func newTestEncryptor(t *testing.T) *AgeEncryptor {
	t.Helper()
	dir := t.TempDir()
	return NewAgeEncryptor(config.EncryptionConfig{
		Enabled:        true,
		PublicKeyPath:  filepath.Join(dir, "keys", "fstash.pub"),
		PrivateKeyPath: filepath.Join(dir, "keys", "fstash.key"),
	})
}

func TestAgeEncryptorSetup(t *testing.T) {
	e := newTestEncryptor(t)

	if e.IsConfigured() {
		t.Error("IsConfigured() = true before Setup")
	}

	if err := e.Setup("passphrase"); err != nil {
		t.Fatalf("Setup() error: %v", err)
	}
	if !e.IsConfigured() {
		t.Error("IsConfigured() = false after Setup")
	}

	pub, err := os.ReadFile(e.publicKeyPath)
	if err != nil {
		t.Fatalf("reading public key: %v", err)
	}
	if !strings.HasPrefix(string(pub), "age1") {
		t.Errorf("public key %q does not look like an age recipient", pub)
	}

	priv, err := os.ReadFile(e.privateKeyPath)
	if err != nil {
		t.Fatalf("reading private key: %v", err)
	}
	if strings.Contains(string(priv), "AGE-SECRET-KEY-") {
		t.Error("private key stored in plaintext")
	}
}

func TestAgeEncryptRoundTrip(t *testing.T) {
	e := newTestEncryptor(t)
	if err := e.Setup("passphrase"); err != nil {
		t.Fatalf("Setup() error: %v", err)
	}

	plaintext := []byte("snapshot contents")
	var ciphertext bytes.Buffer
	if err := e.Encrypt(bytes.NewReader(plaintext), &ciphertext); err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	if bytes.Contains(ciphertext.Bytes(), plaintext) {
		t.Error("ciphertext contains the plaintext")
	}

	var decrypted bytes.Buffer
	err := DecryptSnapshot(e.privateKeyPath, "passphrase", bytes.NewReader(ciphertext.Bytes()), &decrypted)
	if err != nil {
		t.Fatalf("DecryptSnapshot() error: %v", err)
	}
	if !bytes.Equal(decrypted.Bytes(), plaintext) {
		t.Errorf("round-trip = %q, want %q", decrypted.Bytes(), plaintext)
	}
}

func TestDecryptSnapshotWrongPassphrase(t *testing.T) {
	e := newTestEncryptor(t)
	if err := e.Setup("correct"); err != nil {
		t.Fatal(err)
	}

	var ciphertext bytes.Buffer
	if err := e.Encrypt(strings.NewReader("data"), &ciphertext); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := DecryptSnapshot(e.privateKeyPath, "wrong", bytes.NewReader(ciphertext.Bytes()), &out); err == nil {
		t.Error("DecryptSnapshot(wrong passphrase) expected error")
	}
}

func TestEncryptWithoutKeysFails(t *testing.T) {
	e := newTestEncryptor(t)

	var out bytes.Buffer
	if err := e.Encrypt(strings.NewReader("data"), &out); err == nil {
		t.Error("Encrypt() without Setup expected error")
	}
}

func TestNewEncryptorFromConfig(t *testing.T) {
	if enc := NewEncryptorFromConfig(config.EncryptionConfig{Enabled: false}); enc != nil {
		t.Errorf("disabled config should yield nil encryptor, got %T", enc)
	}
	enc := NewEncryptorFromConfig(config.EncryptionConfig{
		Enabled:        true,
		PublicKeyPath:  "/k.pub",
		PrivateKeyPath: "/k.key",
	})
	if _, ok := enc.(*AgeEncryptor); !ok {
		t.Errorf("got %T, want *AgeEncryptor", enc)
	}
}
