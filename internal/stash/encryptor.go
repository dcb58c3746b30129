package stash

import "io"

// Encryptor encrypts export snapshots before they reach a vault.
// Encryption uses the public key only, so exports never need a
// passphrase; decrypting an archived snapshot happens outside this
// service with the key holder's own tooling.
type Encryptor interface {
	// Setup performs one-time key generation: stores the public key in
	// plaintext and the private key encrypted with the passphrase.
	Setup(passphrase string) error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// IsConfigured returns true if the key material exists.
	IsConfigured() bool
}
