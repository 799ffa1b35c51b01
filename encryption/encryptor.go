package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// ErrDecrypt is returned when a ciphertext is malformed, was sealed under a
// different key, or does not match its associated data.
var ErrDecrypt = errors.New("encryption: cannot decrypt")

// Encryptor seals and opens strings with optional associated data.
type Encryptor interface {
	Encrypt(plaintext, associated string) (string, error)
	Decrypt(ciphertext, associated string) (string, error)
}

// Algorithm represents supported encryption algorithms.
type Algorithm string

const (
	// AlgorithmChaCha20 is ChaCha20-Poly1305 (default).
	AlgorithmChaCha20 Algorithm = "chacha20-poly1305"

	// AlgorithmAESGCM is AES-256-GCM.
	AlgorithmAESGCM Algorithm = "aes-256-gcm"
)

const keySize = 32

// Option configures the encryptor.
type Option func(*options)

type options struct {
	algorithm Algorithm
}

// WithAlgorithm selects the encryption algorithm (default: ChaCha20-Poly1305).
func WithAlgorithm(alg Algorithm) Option {
	return func(o *options) { o.algorithm = alg }
}

// New derives a key for purpose from secret and returns an Encryptor.
func New(secret, purpose string, opts ...Option) (Encryptor, error) {
	if secret == "" {
		return nil, errors.New("encryption: secret is required")
	}
	o := &options{algorithm: AlgorithmChaCha20}
	for _, opt := range opts {
		opt(o)
	}

	key, err := deriveKey(secret, purpose)
	if err != nil {
		return nil, err
	}

	var aead cipher.AEAD
	switch o.algorithm {
	case AlgorithmChaCha20:
		aead, err = chacha20poly1305.New(key)
	case AlgorithmAESGCM:
		var block cipher.Block
		block, err = aes.NewCipher(key)
		if err == nil {
			aead, err = cipher.NewGCM(block)
		}
	default:
		return nil, fmt.Errorf("encryption: unsupported algorithm %q", o.algorithm)
	}
	if err != nil {
		return nil, fmt.Errorf("encryption: create %s: %w", o.algorithm, err)
	}
	return &sealer{aead: aead}, nil
}

func deriveKey(secret, purpose string) ([]byte, error) {
	key := make([]byte, keySize)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(purpose))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("encryption: derive key: %w", err)
	}
	return key, nil
}

// sealer prefixes every ciphertext with its random nonce.
type sealer struct {
	aead cipher.AEAD
}

func (s *sealer) Encrypt(plaintext, associated string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("encryption: generate nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), []byte(associated))
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (s *sealer) Decrypt(ciphertext, associated string) (string, error) {
	data, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrDecrypt
	}
	n := s.aead.NonceSize()
	if len(data) < n+s.aead.Overhead() {
		return "", ErrDecrypt
	}
	plaintext, err := s.aead.Open(nil, data[:n], data[n:], []byte(associated))
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}
