// Package password hashes and verifies login secrets.
//
// New hashes are argon2id in PHC string format by default; bcrypt hashes
// (imported accounts, or Algorithm=bcrypt) verify through the same Hasher
// because the format is recognized from the stored string.
//
//	h := password.NewHasher(cfg)
//	hash, err := h.Hash("correct horse")
//	err = h.Verify("correct horse", hash)
package password

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// ErrMismatch is returned by Verify when the password does not match.
var ErrMismatch = errors.New("password: invalid password")

// Hasher hashes and verifies passwords.
type Hasher struct {
	algorithm  Algorithm
	minLength  int
	bcryptCost int
	argon      argon2Params

	// dummy is verified when there is no stored hash to compare against.
	dummy string
}

type argon2Params struct {
	time    uint32
	memory  uint32
	threads uint8
	keyLen  uint32
	saltLen int
}

// NewHasher creates a Hasher from cfg.
func NewHasher(cfg Config) *Hasher {
	cfg.ApplyDefaults()
	h := &Hasher{
		algorithm:  cfg.Algorithm,
		minLength:  cfg.MinLength,
		bcryptCost: cfg.BcryptCost,
		argon: argon2Params{
			time:    cfg.Argon2Time,
			memory:  cfg.Argon2Memory,
			threads: cfg.Argon2Threads,
			keyLen:  32,
			saltLen: 16,
		},
	}
	h.dummy, _ = h.hash(strings.Repeat("x", h.minLength))
	return h
}

// MinLength returns the shortest accepted password.
func (h *Hasher) MinLength() int { return h.minLength }

// Hash returns a salted hash of password.
func (h *Hasher) Hash(password string) (string, error) {
	if len(password) < h.minLength {
		return "", fmt.Errorf("password: minimum length is %d characters", h.minLength)
	}
	return h.hash(password)
}

func (h *Hasher) hash(password string) (string, error) {
	if h.algorithm == AlgorithmBcrypt {
		if len(password) > 72 {
			return "", errors.New("password: maximum length is 72 characters (bcrypt limit)")
		}
		out, err := bcrypt.GenerateFromPassword([]byte(password), h.bcryptCost)
		if err != nil {
			return "", fmt.Errorf("password: hash: %w", err)
		}
		return string(out), nil
	}

	salt, err := generateRandomBytes(h.argon.saltLen)
	if err != nil {
		return "", fmt.Errorf("password: generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, h.argon.time, h.argon.memory, h.argon.threads, h.argon.keyLen)

	// $argon2id$v=19$m=MEMORY,t=TIME,p=THREADS$SALT$HASH
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.argon.memory, h.argon.time, h.argon.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify returns nil when password matches hash, ErrMismatch when it does
// not, and a format error when hash is not a recognized encoding.
func (h *Hasher) Verify(password, hash string) error {
	switch {
	case strings.HasPrefix(hash, "$argon2id$"):
		return verifyArgon2(password, hash)
	case strings.HasPrefix(hash, "$2a$"), strings.HasPrefix(hash, "$2b$"), strings.HasPrefix(hash, "$2y$"):
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
			if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
				return ErrMismatch
			}
			return fmt.Errorf("password: bcrypt: %w", err)
		}
		return nil
	}
	return errors.New("password: unrecognized hash format")
}

// VerifyDummy spends the same work as a real Verify and always fails. Used
// when the account does not exist so response time does not reveal it.
func (h *Hasher) VerifyDummy(password string) error {
	_ = h.Verify(password, h.dummy)
	return ErrMismatch
}

func verifyArgon2(password, encoded string) error {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return errors.New("password: invalid argon2id hash format")
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return errors.New("password: unsupported argon2 version")
	}

	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return fmt.Errorf("password: parse argon2id params: %w", err)
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return fmt.Errorf("password: decode salt: %w", err)
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return fmt.Errorf("password: decode hash: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(expected)))
	if subtle.ConstantTimeCompare(key, expected) != 1 {
		return ErrMismatch
	}
	return nil
}
