package password

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// cheap argon2 parameters keep the suite fast
func testHasher(alg Algorithm) *Hasher {
	return NewHasher(Config{Algorithm: alg, Argon2Memory: 1024, BcryptCost: bcrypt.MinCost})
}

func TestHashVerify_RoundTrip(t *testing.T) {
	for _, alg := range []Algorithm{AlgorithmArgon2id, AlgorithmBcrypt} {
		t.Run(string(alg), func(t *testing.T) {
			h := testHasher(alg)
			hash, err := h.Hash("correct horse")
			if err != nil {
				t.Fatalf("Hash failed: %v", err)
			}
			if hash == "correct horse" {
				t.Fatal("hash must not equal plaintext")
			}
			if err := h.Verify("correct horse", hash); err != nil {
				t.Errorf("expected match, got %v", err)
			}
			if err := h.Verify("wrong horse!", hash); !errors.Is(err, ErrMismatch) {
				t.Errorf("expected ErrMismatch, got %v", err)
			}
		})
	}
}

func TestHash_SaltedPerCall(t *testing.T) {
	h := testHasher(AlgorithmArgon2id)
	a, _ := h.Hash("password")
	b, _ := h.Hash("password")
	if a == b {
		t.Error("expected different hashes for the same password")
	}
	if !strings.HasPrefix(a, "$argon2id$v=19$m=1024,t=1,p=4$") {
		t.Errorf("unexpected PHC prefix: %s", a)
	}
}

func TestVerify_CrossFormat(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("imported-secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	h := testHasher(AlgorithmArgon2id)
	if err := h.Verify("imported-secret", string(legacy)); err != nil {
		t.Errorf("expected argon2 hasher to verify bcrypt hash, got %v", err)
	}
	if err := h.Verify("x", "plaintext"); err == nil || errors.Is(err, ErrMismatch) {
		t.Errorf("expected format error, got %v", err)
	}
}

func TestHash_MinLength(t *testing.T) {
	h := testHasher(AlgorithmArgon2id)
	if h.MinLength() != 1 {
		t.Errorf("expected default min length 1, got %d", h.MinLength())
	}
	if _, err := h.Hash(""); err == nil {
		t.Error("expected empty password to be rejected")
	}
	if _, err := h.Hash("pw1"); err != nil {
		t.Errorf("expected three-character password to hash, got %v", err)
	}

	strict := NewHasher(Config{Argon2Memory: 1024, MinLength: 8})
	if _, err := strict.Hash("short"); err == nil {
		t.Error("expected configured min length to be enforced")
	}
}

func TestVerifyDummy(t *testing.T) {
	h := testHasher(AlgorithmArgon2id)
	if err := h.VerifyDummy("xxxxxxxx"); !errors.Is(err, ErrMismatch) {
		t.Errorf("expected ErrMismatch, got %v", err)
	}
}

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken(32)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
	b, _ := GenerateToken(32)
	if a == b {
		t.Error("expected distinct tokens")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{Algorithm: "md5"}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err == nil {
		t.Error("expected unsupported algorithm error")
	}
}
