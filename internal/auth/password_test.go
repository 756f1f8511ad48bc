package auth

import (
	"strings"
	"testing"
)

// testParams keeps hashing cheap in tests.
var testParams = Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

func newTestHasher(t *testing.T) *PasswordHasher {
	t.Helper()
	h, err := NewPasswordHasher(testParams)
	if err != nil {
		t.Fatalf("NewPasswordHasher failed: %v", err)
	}
	return h
}

func TestHash_Format(t *testing.T) {
	t.Parallel()

	h, err := NewPasswordHasher(DefaultParams)
	if err != nil {
		t.Fatalf("NewPasswordHasher failed: %v", err)
	}

	hash, err := h.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	parts := strings.Split(hash, "$")
	if len(parts) != 6 {
		t.Fatalf("Hash should have 6 parts, got: %d", len(parts))
	}
	if parts[1] != "argon2id" {
		t.Errorf("Expected argon2id algorithm, got: %s", parts[1])
	}
	if parts[2] != "v=19" {
		t.Errorf("Expected v=19, got: %s", parts[2])
	}
	if parts[3] != "m=65536,t=3,p=4" {
		t.Errorf("Expected m=65536,t=3,p=4, got: %s", parts[3])
	}
}

func TestHash_Uniqueness(t *testing.T) {
	t.Parallel()

	h := newTestHasher(t)

	hash1, err := h.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	hash2, err := h.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	if hash1 == hash2 {
		t.Error("Same password should produce different hashes due to random salt")
	}
}

func TestVerify(t *testing.T) {
	t.Parallel()

	h := newTestHasher(t)

	hash, err := h.Hash("minha-senha-secreta")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	ok, err := h.Verify("minha-senha-secreta", hash)
	if err != nil || !ok {
		t.Errorf("correct password: ok=%v err=%v", ok, err)
	}

	ok, err = h.Verify("outra-senha", hash)
	if err != nil {
		t.Fatalf("wrong password should not error: %v", err)
	}
	if ok {
		t.Error("wrong password should not match")
	}
}

func TestVerify_UsesParamsFromHash(t *testing.T) {
	t.Parallel()

	strong, err := NewPasswordHasher(Params{Time: 2, Memory: 16 * 1024, Threads: 2, KeyLen: 32, SaltLen: 16})
	if err != nil {
		t.Fatalf("NewPasswordHasher failed: %v", err)
	}
	hash, err := strong.Hash("rotated-params")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	ok, err := newTestHasher(t).Verify("rotated-params", hash)
	if err != nil || !ok {
		t.Errorf("hash from other params should verify: ok=%v err=%v", ok, err)
	}
}

func TestVerify_InvalidHash(t *testing.T) {
	t.Parallel()

	h := newTestHasher(t)

	tests := []struct {
		name    string
		hash    string
		wantErr error
	}{
		{"empty", "", ErrInvalidHash},
		{"wrong format", "not-a-hash", ErrInvalidHash},
		{"wrong algorithm", "$bcrypt$v=19$m=65536,t=3,p=4$salt$hash", ErrInvalidHash},
		{"missing parts", "$argon2id$v=19$m=65536", ErrInvalidHash},
		{"bad params", "$argon2id$v=19$m=x,t=3,p=4$c2FsdA$aGFzaA", ErrInvalidHash},
		{"wrong version", "$argon2id$v=18$m=65536,t=3,p=4$c29tZXNhbHQ$c29tZWhhc2g", ErrIncompatibleVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ok, err := h.Verify("password", tt.hash)
			if err != tt.wantErr {
				t.Errorf("Verify(%q) error = %v, want %v", tt.hash, err, tt.wantErr)
			}
			if ok {
				t.Error("invalid hash should never match")
			}
		})
	}
}
