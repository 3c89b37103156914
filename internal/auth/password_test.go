// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// testHasher uses a small work factor to keep tests fast.
func testHasher() *Hasher {
	return NewHasher(HasherParams{Time: 1, Memory: 1024, Threads: 1})
}

func TestHasher_Hash(t *testing.T) {
	h := testHasher()
	hash, err := h.Hash("secret1")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Errorf("unexpected hash encoding: %s", hash)
	}
	if strings.Contains(hash, "secret1") {
		t.Error("hash contains the plaintext")
	}
}

func TestHasher_HashUsesFreshSalt(t *testing.T) {
	h := testHasher()
	a, _ := h.Hash("secret1")
	b, _ := h.Hash("secret1")
	if a == b {
		t.Error("two hashes of the same password are identical")
	}
}

func TestHasher_HashRandomFailure(t *testing.T) {
	h := testHasher()
	h.random = func([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

	_, err := h.Hash("secret1")
	if !errors.Is(err, ErrHash) {
		t.Fatalf("Hash error = %v, want ErrHash", err)
	}
}

func TestHasher_Verify(t *testing.T) {
	h := testHasher()
	hash, err := h.Hash("changeme")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	tests := []struct {
		name     string
		password string
		want     bool
	}{
		{"correct", "changeme", true},
		{"wrong", "wrongpassword", false},
		{"empty", "", false},
		{"case differs", "ChangeMe", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.Verify(tt.password, hash)
			if err != nil {
				t.Fatalf("Verify error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Verify(%q) = %v, want %v", tt.password, got, tt.want)
			}
		})
	}
}

func TestHasher_VerifyForeignParams(t *testing.T) {
	// Produced with m=65536,t=1,p=4 for "changeme".
	dbHash := "$argon2id$v=19$m=65536,t=1,p=4$mucMvOaS6lZ2LWNS1OEFKw$UYEWv8cvCOO6l2zGeqv3JPVe1nyy0x9GXBfYEuDM544"

	h := testHasher()
	valid, err := h.Verify("changeme", dbHash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !valid {
		t.Fatal("stored hash rejected correct password")
	}
	if !h.NeedsRehash(dbHash) {
		t.Error("NeedsRehash = false for hash with other parameters")
	}
}

func TestHasher_VerifyBcrypt(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt error: %v", err)
	}

	h := testHasher()
	ok, err := h.Verify("secret1", string(legacy))
	if err != nil || !ok {
		t.Fatalf("Verify(bcrypt) = %v, %v; want true, nil", ok, err)
	}
	ok, err = h.Verify("secret2", string(legacy))
	if err != nil || ok {
		t.Fatalf("Verify(bcrypt, wrong) = %v, %v; want false, nil", ok, err)
	}
	if !h.NeedsRehash(string(legacy)) {
		t.Error("bcrypt hash should need rehash")
	}
}

func TestHasher_VerifyMalformed(t *testing.T) {
	h := testHasher()
	tests := []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=1024,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1024,t=1,p=1$!!!$aGFzaA",
		"$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$",
		"$argon2id$v=19$m=1024,t=0,p=1$c2FsdHNhbHQ$aGFzaGhhc2g",
		"$argon2id$v=19$m=1024,t=1,p=0$c2FsdHNhbHQ$aGFzaGhhc2g",
		"$argon2id$v=19$m=4,t=1,p=1$c2FsdHNhbHQ$aGFzaGhhc2g",
		"$argon2id$v=19$m=4194304,t=1,p=1$c2FsdHNhbHQ$aGFzaGhhc2g",
		"$argon2id$v=19$m=1024,t=1000,p=1$c2FsdHNhbHQ$aGFzaGhhc2g",
		"$2a$10$short",
	}

	for _, encoded := range tests {
		ok, err := h.Verify("secret1", encoded)
		if !errors.Is(err, ErrMalformedHash) {
			t.Errorf("Verify(%q) error = %v, want ErrMalformedHash", encoded, err)
		}
		if ok {
			t.Errorf("Verify(%q) = true for malformed hash", encoded)
		}
	}
}

func TestHasher_NeedsRehash(t *testing.T) {
	h := testHasher()
	hash, _ := h.Hash("secret1")
	if h.NeedsRehash(hash) {
		t.Error("NeedsRehash = true for a hash with current parameters")
	}

	stronger := NewHasher(HasherParams{Time: 2, Memory: 1024, Threads: 1})
	if !stronger.NeedsRehash(hash) {
		t.Error("NeedsRehash = false after time cost increase")
	}
}

func TestNewHasher_Defaults(t *testing.T) {
	h := NewHasher(HasherParams{})
	if h.Params() != DefaultHasherParams() {
		t.Errorf("Params() = %+v, want %+v", h.Params(), DefaultHasherParams())
	}
}
