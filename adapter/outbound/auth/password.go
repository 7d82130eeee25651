// Package auth provides the admin surface's password hashing and JWT
// issuance/verification, grounded on the teacher's argon2/jwt adapters but
// scoped down to a single admin principal (spec.md's core has no user
// model; the admin surface is ambient REST/WS tooling around it).
package auth

import (
	"crypto/rand"
	"encoding/hex"

	"golang.org/x/crypto/argon2"
)

// saltLen matches the teacher's 16-byte salt convention.
const saltLen = 16

// PasswordService hashes and verifies the single admin password using
// Argon2id (OWASP-recommended parameters, same as the grounding adapter).
type PasswordService struct{}

func NewPasswordService() *PasswordService {
	return &PasswordService{}
}

// NewSalt generates a fresh random salt for a new password.
func (s *PasswordService) NewSalt() ([16]byte, error) {
	var salt [16]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return salt, err
	}
	return salt, nil
}

// HashPassword derives an Argon2id hash, hex-encoded for storage in config.
func (s *PasswordService) HashPassword(password string, salt [16]byte) string {
	hash := argon2.IDKey([]byte(password), salt[:], 1, 64*1024, 4, 32)
	return hex.EncodeToString(hash)
}

// VerifyPassword reports whether password matches the stored hash under salt.
func (s *PasswordService) VerifyPassword(password, hash string, salt [16]byte) bool {
	return s.HashPassword(password, salt) == hash
}

// EncodeSalt/DecodeSalt round-trip a salt to/from the hex form persisted in
// config as the first 32 characters of AdminPasswordHash.
func EncodeSalt(salt [16]byte) string {
	return hex.EncodeToString(salt[:])
}

func DecodeSalt(s string) ([16]byte, error) {
	var salt [16]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return salt, err
	}
	copy(salt[:], b)
	return salt, nil
}
