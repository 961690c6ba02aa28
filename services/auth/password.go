package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// dummyPassword seeds the hash compared against when no account matches, so a
// missing user costs as much as a wrong password.
const dummyPassword = "proppicks-timing-equalizer"

// maxPasswordBytes is the longest input bcrypt hashes without truncation
const maxPasswordBytes = 72

// PasswordHasher turns plaintext passwords into salted one-way hashes
type PasswordHasher interface {
	// Hash returns a salted hash of plaintext
	Hash(plaintext string) (string, error)

	// Verify reports whether plaintext matches hash. Any error yields false.
	Verify(plaintext, hash string) bool

	// VerifyDummy spends the same work as Verify against a fixed hash and always fails.
	VerifyDummy(plaintext string)
}

// BcryptHasher implements PasswordHasher with bcrypt
type BcryptHasher struct {
	cost      int
	dummyHash []byte
}

// NewBcryptHasher creates a hasher using the given work factor
func NewBcryptHasher(cost int) (*BcryptHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte(dummyPassword), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}

	return &BcryptHasher{cost: cost, dummyHash: dummy}, nil
}

// Cost returns the configured work factor
func (h *BcryptHasher) Cost() int {
	return h.cost
}

// Hash returns a bcrypt hash with a fresh random salt
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Verify compares in constant time. Malformed or empty hashes and passwords
// longer than bcrypt accepts fail closed.
func (h *BcryptHasher) Verify(plaintext, hash string) bool {
	if hash == "" || len(plaintext) > maxPasswordBytes {
		h.VerifyDummy(plaintext)
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// VerifyDummy burns one comparison against the dummy hash
func (h *BcryptHasher) VerifyDummy(plaintext string) {
	if len(plaintext) > maxPasswordBytes {
		plaintext = plaintext[:maxPasswordBytes]
	}

	_ = bcrypt.CompareHashAndPassword(h.dummyHash, []byte(plaintext))
}
