package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is bcrypt's input limit, counted in bytes, not runes.
const MaxPasswordBytes = 72

var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// PasswordHasher hashes new passwords and checks candidates against stored hashes.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Matches(plain, hash string) bool
}

type BcryptHasher struct {
	cost int
}

// NewBcryptHasher falls back to bcrypt.DefaultCost when cost is out of range.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// CheckLength rejects passwords bcrypt cannot hash.
func CheckLength(plain string) error {
	if len(plain) > MaxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}

// Hash password hashes a plain text password with bcrypt.
func (h *BcryptHasher) Hash(plain string) (string, error) {
	if err := CheckLength(plain); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)

	if err != nil {
		return "", err
	}

	return string(hash), nil
}

func (h *BcryptHasher) Matches(plain, hash string) bool {
	return Verify(hash, plain)
}

// Verify compares a bcrypt hash with a plaintext candidate. A wrong password,
// a corrupt hash and an empty hash all collapse to false.
func Verify(storedHash, candidate string) bool {
	if storedHash == "" {
		return false
	}

	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(candidate)) == nil
}
