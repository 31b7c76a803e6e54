package account

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost())
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext password matches
// the hashed password. The comparison is constant time.
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// RandomPasswordHash is a temporary password
func RandomPasswordHash() string {
	pwd := uuid.New()

	h, err := HashPassword(pwd.String())
	if err != nil {
		return RandomPasswordHash()
	}

	return h
}

var hashedPrefixes = []string{
	"$2a$", "$2b$", "$2x$", "$2y$", "$2$",
	"$argon$", "$scrypt$", "$pbkdf2$", "$sha$", "$bcrypt$",
}

// looksHashed reports whether a raw password is likely a hash already.
// Accepting such input would double hash it and lock the account out.
func looksHashed(raw string) bool {
	if len(raw) < 60 {
		return false
	}
	for _, prefix := range hashedPrefixes {
		if strings.HasPrefix(raw, prefix) {
			return true
		}
	}
	return false
}
