package auth

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMissingPasswordHash = errors.New("password verifier: password hash required")
	ErrInvalidPasswordHash = errors.New("password verifier: password hash is not a bcrypt hash")
	ErrWrongPassword       = errors.New("password verifier: wrong password")
	ErrEmptyPassword       = errors.New("password verifier: password required")
)

// PasswordVerifier checks login passwords against one configured bcrypt hash.
type PasswordVerifier struct {
	hash []byte
}

func NewPasswordVerifier(passwordHash string) (*PasswordVerifier, error) {
	passwordHash = strings.TrimSpace(passwordHash)
	if passwordHash == "" {
		return nil, ErrMissingPasswordHash
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return nil, ErrInvalidPasswordHash
	}
	return &PasswordVerifier{hash: []byte(passwordHash)}, nil
}

func (v *PasswordVerifier) Verify(password string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	if err := bcrypt.CompareHashAndPassword(v.hash, []byte(password)); err != nil {
		return ErrWrongPassword
	}
	return nil
}

// HashPassword produces the bcrypt hash stored in auth.password_hash.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
