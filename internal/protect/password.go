// SPDX-License-Identifier: MPL-2.0

package protect

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// DefaultPassword is written to a missing password file and restored by
// Reset.
const DefaultPassword = "polsoft"

// ErrEmptyPassword is returned when setting an empty password.
var ErrEmptyPassword = errors.New("password must not be empty")

// PasswordStore keeps the user password hash in a single-line file. New
// hashes are bcrypt; a 64-character hex SHA-256 digest written by older
// installations is still accepted.
type PasswordStore struct {
	path string
	cost int
}

// NewPasswordStore returns a store backed by path.
func NewPasswordStore(path string) *PasswordStore {
	return &PasswordStore{path: path, cost: bcrypt.DefaultCost}
}

// WithCost returns a copy using the given bcrypt cost. Tests use
// bcrypt.MinCost.
func (s *PasswordStore) WithCost(cost int) *PasswordStore {
	c := *s
	c.cost = cost
	return &c
}

// Path returns the backing file.
func (s *PasswordStore) Path() string { return s.path }

// Verify reports whether input matches the stored password. Empty input
// never matches. A missing file is initialised with DefaultPassword first.
func (s *PasswordStore) Verify(input string) (bool, error) {
	if input == "" {
		return false, nil
	}
	hash, err := s.load()
	if err != nil {
		return false, err
	}
	return matches(hash, input), nil
}

// Set replaces the stored password.
func (s *PasswordStore) Set(password string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.write(string(hash))
}

// Change replaces the password after checking the current one.
func (s *PasswordStore) Change(current, next string) error {
	ok, err := s.Verify(current)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAuthFailed
	}
	return s.Set(next)
}

// Reset restores DefaultPassword.
func (s *PasswordStore) Reset() error { return s.Set(DefaultPassword) }

func (s *PasswordStore) load() (string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := s.Reset(); err != nil {
			return "", err
		}
		data, err = os.ReadFile(s.path)
	}
	if err != nil {
		return "", fmt.Errorf("read password file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *PasswordStore) write(hash string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(hash), 0o600); err != nil {
		return fmt.Errorf("write password file: %w", err)
	}
	return nil
}

func matches(hash, input string) bool {
	if isLegacyDigest(hash) {
		sum := sha256.Sum256([]byte(input))
		return subtle.ConstantTimeCompare([]byte(strings.ToLower(hash)), []byte(hex.EncodeToString(sum[:]))) == 1
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(input)) == nil
}

func isLegacyDigest(hash string) bool {
	if len(hash) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(hash)
	return err == nil
}
