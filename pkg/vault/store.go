// pkg/vault/store.go

package vault

import (
	"os"
	"path/filepath"

	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/amberr"
	cerr "github.com/cockroachdb/errors"
)

// ErrNotFound indicates no vault file exists yet, as opposed to a
// vault that exists but cannot be read or decrypted.
var ErrNotFound = cerr.New("vault not found")

// Store persists protected vault bytes at a fixed path.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

// Exists reports whether a vault file is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Write persists protected vault bytes, creating parent directories
// and restricting the file to the owner.
func (s *Store) Write(data []byte) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return amberr.WrapStorage(err, "vault")
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return amberr.WrapStorage(err, "vault")
	}
	return nil
}

// Read returns the protected vault bytes, or ErrNotFound if no vault
// has been created.
func (s *Store) Read() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, cerr.Mark(cerr.Wrapf(err, "read %s", s.path), ErrNotFound)
	}
	if err != nil {
		return nil, amberr.WrapStorage(err, "vault")
	}
	return data, nil
}

// Remove deletes the vault file. Removing an absent vault is not an
// error.
func (s *Store) Remove() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return amberr.WrapStorage(err, "vault")
	}
	return nil
}
