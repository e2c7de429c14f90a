// Package credstore persists the signed-in user's provider credential between runs.
package credstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrEmpty is returned by Load when nothing usable is stored.
var ErrEmpty = errors.New("no stored credential")

// Credential is what the identity provider needs to restore a user without a password.
type Credential struct {
	UID          string    `json:"uid"`
	Email        string    `json:"email"`
	RefreshToken string    `json:"refresh_token"`
	IDToken      string    `json:"id_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// FileStore keeps a Credential as JSON in a single 0600 file.
type FileStore struct {
	path string
}

// DefaultDir returns $XDG_CONFIG_HOME/catalog-admin or ~/.config/catalog-admin.
func DefaultDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "catalog-admin")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "catalog-admin")
}

// DefaultPath returns the credential file under DefaultDir.
func DefaultPath() string { return filepath.Join(DefaultDir(), "session.json") }

// NewFileStore returns a store at path; empty path means DefaultPath.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultPath()
	}
	return &FileStore{path: path}
}

// Path reports where the credential lives.
func (s *FileStore) Path() string { return s.path }

// Save writes c, replacing any previous credential.
func (s *FileStore) Save(c Credential) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Load reads the stored credential. A missing file or one without a refresh token yields ErrEmpty.
func (s *FileStore) Load() (Credential, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Credential{}, ErrEmpty
	}
	if err != nil {
		return Credential{}, err
	}
	var c Credential
	if err := json.Unmarshal(b, &c); err != nil {
		return Credential{}, fmt.Errorf("decode %s: %w", s.path, err)
	}
	if c.RefreshToken == "" {
		return Credential{}, ErrEmpty
	}
	return c, nil
}

// Clear removes the stored credential. Clearing an empty store is not an error.
func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
