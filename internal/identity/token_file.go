package identity

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/fastygo/taskify/domain"
)

// TokenFile keeps the last issued session on disk so a restarted client
// resumes it. An empty path disables persistence.
type TokenFile struct {
	path string
}

func NewTokenFile(path string) *TokenFile {
	return &TokenFile{path: path}
}

func (f *TokenFile) Load() (*domain.AuthSession, error) {
	if f == nil || f.path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s domain.AuthSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	if s.AccessToken == "" {
		return nil, nil
	}
	return &s, nil
}

// Save writes s atomically with owner-only permissions.
func (f *TokenFile) Save(s *domain.AuthSession) error {
	if f == nil || f.path == "" {
		return nil
	}
	if s == nil {
		return f.Clear()
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *TokenFile) Clear() error {
	if f == nil || f.path == "" {
		return nil
	}
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
