package tempo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TokenProvider supplies the bearer credential for REST calls and the
// realtime socket. The credential itself comes from an external OAuth login
// flow; the SDK only consumes it.
type TokenProvider interface {
	Token() (string, error)
}

// StaticToken is a fixed bearer token.
type StaticToken string

func (t StaticToken) Token() (string, error) {
	token := strings.TrimSpace(string(t))
	if token == "" {
		return "", NewAuthenticationError("bearer token is empty")
	}
	return token, nil
}

// FileTokenStore persists the bearer token delivered by the OAuth redirect
// (the `?token=` query parameter), mirroring how the browser client keeps it
// in local storage for reuse across sessions.
type FileTokenStore struct {
	Path string
}

// NewFileTokenStore creates a store at the given path, or at the default
// location ($XDG_CONFIG_HOME/tempo/token) when path is empty.
func NewFileTokenStore(path string) (*FileTokenStore, error) {
	if path == "" {
		var err error
		path, err = DefaultTokenPath()
		if err != nil {
			return nil, err
		}
	}
	return &FileTokenStore{Path: path}, nil
}

// DefaultTokenPath returns the conventional on-disk token location.
func DefaultTokenPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "tempo", "token"), nil
}

// Token reads the persisted token.
func (s *FileTokenStore) Token() (string, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", NewAuthenticationError("not logged in (run `tempo login`)")
		}
		return "", fmt.Errorf("read token file %q: %w", s.Path, err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", NewAuthenticationError("token file is empty")
	}
	return token, nil
}

// Save persists the token, creating parent directories as needed.
// The file is user-readable only.
func (s *FileTokenStore) Save(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return NewInvalidRequestError("token must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	if err := os.WriteFile(s.Path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("write token file %q: %w", s.Path, err)
	}
	return nil
}

// Clear removes the persisted token. Missing file is not an error.
func (s *FileTokenStore) Clear() error {
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove token file %q: %w", s.Path, err)
	}
	return nil
}
