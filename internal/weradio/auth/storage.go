package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// DefaultCredentialFileName is the default name for the credential file.
	DefaultCredentialFileName = "credentials.json"
)

// Credential is the bearer token issued by the station's auth service.
// The token is opaque: it is never decoded or refreshed here.
type Credential struct {
	Token    string    `json:"token"`
	Username string    `json:"username"`
	Role     string    `json:"role"`
	SavedAt  time.Time `json:"saved_at"`
}

// Store persists the credential to disk and serves it to the API client.
type Store struct {
	path string

	mu   sync.RWMutex
	cred *Credential
}

// NewStore creates a credential store at the specified path and loads any
// saved credential. If path is empty, uses ~/.config/weradio/credentials.json.
func NewStore(path string) (*Store, error) {
	if path == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get config directory: %w", err)
		}
		path = filepath.Join(configDir, "weradio", DefaultCredentialFileName)
	}

	s := &Store{path: path}
	cred, err := s.load()
	if err != nil {
		return nil, err
	}
	s.cred = cred
	return s, nil
}

// Token returns the bearer token, or "" when signed out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cred == nil {
		return ""
	}
	return s.cred.Token
}

// IsAuthenticated returns true if a credential is held.
func (s *Store) IsAuthenticated() bool {
	return s.Token() != ""
}

// Credential returns a copy of the held credential, or nil.
func (s *Store) Credential() *Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cred == nil {
		return nil
	}
	c := *s.cred
	return &c
}

// Save persists a credential to disk and makes it current.
func (s *Store) Save(cred *Credential) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}

	// Owner only
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}

	s.mu.Lock()
	s.cred = cred
	s.mu.Unlock()
	return nil
}

func (s *Store) load() (*Credential, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read credential file: %w", err)
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("failed to parse credential file: %w", err)
	}

	return &cred, nil
}

// Delete removes the stored credential.
func (s *Store) Delete() error {
	s.mu.Lock()
	s.cred = nil
	s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete credential file: %w", err)
	}
	return nil
}

// Exists returns true if a credential file exists.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Path returns the path to the credential file.
func (s *Store) Path() string {
	return s.path
}
