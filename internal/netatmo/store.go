package netatmo

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// TokenStore is the credential store used by the authenticator and the gateway
type TokenStore interface {
	Current() *Token
	Save(token *Token) error
}

// FileStore keeps the current token in memory and mirrors it to a JSON file
type FileStore struct {
	path   string
	logger *slog.Logger

	mu    sync.RWMutex
	token *Token
}

// NewFileStore creates a store backed by path. Call Load to read an existing token.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{
		path:   path,
		logger: logger.With("component", "token_store", "path", path),
	}
}

// Load reads the token file. A missing, unreadable or invalid file leaves
// the store empty.
func (s *FileStore) Load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Debug("Token file not found")
		} else {
			s.logger.Warn("Failed to read token file", "error", err)
		}
		return
	}

	token, err := ParseToken(data)
	if err != nil {
		s.logger.Warn("Ignoring token file as it does not contain a valid token", "error", err)
		return
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	s.logger.Debug("Token loaded from file")
}

// Save replaces the current token and writes it to the file. The in-memory
// token is updated even when the write fails.
func (s *FileStore) Save(token *Token) error {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		s.logger.Warn("Failed to save token to file", "error", err)
		return fmt.Errorf("failed to write token file: %w", err)
	}

	return nil
}

// Exists reports whether a token is loaded
func (s *FileStore) Exists() bool {
	return s.Current() != nil
}

// Current returns the loaded token or nil
func (s *FileStore) Current() *Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Set validates token and saves it. An invalid token leaves the store untouched.
func (s *FileStore) Set(token *Token) error {
	if err := token.Validate(); err != nil {
		return err
	}
	return s.Save(token)
}
