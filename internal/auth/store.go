package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"tradestation/pkg/logging"
	"tradestation/pkg/oauth"

	"github.com/fsnotify/fsnotify"
	json "github.com/goccy/go-json"
)

const storeSubsystem = "TokenStore"

// Store holds the single current token of a Manager.
//
// SECURITY: This store handles sensitive OAuth credentials.
//   - Token files are written with 0600 permissions (owner read/write only)
//   - The storage directory is created with 0700 permissions
//   - Token values are NEVER logged, only expiry and refresh token presence
type Store struct {
	mu    sync.RWMutex
	token *oauth.Token
	path  string
}

// NewMemoryStore returns a store that keeps the token in memory only.
func NewMemoryStore() *Store {
	return &Store{}
}

// NewFileStore returns a store persisted at path. An existing token file is
// loaded immediately; a missing file leaves the store empty.
func NewFileStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("token file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create token storage directory: %w", err)
	}

	s := &Store{path: path}
	tok, err := s.readFile()
	switch {
	case err == nil:
		s.token = tok
	case errors.Is(err, os.ErrNotExist):
	default:
		logging.Warn(storeSubsystem, "Ignoring unreadable token file %s: %v", path, err)
	}
	return s, nil
}

// Path returns the backing file, or "" for a memory store.
func (s *Store) Path() string {
	return s.path
}

// Get returns a copy of the current token, or nil.
func (s *Store) Get() *oauth.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token.Clone()
}

// Set atomically replaces the current token and persists it when file backed.
func (s *Store) Set(token *oauth.Token) error {
	if token == nil {
		return s.Clear()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token.Clone()

	if s.path == "" {
		return nil
	}
	if err := s.writeFile(s.token); err != nil {
		logging.Audit(storeSubsystem, "token_store_failed", "path", s.path, "error", err.Error())
		return fmt.Errorf("failed to persist token: %w", err)
	}
	logging.Audit(storeSubsystem, "token_stored",
		"path", s.path,
		"expiry", s.token.ExpiresAt.Format(time.RFC3339),
		"has_refresh_token", s.token.RefreshToken != "",
	)
	return nil
}

// Clear removes the current token and its file.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = nil
	if s.path == "" {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Audit(storeSubsystem, "token_delete_failed", "path", s.path, "error", err.Error())
		return err
	}
	logging.Audit(storeSubsystem, "token_deleted", "path", s.path)
	return nil
}

// Watch reloads the token when another process rewrites or removes the token
// file, so several CLI processes can share one login. It blocks until ctx is
// done. A file token only replaces the in-memory one if it expires later.
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create token file watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory since the file is replaced by rename.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(s.path), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			s.handleEvent(event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Error(storeSubsystem, err, "token file watcher error")
		}
	}
}

func (s *Store) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Remove) != 0 {
		// A rename-into-place also shows up as Remove on some platforms.
		if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
			s.mu.Lock()
			s.token = nil
			s.mu.Unlock()
			logging.Info(storeSubsystem, "Token file removed, cleared in-memory token")
		}
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}

	tok, err := s.readFile()
	if err != nil {
		logging.Debug(storeSubsystem, "Skipping token reload: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == nil || tok.ExpiresAt.After(s.token.ExpiresAt) {
		s.token = tok
		logging.Info(storeSubsystem, "Reloaded token from %s, expires at %s", s.path, tok.ExpiresAt.Format(time.RFC3339))
	}
}

// writeFile persists a token via a temp file and rename so readers never see
// a partial file. Caller holds s.mu.
func (s *Store) writeFile(token *oauth.Token) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".token-*")
	if err != nil {
		return fmt.Errorf("failed to create temp token file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}

func (s *Store) readFile() (*oauth.Token, error) {
	// #nosec G304 -- path comes from configuration, not request input
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}

	var token oauth.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("token file has no access token")
	}
	return &token, nil
}
