package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"walletzone/internal/ethereum"
)

// SessionStore persists the last-connected account between runs.
type SessionStore interface {
	// Load returns the saved account, or "" when none is saved.
	Load() (ethereum.Address, error)

	// Save records the connected account.
	Save(account ethereum.Address) error

	// Clear forgets the saved account.
	Clear() error
}

// MemoryStore keeps the session in memory, for tests and one-shot runs.
type MemoryStore struct {
	mu      sync.Mutex
	account ethereum.Address
}

// Compile-time interface check.
var _ SessionStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns the saved account.
func (s *MemoryStore) Load() (ethereum.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account, nil
}

// Save records the connected account.
func (s *MemoryStore) Save(account ethereum.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account = account
	return nil
}

// Clear forgets the saved account.
func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account = ""
	return nil
}

// FileStore persists the session as a small JSON file, filling the role
// browser localStorage plays for a web wallet.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// Compile-time interface check.
var _ SessionStore = (*FileStore)(nil)

// NewFileStore creates a session store backed by the given file path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

type sessionFile struct {
	Account ethereum.Address `json:"account"`
}

// Load returns the saved account; a missing file means no session.
func (s *FileStore) Load() (ethereum.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read session file: %w", err)
	}

	var f sessionFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return "", fmt.Errorf("parse session file: %w", err)
	}
	if f.Account != "" && !f.Account.Valid() {
		return "", fmt.Errorf("session file holds invalid account %q", f.Account)
	}
	return f.Account, nil
}

// Save records the connected account.
func (s *FileStore) Save(account ethereum.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(sessionFile{Account: account})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create session dir: %w", err)
		}
	}

	// Write-then-rename so a crash never leaves a torn file.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

// Clear forgets the saved account.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}
