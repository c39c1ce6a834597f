// Package file persists the monitoring document as a JSON file.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/vietddude/mintwatch/internal/core/domain"
)

// StateStore reads and writes the document at a fixed path.
type StateStore struct {
	path string
	mu   sync.Mutex
	log  *slog.Logger
}

// NewStateStore creates a store for path. The file does not need to exist.
func NewStateStore(path string) *StateStore {
	return &StateStore{
		path: path,
		log:  slog.Default().With("component", "state-file"),
	}
}

// Path returns the document location.
func (s *StateStore) Path() string {
	return s.path
}

// Load reads the document. A missing or undecodable file yields the empty
// default document.
func (s *StateStore) Load(ctx context.Context) (*domain.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.log.Warn("State file not found, starting empty", "path", s.path)
		return domain.NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var state domain.State
	if err := json.Unmarshal(data, &state); err != nil {
		s.log.Warn("State file is corrupt, starting empty", "path", s.path, "error", err)
		return domain.NewState(), nil
	}
	return state.Normalize(), nil
}

// Save writes the document through a temporary file and a rename so a crash
// never leaves a truncated document behind.
func (s *StateStore) Save(ctx context.Context, state *domain.State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
