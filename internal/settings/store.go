// Package settings persists kiosk settings per device
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/thevladbog/idento-sub000/internal/checkin"
)

// FileStore keeps checkin.Settings in a JSON file. It satisfies
// checkin.SettingsStore.
type FileStore struct {
	path string
	mu   sync.Mutex
}

var _ checkin.SettingsStore = (*FileStore)(nil)

// NewFileStore creates a store backed by path. The file is created on the
// first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath returns the settings file under the user's config directory
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "idento", "kiosk.json")
}

// Path returns the backing file
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the settings. A missing file yields the defaults; fields absent
// from the file keep their default values.
func (s *FileStore) Load() (checkin.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings := checkin.DefaultSettings()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return settings, nil
	}
	if err != nil {
		return settings, fmt.Errorf("failed to read settings: %w", err)
	}

	if err := json.Unmarshal(data, &settings); err != nil {
		return checkin.DefaultSettings(), fmt.Errorf("failed to parse settings: %w", err)
	}
	return settings, nil
}

// Save writes the settings atomically
func (s *FileStore) Save(settings checkin.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create settings dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return os.Rename(tmp, s.path)
}
