package checkin

import (
	"fmt"
	"sync"
)

// Mode selects how codes reach the kiosk
type Mode string

const (
	// ModeCamera is manual or keyboard-wedge entry on the kiosk itself
	ModeCamera Mode = "camera"
	// ModeScanner polls the agent for hardware scanner codes
	ModeScanner Mode = "scanner"
)

// Settings are the per-device kiosk options
type Settings struct {
	Mode         Mode   `json:"checkinMode"`
	PrintEnabled bool   `json:"printEnabled"`
	ManualPrint  bool   `json:"manualPrint"`
	PrinterName  string `json:"printerName,omitempty"`
}

// DefaultSettings are used when nothing has been saved yet
func DefaultSettings() Settings {
	return Settings{Mode: ModeCamera, PrintEnabled: false, ManualPrint: false}
}

// AutoPrint reports whether a successful check-in prints by itself
func (s Settings) AutoPrint() bool {
	return s.PrintEnabled && !s.ManualPrint
}

// Validate checks the settings
func (s Settings) Validate() error {
	switch s.Mode {
	case ModeCamera, ModeScanner:
		return nil
	default:
		return fmt.Errorf("invalid checkin mode '%s' (must be camera or scanner)", s.Mode)
	}
}

// SettingsStore loads and persists Settings
type SettingsStore interface {
	Load() (Settings, error)
	Save(Settings) error
}

// MemoryStore keeps settings in memory
type MemoryStore struct {
	mu       sync.Mutex
	settings Settings
	saved    bool
}

// NewMemoryStore creates a store holding s
func NewMemoryStore(s Settings) *MemoryStore {
	return &MemoryStore{settings: s, saved: true}
}

func (m *MemoryStore) Load() (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.saved {
		return DefaultSettings(), nil
	}
	return m.settings, nil
}

func (m *MemoryStore) Save(s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.settings = s
	m.saved = true
	return nil
}
