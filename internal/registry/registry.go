// Package registry persists the agent's printer identities, custom names,
// default printer and attached scanner ports
package registry

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Printer transport types
const (
	TypeUSB     = "usb"
	TypeSerial  = "serial"
	TypeNetwork = "network"
)

// Registry is safe for concurrent use. Every mutation is written to disk.
type Registry struct {
	filePath string
	state    fileState
	log      logrus.FieldLogger
	mu       sync.RWMutex
}

type fileState struct {
	Printers       map[string]*PrinterEntry `json:"printers"`
	DefaultPrinter string                   `json:"default_printer,omitempty"`
	Scanners       []string                 `json:"scanners,omitempty"`
}

// PrinterEntry stores persistent information about a printer
type PrinterEntry struct {
	ID          string `json:"id"`
	IdentityKey string `json:"identity_key"`
	Type        string `json:"type"`
	VID         uint16 `json:"vid,omitempty"`
	PID         uint16 `json:"pid,omitempty"`
	Device      string `json:"device,omitempty"`
	Host        string `json:"host,omitempty"`
	Port        int    `json:"port,omitempty"`
	Description string `json:"description"`
	Name        string `json:"name,omitempty"`
	// Manual entries (network printers) are not found by detection and
	// are restored from the registry on start
	Manual bool `json:"manual,omitempty"`
}

// PrinterInfo identifies a detected printer
type PrinterInfo struct {
	Type        string
	Description string
	Device      string
	VID         uint16
	PID         uint16
	Host        string
	Port        int
	Manual      bool
}

// New loads the registry at filePath. A missing file is created on the
// first save.
func New(filePath string, log logrus.FieldLogger) (*Registry, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	r := &Registry{
		filePath: filePath,
		state:    fileState{Printers: make(map[string]*PrinterEntry)},
		log:      log,
	}

	if err := r.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}

	return r, nil
}

// GetPrinterID gets or creates a persistent ID for a printer
func (r *Registry) GetPrinterID(info PrinterInfo) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	identityKey := generateIdentityKey(info)

	if entry, exists := r.state.Printers[identityKey]; exists {
		if info.Manual && !entry.Manual {
			entry.Manual = true
			r.saveLocked()
		}
		return entry.ID
	}

	entry := &PrinterEntry{
		ID:          uuid.New().String(),
		IdentityKey: identityKey,
		Type:        info.Type,
		VID:         info.VID,
		PID:         info.PID,
		Device:      info.Device,
		Host:        info.Host,
		Port:        info.Port,
		Description: info.Description,
		Manual:      info.Manual,
	}
	r.state.Printers[identityKey] = entry
	r.saveLocked()

	return entry.ID
}

// GetPrinterName returns the custom name of a printer or ""
func (r *Registry) GetPrinterName(printerID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if entry := r.findLocked(printerID); entry != nil {
		return entry.Name
	}
	return ""
}

// SetPrinterName sets a custom name for a printer
func (r *Registry) SetPrinterName(printerID string, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := r.findLocked(printerID)
	if entry == nil {
		return false
	}
	entry.Name = name
	r.saveLocked()
	return true
}

// GetPrinterInfo returns a copy of the stored entry or nil
func (r *Registry) GetPrinterInfo(printerID string) *PrinterEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if entry := r.findLocked(printerID); entry != nil {
		entryCopy := *entry
		return &entryCopy
	}
	return nil
}

// RemovePrinter forgets a printer. It also clears the default printer
// when it pointed at it.
func (r *Registry) RemovePrinter(printerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, entry := range r.state.Printers {
		if entry.ID == printerID {
			delete(r.state.Printers, key)
			if r.state.DefaultPrinter == printerID {
				r.state.DefaultPrinter = ""
			}
			r.saveLocked()
			return true
		}
	}
	return false
}

// GetAll returns copies of all entries keyed by identity key
func (r *Registry) GetAll() map[string]*PrinterEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*PrinterEntry, len(r.state.Printers))
	for k, v := range r.state.Printers {
		entryCopy := *v
		result[k] = &entryCopy
	}
	return result
}

// ManualPrinters returns the entries added by hand, sorted by ID
func (r *Registry) ManualPrinters() []PrinterEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []PrinterEntry
	for _, e := range r.state.Printers {
		if e.Manual {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DefaultPrinter returns the default printer ID or ""
func (r *Registry) DefaultPrinter() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.DefaultPrinter
}

// SetDefaultPrinter stores the default printer ID. "" clears it.
func (r *Registry) SetDefaultPrinter(printerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if printerID != "" && r.findLocked(printerID) == nil {
		return fmt.Errorf("unknown printer: %s", printerID)
	}
	r.state.DefaultPrinter = printerID
	return r.save()
}

// Scanners returns the attached scanner ports
func (r *Registry) Scanners() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.state.Scanners...)
}

// AddScanner remembers a scanner port. Returns false if it was known.
func (r *Registry) AddScanner(port string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.state.Scanners {
		if p == port {
			return false, nil
		}
	}
	r.state.Scanners = append(r.state.Scanners, port)
	return true, r.save()
}

// RemoveScanner forgets a scanner port
func (r *Registry) RemoveScanner(port string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, p := range r.state.Scanners {
		if p == port {
			r.state.Scanners = append(r.state.Scanners[:i], r.state.Scanners[i+1:]...)
			return true, r.save()
		}
	}
	return false, nil
}

func (r *Registry) findLocked(printerID string) *PrinterEntry {
	for _, entry := range r.state.Printers {
		if entry.ID == printerID {
			return entry
		}
	}
	return nil
}

func (r *Registry) load() error {
	data, err := os.ReadFile(r.filePath)
	if err != nil {
		return err
	}

	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}

	// Files written before default printer and scanner support were a bare
	// identity key -> entry map
	if state.Printers == nil {
		var legacy map[string]*PrinterEntry
		if err := json.Unmarshal(data, &legacy); err == nil && isLegacy(legacy) {
			state.Printers = legacy
		}
	}
	if state.Printers == nil {
		state.Printers = make(map[string]*PrinterEntry)
	}

	r.state = state
	return nil
}

func isLegacy(m map[string]*PrinterEntry) bool {
	for _, e := range m {
		if e == nil || e.ID == "" {
			return false
		}
	}
	return len(m) > 0
}

// saveLocked saves and only logs failures; the in-memory state stays
// authoritative and the next mutation retries the write
func (r *Registry) saveLocked() {
	if err := r.save(); err != nil {
		r.log.WithError(err).Warn("Failed to save registry")
	}
}

func (r *Registry) save() error {
	data, err := json.MarshalIndent(r.state, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(r.filePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(r.filePath, data, 0644)
}

// generateIdentityKey creates a unique key for a printer based on its characteristics
func generateIdentityKey(info PrinterInfo) string {
	switch info.Type {
	case TypeUSB:
		if info.VID != 0 && info.PID != 0 {
			return fmt.Sprintf("usb:%04X:%04X", info.VID, info.PID)
		}
	case TypeSerial:
		if info.Device != "" {
			return fmt.Sprintf("serial:%s", info.Device)
		}
	case TypeNetwork:
		if info.Host != "" {
			return fmt.Sprintf("network:%s:%d", info.Host, info.Port)
		}
	}

	// Fallback: hash the description
	hash := md5.Sum([]byte(info.Description))
	return fmt.Sprintf("hash:%x", hash)
}
