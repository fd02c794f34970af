// Package printer detects label printers and sends raw ZPL to them
package printer

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/gousb"
	"github.com/sirupsen/logrus"
	"github.com/thevladbog/idento-sub000/internal/registry"
	"github.com/thevladbog/idento-sub000/internal/serialports"
)

// ErrNoPrinter is returned when a name matches no printer
var ErrNoPrinter = errors.New("printer not found")

// Manager handles printer detection and naming
type Manager struct {
	registry *registry.Registry
	log      logrus.FieldLogger
	printers map[string]*Printer
	mu       sync.RWMutex

	// Detectors run on every DetectPrinters call. Replaced in tests.
	detectors []func() ([]*Printer, error)

	onPrinterAdded   func(*Printer)
	onPrinterRemoved func(string)
}

// Printer is a detected or manually added printer
type Printer struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Device      string `json:"device,omitempty"`
	VID         uint16 `json:"vid,omitempty"`
	PID         uint16 `json:"pid,omitempty"`
	Host        string `json:"host,omitempty"`
	Port        int    `json:"port,omitempty"`
	Name        string `json:"name,omitempty"`
}

// DisplayName is the custom name, or the description when unset
func (p *Printer) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Description
}

// NewManager creates a manager on top of reg. Network printers stored in
// the registry are restored immediately.
func NewManager(reg *registry.Registry, log logrus.FieldLogger) *Manager {
	if log == nil {
		log = logrus.StandardLogger()
	}

	m := &Manager{
		registry: reg,
		log:      log,
		printers: make(map[string]*Printer),
	}
	m.detectors = []func() ([]*Printer, error){m.detectUSB, m.detectSerial}

	for _, e := range reg.ManualPrinters() {
		m.printers[e.ID] = m.fromEntry(e)
	}
	return m
}

// Registry returns the backing registry
func (m *Manager) Registry() *registry.Registry {
	return m.registry
}

// DetectPrinters rescans USB and serial printers. Manually added printers
// are kept.
func (m *Manager) DetectPrinters() ([]*Printer, error) {
	var detected []*Printer
	for _, detect := range m.detectors {
		found, err := detect()
		if err != nil {
			m.log.WithError(err).Debug("Printer detection failed")
			continue
		}
		detected = append(detected, found...)
	}

	m.mu.Lock()
	next := make(map[string]*Printer, len(detected))
	for id, p := range m.printers {
		if p.Type == registry.TypeNetwork {
			next[id] = p
		}
	}
	for _, p := range detected {
		next[p.ID] = p
	}
	m.printers = next
	m.mu.Unlock()

	return m.GetAllPrinters(), nil
}

// GetPrinter returns a printer by ID
func (m *Manager) GetPrinter(id string) *Printer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.printers[id]
}

// GetAllPrinters returns all known printers sorted by display name
func (m *Manager) GetAllPrinters() []*Printer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Printer, 0, len(m.printers))
	for _, p := range m.printers {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].DisplayName() == result[j].DisplayName() {
			return result[i].ID < result[j].ID
		}
		return result[i].DisplayName() < result[j].DisplayName()
	})
	return result
}

// Resolve finds a printer by custom name, description or ID, case
// insensitively. An empty name selects the default printer, or the only
// printer when there is exactly one.
func (m *Manager) Resolve(name string) (*Printer, error) {
	name = strings.TrimSpace(name)

	if name == "" {
		if id := m.registry.DefaultPrinter(); id != "" {
			if p := m.GetPrinter(id); p != nil {
				return p, nil
			}
			return nil, fmt.Errorf("default printer is not connected: %w", ErrNoPrinter)
		}
		all := m.GetAllPrinters()
		if len(all) == 1 {
			return all[0], nil
		}
		return nil, fmt.Errorf("no default printer set: %w", ErrNoPrinter)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if p, ok := m.printers[name]; ok {
		return p, nil
	}
	for _, match := range []func(*Printer) string{
		func(p *Printer) string { return p.Name },
		func(p *Printer) string { return p.Description },
	} {
		for _, p := range m.printers {
			if v := match(p); v != "" && strings.EqualFold(v, name) {
				return p, nil
			}
		}
	}
	return nil, fmt.Errorf("%q: %w", name, ErrNoPrinter)
}

// DefaultPrinter returns the default printer or nil
func (m *Manager) DefaultPrinter() *Printer {
	id := m.registry.DefaultPrinter()
	if id == "" {
		return nil
	}
	return m.GetPrinter(id)
}

// SetDefaultPrinter resolves name and makes it the default. "" clears it.
func (m *Manager) SetDefaultPrinter(name string) (*Printer, error) {
	if strings.TrimSpace(name) == "" {
		return nil, m.registry.SetDefaultPrinter("")
	}

	p, err := m.Resolve(name)
	if err != nil {
		return nil, err
	}
	if err := m.registry.SetDefaultPrinter(p.ID); err != nil {
		return nil, err
	}
	m.log.WithField("printer", p.DisplayName()).Info("⭐ Default printer set")
	return p, nil
}

// SetPrinterName sets a custom name for a printer
func (m *Manager) SetPrinterName(id string, name string) bool {
	if !m.registry.SetPrinterName(id, name) {
		return false
	}

	m.mu.Lock()
	if printer, exists := m.printers[id]; exists {
		printer.Name = name
	}
	m.mu.Unlock()
	return true
}

// AddNetworkPrinter adds a raw TCP printer and persists it
func (m *Manager) AddNetworkPrinter(host string, port int, description string) *Printer {
	if port == 0 {
		port = 9100
	}
	if description == "" {
		description = fmt.Sprintf("Network: %s:%d", host, port)
	}

	id := m.registry.GetPrinterID(registry.PrinterInfo{
		Type:        registry.TypeNetwork,
		Host:        host,
		Port:        port,
		Description: description,
		Manual:      true,
	})

	printer := &Printer{
		ID:          id,
		Type:        registry.TypeNetwork,
		Description: description,
		Host:        host,
		Port:        port,
		Name:        m.registry.GetPrinterName(id),
	}

	m.mu.Lock()
	_, existed := m.printers[id]
	m.printers[id] = printer
	m.mu.Unlock()

	if !existed && m.onPrinterAdded != nil {
		m.onPrinterAdded(printer)
	}
	return printer
}

// OnPrinterAdded sets a callback for when a printer is added
func (m *Manager) OnPrinterAdded(callback func(*Printer)) {
	m.onPrinterAdded = callback
}

// OnPrinterRemoved sets a callback for when a printer is removed
func (m *Manager) OnPrinterRemoved(callback func(string)) {
	m.onPrinterRemoved = callback
}

func (m *Manager) fromEntry(e registry.PrinterEntry) *Printer {
	return &Printer{
		ID:          e.ID,
		Type:        e.Type,
		Description: e.Description,
		Device:      e.Device,
		VID:         e.VID,
		PID:         e.PID,
		Host:        e.Host,
		Port:        e.Port,
		Name:        e.Name,
	}
}

// detectUSB lists devices of the USB printer class
func (m *Manager) detectUSB() ([]*Printer, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	var printers []*Printer

	devices, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return isPrinterClass(desc)
	})
	if err != nil && len(devices) == 0 {
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}

	for _, dev := range devices {
		desc := dev.Desc

		manufacturer, _ := dev.Manufacturer()
		product, _ := dev.Product()

		description := fmt.Sprintf("USB: %04X:%04X", uint16(desc.Vendor), uint16(desc.Product))
		if manufacturer != "" || product != "" {
			description = strings.TrimSpace(fmt.Sprintf("%s %s", manufacturer, product))
		}

		info := registry.PrinterInfo{
			Type:        registry.TypeUSB,
			VID:         uint16(desc.Vendor),
			PID:         uint16(desc.Product),
			Description: description,
		}
		id := m.registry.GetPrinterID(info)

		printers = append(printers, &Printer{
			ID:          id,
			Type:        registry.TypeUSB,
			Description: description,
			VID:         info.VID,
			PID:         info.PID,
			Name:        m.registry.GetPrinterName(id),
		})
		dev.Close()
	}

	return printers, nil
}

func isPrinterClass(desc *gousb.DeviceDesc) bool {
	if desc.Class == gousb.ClassPrinter {
		return true
	}
	for _, cfg := range desc.Configs {
		for _, iface := range cfg.Interfaces {
			for _, alt := range iface.AltSettings {
				if alt.Class == gousb.ClassPrinter {
					return true
				}
			}
		}
	}
	return false
}

// detectSerial lists openable serial ports that are not attached scanners
func (m *Manager) detectSerial() ([]*Printer, error) {
	scanners := make(map[string]bool)
	for _, port := range m.registry.Scanners() {
		scanners[port] = true
	}

	var printers []*Printer
	for _, portPath := range serialports.Candidates() {
		if scanners[portPath] || !serialports.Probe(portPath) {
			continue
		}

		description := fmt.Sprintf("Serial: %s", portPath)
		id := m.registry.GetPrinterID(registry.PrinterInfo{
			Type:        registry.TypeSerial,
			Device:      portPath,
			Description: description,
		})

		printers = append(printers, &Printer{
			ID:          id,
			Type:        registry.TypeSerial,
			Description: description,
			Device:      portPath,
			Name:        m.registry.GetPrinterName(id),
		})
	}

	return printers, nil
}
