// Package scanner reads barcode scanners attached as serial devices and
// keeps the last scanned code for the agent API
package scanner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tarm/serial"
	"github.com/thevladbog/idento-sub000/internal/registry"
	"github.com/thevladbog/idento-sub000/internal/serialports"
)

// reopenDelay is the pause before reopening a scanner that went away
const reopenDelay = 2 * time.Second

// ErrAlreadyAttached is returned when the port already has a scanner
var ErrAlreadyAttached = errors.New("scanner already attached")

// Opener opens a scanner port
type Opener func(port string) (io.ReadCloser, error)

// Scan is one code read from a scanner
type Scan struct {
	Code      string    `json:"code"`
	PortName  string    `json:"port_name"`
	ScannedAt time.Time `json:"scanned_at"`
}

// Status describes an attached scanner
type Status struct {
	PortName  string `json:"port_name"`
	Connected bool   `json:"connected"`
	LastError string `json:"last_error,omitempty"`
}

type attached struct {
	port      string
	connected bool
	lastErr   string
	cancel    context.CancelFunc
	done      chan struct{}
}

// Manager owns the attached scanners and the last-scan buffer
type Manager struct {
	registry *registry.Registry
	open     Opener
	log      logrus.FieldLogger

	mu       sync.Mutex
	scanners map[string]*attached
	last     *Scan
	onScan   func(Scan)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a manager. A nil opener opens real serial ports.
func NewManager(reg *registry.Registry, open Opener, log logrus.FieldLogger) *Manager {
	if open == nil {
		open = openSerial
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		registry: reg,
		open:     open,
		log:      log,
		scanners: make(map[string]*attached),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func openSerial(port string) (io.ReadCloser, error) {
	return serial.OpenPort(&serial.Config{Name: port, Baud: serialports.DefaultBaud})
}

// OnScan registers a callback for every scanned code
func (m *Manager) OnScan(fn func(Scan)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onScan = fn
}

// Start attaches every scanner stored in the registry
func (m *Manager) Start() {
	for _, port := range m.registry.Scanners() {
		m.attach(port)
	}
}

// Add attaches a scanner on port and remembers it
func (m *Manager) Add(port string) error {
	port = strings.TrimSpace(port)
	if port == "" {
		return errors.New("port_name is required")
	}

	m.mu.Lock()
	_, exists := m.scanners[port]
	m.mu.Unlock()
	if exists {
		return ErrAlreadyAttached
	}

	// Fail early on ports that cannot be opened at all
	rc, err := m.open(port)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", port, err)
	}
	rc.Close()

	if _, err := m.registry.AddScanner(port); err != nil {
		return fmt.Errorf("failed to save scanner: %w", err)
	}

	m.attach(port)
	m.log.WithField("port", port).Info("🔌 Scanner added")
	return nil
}

// Remove detaches a scanner and forgets it
func (m *Manager) Remove(port string) bool {
	m.mu.Lock()
	s, ok := m.scanners[port]
	delete(m.scanners, port)
	m.mu.Unlock()

	if !ok {
		return false
	}
	s.cancel()
	<-s.done

	if _, err := m.registry.RemoveScanner(port); err != nil {
		m.log.WithError(err).Warn("Failed to save registry")
	}
	m.log.WithField("port", port).Info("Scanner removed")
	return true
}

func (m *Manager) attach(port string) {
	ctx, cancel := context.WithCancel(m.ctx)
	s := &attached{port: port, cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	if _, exists := m.scanners[port]; exists {
		m.mu.Unlock()
		cancel()
		return
	}
	m.scanners[port] = s
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(s.done)
		m.run(ctx, s)
	}()
}

// run reads port until ctx is done, reopening it after errors
func (m *Manager) run(ctx context.Context, s *attached) {
	log := m.log.WithField("port", s.port)

	for {
		rc, err := m.open(s.port)
		if err != nil {
			m.setStatus(s, false, err)
		} else {
			m.setStatus(s, true, nil)
			log.Info("🟢 Scanner connected")

			stop := context.AfterFunc(ctx, func() { rc.Close() })
			err = m.read(rc, s.port)
			stop()
			rc.Close()

			if ctx.Err() != nil {
				return
			}
			m.setStatus(s, false, err)
			log.WithError(err).Warn("🔴 Scanner disconnected")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(reopenDelay):
		}
	}
}

// read consumes CR or LF terminated codes
func (m *Manager) read(r io.Reader, port string) error {
	sc := bufio.NewScanner(r)
	sc.Split(scanLines)

	for sc.Scan() {
		code := strings.TrimSpace(sc.Text())
		if code == "" {
			continue
		}
		m.record(Scan{Code: code, PortName: port, ScannedAt: time.Now().UTC()})
	}

	if err := sc.Err(); err != nil {
		return err
	}
	return io.EOF
}

// scanLines splits on \r, \n or \r\n
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i, b := range data {
		if b == '\r' || b == '\n' {
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func (m *Manager) record(scan Scan) {
	m.mu.Lock()
	m.last = &scan
	fn := m.onScan
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{"port": scan.PortName, "code": scan.Code}).Info("📷 Code scanned")
	if fn != nil {
		fn(scan)
	}
}

// Inject stores a code as if it had been scanned. Used by the console and
// for testing a kiosk without hardware.
func (m *Manager) Inject(code, source string) {
	m.record(Scan{Code: code, PortName: source, ScannedAt: time.Now().UTC()})
}

func (m *Manager) setStatus(s *attached, connected bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s.connected = connected
	s.lastErr = ""
	if err != nil && !errors.Is(err, io.EOF) {
		s.lastErr = err.Error()
	}
}

// Last returns the last scan since the previous Clear
func (m *Manager) Last() (Scan, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.last == nil {
		return Scan{}, false
	}
	return *m.last, true
}

// Clear empties the last-scan buffer
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = nil
}

// List returns the attached scanners sorted by port
func (m *Manager) List() []Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Status, 0, len(m.scanners))
	for _, s := range m.scanners {
		out = append(out, Status{PortName: s.port, Connected: s.connected, LastError: s.lastErr})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PortName < out[j].PortName })
	return out
}

// Ports returns candidate serial ports and whether a scanner holds them
func (m *Manager) Ports() []PortInfo {
	m.mu.Lock()
	held := make(map[string]bool, len(m.scanners))
	for port := range m.scanners {
		held[port] = true
	}
	m.mu.Unlock()

	var out []PortInfo
	for _, port := range serialports.Available(held) {
		out = append(out, PortInfo{PortName: port, InUse: held[port]})
	}
	return out
}

// PortInfo is a serial port a scanner could use
type PortInfo struct {
	PortName string `json:"port_name"`
	InUse    bool   `json:"in_use"`
}

// Stop detaches all scanners
func (m *Manager) Stop() {
	m.cancel()
	m.wg.Wait()
}
