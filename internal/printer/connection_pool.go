package printer

import (
	"fmt"
	"io"
	"runtime"
	"sync"

	"github.com/thevladbog/idento-sub000/internal/registry"
	"github.com/thevladbog/idento-sub000/internal/serialports"
)

// Connection is an open transport to a printer. Writes carry raw printer
// language bytes (ZPL).
type Connection interface {
	io.Writer
	Close() error
}

// Dialer opens a connection to a printer
type Dialer func(p *Printer) (Connection, error)

// ConnectionPool keeps one open connection per printer
type ConnectionPool struct {
	connections map[string]Connection
	dialers     map[string]Dialer
	mu          sync.RWMutex
}

// NewConnectionPool creates a pool dialing USB, serial and network printers
func NewConnectionPool() *ConnectionPool {
	return &ConnectionPool{
		connections: make(map[string]Connection),
		dialers: map[string]Dialer{
			registry.TypeUSB:     dialUSB,
			registry.TypeSerial:  dialSerial,
			registry.TypeNetwork: dialNetwork,
		},
	}
}

// SetDialer replaces the dialer for a printer type
func (p *ConnectionPool) SetDialer(printerType string, d Dialer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dialers[printerType] = d
}

// Connect opens a connection unless one is already open
func (p *ConnectionPool) Connect(printer *Printer) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.connections[printer.ID]; exists {
		return nil
	}

	dial, ok := p.dialers[printer.Type]
	if !ok {
		return fmt.Errorf("unsupported printer type: %s", printer.Type)
	}

	conn, err := dial(printer)
	if err != nil {
		return err
	}

	p.connections[printer.ID] = conn
	return nil
}

// Send writes data to a connected printer. A failed write drops the
// connection so the next attempt reconnects.
func (p *ConnectionPool) Send(printerID string, data []byte) error {
	p.mu.RLock()
	conn, exists := p.connections[printerID]
	p.mu.RUnlock()

	if !exists {
		return fmt.Errorf("printer not connected: %s", printerID)
	}

	if _, err := conn.Write(data); err != nil {
		p.Disconnect(printerID)
		return fmt.Errorf("failed to write to printer: %w", err)
	}
	return nil
}

// Disconnect closes a printer connection
func (p *ConnectionPool) Disconnect(printerID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	conn, exists := p.connections[printerID]
	if !exists {
		return nil
	}

	err := conn.Close()
	delete(p.connections, printerID)

	return err
}

// DisconnectAll closes all connections
func (p *ConnectionPool) DisconnectAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, conn := range p.connections {
		conn.Close()
		delete(p.connections, id)
	}
}

// IsConnected checks if a printer is connected
func (p *ConnectionPool) IsConnected(printerID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	_, exists := p.connections[printerID]
	return exists
}

func dialUSB(printer *Printer) (Connection, error) {
	conn, err := ConnectUSB(printer.VID, printer.PID)
	if err == nil {
		return conn, nil
	}

	// macOS often binds USB printers to a CDC serial driver instead
	if runtime.GOOS == "darwin" {
		for _, port := range serialports.USBCandidates() {
			if serialConn, serialErr := ConnectSerial(port, serialports.DefaultBaud); serialErr == nil {
				return serialConn, nil
			}
		}
	}
	return nil, err
}

func dialSerial(printer *Printer) (Connection, error) {
	return ConnectSerial(printer.Device, serialports.DefaultBaud)
}

func dialNetwork(printer *Printer) (Connection, error) {
	return ConnectNetwork(printer.Host, printer.Port)
}
