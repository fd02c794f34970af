package printer

import (
	"errors"
	"io"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thevladbog/idento-sub000/internal/registry"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// newTestManager returns a manager whose hardware detection is replaced
// by the detected slice
func newTestManager(t *testing.T, detected *[]*Printer) *Manager {
	t.Helper()
	reg, err := registry.New(filepath.Join(t.TempDir(), "registry.json"), quietLogger())
	require.NoError(t, err)

	m := NewManager(reg, quietLogger())
	m.detectors = []func() ([]*Printer, error){
		func() ([]*Printer, error) { return *detected, nil },
		func() ([]*Printer, error) { return nil, errors.New("libusb missing") },
	}
	return m
}

func usbPrinter(m *Manager, vid, pid uint16, desc string) *Printer {
	id := m.registry.GetPrinterID(registry.PrinterInfo{Type: registry.TypeUSB, VID: vid, PID: pid, Description: desc})
	return &Printer{ID: id, Type: registry.TypeUSB, VID: vid, PID: pid, Description: desc}
}

func TestResolve(t *testing.T) {
	var detected []*Printer
	m := newTestManager(t, &detected)

	zebra := usbPrinter(m, 0x0A5F, 0x0164, "Zebra ZD421")
	godex := usbPrinter(m, 0x195F, 0x0001, "Godex G500")
	detected = []*Printer{zebra, godex}
	_, err := m.DetectPrinters()
	require.NoError(t, err)

	require.True(t, m.SetPrinterName(zebra.ID, "Front desk"))

	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"front desk", zebra.ID, false},
		{"Zebra ZD421", zebra.ID, false},
		{"godex g500", godex.ID, false},
		{godex.ID, godex.ID, false},
		{"Back office", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := m.Resolve(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoPrinter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.ID)
		})
	}

	_, err = m.SetDefaultPrinter("Godex G500")
	require.NoError(t, err)
	p, err := m.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, godex.ID, p.ID)
	assert.Equal(t, godex.ID, m.DefaultPrinter().ID)
}

func TestResolve_SinglePrinterIsImplicitDefault(t *testing.T) {
	var detected []*Printer
	m := newTestManager(t, &detected)
	m.AddNetworkPrinter("10.0.0.9", 0, "")

	p, err := m.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, 9100, p.Port)
	assert.Equal(t, "Network: 10.0.0.9:9100", p.DisplayName())
}

func TestNetworkPrintersSurviveRescanAndRestart(t *testing.T) {
	var detected []*Printer
	m := newTestManager(t, &detected)
	added := m.AddNetworkPrinter("10.0.0.9", 9100, "Badge TCP")

	_, err := m.DetectPrinters()
	require.NoError(t, err)
	assert.NotNil(t, m.GetPrinter(added.ID))

	restarted := NewManager(m.Registry(), quietLogger())
	p := restarted.GetPrinter(added.ID)
	require.NotNil(t, p)
	assert.Equal(t, "10.0.0.9", p.Host)
}

func TestMonitor(t *testing.T) {
	var detected []*Printer
	m := newTestManager(t, &detected)

	var added []string
	var removed []string
	m.OnPrinterAdded(func(p *Printer) { added = append(added, p.ID) })
	m.OnPrinterRemoved(func(id string) { removed = append(removed, id) })

	mon := NewMonitor(m, time.Hour)
	zebra := usbPrinter(m, 0x0A5F, 0x0164, "Zebra")

	detected = []*Printer{zebra}
	mon.CheckChanges()
	assert.Equal(t, []string{zebra.ID}, added)

	mon.CheckChanges()
	assert.Len(t, added, 1)

	detected = nil
	mon.CheckChanges()
	assert.Equal(t, []string{zebra.ID}, removed)
}

// fakeZebra is a raw TCP printer collecting every payload
type fakeZebra struct {
	ln   net.Listener
	mu   sync.Mutex
	data []byte
}

func startFakeZebra(t *testing.T) *fakeZebra {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	z := &fakeZebra{ln: ln}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				buf := make([]byte, 4096)
				for {
					n, err := conn.Read(buf)
					z.mu.Lock()
					z.data = append(z.data, buf[:n]...)
					z.mu.Unlock()
					if err != nil {
						return
					}
				}
			}()
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return z
}

func (z *fakeZebra) received() string {
	z.mu.Lock()
	defer z.mu.Unlock()
	return string(z.data)
}

func TestPrintQueue_SendsRawZPL(t *testing.T) {
	z := startFakeZebra(t)
	addr := z.ln.Addr().(*net.TCPAddr)

	var detected []*Printer
	m := newTestManager(t, &detected)
	p := m.AddNetworkPrinter("127.0.0.1", addr.Port, "Fake Zebra")

	pool := NewConnectionPool()
	q := NewPrintQueue(pool, m, 3, quietLogger())
	defer func() {
		q.Stop()
		pool.DisconnectAll()
	}()

	var mu sync.Mutex
	var statuses []string
	q.OnUpdate(func(j PrintJob) {
		mu.Lock()
		statuses = append(statuses, j.Status)
		mu.Unlock()
	})

	label := "^XA\n^FO10,10^FDJane^FS\n^XZ\n"
	job := q.Enqueue(p, []byte(label))
	assert.Equal(t, StatusQueued, job.Status)
	assert.Equal(t, "Fake Zebra", job.PrinterName)

	require.Eventually(t, func() bool {
		j := q.GetJob(job.ID)
		return j != nil && j.Status == StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool { return z.received() == label }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, pool.IsConnected(p.ID))
	assert.Equal(t, 0, q.Pending())

	mu.Lock()
	assert.Equal(t, []string{StatusPrinting, StatusCompleted}, statuses)
	mu.Unlock()

	assert.Equal(t, 1, q.ClearCompleted())
	assert.Empty(t, q.GetAllJobs())
}

func TestPrintQueue_FailsAfterRetries(t *testing.T) {
	var detected []*Printer
	m := newTestManager(t, &detected)
	p := m.AddNetworkPrinter("127.0.0.1", 1, "Nowhere")

	pool := NewConnectionPool()
	dials := 0
	pool.SetDialer(registry.TypeNetwork, func(*Printer) (Connection, error) {
		dials++
		return nil, errors.New("connection refused")
	})

	q := NewPrintQueue(pool, m, 3, quietLogger())
	q.SetRetryDelay(0)
	defer q.Stop()

	job := q.Enqueue(p, []byte("^XA^XZ"))

	require.Eventually(t, func() bool {
		j := q.GetJob(job.ID)
		return j != nil && j.Status == StatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	j := q.GetJob(job.ID)
	assert.Equal(t, 3, j.Retries)
	assert.Contains(t, j.Error, "connection refused")
	assert.Equal(t, 3, dials)
}

type brokenConn struct{ closed bool }

func (c *brokenConn) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }
func (c *brokenConn) Close() error              { c.closed = true; return nil }

func TestConnectionPool_DropsBrokenConnection(t *testing.T) {
	pool := NewConnectionPool()
	conn := &brokenConn{}
	pool.SetDialer("test", func(*Printer) (Connection, error) { return conn, nil })

	p := &Printer{ID: "p1", Type: "test"}
	require.NoError(t, pool.Connect(p))

	err := pool.Send("p1", []byte("^XA^XZ"))
	assert.ErrorContains(t, err, "broken pipe")
	assert.False(t, pool.IsConnected("p1"))
	assert.True(t, conn.closed)

	assert.ErrorContains(t, pool.Connect(&Printer{ID: "p2", Type: "bluetooth"}), "unsupported printer type")
}
