package tui

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thevladbog/idento-sub000/internal/command"
	"github.com/thevladbog/idento-sub000/internal/printer"
	"github.com/thevladbog/idento-sub000/internal/registry"
	"github.com/thevladbog/idento-sub000/internal/scanner"
)

func newTestConsole(t *testing.T) *Console {
	t.Helper()

	reg, err := registry.New(filepath.Join(t.TempDir(), "registry.json"), quietLogger())
	require.NoError(t, err)

	manager := printer.NewManager(reg, quietLogger())
	queue := printer.NewPrintQueue(printer.NewConnectionPool(), manager, 1, quietLogger())
	t.Cleanup(queue.Stop)
	scans := scanner.NewManager(reg, nil, quietLogger())
	t.Cleanup(scans.Stop)

	return NewConsole(ConsoleOptions{
		Manager:  manager,
		Queue:    queue,
		Scanners: scans,
		Executor: command.NewExecutor(manager, queue, scans),
		Port:     "12212",
		Version:  "test",
	})
}

func (c *Console) logText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.logs, "")
}

func TestConsole_ExecuteCommand(t *testing.T) {
	c := newTestConsole(t)

	c.executeCommand("printer add-network 10.0.0.5")
	assert.Contains(t, c.logText(), "Added network printer")
	require.Equal(t, 1, c.printersList.GetItemCount())
	main, secondary := c.printersList.GetItemText(0)
	assert.Contains(t, main, "Network: 10.0.0.5:9100")
	assert.Contains(t, secondary, "NETWORK")

	c.executeCommand("bogus")
	assert.Contains(t, c.logText(), "unknown command: bogus")

	c.executeCommand("clear")
	assert.Empty(t, c.logText())
}

func TestConsole_ScanReceived(t *testing.T) {
	c := newTestConsole(t)

	c.ScanReceived(scanner.Scan{Code: "ABC123", PortName: "/dev/ttyACM0", ScannedAt: time.Now()})
	c.refreshStatus()

	assert.Contains(t, c.statusBox.GetText(true), "Last scan: ABC123")
	assert.Contains(t, c.logText(), "Scan from /dev/ttyACM0: ABC123")
}

func TestConsole_EmptyPanels(t *testing.T) {
	c := newTestConsole(t)
	c.refreshAll()

	main, _ := c.printersList.GetItemText(0)
	assert.Equal(t, "No printers detected", main)
	main, _ = c.scannersList.GetItemText(0)
	assert.Equal(t, "No scanners", main)
	assert.Equal(t, 1, c.queueTable.GetRowCount())
}

func TestConsoleLogWriter_Levels(t *testing.T) {
	c := newTestConsole(t)
	w := c.LogWriter()

	_, _ = w.Write([]byte("level=warning msg=\"slow printer\"\n"))
	_, _ = w.Write([]byte("level=error msg=\"print failed\"\n"))
	_, _ = w.Write([]byte("   \n"))

	text := c.logText()
	assert.Contains(t, text, "[yellow]")
	assert.Contains(t, text, "[red]")
	assert.Equal(t, 2, strings.Count(text, "\n"))
}
