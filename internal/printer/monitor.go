package printer

import (
	"context"
	"time"
)

// Monitor rescans printers periodically and reports hot-plug changes
// through the manager's callbacks
type Monitor struct {
	manager  *Manager
	interval time.Duration
	previous map[string]*Printer
}

// NewMonitor creates a monitor. The printers known at creation are the
// baseline.
func NewMonitor(manager *Manager, interval time.Duration) *Monitor {
	previous := make(map[string]*Printer)
	for _, p := range manager.GetAllPrinters() {
		previous[p.ID] = p
	}

	return &Monitor{
		manager:  manager,
		interval: interval,
		previous: previous,
	}
}

// Run checks for changes every interval until ctx is done
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckChanges()
		}
	}
}

// CheckChanges rescans once
func (m *Monitor) CheckChanges() {
	currentPrinters, err := m.manager.DetectPrinters()
	if err != nil {
		m.manager.log.WithError(err).Warn("Printer detection failed")
		return
	}

	current := make(map[string]*Printer, len(currentPrinters))
	for _, p := range currentPrinters {
		current[p.ID] = p
	}

	for id, printer := range current {
		if _, exists := m.previous[id]; !exists {
			m.manager.log.WithField("printer", printer.DisplayName()).Info("🟢 Printer added")
			if m.manager.onPrinterAdded != nil {
				m.manager.onPrinterAdded(printer)
			}
		}
	}

	for id, printer := range m.previous {
		if _, exists := current[id]; !exists {
			m.manager.log.WithField("printer", printer.DisplayName()).Info("🔴 Printer removed")
			if m.manager.onPrinterRemoved != nil {
				m.manager.onPrinterRemoved(id)
			}
		}
	}

	m.previous = current
}
