package tui

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/thevladbog/idento-sub000/internal/command"
	"github.com/thevladbog/idento-sub000/internal/printer"
	"github.com/thevladbog/idento-sub000/internal/scanner"
)

// ConsoleOptions wire the agent console
type ConsoleOptions struct {
	Manager  *printer.Manager
	Queue    *printer.PrintQueue
	Scanners *scanner.Manager // may be nil
	Executor *command.Executor
	Port     string
	Version  string
}

// Console is the agent's tview dashboard: printers, scanners, queue,
// status, logs and a command line
type Console struct {
	App      *tview.Application
	manager  *printer.Manager
	queue    *printer.PrintQueue
	scanners *scanner.Manager
	executor *command.Executor
	port     string
	version  string

	flex         *tview.Flex
	printersList *tview.List
	scannersList *tview.List
	queueTable   *tview.Table
	statusBox    *tview.TextView
	logsArea     *tview.TextView
	commandInput *tview.InputField

	mu        sync.Mutex
	logs      []string
	maxLogs   int
	lastScan  string
	startTime time.Time
}

// NewConsole creates the agent console
func NewConsole(opts ConsoleOptions) *Console {
	c := &Console{
		App:       tview.NewApplication(),
		manager:   opts.Manager,
		queue:     opts.Queue,
		scanners:  opts.Scanners,
		executor:  opts.Executor,
		port:      opts.Port,
		version:   opts.Version,
		maxLogs:   200,
		startTime: time.Now(),
	}
	c.setupUI()
	return c
}

func (c *Console) setupUI() {
	c.printersList = tview.NewList()
	c.printersList.SetBorder(true)
	c.printersList.SetTitle("Printers")

	c.scannersList = tview.NewList()
	c.scannersList.SetBorder(true)
	c.scannersList.SetTitle("Scanners")

	c.queueTable = tview.NewTable()
	c.queueTable.SetBorder(true)
	c.queueTable.SetTitle("Print Queue")

	c.statusBox = tview.NewTextView()
	c.statusBox.SetBorder(true)
	c.statusBox.SetTitle("Agent Status")
	c.statusBox.SetDynamicColors(true)

	c.logsArea = tview.NewTextView()
	c.logsArea.SetBorder(true)
	c.logsArea.SetTitle("Logs")
	c.logsArea.SetDynamicColors(true)
	c.logsArea.SetScrollable(true)
	c.logsArea.SetChangedFunc(func() {
		c.App.Draw()
	})

	c.commandInput = tview.NewInputField().
		SetLabel("> ").
		SetFieldWidth(0).
		SetPlaceholder("Type a command (e.g., 'help')").
		SetDoneFunc(func(key tcell.Key) {
			if key == tcell.KeyEnter {
				c.executeCommand(c.commandInput.GetText())
				c.commandInput.SetText("")
			}
		})

	devices := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(c.printersList, 0, 2, false).
		AddItem(c.scannersList, 0, 1, false)

	topRow := tview.NewFlex().
		AddItem(devices, 0, 1, false).
		AddItem(c.queueTable, 0, 1, false).
		AddItem(c.statusBox, 0, 1, false)

	bottom := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(c.logsArea, 0, 3, false).
		AddItem(c.commandInput, 1, 0, true)

	c.flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(topRow, 0, 1, false).
		AddItem(bottom, 0, 1, false)

	c.App.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if c.commandInput.HasFocus() {
			if event.Key() == tcell.KeyEsc {
				c.App.SetFocus(c.printersList)
				return nil
			}
			return event
		}

		switch event.Key() {
		case tcell.KeyCtrlC, tcell.KeyEsc:
			c.App.Stop()
			return nil
		case tcell.KeyRune:
			switch event.Rune() {
			case ':':
				c.App.SetFocus(c.commandInput)
				return nil
			case 'q':
				c.App.Stop()
				return nil
			case 'd':
				c.executeCommand("detect")
				return nil
			}
		}
		return event
	})

	c.App.SetRoot(c.flex, true)
}

// Run starts the console and blocks until it quits
func (c *Console) Run() error {
	c.refreshAll()

	stop := make(chan struct{})
	defer close(stop)
	go c.refreshTicker(stop)

	c.AddLog(fmt.Sprintf("🏷️  Idento agent %s starting...", c.version), "info")

	return c.App.Run()
}

// Stop quits the console
func (c *Console) Stop() {
	c.App.Stop()
}

func (c *Console) refreshTicker(stop <-chan struct{}) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.App.QueueUpdateDraw(c.refreshAll)
		}
	}
}

// Refresh redraws all panels from any goroutine
func (c *Console) Refresh() {
	c.App.QueueUpdateDraw(c.refreshAll)
}

func (c *Console) refreshAll() {
	c.refreshPrinters()
	c.refreshScanners()
	c.refreshQueue()
	c.refreshStatus()
}

func (c *Console) refreshPrinters() {
	c.printersList.Clear()

	printers := c.manager.GetAllPrinters()
	if len(printers) == 0 {
		c.printersList.AddItem("No printers detected", "press 'd' to rescan", 0, nil)
		return
	}

	def := c.manager.DefaultPrinter()
	for _, p := range printers {
		mark := "🟢"
		if def != nil && def.ID == p.ID {
			mark = "⭐"
		}

		where := p.Device
		if p.Host != "" {
			where = fmt.Sprintf("%s:%d", p.Host, p.Port)
		}
		details := fmt.Sprintf("%s • %s • %s", strings.ToUpper(p.Type), where, p.ID)

		c.printersList.AddItem(fmt.Sprintf("%s %s", mark, p.DisplayName()), details, 0, nil)
	}
}

func (c *Console) refreshScanners() {
	c.scannersList.Clear()

	if c.scanners == nil {
		c.scannersList.AddItem("Scanner support disabled", "", 0, nil)
		return
	}

	list := c.scanners.List()
	if len(list) == 0 {
		c.scannersList.AddItem("No scanners", "scanner add <port>", 0, nil)
		return
	}
	for _, s := range list {
		mark := "🟢"
		detail := "connected"
		if !s.Connected {
			mark = "🔴"
			detail = "disconnected"
			if s.LastError != "" {
				detail = s.LastError
			}
		}
		c.scannersList.AddItem(fmt.Sprintf("%s %s", mark, s.PortName), detail, 0, nil)
	}
}

func (c *Console) refreshQueue() {
	c.queueTable.Clear()

	for col, title := range []string{"Status", "Printer", "Retries", "Age"} {
		c.queueTable.SetCell(0, col, tview.NewTableCell(title).SetAlign(tview.AlignCenter).SetSelectable(false))
	}

	jobs := c.queue.GetAllJobs()
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })

	counts := make(map[string]int)
	for i, job := range jobs {
		row := i + 1
		c.queueTable.SetCell(row, 0, tview.NewTableCell(statusIcon(job.Status)+" "+job.Status))
		c.queueTable.SetCell(row, 1, tview.NewTableCell(job.PrinterName))
		c.queueTable.SetCell(row, 2, tview.NewTableCell(fmt.Sprintf("%d", job.Retries)))
		c.queueTable.SetCell(row, 3, tview.NewTableCell(time.Since(job.CreatedAt).Truncate(time.Second).String()))
		counts[job.Status]++
	}

	if len(jobs) > 0 {
		summary := fmt.Sprintf("[%d] Queued [%d] Printing [%d] Completed [%d] Failed",
			counts[printer.StatusQueued], counts[printer.StatusPrinting],
			counts[printer.StatusCompleted], counts[printer.StatusFailed])
		c.queueTable.SetCell(len(jobs)+1, 0, tview.NewTableCell(summary).SetSelectable(false))
	}
}

func (c *Console) refreshStatus() {
	uptime := time.Since(c.startTime)

	c.mu.Lock()
	lastScan := c.lastScan
	c.mu.Unlock()
	if lastScan == "" {
		lastScan = "-"
	}

	c.statusBox.SetText(fmt.Sprintf(`[green]🟢 Running[white]

Version: %s
Uptime: %dh %dm
API: :%s
Jobs pending: %d
Last scan: %s`, c.version, int(uptime.Hours()), int(uptime.Minutes())%60, c.port, c.queue.Pending(), lastScan))
}

// ScanReceived records a scan for the status panel
func (c *Console) ScanReceived(s scanner.Scan) {
	c.mu.Lock()
	c.lastScan = fmt.Sprintf("%s (%s)", s.Code, s.ScannedAt.Local().Format("15:04:05"))
	c.mu.Unlock()
	c.AddLog(fmt.Sprintf("🔎 Scan from %s: %s", s.PortName, s.Code), "info")
}

func (c *Console) executeCommand(cmd string) {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return
	}
	c.AddLog(cmd, "command")

	switch strings.ToLower(cmd) {
	case "clear":
		c.mu.Lock()
		c.logs = nil
		c.mu.Unlock()
		c.logsArea.Clear()
		return
	case "quit", "exit":
		c.App.Stop()
		return
	}

	result := c.executor.Execute(cmd)
	if !result.Success {
		c.AddLog(result.Error, "error")
		return
	}
	if result.Message != "" {
		c.AddLog(result.Message, "info")
	}
	c.refreshAll()
}

// AddLog adds a log entry. Safe from any goroutine.
func (c *Console) AddLog(message string, level string) {
	var color, icon string

	switch level {
	case "error":
		color = "[red]"
		icon = "❌"
	case "warning":
		color = "[yellow]"
		icon = "⚠️"
	case "command":
		color = "[cyan]"
		icon = ">"
	default:
		color = "[white]"
		icon = "ℹ️"
	}

	entry := fmt.Sprintf("%s[%s] %s %s[white]\n", color, time.Now().Format("15:04:05"), icon, tview.Escape(message))

	c.mu.Lock()
	c.logs = append(c.logs, entry)
	if len(c.logs) > c.maxLogs {
		c.logs = c.logs[len(c.logs)-c.maxLogs:]
	}
	text := strings.Join(c.logs, "")
	c.mu.Unlock()

	c.logsArea.SetText(text)
	c.logsArea.ScrollToEnd()
}

func statusIcon(status string) string {
	switch status {
	case printer.StatusQueued:
		return "⏳"
	case printer.StatusPrinting:
		return "🟡"
	case printer.StatusCompleted:
		return "✅"
	case printer.StatusFailed:
		return "❌"
	default:
		return "⚪"
	}
}

// LogWriter creates an io.Writer that writes to the logs panel
func (c *Console) LogWriter() io.Writer {
	return &consoleLogWriter{c: c}
}

type consoleLogWriter struct {
	c *Console
}

func (w *consoleLogWriter) Write(p []byte) (n int, err error) {
	message := strings.TrimSpace(string(p))
	if message != "" {
		level := "info"
		if strings.Contains(message, "level=error") {
			level = "error"
		} else if strings.Contains(message, "level=warning") {
			level = "warning"
		}
		w.c.AddLog(message, level)
	}
	return len(p), nil
}
