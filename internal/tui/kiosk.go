package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
	"github.com/thevladbog/idento-sub000/internal/agentclient"
	"github.com/thevladbog/idento-sub000/internal/checkin"
	"github.com/thevladbog/idento-sub000/internal/model"
	"github.com/thevladbog/idento-sub000/internal/template"
)

const (
	healthInterval = 10 * time.Second
	healthTimeout  = 2 * time.Second
	maxCardWidth   = 64
)

// Checkin is the part of the check-in controller the kiosk drives.
// *checkin.Controller satisfies it.
type Checkin interface {
	checkin.Submitter
	Dismiss() bool
	PrintBadge(ctx context.Context) error
	RenderBadge(ctx context.Context) (string, error)
	Reload(ctx context.Context) error
	State() checkin.State
	Event() *model.Event
	Stats() (total, checkedIn int)
	Settings() checkin.Settings
	UpdateSettings(s checkin.Settings) error
}

// HealthChecker reports whether the local agent is reachable
type HealthChecker interface {
	Health(ctx context.Context) (*agentclient.Health, error)
}

// KioskOptions wire the kiosk screen
type KioskOptions struct {
	Controller Checkin
	Agent      HealthChecker      // nil hides the agent banner
	Scanner    checkin.ScanSource // nil disables scanner mode polling

	DismissAfter time.Duration
	PollInterval time.Duration
	Logger       logrus.FieldLogger
}

// Messages
type (
	tickMsg    time.Time
	healthTick time.Time
	stateMsg   checkin.State
	changedMsg struct{}
	healthMsg  struct {
		health *agentclient.Health
		err    error
	}
	submitDoneMsg struct{ err error }
	printDoneMsg  struct{ err error }
	copyDoneMsg   struct{ err error }
	reloadDoneMsg struct{ err error }
	agentErrMsg   struct{ err error }
)

type flash struct {
	text  string
	level string
}

// Kiosk is the check-in screen, a Bubble Tea model
type Kiosk struct {
	ctl          Checkin
	agent        HealthChecker
	scanner      checkin.ScanSource
	dismissAfter time.Duration
	pollInterval time.Duration
	log          logrus.FieldLogger

	ctx    context.Context
	cancel context.CancelFunc

	// pollCancel stops the scanner poller; nil while not polling
	pollCancel context.CancelFunc

	width      int
	height     int
	ready      bool
	quitting   bool
	input      textinput.Model
	spinner    spinner.Model
	state      checkin.State
	resolvedAt time.Time
	now        time.Time

	agentChecked bool
	agentErr     error
	agentHealth  *agentclient.Health
	flash        flash

	mu      sync.Mutex
	program *tea.Program
	lastLog string
}

// NewKiosk creates the kiosk screen
func NewKiosk(opts KioskOptions) *Kiosk {
	if opts.DismissAfter <= 0 {
		opts.DismissAfter = checkin.DefaultDismissAfter
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	ti := textinput.New()
	ti.Prompt = "› "
	ti.CharLimit = 128
	ti.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	ctx, cancel := context.WithCancel(context.Background())

	k := &Kiosk{
		ctl:          opts.Controller,
		agent:        opts.Agent,
		scanner:      opts.Scanner,
		dismissAfter: opts.DismissAfter,
		pollInterval: opts.PollInterval,
		log:          opts.Logger,
		ctx:          ctx,
		cancel:       cancel,
		input:        ti,
		spinner:      s,
		now:          time.Now(),
	}
	k.updatePlaceholder()
	return k
}

// Notify tells the screen the controller state changed. Safe to call from
// any goroutine, before or after Run. The screen reads the state itself so
// late deliveries cannot roll it back.
func (k *Kiosk) Notify(checkin.State) {
	k.send(changedMsg{})
}

// NotifyPrintError reports a failed automatic print
func (k *Kiosk) NotifyPrintError(err error) {
	k.send(printDoneMsg{err: err})
}

func (k *Kiosk) send(msg tea.Msg) {
	k.mu.Lock()
	p := k.program
	k.mu.Unlock()
	if p != nil {
		// Send blocks until the event loop reads; callers may be inside Update
		go p.Send(msg)
	}
}

// Init initializes the screen
func (k *Kiosk) Init() tea.Cmd {
	// changes before Run were not delivered
	k.applyState(k.ctl.State())
	k.syncPoller()
	return tea.Batch(
		textinput.Blink,
		k.spinner.Tick,
		k.tickCmd(),
		k.healthCmd(),
	)
}

func (k *Kiosk) tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (k *Kiosk) healthTickCmd() tea.Cmd {
	return tea.Tick(healthInterval, func(t time.Time) tea.Msg {
		return healthTick(t)
	})
}

func (k *Kiosk) healthCmd() tea.Cmd {
	if k.agent == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(k.ctx, healthTimeout)
		defer cancel()
		h, err := k.agent.Health(ctx)
		return healthMsg{health: h, err: err}
	}
}

// Update handles messages
func (k *Kiosk) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if cmd, handled := k.handleKey(msg); handled {
			return k, cmd
		}
		var cmd tea.Cmd
		k.input, cmd = k.input.Update(msg)
		cmds = append(cmds, cmd)

	case tea.WindowSizeMsg:
		k.width = msg.Width
		k.height = msg.Height
		k.ready = true
		k.input.Width = min(maxCardWidth, max(10, k.width-10))

	case stateMsg:
		k.applyState(checkin.State(msg))

	case changedMsg:
		k.applyState(k.ctl.State())

	case tickMsg:
		k.now = time.Time(msg)
		cmds = append(cmds, k.tickCmd())

	case healthTick:
		cmds = append(cmds, k.healthCmd())

	case healthMsg:
		k.agentChecked = true
		k.agentHealth = msg.health
		k.agentErr = msg.err
		cmds = append(cmds, k.healthTickCmd())

	case agentErrMsg:
		k.agentChecked = true
		k.agentErr = msg.err

	case submitDoneMsg:
		switch {
		case msg.err == nil:
		case errors.Is(msg.err, checkin.ErrBusy):
			k.setFlash("Dismiss the current result first (Esc)", "warning")
		case errors.Is(msg.err, checkin.ErrSessionChanged):
		default:
			k.setFlash(msg.err.Error(), "error")
		}

	case printDoneMsg:
		if msg.err != nil {
			k.setFlash("Print failed: "+msg.err.Error(), "error")
		} else {
			k.setFlash("Badge sent to printer", "success")
		}

	case copyDoneMsg:
		if msg.err != nil {
			k.setFlash(msg.err.Error(), "warning")
		} else {
			k.setFlash("Badge ZPL copied to clipboard", "success")
		}

	case reloadDoneMsg:
		if msg.err != nil {
			k.setFlash("Reload failed: "+msg.err.Error(), "error")
		} else {
			total, _ := k.ctl.Stats()
			k.setFlash(fmt.Sprintf("Loaded %d attendees", total), "success")
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		k.spinner, cmd = k.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return k, tea.Batch(cmds...)
}

func (k *Kiosk) applyState(s checkin.State) {
	prev := k.state
	k.state = s
	if s.Phase == checkin.PhaseResolved && s.Seq != prev.Seq {
		k.resolvedAt = time.Now()
		k.now = k.resolvedAt
	}
	if s.Phase == checkin.PhaseIdle {
		k.resolvedAt = time.Time{}
	}
}

func (k *Kiosk) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c":
		k.quitting = true
		k.stopPoller()
		k.cancel()
		return tea.Quit, true

	case "enter":
		code := strings.TrimSpace(k.input.Value())
		if code == "" {
			return nil, true
		}
		if k.state.Phase != checkin.PhaseIdle {
			k.setFlash("Dismiss the current result first (Esc)", "warning")
			return nil, true
		}
		k.input.Reset()
		k.flash = flash{}
		return k.submitCmd(code), true

	case "esc":
		k.ctl.Dismiss()
		k.applyState(k.ctl.State())
		k.flash = flash{}
		return nil, true

	case "f2":
		k.toggle(func(s *checkin.Settings) {
			if s.Mode == checkin.ModeScanner {
				s.Mode = checkin.ModeCamera
			} else {
				s.Mode = checkin.ModeScanner
			}
		})
		k.syncPoller()
		k.updatePlaceholder()
		return nil, true

	case "f3":
		k.toggle(func(s *checkin.Settings) { s.PrintEnabled = !s.PrintEnabled })
		return nil, true

	case "f4":
		k.toggle(func(s *checkin.Settings) { s.ManualPrint = !s.ManualPrint })
		return nil, true

	case "ctrl+p":
		return k.printCmd(), true

	case "ctrl+y":
		return k.copyCmd(), true

	case "ctrl+r":
		return k.reloadCmd(), true
	}
	return nil, false
}

func (k *Kiosk) toggle(change func(*checkin.Settings)) {
	s := k.ctl.Settings()
	change(&s)
	if err := k.ctl.UpdateSettings(s); err != nil {
		k.setFlash(err.Error(), "error")
		return
	}
	k.flash = flash{}
}

func (k *Kiosk) setFlash(text, level string) {
	k.flash = flash{text: text, level: level}
}

func (k *Kiosk) submitCmd(code string) tea.Cmd {
	return func() tea.Msg {
		_, err := k.ctl.SubmitCode(k.ctx, code)
		return submitDoneMsg{err: err}
	}
}

func (k *Kiosk) printCmd() tea.Cmd {
	return func() tea.Msg {
		return printDoneMsg{err: k.ctl.PrintBadge(k.ctx)}
	}
}

func (k *Kiosk) copyCmd() tea.Cmd {
	return func() tea.Msg {
		label, err := k.ctl.RenderBadge(k.ctx)
		if err != nil {
			return copyDoneMsg{err: err}
		}
		return copyDoneMsg{err: copyToClipboard(label)}
	}
}

func (k *Kiosk) reloadCmd() tea.Cmd {
	return func() tea.Msg {
		return reloadDoneMsg{err: k.ctl.Reload(k.ctx)}
	}
}

// syncPoller runs the scanner poller exactly while scanner mode is on
func (k *Kiosk) syncPoller() {
	want := k.scanner != nil && k.ctl.Settings().Mode == checkin.ModeScanner
	if want == (k.pollCancel != nil) {
		return
	}
	if !want {
		k.stopPoller()
		return
	}

	ctx, cancel := context.WithCancel(k.ctx)
	k.pollCancel = cancel
	p := &checkin.Poller{
		Source:   k.scanner,
		Target:   k.ctl,
		Interval: k.pollInterval,
		Logger:   k.log,
		OnError:  func(err error) { k.send(agentErrMsg{err: err}) },
	}
	go func() {
		_ = p.Run(ctx)
	}()
	k.log.Info("📷 Scanner polling started")
}

func (k *Kiosk) stopPoller() {
	if k.pollCancel != nil {
		k.pollCancel()
		k.pollCancel = nil
		k.log.Info("📷 Scanner polling stopped")
	}
}

func (k *Kiosk) updatePlaceholder() {
	if k.ctl.Settings().Mode == checkin.ModeScanner {
		k.input.Placeholder = "Waiting for scanner, or type a code"
	} else {
		k.input.Placeholder = "Scan or type attendee code"
	}
}

// View renders the UI
func (k *Kiosk) View() string {
	if k.quitting {
		return "\n  Goodbye!\n\n"
	}
	if !k.ready {
		return "\n  Loading...\n"
	}

	width := min(maxCardWidth, max(20, k.width-4))
	sections := []string{k.renderHeader()}

	if banner := k.renderAgentBanner(); banner != "" {
		sections = append(sections, banner)
	}

	sections = append(sections, "")
	switch k.state.Phase {
	case checkin.PhaseResolving:
		sections = append(sections, k.spinner.View()+TextNormal.Render(" Checking "+k.state.Code+"..."))
	case checkin.PhaseResolved:
		sections = append(sections, k.renderResult(width))
	default:
		sections = append(sections,
			InputLabelStyle.Render("Attendee code"),
			InputFocusedStyle.Width(width).Render(k.input.View()),
		)
	}

	if k.flash.text != "" {
		sections = append(sections, "", flashStyle(k.flash.level).Render(k.flash.text))
	}

	sections = append(sections, "", k.renderHelp())

	return ContentStyle.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func flashStyle(level string) lipgloss.Style {
	switch level {
	case "error":
		return ErrorStyle
	case "warning":
		return WarningStyle
	case "success":
		return SuccessStyle
	default:
		return InfoStyle
	}
}

func (k *Kiosk) renderHeader() string {
	title := "No event loaded"
	if ev := k.ctl.Event(); ev != nil {
		title = ev.Name
	}
	total, checkedIn := k.ctl.Stats()
	s := k.ctl.Settings()

	printing := "print off"
	if s.PrintEnabled {
		printing = "print auto"
		if s.ManualPrint {
			printing = "print manual"
		}
	}

	return lipgloss.JoinHorizontal(lipgloss.Top,
		HeaderStyle.Render(title),
		TextMuted.Render(fmt.Sprintf("  %d/%d checked in | %s | %s", checkedIn, total, s.Mode, printing)),
	)
}

// renderAgentBanner warns when the agent is down and something needs it
func (k *Kiosk) renderAgentBanner() string {
	if k.agent == nil || !k.agentChecked || k.agentErr == nil {
		return ""
	}
	s := k.ctl.Settings()
	if !s.PrintEnabled && s.Mode != checkin.ModeScanner {
		return ""
	}
	return AlertStyle.Render("Printer agent unavailable: printing and scanner input are paused")
}

func (k *Kiosk) renderResult(width int) string {
	r := k.state.Result
	if r == nil {
		return ""
	}
	accent := statusColor(r.Status)

	var lines []string
	lines = append(lines, lipgloss.NewStyle().Bold(true).Foreground(accent).Render(r.Message))

	if r.Attendee != nil {
		if ev := k.ctl.Event(); ev != nil {
			if bt := ev.BadgeType(r.Attendee); bt != "" {
				lines = append(lines, "", BannerStyle.Render(strings.ToUpper(bt)))
			}
			lines = append(lines, "", template.RenderStyled(ev.Template(), r.Attendee.Fields(), attendeeStyles(), width-6))
		}
		if r.Attendee.CheckinStatus && r.Attendee.CheckedInAt != nil {
			lines = append(lines, "", TextMuted.Render("Checked in at "+r.Attendee.CheckedInAt.Local().Format("15:04:05")))
		}
	} else if k.state.Code != "" {
		lines = append(lines, TextMuted.Render("Code: "+k.state.Code))
	}

	if left := k.remaining(); left > 0 {
		lines = append(lines, "", TextMuted.Render(fmt.Sprintf("Closes in %ds", int(left.Round(time.Second)/time.Second))))
	}

	return CardStyle.
		BorderForeground(accent).
		Width(width).
		Render(strings.Join(lines, "\n"))
}

// remaining is the time until the current result auto-dismisses
func (k *Kiosk) remaining() time.Duration {
	if k.resolvedAt.IsZero() {
		return 0
	}
	left := k.dismissAfter - k.now.Sub(k.resolvedAt)
	if left < 0 {
		return 0
	}
	return left
}

func (k *Kiosk) renderHelp() string {
	items := []string{
		RenderHelp("enter", "check in"),
		RenderHelp("esc", "dismiss"),
		RenderHelp("F2", "mode"),
		RenderHelp("F3", "printing"),
		RenderHelp("F4", "manual print"),
	}
	if r := k.state.Result; r != nil && r.Status == checkin.StatusSuccess {
		items = append(items, RenderHelp("ctrl+p", "print"), RenderHelp("ctrl+y", "copy ZPL"))
	}
	items = append(items, RenderHelp("ctrl+r", "reload"), RenderHelp("ctrl+c", "quit"))

	help := strings.Join(items, HelpStyle.Render("  "))

	k.mu.Lock()
	last := k.lastLog
	k.mu.Unlock()
	if last != "" {
		help += "\n" + TextMuted.Render(Truncate(last, max(20, k.width-4)))
	}
	return help
}

// Run starts the TUI and blocks until it quits
func (k *Kiosk) Run() error {
	p := tea.NewProgram(k, tea.WithAltScreen())

	k.mu.Lock()
	k.program = p
	k.mu.Unlock()

	_, err := p.Run()

	k.mu.Lock()
	k.program = nil
	k.mu.Unlock()

	k.stopPoller()
	k.cancel()
	return err
}

// LogWriter returns an io.Writer whose last line is shown under the help
func (k *Kiosk) LogWriter() io.Writer {
	return &kioskLogWriter{k: k}
}

type kioskLogWriter struct {
	k *Kiosk
}

func (w *kioskLogWriter) Write(p []byte) (n int, err error) {
	message := strings.TrimSpace(string(p))
	if message != "" {
		w.k.mu.Lock()
		w.k.lastLog = message
		w.k.mu.Unlock()
	}
	return len(p), nil
}
