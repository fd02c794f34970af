package checkin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/thevladbog/idento-sub000/internal/model"
	"github.com/thevladbog/idento-sub000/internal/zpl"
)

// DefaultDismissAfter is how long a result stays on screen
const DefaultDismissAfter = 5 * time.Second

var (
	ErrBusy             = errors.New("a scan is already being processed")
	ErrEmptyCode        = errors.New("code is empty")
	ErrNoEvent          = errors.New("no event loaded")
	ErrSessionChanged   = errors.New("session changed")
	ErrClosed           = errors.New("controller closed")
	ErrNotPrintable     = errors.New("badge can only be printed after a successful check-in")
	ErrPrintUnavailable = errors.New("no printer transport configured")
	ErrNoBadgeTemplate  = errors.New("event has no badge template")
)

// Backend is the part of the REST API the controller needs
type Backend interface {
	GetEvent(ctx context.Context, eventID model.ID) (*model.Event, error)
	ListAttendees(ctx context.Context, eventID model.ID) ([]model.Attendee, error)
	CheckIn(ctx context.Context, attendeeID model.ID) (*model.Attendee, error)
}

// BadgeZPLSource produces badge ZPL on the server for events without a
// local badge template
type BadgeZPLSource interface {
	BadgeZPL(ctx context.Context, eventID, attendeeID model.ID) (string, error)
}

// PrintTransport sends ZPL to a printer
type PrintTransport interface {
	Print(ctx context.Context, printerName, zpl string) error
}

// Record is one resolved scan, as kept by a Recorder
type Record struct {
	SessionID  string
	EventID    model.ID
	Code       string
	AttendeeID model.ID
	Status     Status
	Message    string
	At         time.Time
}

// Recorder keeps a history of resolved scans
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// Stopper stops a pending timer. *time.Timer satisfies it.
type Stopper interface {
	Stop() bool
}

// Options configure a Controller. Backend is required.
type Options struct {
	Backend  Backend
	BadgeZPL BadgeZPLSource
	Printer  PrintTransport
	Settings SettingsStore
	Recorder Recorder

	// DismissAfter <= 0 uses DefaultDismissAfter
	DismissAfter time.Duration

	AfterFunc func(d time.Duration, f func()) Stopper
	Now       func() time.Time

	// OnChange is called after every state change, outside the lock
	OnChange func(State)
	// OnPrintError reports failed automatic prints
	OnPrintError func(error)

	Logger    logrus.FieldLogger
	SessionID string
}

// Controller owns the attendee cache of the active event and serializes
// scans through Transition. It is safe for concurrent use.
type Controller struct {
	opts Options
	log  logrus.FieldLogger

	mu        sync.Mutex
	state     State
	epoch     uint64
	sessCtx   context.Context
	cancel    context.CancelFunc
	timer     Stopper
	closed    bool
	eventID   model.ID
	event     *model.Event
	attendees []model.Attendee
	settings  Settings
}

// NewController creates a controller and loads its settings
func NewController(opts Options) (*Controller, error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if opts.DismissAfter <= 0 {
		opts.DismissAfter = DefaultDismissAfter
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = func(d time.Duration, f func()) Stopper {
			return time.AfterFunc(d, f)
		}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Settings == nil {
		opts.Settings = NewMemoryStore(DefaultSettings())
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.SessionID == "" {
		opts.SessionID = uuid.New().String()
	}

	c := &Controller{
		opts: opts,
		log:  opts.Logger.WithField("session", opts.SessionID),
	}
	c.sessCtx, c.cancel = context.WithCancel(context.Background())

	settings, err := opts.Settings.Load()
	if err != nil {
		c.log.WithError(err).Warn("Failed to load kiosk settings, using defaults")
		settings = DefaultSettings()
	}
	if settings.Validate() != nil {
		settings.Mode = ModeCamera
	}
	c.settings = settings

	return c, nil
}

// LoadEvent switches the controller to eventID and fetches its attendees.
// Any scan or timer of the previous event is abandoned.
func (c *Controller) LoadEvent(ctx context.Context, eventID model.ID) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	epoch, sessCtx := c.resetLocked()
	// a reload keeps serving the cached list until the new one arrives
	if c.eventID != eventID {
		c.event = nil
		c.attendees = nil
	}
	c.eventID = eventID
	state := c.state
	c.mu.Unlock()
	c.notify(state)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(sessCtx, cancel)
	defer stop()

	event, err := c.opts.Backend.GetEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to load event %s: %w", eventID, err)
	}
	attendees, err := c.opts.Backend.ListAttendees(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to load attendees: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return ErrSessionChanged
	}
	c.event = event
	c.attendees = attendees

	for key, msg := range event.CustomFields.FieldErrors {
		c.log.WithField("event_id", eventID).WithField("setting", key).Warn("Ignoring invalid event setting: " + msg)
	}
	if msg := event.CustomFields.BadgeTemplateError; msg != "" {
		c.log.WithField("event_id", eventID).Warn("Ignoring invalid badge template: " + msg)
	}

	c.log.WithFields(logrus.Fields{
		"event_id":  eventID,
		"attendees": len(attendees),
	}).Info("📋 Event loaded")
	return nil
}

// Reload refetches the current event and its attendees. It also retries
// an event whose first load failed.
func (c *Controller) Reload(ctx context.Context) error {
	c.mu.Lock()
	eventID := c.eventID
	c.mu.Unlock()

	if eventID == "" {
		return ErrNoEvent
	}
	return c.LoadEvent(ctx, eventID)
}

// Close stops timers and abandons in-flight work. Late results are dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.resetLocked()
	c.cancel()
	c.closed = true
	state := c.state
	c.mu.Unlock()

	c.notify(state)
}

// resetLocked starts a new session epoch in the Idle phase
func (c *Controller) resetLocked() (uint64, context.Context) {
	c.epoch++
	c.cancel()
	c.sessCtx, c.cancel = context.WithCancel(context.Background())
	c.stopTimerLocked()
	c.state = State{Phase: PhaseIdle, Seq: c.state.Seq}
	return c.epoch, c.sessCtx
}

// SubmitCode resolves a scanned or typed code. Lookup misses, blocked
// attendees and failed check-ins are returned as an error Result, not as
// an error. Only one code is processed at a time: while a result is being
// resolved or shown, SubmitCode returns ErrBusy.
func (c *Controller) SubmitCode(ctx context.Context, code string) (Result, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Result{}, ErrClosed
	}
	if c.event == nil {
		c.mu.Unlock()
		return Result{}, ErrNoEvent
	}

	next, ok := Transition(c.state, Submitted{Code: code})
	if !ok {
		c.mu.Unlock()
		if model.NormalizeCode(code) == "" {
			return Result{}, ErrEmptyCode
		}
		return Result{}, ErrBusy
	}
	c.state = next

	epoch, sessCtx := c.epoch, c.sessCtx
	eventID := c.event.ID
	idx, decision := Classify(c.attendees, next.Code)
	var attendee model.Attendee
	if idx >= 0 {
		attendee = c.attendees[idx]
	}
	c.mu.Unlock()
	c.notify(next)

	log := c.log.WithFields(logrus.Fields{"event_id": eventID, "code": next.Code})

	var result Result
	switch decision {
	case DecideNotFound:
		result = notFoundResult()
	case DecideBlocked:
		result = blockedResult(attendee)
	case DecideAlreadyCheckedIn:
		result = alreadyCheckedInResult(attendee)
	case DecideCheckIn:
		ctx, cancel := context.WithCancel(ctx)
		stop := context.AfterFunc(sessCtx, cancel)
		updated, err := c.opts.Backend.CheckIn(ctx, attendee.ID)
		stop()
		cancel()

		if err != nil {
			log.WithError(err).Warn("❌ Check-in failed")
			result = failureResult(attendee, err)
		} else {
			patched, perr := c.patchAttendee(epoch, attendee.ID, updated)
			switch {
			case errors.Is(perr, ErrSessionChanged):
				return Result{}, perr
			case perr != nil:
				result = failureResult(attendee, perr)
			default:
				result = successResult(patched)
			}
		}
	}

	if err := c.resolve(epoch, result); err != nil {
		return Result{}, err
	}
	log.WithField("status", result.Status).Info(result.Message)

	c.record(eventID, next.Code, result)

	if result.Status == StatusSuccess && c.Settings().AutoPrint() {
		if err := c.printResolved(ctx, epoch); err != nil {
			log.WithError(err).Warn("⚠️ Auto-print failed")
			if c.opts.OnPrintError != nil {
				c.opts.OnPrintError(err)
			}
		}
	}

	return result, nil
}

// patchAttendee marks the cached attendee as checked in. An existing
// check-in time is never overwritten.
func (c *Controller) patchAttendee(epoch uint64, id model.ID, updated *model.Attendee) (model.Attendee, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch {
		return model.Attendee{}, ErrSessionChanged
	}

	for i := range c.attendees {
		a := &c.attendees[i]
		if a.ID != id {
			continue
		}

		a.CheckinStatus = true
		if a.CheckedInAt == nil {
			at := c.opts.Now().UTC()
			if updated != nil && updated.CheckedInAt != nil {
				at = *updated.CheckedInAt
			}
			a.CheckedInAt = &at
		}
		return *a, nil
	}

	return model.Attendee{}, fmt.Errorf("attendee %s not in cache", id)
}

func (c *Controller) resolve(epoch uint64, result Result) error {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return ErrSessionChanged
	}

	next, ok := Transition(c.state, Resolved{Result: result})
	if !ok {
		c.mu.Unlock()
		return ErrSessionChanged
	}
	c.state = next

	c.stopTimerLocked()
	seq := next.Seq
	c.timer = c.opts.AfterFunc(c.opts.DismissAfter, func() {
		c.expire(epoch, seq)
	})
	c.mu.Unlock()

	c.notify(next)
	return nil
}

func (c *Controller) expire(epoch, seq uint64) {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return
	}

	next, ok := Transition(c.state, Expired{Seq: seq})
	if !ok {
		c.mu.Unlock()
		return
	}
	c.state = next
	c.timer = nil
	c.mu.Unlock()

	c.notify(next)
}

// Dismiss closes the current result
func (c *Controller) Dismiss() bool {
	c.mu.Lock()
	next, ok := Transition(c.state, Dismissed{})
	if !ok {
		c.mu.Unlock()
		return false
	}
	c.state = next
	c.stopTimerLocked()
	c.mu.Unlock()

	c.notify(next)
	return true
}

// PrintBadge prints the badge of the attendee shown in a successful
// result. A failure leaves the state unchanged.
func (c *Controller) PrintBadge(ctx context.Context) error {
	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()

	return c.printResolved(ctx, epoch)
}

// RenderBadge returns the badge ZPL for a successful result
func (c *Controller) RenderBadge(ctx context.Context) (string, error) {
	event, attendee, _, err := c.printable(0, false)
	if err != nil {
		return "", err
	}
	return c.badgeZPL(ctx, event, attendee)
}

func (c *Controller) printResolved(ctx context.Context, epoch uint64) error {
	if c.opts.Printer == nil {
		return ErrPrintUnavailable
	}

	event, attendee, printer, err := c.printable(epoch, true)
	if err != nil {
		return err
	}

	label, err := c.badgeZPL(ctx, event, attendee)
	if err != nil {
		return err
	}

	if err := c.opts.Printer.Print(ctx, printer, label); err != nil {
		return fmt.Errorf("print failed: %w", err)
	}

	c.log.WithFields(logrus.Fields{
		"attendee": attendee.ID,
		"printer":  printer,
	}).Info("🖨️  Badge sent to printer")
	return nil
}

func (c *Controller) printable(epoch uint64, checkEpoch bool) (*model.Event, model.Attendee, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if checkEpoch && c.epoch != epoch {
		return nil, model.Attendee{}, "", ErrSessionChanged
	}
	if c.event == nil {
		return nil, model.Attendee{}, "", ErrNoEvent
	}
	r := c.state.Result
	if c.state.Phase != PhaseResolved || r == nil || r.Status != StatusSuccess || r.Attendee == nil {
		return nil, model.Attendee{}, "", ErrNotPrintable
	}

	return c.event, *r.Attendee, c.settings.PrinterName, nil
}

func (c *Controller) badgeZPL(ctx context.Context, event *model.Event, a model.Attendee) (string, error) {
	if event.HasBadgeTemplate() {
		return zpl.GenerateLabel(event.CustomFields.BadgeTemplate, a.Fields()), nil
	}
	if c.opts.BadgeZPL == nil {
		return "", ErrNoBadgeTemplate
	}

	label, err := c.opts.BadgeZPL.BadgeZPL(ctx, event.ID, a.ID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch badge: %w", err)
	}
	return label, nil
}

func (c *Controller) record(eventID model.ID, code string, r Result) {
	if c.opts.Recorder == nil {
		return
	}

	rec := Record{
		SessionID: c.opts.SessionID,
		EventID:   eventID,
		Code:      code,
		Status:    r.Status,
		Message:   r.Message,
		At:        c.opts.Now().UTC(),
	}
	if r.Attendee != nil {
		rec.AttendeeID = r.Attendee.ID
	}

	if err := c.opts.Recorder.Record(context.Background(), rec); err != nil {
		c.log.WithError(err).Warn("Failed to record scan")
	}
}

// State returns a snapshot of the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Accepting reports whether a new code would be processed now
func (c *Controller) Accepting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.event != nil && c.state.Phase == PhaseIdle
}

// Event returns the loaded event or nil
func (c *Controller) Event() *model.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.event
}

// Attendees returns a copy of the cached attendee list
func (c *Controller) Attendees() []model.Attendee {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]model.Attendee, len(c.attendees))
	copy(out, c.attendees)
	return out
}

// Stats returns the number of cached and checked-in attendees
func (c *Controller) Stats() (total, checkedIn int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, a := range c.attendees {
		if a.CheckinStatus {
			checkedIn++
		}
	}
	return len(c.attendees), checkedIn
}

// Settings returns the current kiosk settings
func (c *Controller) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// UpdateSettings persists s and applies it. Nothing changes if saving fails.
func (c *Controller) UpdateSettings(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if err := c.opts.Settings.Save(s); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	c.mu.Lock()
	c.settings = s
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{
		"mode":          s.Mode,
		"print_enabled": s.PrintEnabled,
		"manual_print":  s.ManualPrint,
	}).Info("⚙️  Settings updated")
	return nil
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) notify(s State) {
	if c.opts.OnChange != nil {
		c.opts.OnChange(s)
	}
}
