package tui

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thevladbog/idento-sub000/internal/agentclient"
	"github.com/thevladbog/idento-sub000/internal/checkin"
	"github.com/thevladbog/idento-sub000/internal/model"
	"github.com/thevladbog/idento-sub000/pkg/badgeformat"
)

type fakeBackend struct {
	mu        sync.Mutex
	attendees []model.Attendee
}

func (b *fakeBackend) GetEvent(ctx context.Context, id model.ID) (*model.Event, error) {
	return &model.Event{
		ID:   id,
		Name: "DevConf",
		CustomFields: model.EventSettings{
			AttendeeTemplate: "# {first_name} {last_name}\n## {company}",
			BadgeTypeField:   "ticket",
			BadgeTemplate: &badgeformat.LabelSpec{
				WidthMM: 90, HeightMM: 55, DPI: 203,
				Elements: badgeformat.Elements{
					badgeformat.TextElement{Rect: badgeformat.Rect{X: 5, Y: 5, Width: 80}, Source: "full_name"},
				},
			},
		},
	}, nil
}

func (b *fakeBackend) ListAttendees(ctx context.Context, id model.ID) ([]model.Attendee, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.Attendee(nil), b.attendees...), nil
}

func (b *fakeBackend) CheckIn(ctx context.Context, id model.ID) (*model.Attendee, error) {
	now := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	return &model.Attendee{ID: id, CheckinStatus: true, CheckedInAt: &now}, nil
}

type fakeAgent struct {
	err error
}

func (a *fakeAgent) Health(ctx context.Context) (*agentclient.Health, error) {
	if a.err != nil {
		return nil, a.err
	}
	return &agentclient.Health{Status: "ok"}, nil
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestKiosk(t *testing.T, settings checkin.Settings, agent HealthChecker) (*Kiosk, *checkin.Controller) {
	t.Helper()

	backend := &fakeBackend{attendees: []model.Attendee{
		{ID: "a1", Code: "ABC1", FirstName: "Jane", LastName: "Doe", Company: "Acme", CustomFields: map[string]any{"ticket": "vip"}},
		{ID: "a2", Code: "BAN", FirstName: "Bob", Blocked: true},
	}}

	ctl, err := checkin.NewController(checkin.Options{
		Backend:      backend,
		Settings:     checkin.NewMemoryStore(settings),
		DismissAfter: time.Minute,
		Logger:       quietLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, ctl.LoadEvent(context.Background(), "ev1"))
	t.Cleanup(ctl.Close)

	k := NewKiosk(KioskOptions{Controller: ctl, Agent: agent, DismissAfter: 5 * time.Second, Logger: quietLogger()})
	t.Cleanup(k.cancel)
	k.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return k, ctl
}

// submit types code, runs the resulting command and syncs the state
func submit(t *testing.T, k *Kiosk, ctl *checkin.Controller, code string) {
	t.Helper()
	k.input.SetValue(code)
	_, cmd := k.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	k.Update(cmd())
	k.Update(stateMsg(ctl.State()))
}

func TestKiosk_SubmitShowsResultCard(t *testing.T) {
	k, ctl := newTestKiosk(t, checkin.DefaultSettings(), nil)

	view := k.View()
	assert.Contains(t, view, "DevConf")
	assert.Contains(t, view, "0/2 checked in")

	submit(t, k, ctl, "abc1")

	view = k.View()
	assert.Contains(t, view, checkin.MsgCheckedIn)
	assert.Contains(t, view, "JANE DOE")
	assert.Contains(t, view, "Acme")
	assert.Contains(t, view, "VIP")
	assert.Contains(t, view, "1/2 checked in")
	assert.Empty(t, k.input.Value())
}

func TestKiosk_BlockedResult(t *testing.T) {
	k, ctl := newTestKiosk(t, checkin.DefaultSettings(), nil)

	submit(t, k, ctl, "BAN")

	assert.Equal(t, checkin.StatusError, k.state.Result.Status)
	assert.Contains(t, k.View(), checkin.MsgBlocked)
}

func TestKiosk_EnterWhileResolvedIsIgnored(t *testing.T) {
	k, ctl := newTestKiosk(t, checkin.DefaultSettings(), nil)
	submit(t, k, ctl, "nobody")
	require.Equal(t, checkin.PhaseResolved, k.state.Phase)

	k.input.SetValue("ABC1")
	_, cmd := k.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Contains(t, k.View(), "Dismiss the current result first")
	assert.Equal(t, "ABC1", k.input.Value())
}

func TestKiosk_EscDismisses(t *testing.T) {
	k, ctl := newTestKiosk(t, checkin.DefaultSettings(), nil)
	submit(t, k, ctl, "nobody")

	k.Update(tea.KeyMsg{Type: tea.KeyEsc})
	k.Update(stateMsg(ctl.State()))

	assert.Equal(t, checkin.PhaseIdle, k.state.Phase)
	assert.Contains(t, k.View(), "Attendee code")
}

func TestKiosk_SettingsToggles(t *testing.T) {
	k, ctl := newTestKiosk(t, checkin.DefaultSettings(), nil)

	k.Update(tea.KeyMsg{Type: tea.KeyF3})
	assert.True(t, ctl.Settings().PrintEnabled)
	assert.Contains(t, k.View(), "print auto")

	k.Update(tea.KeyMsg{Type: tea.KeyF4})
	assert.True(t, ctl.Settings().ManualPrint)
	assert.Contains(t, k.View(), "print manual")

	// no scanner source: scanner mode is saved but nothing polls
	k.Update(tea.KeyMsg{Type: tea.KeyF2})
	assert.Equal(t, checkin.ModeScanner, ctl.Settings().Mode)
	assert.Nil(t, k.pollCancel)
	assert.Contains(t, k.input.Placeholder, "Waiting for scanner")
}

func TestKiosk_AgentBanner(t *testing.T) {
	agent := &fakeAgent{err: errors.New("connection refused")}

	k, _ := newTestKiosk(t, checkin.Settings{Mode: checkin.ModeCamera, PrintEnabled: true}, agent)
	k.Update(k.healthCmd()())
	assert.Contains(t, k.View(), "Printer agent unavailable")

	agent.err = nil
	k.Update(k.healthCmd()())
	assert.NotContains(t, k.View(), "Printer agent unavailable")

	// agent down but nothing needs it
	k2, _ := newTestKiosk(t, checkin.DefaultSettings(), &fakeAgent{err: errors.New("down")})
	k2.Update(k2.healthCmd()())
	assert.NotContains(t, k2.View(), "Printer agent unavailable")
}

func TestKiosk_Countdown(t *testing.T) {
	k, ctl := newTestKiosk(t, checkin.DefaultSettings(), nil)
	submit(t, k, ctl, "ABC1")

	k.now = k.resolvedAt.Add(2 * time.Second)
	assert.Equal(t, 3*time.Second, k.remaining())
	assert.Contains(t, k.View(), "Closes in 3s")

	k.now = k.resolvedAt.Add(10 * time.Second)
	assert.Zero(t, k.remaining())
}

func TestKiosk_CopyBadgeZPL(t *testing.T) {
	var copied string
	orig := writeClipboard
	writeClipboard = func(s string) error { copied = s; return nil }
	t.Cleanup(func() { writeClipboard = orig })

	k, ctl := newTestKiosk(t, checkin.DefaultSettings(), nil)
	submit(t, k, ctl, "ABC1")

	_, cmd := k.Update(tea.KeyMsg{Type: tea.KeyCtrlY})
	require.NotNil(t, cmd)
	k.Update(cmd())

	assert.Contains(t, copied, "^FDJane Doe^FS")
	assert.Contains(t, k.View(), "copied to clipboard")
}

func TestKiosk_PrintWithoutTransport(t *testing.T) {
	k, ctl := newTestKiosk(t, checkin.DefaultSettings(), nil)
	submit(t, k, ctl, "ABC1")

	_, cmd := k.Update(tea.KeyMsg{Type: tea.KeyCtrlP})
	require.NotNil(t, cmd)
	k.Update(cmd())

	assert.Contains(t, k.View(), "Print failed")
}

func TestCopyToClipboard_FallsBackToOSC52(t *testing.T) {
	var out bytes.Buffer
	origWrite, origOut := writeClipboard, osc52Out
	writeClipboard = func(string) error { return errors.New("no clipboard") }
	osc52Out = &out
	t.Cleanup(func() {
		writeClipboard = origWrite
		osc52Out = origOut
	})

	err := copyToClipboard("^XA^XZ")
	assert.Error(t, err)
	assert.Contains(t, out.String(), "\x1b]52;")
}

func TestKioskLogWriter(t *testing.T) {
	k, _ := newTestKiosk(t, checkin.DefaultSettings(), nil)

	_, err := io.WriteString(k.LogWriter(), "level=info msg=\"Badge sent\"\n")
	require.NoError(t, err)
	assert.Contains(t, k.View(), "Badge sent")
}
