// Package checkin implements the kiosk's scan-to-result flow: attendee
// lookup, the check-in call, result classification, auto-dismiss and badge
// printing.
package checkin

import (
	"github.com/thevladbog/idento-sub000/internal/model"
)

// Phase is the coarse state of the result screen
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseResolving
	PhaseResolved
)

func (p Phase) String() string {
	switch p {
	case PhaseResolving:
		return "resolving"
	case PhaseResolved:
		return "resolved"
	default:
		return "idle"
	}
}

// Status classifies a resolved scan
type Status string

const (
	StatusSuccess Status = "success"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// Result messages
const (
	MsgCheckedIn        = "Checked in"
	MsgAlreadyCheckedIn = "Already checked in"
	MsgNotFound         = "Attendee not found"
	MsgBlocked          = "Attendee is blocked"
)

// Result is the outcome shown for one scan
type Result struct {
	Status   Status
	Attendee *model.Attendee
	Message  string
}

// State is the controller's observable state. Result is set only while
// Resolved. Seq increases on every entry into Resolved and identifies the
// result an auto-dismiss timer belongs to.
type State struct {
	Phase  Phase
	Code   string
	Result *Result
	Seq    uint64
}

// Event drives Transition
type Event interface {
	isEvent()
}

// Submitted is a code entered or scanned by the operator
type Submitted struct{ Code string }

// Resolved carries the outcome of the lookup and check-in
type Resolved struct{ Result Result }

// Dismissed is the operator closing the result
type Dismissed struct{}

// Expired is the auto-dismiss timer for result Seq firing
type Expired struct{ Seq uint64 }

func (Submitted) isEvent() {}
func (Resolved) isEvent()  {}
func (Dismissed) isEvent() {}
func (Expired) isEvent()   {}

// Transition applies ev to s. It reports false, and returns s unchanged,
// when the event does not apply in the current phase.
func Transition(s State, ev Event) (State, bool) {
	switch e := ev.(type) {
	case Submitted:
		code := model.NormalizeCode(e.Code)
		if s.Phase != PhaseIdle || code == "" {
			return s, false
		}
		return State{Phase: PhaseResolving, Code: code, Seq: s.Seq}, true

	case Resolved:
		if s.Phase != PhaseResolving {
			return s, false
		}
		r := e.Result
		return State{Phase: PhaseResolved, Code: s.Code, Result: &r, Seq: s.Seq + 1}, true

	case Dismissed:
		if s.Phase != PhaseResolved {
			return s, false
		}
		return State{Phase: PhaseIdle, Seq: s.Seq}, true

	case Expired:
		if s.Phase != PhaseResolved || e.Seq != s.Seq {
			return s, false
		}
		return State{Phase: PhaseIdle, Seq: s.Seq}, true
	}

	return s, false
}

// Decision is what a lookup calls for
type Decision int

const (
	DecideNotFound Decision = iota
	DecideBlocked
	DecideAlreadyCheckedIn
	DecideCheckIn
)

// Classify looks code up in attendees and decides the next step. Blocked
// wins over any check-in status. idx is -1 when nothing matched.
func Classify(attendees []model.Attendee, code string) (idx int, d Decision) {
	idx = model.FindAttendee(attendees, code)
	if idx < 0 {
		return -1, DecideNotFound
	}

	a := &attendees[idx]
	switch {
	case a.Blocked:
		return idx, DecideBlocked
	case a.CheckinStatus:
		return idx, DecideAlreadyCheckedIn
	default:
		return idx, DecideCheckIn
	}
}

func notFoundResult() Result {
	return Result{Status: StatusError, Message: MsgNotFound}
}

func blockedResult(a model.Attendee) Result {
	msg := a.BlockReason
	if msg == "" {
		msg = MsgBlocked
	}
	return Result{Status: StatusError, Attendee: &a, Message: msg}
}

func alreadyCheckedInResult(a model.Attendee) Result {
	return Result{Status: StatusWarning, Attendee: &a, Message: MsgAlreadyCheckedIn}
}

func successResult(a model.Attendee) Result {
	return Result{Status: StatusSuccess, Attendee: &a, Message: MsgCheckedIn}
}

func failureResult(a model.Attendee, err error) Result {
	return Result{Status: StatusError, Attendee: &a, Message: err.Error()}
}
