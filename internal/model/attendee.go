// Package model holds the attendee and event records shared by the kiosk,
// the badge generators and the backend client.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ID is a backend identifier. The backend sends ids either as JSON numbers
// or as strings; both decode to the same string form.
type ID string

// UnmarshalJSON accepts a number, a string or null
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", data, err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Attendee is a registered participant of an event
type Attendee struct {
	ID            ID             `json:"id"`
	EventID       ID             `json:"event_id,omitempty"`
	Code          string         `json:"code"`
	FirstName     string         `json:"first_name"`
	LastName      string         `json:"last_name"`
	Email         string         `json:"email,omitempty"`
	Company       string         `json:"company,omitempty"`
	Position      string         `json:"position,omitempty"`
	CheckinStatus bool           `json:"checkin_status"`
	CheckedInAt   *time.Time     `json:"checked_in_at,omitempty"`
	Blocked       bool           `json:"blocked"`
	BlockReason   string         `json:"block_reason,omitempty"`
	CustomFields  map[string]any `json:"custom_fields,omitempty"`
}

// FullName joins first and last name
func (a *Attendee) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// Fields flattens the attendee into the map used for template substitution
// and badge generation. Core fields win over custom fields of the same name.
func (a *Attendee) Fields() map[string]any {
	fields := make(map[string]any, len(a.CustomFields)+12)
	for k, v := range a.CustomFields {
		fields[k] = v
	}

	var checkedInAt any
	if a.CheckedInAt != nil {
		checkedInAt = a.CheckedInAt.Format(time.RFC3339)
	}

	fields["id"] = string(a.ID)
	fields["code"] = a.Code
	fields["first_name"] = a.FirstName
	fields["last_name"] = a.LastName
	fields["full_name"] = a.FullName()
	fields["email"] = a.Email
	fields["company"] = a.Company
	fields["position"] = a.Position
	fields["checkin_status"] = a.CheckinStatus
	fields["checked_in_at"] = checkedInAt
	fields["blocked"] = a.Blocked
	fields["block_reason"] = a.BlockReason

	return fields
}

// NormalizeCode trims a scanned or typed code. Matching is case-insensitive.
func NormalizeCode(code string) string {
	return strings.TrimSpace(code)
}

// FindAttendee returns the index of the attendee whose code or id matches,
// or -1 when none does.
func FindAttendee(attendees []Attendee, code string) int {
	code = NormalizeCode(code)
	if code == "" {
		return -1
	}

	for i := range attendees {
		if strings.EqualFold(strings.TrimSpace(attendees[i].Code), code) {
			return i
		}
	}
	for i := range attendees {
		if strings.EqualFold(string(attendees[i].ID), code) {
			return i
		}
	}

	return -1
}

// FieldString converts a field value to display text. Missing keys and nil
// values become the empty string.
func FieldString(fields map[string]any, key string) string {
	v, ok := fields[key]
	if !ok || v == nil {
		return ""
	}

	switch val := v.(type) {
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	case float64:
		return formatFloat(val)
	default:
		return fmt.Sprint(val)
	}
}

func formatFloat(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprint(f)
}
