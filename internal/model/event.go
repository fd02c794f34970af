package model

import (
	"encoding/json"
	"strings"

	"github.com/thevladbog/idento-sub000/pkg/badgeformat"
)

// DefaultAttendeeTemplate is shown for events without their own template
const DefaultAttendeeTemplate = "# {first_name} {last_name}\n## {company}\n{position}"

// Event is a check-in event as served by the backend
type Event struct {
	ID           ID            `json:"id"`
	Name         string        `json:"name"`
	FieldSchema  []string      `json:"field_schema,omitempty"`
	CustomFields EventSettings `json:"custom_fields"`
}

// EventSettings are the per-event display and badge options stored in the
// event's custom_fields object.
type EventSettings struct {
	AttendeeTemplate string
	BadgeTypeField   string
	BadgeTemplate    *badgeformat.LabelSpec

	// BadgeTemplateError is set when a badge template is present but invalid
	BadgeTemplateError string
	// FieldErrors maps a mistyped known key to its decode error. The raw
	// value stays in Extra.
	FieldErrors map[string]string

	// Extra keeps keys this package does not interpret
	Extra map[string]json.RawMessage
}

// UnmarshalJSON decodes known keys and tolerates anything else. An invalid
// badge template does not fail the event: it is dropped and recorded.
func (s *EventSettings) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = EventSettings{}

	s.decodeString(raw, "attendeeTemplate", &s.AttendeeTemplate)
	s.decodeString(raw, "badgeTypeField", &s.BadgeTypeField)
	if v, ok := raw["badgeTemplate"]; ok {
		delete(raw, "badgeTemplate")
		if string(v) != "null" {
			spec, err := badgeformat.Parse(v)
			if err != nil {
				s.BadgeTemplateError = err.Error()
			} else {
				s.BadgeTemplate = spec
			}
		}
	}

	if len(raw) > 0 {
		s.Extra = raw
	}
	return nil
}

func (s *EventSettings) decodeString(raw map[string]json.RawMessage, key string, dst *string) {
	v, ok := raw[key]
	if !ok {
		return
	}
	if err := json.Unmarshal(v, dst); err != nil {
		if s.FieldErrors == nil {
			s.FieldErrors = map[string]string{}
		}
		s.FieldErrors[key] = err.Error()
		return
	}
	delete(raw, key)
}

// MarshalJSON writes the settings back as a flat object
func (s EventSettings) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Extra)+3)
	for k, v := range s.Extra {
		out[k] = v
	}
	if s.AttendeeTemplate != "" {
		out["attendeeTemplate"] = s.AttendeeTemplate
	}
	if s.BadgeTypeField != "" {
		out["badgeTypeField"] = s.BadgeTypeField
	}
	if s.BadgeTemplate != nil {
		out["badgeTemplate"] = s.BadgeTemplate
	}
	return json.Marshal(out)
}

// Template returns the event's attendee template or the default one
func (e *Event) Template() string {
	if strings.TrimSpace(e.CustomFields.AttendeeTemplate) == "" {
		return DefaultAttendeeTemplate
	}
	return e.CustomFields.AttendeeTemplate
}

// BadgeType returns the attendee's value of the configured badge-type field
func (e *Event) BadgeType(a *Attendee) string {
	field := strings.TrimSpace(e.CustomFields.BadgeTypeField)
	if field == "" || a == nil {
		return ""
	}
	return FieldString(a.CustomFields, field)
}

// HasBadgeTemplate reports whether badges can be laid out locally
func (e *Event) HasBadgeTemplate() bool {
	return e.CustomFields.BadgeTemplate != nil
}
