// Package template renders attendee display text from a small markdown
// subset with {field} substitution.
package template

import (
	"regexp"
	"strings"

	"github.com/thevladbog/idento-sub000/internal/model"
)

// DefaultTemplate is used for events that have not configured one
const DefaultTemplate = model.DefaultAttendeeTemplate

// Kind is the directive a line was parsed as
type Kind int

const (
	KindText Kind = iota
	KindHeading1
	KindHeading2
	KindHeading3
	KindBold
	KindItalic
	KindRule
	KindBlank
)

func (k Kind) String() string {
	switch k {
	case KindHeading1:
		return "h1"
	case KindHeading2:
		return "h2"
	case KindHeading3:
		return "h3"
	case KindBold:
		return "bold"
	case KindItalic:
		return "italic"
	case KindRule:
		return "rule"
	case KindBlank:
		return "blank"
	default:
		return "text"
	}
}

// Line is one rendered template line. For bold and italic lines Text is the
// emphasized span and Tail is whatever followed the closing marker.
type Line struct {
	Kind Kind
	Text string
	Tail string
}

// Plain returns the line without markup
func (l Line) Plain() string {
	switch l.Kind {
	case KindRule:
		return "---"
	case KindBlank:
		return ""
	default:
		return l.Text + l.Tail
	}
}

var fieldPattern = regexp.MustCompile(`\{([^{}\n]+)\}`)

// Substitute replaces every {field} token with the field's value. Missing
// keys and nil values become the empty string.
func Substitute(tmpl string, fields map[string]any) string {
	return fieldPattern.ReplaceAllStringFunc(tmpl, func(token string) string {
		key := strings.TrimSpace(token[1 : len(token)-1])
		return model.FieldString(fields, key)
	})
}

// Parse substitutes fields and classifies each resulting line
func Parse(tmpl string, fields map[string]any) []Line {
	text := Substitute(tmpl, fields)
	text = strings.ReplaceAll(text, "\r\n", "\n")

	raw := strings.Split(text, "\n")
	lines := make([]Line, 0, len(raw))
	for _, l := range raw {
		lines = append(lines, parseLine(strings.TrimRight(l, " \t\r")))
	}
	return lines
}

// Render returns the template as plain text, one output line per input line
func Render(tmpl string, fields map[string]any) string {
	lines := Parse(tmpl, fields)

	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Plain()
	}
	return strings.Join(out, "\n")
}

func parseLine(l string) Line {
	trimmed := strings.TrimSpace(l)

	switch {
	case trimmed == "":
		return Line{Kind: KindBlank}
	case isRule(trimmed):
		return Line{Kind: KindRule}
	// a heading whose fields are all empty is trimmed down to its marker
	case trimmed == "###" || strings.HasPrefix(l, "### "):
		return Line{Kind: KindHeading3, Text: strings.TrimSpace(trimmed[3:])}
	case trimmed == "##" || strings.HasPrefix(l, "## "):
		return Line{Kind: KindHeading2, Text: strings.TrimSpace(trimmed[2:])}
	case trimmed == "#" || strings.HasPrefix(l, "# "):
		return Line{Kind: KindHeading1, Text: strings.TrimSpace(trimmed[1:])}
	}

	if strings.HasPrefix(l, "**") {
		if end := strings.Index(l[2:], "**"); end >= 0 {
			return Line{Kind: KindBold, Text: l[2 : 2+end], Tail: l[4+end:]}
		}
		// "*{field}*" with an empty field
		if l == "**" || strings.HasPrefix(l, "** ") {
			return Line{Kind: KindItalic, Tail: l[2:]}
		}
	} else if strings.HasPrefix(l, "*") {
		if end := strings.Index(l[1:], "*"); end >= 0 {
			return Line{Kind: KindItalic, Text: l[1 : 1+end], Tail: l[2+end:]}
		}
	}

	return Line{Kind: KindText, Text: l}
}

// isRule matches "---", "----" and so on, or exactly "***"
func isRule(s string) bool {
	if s == "***" {
		return true
	}
	return len(s) >= 3 && strings.Trim(s, "-") == ""
}
