package template

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles maps each line kind to a terminal style
type Styles struct {
	Heading1 lipgloss.Style
	Heading2 lipgloss.Style
	Heading3 lipgloss.Style
	Bold     lipgloss.Style
	Italic   lipgloss.Style
	Text     lipgloss.Style
	Rule     lipgloss.Style
}

// DefaultStyles matches the kiosk palette
func DefaultStyles() Styles {
	return Styles{
		Heading1: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F8FAFC")),
		Heading2: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#06B6D4")),
		Heading3: lipgloss.NewStyle().Underline(true).Foreground(lipgloss.Color("#CBD5E1")),
		Bold:     lipgloss.NewStyle().Bold(true),
		Italic:   lipgloss.NewStyle().Italic(true),
		Text:     lipgloss.NewStyle().Foreground(lipgloss.Color("#CBD5E1")),
		Rule:     lipgloss.NewStyle().Foreground(lipgloss.Color("#64748B")),
	}
}

// RenderStyled renders the template for a terminal of the given width.
// Width <= 0 leaves lines unconstrained.
func RenderStyled(tmpl string, fields map[string]any, styles Styles, width int) string {
	lines := Parse(tmpl, fields)

	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, styleLine(l, styles, width))
	}
	return strings.Join(out, "\n")
}

func styleLine(l Line, s Styles, width int) string {
	var rendered string

	switch l.Kind {
	case KindHeading1:
		rendered = s.Heading1.Render(strings.ToUpper(l.Text))
	case KindHeading2:
		rendered = s.Heading2.Render(l.Text)
	case KindHeading3:
		rendered = s.Heading3.Render(l.Text)
	case KindBold:
		rendered = s.Bold.Render(l.Text) + s.Text.Render(l.Tail)
	case KindItalic:
		rendered = s.Italic.Render(l.Text) + s.Text.Render(l.Tail)
	case KindRule:
		n := width
		if n <= 0 {
			n = 24
		}
		return s.Rule.Render(strings.Repeat("─", n))
	case KindBlank:
		return ""
	default:
		rendered = s.Text.Render(l.Text)
	}

	if width > 0 {
		rendered = lipgloss.NewStyle().MaxWidth(width).Render(rendered)
	}
	return rendered
}
