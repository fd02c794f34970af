package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/thevladbog/idento-sub000/internal/checkin"
	"github.com/thevladbog/idento-sub000/internal/template"
)

// Colors - A clean, modern color palette
var (
	Primary   = lipgloss.Color("#7C3AED") // Purple
	Secondary = lipgloss.Color("#06B6D4") // Cyan
	Success   = lipgloss.Color("#10B981") // Green
	Warning   = lipgloss.Color("#F59E0B") // Amber
	Error     = lipgloss.Color("#EF4444") // Red
	Muted     = lipgloss.Color("#6B7280") // Gray

	BgCard  = lipgloss.Color("#1E293B") // Slate 800
	BgHover = lipgloss.Color("#334155") // Slate 700

	colorTextBright = lipgloss.Color("#F8FAFC") // Slate 50
	colorTextNormal = lipgloss.Color("#CBD5E1") // Slate 300
	colorTextMuted  = lipgloss.Color("#64748B") // Slate 500
)

var (
	TextBright = lipgloss.NewStyle().Foreground(colorTextBright)
	TextNormal = lipgloss.NewStyle().Foreground(colorTextNormal)
	TextMuted  = lipgloss.NewStyle().Foreground(colorTextMuted)
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorTextBright).
			Background(Primary).
			Padding(0, 2)

	ContentStyle = lipgloss.NewStyle().
			Padding(1, 2)

	CardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Muted).
			Padding(1, 2)

	InputFocusedStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(Primary).
				Padding(0, 1)

	InputLabelStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	// Banner across the top of a result card, e.g. the badge type
	BannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorTextBright).
			Background(Secondary).
			Padding(0, 1)

	AlertStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorTextBright).
			Background(Error).
			Padding(0, 2)

	HelpStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted)

	HelpKeyStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().Foreground(Success)
	ErrorStyle   = lipgloss.NewStyle().Foreground(Error)
	WarningStyle = lipgloss.NewStyle().Foreground(Warning)
	InfoStyle    = lipgloss.NewStyle().Foreground(Secondary)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(Primary)
)

// statusColor is the accent of a result card
func statusColor(s checkin.Status) lipgloss.Color {
	switch s {
	case checkin.StatusSuccess:
		return Success
	case checkin.StatusWarning:
		return Warning
	default:
		return Error
	}
}

// attendeeStyles renders attendee templates in the kiosk palette
func attendeeStyles() template.Styles {
	return template.Styles{
		Heading1: lipgloss.NewStyle().Bold(true).Foreground(colorTextBright),
		Heading2: lipgloss.NewStyle().Bold(true).Foreground(Secondary),
		Heading3: lipgloss.NewStyle().Underline(true).Foreground(colorTextNormal),
		Bold:     lipgloss.NewStyle().Bold(true).Foreground(colorTextBright),
		Italic:   lipgloss.NewStyle().Italic(true).Foreground(colorTextNormal),
		Text:     TextNormal,
		Rule:     TextMuted,
	}
}

func RenderKey(key string) string {
	return HelpKeyStyle.Render(key)
}

func RenderHelp(key, desc string) string {
	return RenderKey(key) + HelpStyle.Render(" "+desc)
}

// Truncate shortens s to max runes, ending with "..."
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
