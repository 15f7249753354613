package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles bundles the lipgloss styles derived from one theme.
type Styles struct {
	Panel       lipgloss.Style
	Title       lipgloss.Style
	Header      lipgloss.Style
	Subtle      lipgloss.Style
	MetricLabel lipgloss.Style
	MetricValue lipgloss.Style
	KeyHint     lipgloss.Style
	Selected    lipgloss.Style

	// Utilization bands
	Low  lipgloss.Style
	High lipgloss.Style
	Over lipgloss.Style
}

// NewStyles builds the style set for t.
func NewStyles(t Theme) Styles {
	return Styles{
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Muted).
			Padding(0, 1),
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(t.Secondary),
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(t.Text).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(t.Muted),
		Subtle: lipgloss.NewStyle().
			Foreground(t.Muted),
		MetricLabel: lipgloss.NewStyle().
			Foreground(t.Muted).
			Width(14),
		MetricValue: lipgloss.NewStyle().
			Foreground(t.Secondary).
			Bold(true),
		KeyHint: lipgloss.NewStyle().
			Foreground(t.Muted).
			Italic(true),
		Selected: lipgloss.NewStyle().
			Bold(true).
			Foreground(t.Primary),

		Low:  lipgloss.NewStyle().Foreground(t.Success),
		High: lipgloss.NewStyle().Foreground(t.Warning),
		Over: lipgloss.NewStyle().Bold(true).Foreground(t.Error),
	}
}

// Band picks the style for a utilization ratio: green up to 0.8, amber up
// to the limit, red beyond it.
func (s Styles) Band(ratio float64) lipgloss.Style {
	switch {
	case ratio > 1:
		return s.Over
	case ratio > 0.8:
		return s.High
	default:
		return s.Low
	}
}

// UtilizationBar renders ratio as a bar of width cells. Ratios past 1 fill
// the bar and end in a marker.
func (s Styles) UtilizationBar(ratio float64, width int) string {
	filled := int(ratio * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	if ratio > 1 {
		bar += "▶"
	}
	return s.Band(ratio).Render(bar)
}

// Separator draws a muted rule of the given width.
func (s Styles) Separator(width int) string {
	if width < 8 {
		return s.Subtle.Render(strings.Repeat("─", width))
	}
	mid := width / 2
	left := strings.Repeat("─", mid-3)
	right := strings.Repeat("─", width-mid-3)
	return s.Subtle.Render(left + " ◆ " + right)
}
