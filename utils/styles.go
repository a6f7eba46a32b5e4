package utils

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	CriticalColor = lipgloss.Color("#CC3333") // Dark red
	WarningColor  = lipgloss.Color("#FF8800") // Orange
	GoodColor     = lipgloss.Color("#228B22") // Forest green
	InfoColor     = lipgloss.Color("#4682B4") // Steel blue
	TextColor     = lipgloss.Color("#CCCCCC") // Light gray
	MutedColor    = lipgloss.Color("#888888") // Medium gray
	BorderColor   = lipgloss.Color("#666666") // Dark gray

	CriticalLightColor = lipgloss.Color("#FF6666") // Lighter red
	WarningLightColor  = lipgloss.Color("#FFAA44") // Lighter orange
	GoodLightColor     = lipgloss.Color("#66BB66") // Lighter green
	InfoLightColor     = lipgloss.Color("#88AACC") // Lighter blue
)

var (
	CriticalStyle = lipgloss.NewStyle().Foreground(CriticalColor).Bold(true)
	WarningStyle  = lipgloss.NewStyle().Foreground(WarningColor).Bold(true)
	GoodStyle     = lipgloss.NewStyle().Foreground(GoodColor).Bold(true)
	InfoStyle     = lipgloss.NewStyle().Foreground(InfoColor)
	MutedStyle    = lipgloss.NewStyle().Foreground(MutedColor)
	TextStyle     = lipgloss.NewStyle().Foreground(TextColor)

	CriticalLightStyle = lipgloss.NewStyle().Foreground(CriticalLightColor)
	WarningLightStyle  = lipgloss.NewStyle().Foreground(WarningLightColor)
	GoodLightStyle     = lipgloss.NewStyle().Foreground(GoodLightColor)
	InfoLightStyle     = lipgloss.NewStyle().Foreground(InfoLightColor)
)

var (
	TabActiveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(InfoColor).
			Padding(0, 1).
			Bold(true)

	TabInactiveStyle = lipgloss.NewStyle().
				Foreground(MutedColor).
				Padding(0, 1)
)

var TitleStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#FFFFFF")).
	Bold(true).
	Padding(0, 1)

// Table-like formatting for aligned data
func FormatKeyValue(key, value string, keyWidth int) string {
	keyStyled := InfoStyle.Width(keyWidth).Render(key + ":")
	valueStyled := TextStyle.Render(value)
	return lipgloss.JoinHorizontal(lipgloss.Left, keyStyled, " ", valueStyled)
}

// TruncateString truncates a string to fit within maxWidth
func TruncateString(s string, maxWidth int) string {
	if len(s) <= maxWidth {
		return s
	}
	if maxWidth < 4 {
		return strings.Repeat(".", maxWidth)
	}
	return s[:maxWidth-3] + "..."
}

// SanitizeString removes control characters and ensures safe display
func SanitizeString(s string) string {
	// Remove any control characters that might mess up the display
	var result []rune
	for _, r := range s {
		if r >= 32 && r != 127 { // Printable ASCII characters
			result = append(result, r)
		}
	}
	return string(result)
}
