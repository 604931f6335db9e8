package handlers

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
)

// field renders one aligned "label value" line.
func field(label string, value any) string {
	return labelStyle.Render(label) + " " + fmt.Sprint(value)
}

// panel renders a titled box around lines.
func panel(title string, lines ...string) string {
	body := titleStyle.Render(title)
	if len(lines) > 0 {
		body += "\n\n" + strings.Join(lines, "\n")
	}
	return boxStyle.Render(body)
}

// statusText colors a ledger or validation status.
func statusText(status string) string {
	switch status {
	case "succeeded", "ok", "applied", "primary", "alternate":
		return okStyle.Render(status)
	case "running", "pending", "fallback":
		return warnStyle.Render(status)
	default:
		return errorStyle.Render(status)
	}
}
