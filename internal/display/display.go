// Package display renders profiles and login outcomes for the terminal,
// and owns the JSON output shape used by --json.
package display

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jwhitfield/deskauth/internal/session"
)

var (
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	greenStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	redStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// RenderSuccess returns a green check line.
func RenderSuccess(msg string) string {
	return greenStyle.Render("✓") + " " + msg
}

// RenderFailure returns a red cross line.
func RenderFailure(msg string) string {
	return redStyle.Render("✗") + " " + msg
}

// RenderSignedOut returns the signed-out hint shown by whoami.
func RenderSignedOut() string {
	return dimStyle.Render("Not signed in.") + "\n  Run 'deskauth login' to sign in."
}

// RenderProfile renders the signed-in profile as a bordered field table.
func RenderProfile(p session.Profile, noColor bool) string {
	rows := [][]string{
		{"Name", p.Name},
		{"Email", p.Email + verifiedMark(p.VerifiedEmail)},
		{"Account ID", p.ID},
	}
	if p.Locale != "" {
		rows = append(rows, []string{"Locale", p.Locale})
	}
	if p.Picture != "" {
		rows = append(rows, []string{"Picture", truncate(p.Picture, TerminalWidth()-20)})
	}

	title := p.Name
	if title == "" {
		title = p.Email
	}
	return NewTableWithOptions([]string{"Field", "Value"}, rows, TableOptions{
		Title:   title,
		NoColor: noColor,
	})
}

func verifiedMark(verified bool) string {
	if verified {
		return " (verified)"
	}
	return " (unverified)"
}

func truncate(s string, width int) string {
	if width < 8 {
		width = 8
	}
	if len(s) <= width {
		return s
	}
	return strings.TrimRight(s[:width-1], " ") + "…"
}
