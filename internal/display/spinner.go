package display

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SpinnerShouldShow returns true if the spinner should be displayed.
// The spinner is hidden for quiet mode, JSON output, or non-TTY (piped)
// output.
func SpinnerShouldShow(quiet, json, nonTTY bool) bool {
	return !quiet && !json && !nonTTY
}

// SpinnerRun shows a spinner with the given label while fn runs on its
// own goroutine, counting down toward deadline. It blocks until fn
// returns. The login flow has its own timeout, so the countdown here is
// purely informational.
func SpinnerRun(label string, deadline time.Time, fn func()) error {
	m := newSpinnerModel(label, deadline)
	p := tea.NewProgram(m)

	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()
	go func() {
		<-done
		p.Send(spinnerDoneMsg{})
	}()

	if _, err := p.Run(); err != nil {
		<-done
		return fmt.Errorf("running spinner: %w", err)
	}
	<-done
	return nil
}

type spinnerDoneMsg struct{}

type spinnerModel struct {
	spinner  spinner.Model
	label    string
	deadline time.Time
	quitting bool
}

func newSpinnerModel(label string, deadline time.Time) spinnerModel {
	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return spinnerModel{
		spinner:  s,
		label:    label,
		deadline: deadline,
	}
}

func (m spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinnerDoneMsg:
		m.quitting = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m spinnerModel) View() string {
	// The spinner is transient progress UI; leave nothing behind on quit.
	if m.quitting {
		return ""
	}

	view := m.spinner.View() + " " + m.label
	if !m.deadline.IsZero() {
		view += " " + dimStyle.Render("("+FormatCountdown(time.Until(m.deadline))+")")
	}
	return view
}
