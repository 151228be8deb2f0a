// Package tui renders live command execution in the terminal: the output
// tail, batch progress, and the password prompt overlay. Models follow the
// bubbletea value-receiver convention.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tobayashi-san/arch-appcenter/engine"
)

// maxTailLines caps how much child output the model retains.
const maxTailLines = 1000

type outputLine struct {
	stream engine.Stream
	text   string
}

// RunModel is the bubbletea model for a live execution: title, output
// tail, progress, and the password overlay. It quits when the execution
// goroutine reports RunDoneMsg or BatchDoneMsg.
type RunModel struct {
	styles *StyleSet
	title  string
	cancel context.CancelFunc
	creds  PromptResponder

	spin      spinner.Model
	lines     []outputLine
	percent   int
	label     string
	prompt    SecretInput
	promptID  string
	prompting bool

	result     *engine.Result
	job        *engine.BatchJob
	cancelling bool
	width      int
	height     int
}

// NewRunModel creates a run view. cancel is invoked on ctrl+c; creds
// answers password prompts.
func NewRunModel(styles *StyleSet, title string, cancel context.CancelFunc, creds PromptResponder) RunModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(styles.Theme.Accent)

	return RunModel{
		styles: styles,
		title:  title,
		cancel: cancel,
		creds:  creds,
		spin:   sp,
		width:  80,
		height: 24,
	}
}

// Init starts the spinner.
func (m RunModel) Init() tea.Cmd {
	return m.spin.Tick
}

// Update handles messages.
func (m RunModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.prompting {
			var cmd tea.Cmd
			m.prompt, cmd = m.prompt.Update(msg)
			if m.prompt.Submitted() {
				m.prompting = false
				if m.creds != nil {
					m.creds.Resolve(m.promptID, m.prompt.Value())
				}
			} else if m.prompt.Refused() {
				m.prompting = false
				if m.creds != nil {
					m.creds.Refuse(m.promptID)
				}
			}
			return m, cmd
		}
		if msg.String() == "ctrl+c" {
			m.cancelling = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, nil
		}
		return m, nil

	case OutputLineMsg:
		m.lines = append(m.lines, outputLine{stream: msg.Stream, text: msg.Text})
		if len(m.lines) > maxTailLines {
			m.lines = m.lines[len(m.lines)-maxTailLines:]
		}
		return m, nil

	case ProgressMsg:
		m.percent = msg.Percent
		m.label = msg.Label
		return m, nil

	case PasswordPromptMsg:
		m.prompt = NewSecretInput(m.styles, msg.Attempt)
		m.promptID = msg.RequestID
		m.prompting = true
		return m, m.prompt.Init()

	case RunDoneMsg:
		res := msg.Result
		m.result = &res
		return m, tea.Quit

	case BatchDoneMsg:
		job := msg.Job
		m.job = &job
		return m, tea.Quit
	}

	return m, nil
}

// View renders the run screen.
func (m RunModel) View() string {
	var out strings.Builder

	out.WriteString("\n  " + m.styles.Title.Render("Arch AppCenter"))
	if m.title != "" {
		out.WriteString("  " + m.styles.Subtitle.Render(m.title))
	}
	out.WriteString("\n\n")

	if m.prompting {
		out.WriteString(m.prompt.View(m.width))
		return out.String()
	}

	inner := m.width - 6
	if inner < 20 {
		inner = 20
	}

	out.WriteString(m.renderTail(inner))

	if m.label != "" {
		out.WriteString("\n  " + m.renderBar(inner-6) + " " + m.styles.SecondaryTxt.Render(m.label) + "\n")
	}

	switch {
	case m.result != nil || m.job != nil:
		// Final frame; the command prints the summary after the program
		// exits.
	case m.cancelling:
		out.WriteString("\n  " + m.styles.WarningTxt.Render("cancelling, waiting for the process to stop") + "\n")
	default:
		out.WriteString("\n  " + m.spin.View() + m.styles.SecondaryTxt.Render("running") + "\n")
	}

	out.WriteString("\n  " + m.styles.DimTxt.Render("ctrl+c cancel") + "\n")
	return out.String()
}

// renderTail shows the newest output lines that fit the window.
func (m RunModel) renderTail(inner int) string {
	visible := m.height - 10
	if visible < 3 {
		visible = 3
	}
	start := 0
	if len(m.lines) > visible {
		start = len(m.lines) - visible
	}

	var body strings.Builder
	if len(m.lines) == 0 {
		body.WriteString(m.styles.DimTxt.Render("waiting for output"))
	}
	lineStyle := m.styles.PrimaryTxt.MaxWidth(inner - 2)
	errStyle := m.styles.WarningTxt.MaxWidth(inner - 2)
	for i, ln := range m.lines[start:] {
		if i > 0 {
			body.WriteString("\n")
		}
		if ln.stream == engine.Stderr {
			body.WriteString(errStyle.Render(ln.text))
		} else {
			body.WriteString(lineStyle.Render(ln.text))
		}
	}

	box := m.styles.InactiveBorder.Padding(0, 1).Width(inner).Render(body.String())
	return "  " + strings.ReplaceAll(box, "\n", "\n  ") + "\n"
}

// renderBar draws a fixed-width percent bar.
func (m RunModel) renderBar(width int) string {
	if width < 10 {
		width = 10
	}
	filled := width * m.percent / 100
	if filled > width {
		filled = width
	}
	bar := m.styles.AccentTxt.Render(strings.Repeat("█", filled)) +
		m.styles.DimTxt.Render(strings.Repeat("░", width-filled))
	return bar + m.styles.SecondaryTxt.Render(fmt.Sprintf(" %3d%%", m.percent))
}

// Result returns the single-run outcome, if one arrived.
func (m RunModel) Result() *engine.Result {
	return m.result
}

// Job returns the batch outcome, if one arrived.
func (m RunModel) Job() *engine.BatchJob {
	return m.job
}

// Cancelling reports whether the user asked to stop the run.
func (m RunModel) Cancelling() bool {
	return m.cancelling
}
