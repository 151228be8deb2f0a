package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SecretInput is the masked password entry shown while a credential prompt
// is outstanding. Submission and refusal are read by the owning model via
// Submitted/Refused.
type SecretInput struct {
	ti        textinput.Model
	attempt   int
	submitted bool
	refused   bool
	styles    *StyleSet
}

// NewSecretInput creates a masked input for one prompt attempt.
func NewSecretInput(styles *StyleSet, attempt int) SecretInput {
	ti := textinput.New()
	ti.Placeholder = "password"
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '•'
	ti.CharLimit = 200
	ti.Cursor.Style = lipgloss.NewStyle().Foreground(styles.Theme.Accent)
	ti.Focus()

	return SecretInput{ti: ti, attempt: attempt, styles: styles}
}

// Init starts the cursor blink.
func (s SecretInput) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles key input. Enter submits, esc refuses.
func (s SecretInput) Update(msg tea.Msg) (SecretInput, tea.Cmd) {
	if s.submitted || s.refused {
		return s, nil
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "enter":
			s.submitted = true
			return s, nil
		case "esc":
			s.refused = true
			return s, nil
		}
	}

	var cmd tea.Cmd
	s.ti, cmd = s.ti.Update(msg)
	return s, cmd
}

// View renders the prompt box.
func (s SecretInput) View(width int) string {
	var out strings.Builder

	if s.attempt > 1 {
		label := fmt.Sprintf("Password incorrect, try again (attempt %d/3)", s.attempt)
		out.WriteString("  " + s.styles.ErrorTxt.Render(label) + "\n\n")
	} else {
		out.WriteString("  " + s.styles.PrimaryTxt.Render("Privileged command: enter your password") + "\n\n")
	}

	inputWidth := width - 8
	if inputWidth < 20 {
		inputWidth = 20
	}
	s.ti.Width = inputWidth

	box := s.styles.ActiveBorder.Padding(0, 1).Width(inputWidth).Render(s.ti.View())
	out.WriteString("  " + box + "\n\n")
	out.WriteString("  " + s.styles.DimTxt.Render("enter submit · esc cancel") + "\n")
	return out.String()
}

// Value returns the entered secret.
func (s SecretInput) Value() string {
	return s.ti.Value()
}

// Submitted reports whether the user pressed enter.
func (s SecretInput) Submitted() bool {
	return s.submitted
}

// Refused reports whether the user dismissed the prompt.
func (s SecretInput) Refused() bool {
	return s.refused
}
