package tui

import (
	"fmt"
	"io"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/tobayashi-san/arch-appcenter/engine"
)

// PromptResponder answers an outstanding credential prompt. The credential
// broker satisfies it.
type PromptResponder interface {
	Resolve(requestID, secret string)
	Refuse(requestID string)
}

// Surface forwards engine callbacks into a running bubbletea program. The
// engine calls it from worker and reader goroutines; tea.Program.Send is
// safe for that.
type Surface struct {
	mu sync.Mutex
	p  *tea.Program
}

// Attach binds the surface to a program. Events arriving before Attach are
// dropped.
func (s *Surface) Attach(p *tea.Program) {
	s.mu.Lock()
	s.p = p
	s.mu.Unlock()
}

func (s *Surface) send(msg tea.Msg) {
	s.mu.Lock()
	p := s.p
	s.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// Line implements engine.Observer.
func (s *Surface) Line(stream engine.Stream, text string) {
	s.send(OutputLineMsg{Stream: stream, Text: text})
}

// Progress implements engine.Observer.
func (s *Surface) Progress(percent int, label string) {
	s.send(ProgressMsg{Percent: percent, Label: label})
}

// SecretNeeded implements credential.PromptSink.
func (s *Surface) SecretNeeded(requestID string, attempt int) {
	s.send(PasswordPromptMsg{RequestID: requestID, Attempt: attempt})
}

// PlainSurface drives an execution without the TUI: output lines go
// straight to the writers and password prompts are echo-off terminal
// reads on the worker goroutine.
type PlainSurface struct {
	Out   io.Writer
	Err   io.Writer
	Creds PromptResponder

	mu sync.Mutex

	// readSecret is swapped out in tests.
	readSecret func() ([]byte, error)
}

// NewPlainSurface creates a plain surface writing to out and err.
func NewPlainSurface(out, err io.Writer) *PlainSurface {
	return &PlainSurface{
		Out: out,
		Err: err,
		readSecret: func() ([]byte, error) {
			return term.ReadPassword(int(os.Stdin.Fd()))
		},
	}
}

// Line implements engine.Observer.
func (p *PlainSurface) Line(stream engine.Stream, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if stream == engine.Stderr {
		fmt.Fprintln(p.Err, text)
		return
	}
	fmt.Fprintln(p.Out, text)
}

// Progress implements engine.Observer.
func (p *PlainSurface) Progress(percent int, label string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.Out, "[%3d%%] %s\n", percent, label)
}

// SecretNeeded implements credential.PromptSink by reading the password
// from the terminal with echo disabled.
func (p *PlainSurface) SecretNeeded(requestID string, attempt int) {
	if p.Creds == nil {
		return
	}
	p.mu.Lock()
	if attempt > 1 {
		fmt.Fprintln(p.Err, "Sorry, try again.")
	}
	fmt.Fprint(p.Err, "[sudo] password: ")
	secret, err := p.readSecret()
	fmt.Fprintln(p.Err)
	p.mu.Unlock()

	if err != nil {
		p.Creds.Refuse(requestID)
		return
	}
	p.Creds.Resolve(requestID, string(secret))
}
