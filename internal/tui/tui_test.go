package tui

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tobayashi-san/arch-appcenter/engine"
)

type recordedResponder struct {
	resolved map[string]string
	refused  []string
}

func newRecordedResponder() *recordedResponder {
	return &recordedResponder{resolved: make(map[string]string)}
}

func (r *recordedResponder) Resolve(requestID, secret string) {
	r.resolved[requestID] = secret
}

func (r *recordedResponder) Refuse(requestID string) {
	r.refused = append(r.refused, requestID)
}

func updateModel(t *testing.T, m RunModel, msg tea.Msg) RunModel {
	t.Helper()
	updated, _ := m.Update(msg)
	rm, ok := updated.(RunModel)
	if !ok {
		t.Fatalf("Update returned %T, want RunModel", updated)
	}
	return rm
}

func TestDetectThemePrecedence(t *testing.T) {
	t.Setenv("APPCENTER_THEME", "light")
	t.Setenv("COLORFGBG", "")

	if got := DetectTheme("dark"); got.Name != "dark" {
		t.Errorf("flag should win over env, got %q", got.Name)
	}
	if got := DetectTheme(""); got.Name != "light" {
		t.Errorf("env should apply without a flag, got %q", got.Name)
	}

	t.Setenv("APPCENTER_THEME", "")
	t.Setenv("COLORFGBG", "0;15")
	if got := DetectTheme(""); got.Name != "light" {
		t.Errorf("COLORFGBG light background not detected, got %q", got.Name)
	}
	t.Setenv("COLORFGBG", "15;0")
	if got := DetectTheme(""); got.Name != "dark" {
		t.Errorf("COLORFGBG dark background not detected, got %q", got.Name)
	}
	t.Setenv("COLORFGBG", "")
	if got := DetectTheme(""); got.Name != "dark" {
		t.Errorf("default theme = %q, want dark", got.Name)
	}
}

func TestRunModelCapsOutputTail(t *testing.T) {
	m := NewRunModel(NewStyleSet(DarkTheme), "run", nil, nil)
	for i := 0; i < maxTailLines+50; i++ {
		m = updateModel(t, m, OutputLineMsg{Stream: engine.Stdout, Text: fmt.Sprintf("line %d", i)})
	}
	if len(m.lines) != maxTailLines {
		t.Fatalf("len(lines) = %d, want %d", len(m.lines), maxTailLines)
	}
	if m.lines[0].text != "line 50" {
		t.Errorf("oldest retained line = %q, want %q", m.lines[0].text, "line 50")
	}
}

func TestRunModelPasswordPromptResolves(t *testing.T) {
	rec := newRecordedResponder()
	m := NewRunModel(NewStyleSet(DarkTheme), "run", nil, rec)

	m = updateModel(t, m, PasswordPromptMsg{RequestID: "req-1", Attempt: 1})
	if !m.prompting {
		t.Fatal("model not prompting after PasswordPromptMsg")
	}

	m = updateModel(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("hunter2")})
	m = updateModel(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if m.prompting {
		t.Error("model still prompting after enter")
	}
	if got := rec.resolved["req-1"]; got != "hunter2" {
		t.Errorf("resolved secret = %q, want %q", got, "hunter2")
	}
}

func TestRunModelPasswordPromptRefuses(t *testing.T) {
	rec := newRecordedResponder()
	m := NewRunModel(NewStyleSet(DarkTheme), "run", nil, rec)

	m = updateModel(t, m, PasswordPromptMsg{RequestID: "req-2", Attempt: 1})
	m = updateModel(t, m, tea.KeyMsg{Type: tea.KeyEsc})

	if m.prompting {
		t.Error("model still prompting after esc")
	}
	if len(rec.refused) != 1 || rec.refused[0] != "req-2" {
		t.Errorf("refused = %v, want [req-2]", rec.refused)
	}
}

func TestRunModelCtrlCCancels(t *testing.T) {
	cancelled := false
	m := NewRunModel(NewStyleSet(DarkTheme), "run", func() { cancelled = true }, nil)

	m = updateModel(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	if !cancelled {
		t.Error("cancel func not invoked on ctrl+c")
	}
	if !m.Cancelling() {
		t.Error("Cancelling() = false after ctrl+c")
	}
}

func TestRunModelQuitsOnDone(t *testing.T) {
	m := NewRunModel(NewStyleSet(DarkTheme), "run", nil, nil)
	updated, cmd := m.Update(RunDoneMsg{Result: engine.Result{Status: engine.StatusSuccess}})
	rm := updated.(RunModel)
	if rm.Result() == nil || rm.Result().Status != engine.StatusSuccess {
		t.Error("result not recorded")
	}
	if cmd == nil {
		t.Fatal("no quit command returned")
	}
}

func TestPlainSurfaceRoutesStreams(t *testing.T) {
	var out, errBuf bytes.Buffer
	p := &PlainSurface{Out: &out, Err: &errBuf}

	p.Line(engine.Stdout, "installing")
	p.Line(engine.Stderr, "warning: foo")
	p.Progress(33, "Executing: Update")

	if !strings.Contains(out.String(), "installing\n") {
		t.Errorf("stdout line missing, out = %q", out.String())
	}
	if !strings.Contains(errBuf.String(), "warning: foo\n") {
		t.Errorf("stderr line missing, err = %q", errBuf.String())
	}
	if !strings.Contains(out.String(), "[ 33%] Executing: Update") {
		t.Errorf("progress line missing, out = %q", out.String())
	}
}

func TestPlainSurfaceSecretNeeded(t *testing.T) {
	rec := newRecordedResponder()
	var errBuf bytes.Buffer
	p := &PlainSurface{
		Out:        &bytes.Buffer{},
		Err:        &errBuf,
		Creds:      rec,
		readSecret: func() ([]byte, error) { return []byte("hunter2"), nil },
	}

	p.SecretNeeded("req-9", 2)
	if got := rec.resolved["req-9"]; got != "hunter2" {
		t.Errorf("resolved secret = %q, want %q", got, "hunter2")
	}
	if !strings.Contains(errBuf.String(), "Sorry, try again.") {
		t.Errorf("retry notice missing, err = %q", errBuf.String())
	}

	p.readSecret = func() ([]byte, error) { return nil, errors.New("no tty") }
	p.SecretNeeded("req-10", 1)
	if len(rec.refused) != 1 || rec.refused[0] != "req-10" {
		t.Errorf("refused = %v, want [req-10]", rec.refused)
	}
}
