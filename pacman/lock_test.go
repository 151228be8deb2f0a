package pacman

import (
	"errors"
	"io/fs"
	"strings"
	"testing"
)

func fakeStat(present bool) func(string) (fs.FileInfo, error) {
	return func(string) (fs.FileInfo, error) {
		if present {
			return nil, nil
		}
		return nil, errors.New("no such file")
	}
}

func TestCheck_NoLock(t *testing.T) {
	p := &Probe{path: LockFile, stat: fakeStat(false), pgrep: func(string) bool {
		t.Fatal("pgrep called without a lock file")
		return false
	}}
	st := p.Check()
	if st.Present || st.OwnerActive {
		t.Errorf("Check() = %+v, want absent", st)
	}
}

func TestCheck_StaleLock(t *testing.T) {
	p := &Probe{path: LockFile, stat: fakeStat(true), pgrep: func(string) bool { return false }}
	st := p.Check()
	if !st.Present {
		t.Error("Present = false, want true")
	}
	if st.OwnerActive {
		t.Error("OwnerActive = true, want false for a stale lock")
	}
}

func TestCheck_ActiveOwner(t *testing.T) {
	var asked string
	p := &Probe{path: LockFile, stat: fakeStat(true), pgrep: func(name string) bool {
		asked = name
		return true
	}}
	st := p.Check()
	if !st.Present || !st.OwnerActive {
		t.Errorf("Check() = %+v, want present with active owner", st)
	}
	if asked != "pacman" {
		t.Errorf("pgrep name = %q, want %q", asked, "pacman")
	}
}

func TestRemoveCommand(t *testing.T) {
	cmd := RemoveCommand()
	if !strings.HasPrefix(cmd, "sudo ") {
		t.Errorf("RemoveCommand() = %q, want an elevated command", cmd)
	}
	if !strings.Contains(cmd, LockFile) {
		t.Errorf("RemoveCommand() = %q, want it to target %q", cmd, LockFile)
	}
}
