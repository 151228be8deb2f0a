// Package pacman probes the package manager's advisory database lock.
package pacman

import (
	"io/fs"
	"os"
	"os/exec"
)

// LockFile is the advisory lock pacman holds while it owns the database.
const LockFile = "/var/lib/pacman/db.lck"

// Status describes the advisory lock at one point in time. Present without
// an active owner means the lock is stale and may be removed explicitly.
type Status struct {
	Present     bool
	OwnerActive bool
}

// Probe checks the lock file and the owning process.
type Probe struct {
	path  string
	stat  func(string) (fs.FileInfo, error)
	pgrep func(name string) bool
}

// NewProbe returns a Probe against the real filesystem and process table.
func NewProbe() *Probe {
	return &Probe{path: LockFile, stat: os.Stat, pgrep: processRunning}
}

// Check reports whether the lock file exists and, if so, whether a pacman
// process is currently running.
func (p *Probe) Check() Status {
	var st Status
	if _, err := p.stat(p.path); err == nil {
		st.Present = true
		st.OwnerActive = p.pgrep("pacman")
	}
	return st
}

// processRunning reports whether a process with exactly the given name
// exists.
func processRunning(name string) bool {
	return exec.Command("pgrep", "-x", name).Run() == nil
}

// RemoveCommand returns the elevated command line that deletes a stale
// lock file. It is run through the execution engine only after explicit
// confirmation and only when the owner is not active.
func RemoveCommand() string {
	return "sudo rm -f " + LockFile
}
