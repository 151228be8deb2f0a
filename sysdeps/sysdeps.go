// Package sysdeps probes the host for the external tools the app center
// depends on.
package sysdeps

import (
	"os"
	"os/exec"
	"strings"
)

// Dependency describes one external tool the app center uses.
type Dependency struct {
	Name        string
	Description string
	Required    bool
}

// All returns every known dependency, required first.
func All() []Dependency {
	return []Dependency{
		{Name: "pacman", Description: "package manager", Required: true},
		{Name: "sudo", Description: "privilege elevation", Required: true},
		{Name: "flatpak", Description: "sandboxed application support", Required: false},
		{Name: "yay", Description: "AUR helper", Required: false},
		{Name: "paru", Description: "AUR helper", Required: false},
		{Name: "reflector", Description: "mirror list management", Required: false},
		{Name: "git", Description: "version control for AUR builds", Required: false},
	}
}

// osRelease is the standard OS identification file.
const osRelease = "/etc/os-release"

// archMarkers identify Arch and its derivatives in os-release content.
var archMarkers = []string{"arch", "manjaro", "endeavouros", "artix"}

// Report is the outcome of one host probe.
type Report struct {
	ArchBased       bool
	Available       []string
	MissingRequired []string
	MissingOptional []string
}

// Ready reports whether every required dependency is present on an
// Arch-based host.
func (r Report) Ready() bool {
	return r.ArchBased && len(r.MissingRequired) == 0
}

// Checker probes PATH and the OS identification file.
type Checker struct {
	lookPath func(string) (string, error)
	readFile func(string) ([]byte, error)
}

// NewChecker returns a Checker against the real host.
func NewChecker() *Checker {
	return &Checker{lookPath: exec.LookPath, readFile: os.ReadFile}
}

// Check probes every dependency. The two AUR helpers collapse into a single
// aur_helper capability: either one present satisfies it, and neither does
// not produce two missing entries.
func (c *Checker) Check() Report {
	r := Report{ArchBased: c.archBased()}
	haveAUR := false
	for _, d := range All() {
		if _, err := c.lookPath(d.Name); err == nil {
			r.Available = append(r.Available, d.Name)
			if d.Name == "yay" || d.Name == "paru" {
				haveAUR = true
			}
			continue
		}
		switch {
		case d.Required:
			r.MissingRequired = append(r.MissingRequired, d.Name)
		case d.Name == "yay" || d.Name == "paru":
			// handled after the loop
		default:
			r.MissingOptional = append(r.MissingOptional, d.Name)
		}
	}
	if !haveAUR {
		r.MissingOptional = append(r.MissingOptional, "aur_helper")
	}
	return r
}

func (c *Checker) archBased() bool {
	if data, err := c.readFile(osRelease); err == nil {
		content := strings.ToLower(string(data))
		for _, marker := range archMarkers {
			if strings.Contains(content, marker) {
				return true
			}
		}
	}
	// No recognizable os-release; a working pacman is good enough.
	_, err := c.lookPath("pacman")
	return err == nil
}

// InstallCommand returns the pacman invocation that installs a missing
// dependency. The aur_helper capability installs yay.
func InstallCommand(name string) string {
	if name == "aur_helper" {
		name = "yay"
	}
	return "sudo pacman -S --noconfirm " + name
}
