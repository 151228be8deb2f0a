package credential

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// probeTimeout bounds each probe invocation.
const probeTimeout = 5 * time.Second

// Probe validates candidate secrets against the elevation helper.
type Probe interface {
	// NonInteractive reports whether elevation currently works without a
	// secret, for example an unexpired sudo timestamp.
	NonInteractive() bool
	// Validate checks a candidate secret without side effects.
	Validate(secret string) error
	// Extend refreshes the elevation timestamp using a validated secret.
	Extend(secret string) error
}

// SudoProbe implements Probe against the real sudo binary.
type SudoProbe struct {
	timeout time.Duration
}

// NewSudoProbe returns a SudoProbe with the default probe timeout.
func NewSudoProbe() *SudoProbe {
	return &SudoProbe{timeout: probeTimeout}
}

// NonInteractive runs `sudo -n true`; success means sudo will not prompt
// right now.
func (p *SudoProbe) NonInteractive() bool {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	return exec.CommandContext(ctx, "sudo", "-n", "true").Run() == nil
}

// Validate feeds the candidate to `sudo -S true`. Running true has no side
// effects; success proves only that sudo accepts the secret.
func (p *SudoProbe) Validate(secret string) error {
	return p.feed(secret, "-S", "true")
}

// Extend runs `sudo -S -v` to refresh the sudo timestamp.
func (p *SudoProbe) Extend(secret string) error {
	return p.feed(secret, "-S", "-v")
}

func (p *SudoProbe) feed(secret string, args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, "sudo", args...)
	cmd.Stdin = strings.NewReader(secret + "\n")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("sudo %s: %w", strings.Join(args, " "), err)
	}
	return nil
}
