// Package engine orchestrates privileged command execution: safety
// classification, the package-database lock probe, credential acquisition,
// process supervision, and outcome classification. It exposes the
// single-command API and the sequential batch scheduler built on top.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tobayashi-san/arch-appcenter/logging"
	"github.com/tobayashi-san/arch-appcenter/pacman"
	"github.com/tobayashi-san/arch-appcenter/runner"
	"github.com/tobayashi-san/arch-appcenter/safety"
)

// DefaultTimeout bounds a command that did not specify its own timeout.
const DefaultTimeout = 5 * time.Minute

// timeoutMarker is appended to stderr when a command is killed for
// exceeding its timeout.
const timeoutMarker = "Timeout reached"

// Request describes one command to execute. Immutable once created.
type Request struct {
	Command  string
	Elevated bool          // also inferred from a leading sudo
	Timeout  time.Duration // zero selects DefaultTimeout
}

// Result is the terminal outcome of one execution.
type Result struct {
	Command  string
	Status   Status
	ExitCode int
	Stdout   string
	Stderr   string
	Elapsed  time.Duration
}

// LockProbe reports the advisory package-database lock state.
type LockProbe interface {
	Check() pacman.Status
}

// CredentialSource hands out a validated elevation secret for a request id.
type CredentialSource interface {
	Acquire(requestID string) (string, error)
}

// ProcessRunner spawns and supervises one child process at a time.
type ProcessRunner interface {
	Run(ctx context.Context, req runner.Request) (runner.Result, error)
	Cancel()
}

// Options configure a Coordinator. Zero values select the defaults: the
// real safety validator, the real pacman lock probe, a fresh process
// runner, no observer, no logging. A nil Creds denies every elevation.
type Options struct {
	Locks          LockProbe
	Creds          CredentialSource
	Proc           ProcessRunner
	Observer       Observer
	Log            logging.Logger
	DefaultTimeout time.Duration
}

// Coordinator drives one execution at a time through the phases
// validating, checking-lock, preparing-credential, running, finalized.
// The invocation mutex guarantees at most one live child per instance.
type Coordinator struct {
	mu sync.Mutex

	classify func(string) safety.Verdict
	locks    LockProbe
	creds    CredentialSource
	proc     ProcessRunner
	obs      Observer
	log      logging.Logger
	timeout  time.Duration
	newID    func() string
	now      func() time.Time
}

// NewCoordinator creates a Coordinator from opts.
func NewCoordinator(opts Options) *Coordinator {
	if opts.Locks == nil {
		opts.Locks = pacman.NewProbe()
	}
	if opts.Proc == nil {
		opts.Proc = runner.New(opts.Log)
	}
	if opts.Observer == nil {
		opts.Observer = NopObserver{}
	}
	if opts.Log == nil {
		opts.Log = logging.Nop{}
	}
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = DefaultTimeout
	}
	return &Coordinator{
		classify: safety.Classify,
		locks:    opts.Locks,
		creds:    opts.Creds,
		proc:     opts.Proc,
		obs:      opts.Observer,
		log:      logging.WithComponent(opts.Log, "engine"),
		timeout:  opts.DefaultTimeout,
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// Execute runs one command to a terminal Result. Every failure mode is
// classified into the Result; Execute never returns an error and never
// panics across the boundary. Invocations are serialized per coordinator.
func (c *Coordinator) Execute(ctx context.Context, req Request) (res Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := c.now()
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("execution panicked", map[string]any{"command": req.Command, "panic": fmt.Sprint(r)})
			res = Result{
				Command:  req.Command,
				Status:   StatusFailed,
				ExitCode: -1,
				Stderr:   fmt.Sprintf("unexpected execution error: %v", r),
				Elapsed:  c.now().Sub(start),
			}
		}
	}()

	c.logPhase(phaseValidating, req.Command)
	if v := c.classify(req.Command); !v.Allowed {
		return c.finalize(req.Command, start, &execError{kind: KindSafetyRejected, reason: v.Reason}, nil)
	}

	c.logPhase(phaseCheckingLock, req.Command)
	if eerr := c.checkLock(req.Command); eerr != nil {
		return c.finalize(req.Command, start, eerr, nil)
	}

	c.logPhase(phaseCredential, req.Command)
	argv, payload, eerr := c.prepare(req)
	if eerr != nil {
		return c.finalize(req.Command, start, eerr, nil)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}

	c.logPhase(phaseRunning, req.Command)
	run, err := c.proc.Run(ctx, runner.Request{
		Argv:         argv,
		StdinPayload: payload,
		Timeout:      timeout,
		OnLine:       c.obs.Line,
	})
	if err != nil {
		return c.finalize(req.Command, start, &execError{kind: KindSpawnFailure, reason: err.Error()}, nil)
	}
	return c.finalize(req.Command, start, classifyRun(run), &run)
}

// Cancel cooperatively stops the in-flight execution, if any. Safe to call
// from any goroutine, including while Execute blocks.
func (c *Coordinator) Cancel() {
	c.proc.Cancel()
}

// checkLock fails fast when a pacman invocation would contend on the
// advisory database lock. The gate matches the pacman program itself, not
// paths that merely mention it, so the explicit lock-removal command can
// pass through. Removing a stale lock is a separate, explicitly confirmed
// operation; it never happens implicitly here.
func (c *Coordinator) checkLock(command string) *execError {
	if !invokesPacman(command) {
		return nil
	}
	st := c.locks.Check()
	if !st.Present {
		return nil
	}
	if st.OwnerActive {
		return &execError{kind: KindLockContention, reason: "pacman database is locked; another package manager is running"}
	}
	return &execError{kind: KindLockContention, reason: "pacman database is locked by a stale lock file; clear it explicitly before retrying"}
}

// invokesPacman reports whether a token of the command is the pacman
// program.
func invokesPacman(command string) bool {
	for _, tok := range strings.Fields(strings.ToLower(command)) {
		if tok == "pacman" || strings.HasSuffix(tok, "/pacman") {
			return true
		}
	}
	return false
}

// prepare tokenizes the command and, for an elevated one, strips the sudo
// keyword, re-wraps the remainder as `sudo -S` reading the secret from
// stdin, and acquires the credential.
func (c *Coordinator) prepare(req Request) ([]string, string, *execError) {
	tokens := strings.Fields(req.Command)
	if len(tokens) == 0 {
		return nil, "", &execError{kind: KindSpawnFailure, reason: "empty command"}
	}

	elevated := req.Elevated || tokens[0] == "sudo"
	if tokens[0] == "sudo" {
		tokens = tokens[1:]
		if len(tokens) == 0 {
			return nil, "", &execError{kind: KindSpawnFailure, reason: "empty command after sudo"}
		}
	}
	if !elevated {
		return tokens, "", nil
	}

	if c.creds == nil {
		return nil, "", &execError{kind: KindCredentialDenied, reason: "no credential source configured"}
	}
	requestID := c.newID()
	secret, err := c.creds.Acquire(requestID)
	if err != nil {
		c.log.Info("credential unavailable", map[string]any{"request_id": requestID})
		return nil, "", &execError{kind: KindCredentialDenied, reason: "elevation required: " + err.Error()}
	}
	argv := append([]string{"sudo", "-S"}, tokens...)
	return argv, secret + "\n", nil
}

// classifyRun orders the terminal outcomes: cancellation overrides
// everything, then timeout, then the exit code.
func classifyRun(run runner.Result) *execError {
	switch {
	case run.Cancelled:
		return &execError{kind: KindCancelled, reason: "cancelled by user"}
	case run.TimedOut:
		return &execError{kind: KindTimeout, reason: "timeout reached"}
	case run.ExitCode != 0:
		return &execError{kind: KindNonZeroExit, reason: fmt.Sprintf("exit code %d", run.ExitCode)}
	}
	return nil
}

// finalize builds the terminal Result. Partial output from an abnormal
// termination is preserved; failures before a spawn carry their reason on
// stderr.
func (c *Coordinator) finalize(command string, start time.Time, eerr *execError, run *runner.Result) Result {
	res := Result{Command: command, ExitCode: -1, Elapsed: c.now().Sub(start)}
	if run != nil {
		res.ExitCode = run.ExitCode
		res.Stdout = run.Stdout
		res.Stderr = run.Stderr
	}

	if eerr == nil {
		res.Status = StatusSuccess
	} else {
		res.Status = eerr.status()
		switch eerr.kind {
		case KindTimeout:
			res.Stderr = appendLine(res.Stderr, timeoutMarker)
		case KindCancelled, KindNonZeroExit:
			// captured output already carries the diagnostics
		default:
			res.Stderr = eerr.reason
		}
	}

	c.logPhase(phaseFinalized, command)
	fields := map[string]any{
		"command":   command,
		"status":    string(res.Status),
		"exit_code": res.ExitCode,
		"elapsed":   res.Elapsed.String(),
	}
	if eerr != nil {
		fields["kind"] = string(eerr.kind)
	}
	c.log.Info("execution finalized", fields)
	return res
}

func (c *Coordinator) logPhase(p phase, command string) {
	c.log.Debug("phase", map[string]any{"phase": string(p), "command": command})
}

func appendLine(s, line string) string {
	if s == "" {
		return line
	}
	return s + "\n" + line
}
