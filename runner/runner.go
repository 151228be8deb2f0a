// Package runner spawns and supervises child processes for the execution
// engine. Children run in their own process group so that termination
// signals reach the whole subtree.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/tobayashi-san/arch-appcenter/logging"
)

// Stream identifies which output stream a line arrived on.
type Stream string

const (
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)

// LineFunc receives one completed output line as soon as it is read. The
// two stream readers call it concurrently; implementations synchronize.
type LineFunc func(stream Stream, line string)

// Request describes one child process to run.
type Request struct {
	Argv         []string
	StdinPayload string        // written and closed before any read
	Timeout      time.Duration // zero means no timeout
	OnLine       LineFunc      // optional incremental consumer
}

// Result carries everything observed about a finished child. Output
// captured before an abnormal termination is preserved.
type Result struct {
	ExitCode  int
	Stdout    string
	Stderr    string
	TimedOut  bool
	Cancelled bool
	Elapsed   time.Duration
}

const (
	// termGrace is how long a process group gets between SIGTERM and
	// SIGKILL.
	termGrace = time.Second

	// maxStreamBytes caps the retained bytes per stream. Incremental
	// consumers still see every line.
	maxStreamBytes = 64 * 1024

	truncationMarker = "[output truncated]"
)

// Runner executes one child at a time in its own process group.
type Runner struct {
	mu        sync.Mutex
	cmd       *exec.Cmd
	cancelled atomic.Bool

	grace time.Duration
	now   func() time.Time
	after func(time.Duration) <-chan time.Time
	log   logging.Logger
}

// New returns a Runner. A nil logger disables logging.
func New(log logging.Logger) *Runner {
	if log == nil {
		log = logging.Nop{}
	}
	return &Runner{
		grace: termGrace,
		now:   time.Now,
		after: time.After,
		log:   logging.WithComponent(log, "runner"),
	}
}

// Run spawns argv and supervises it to completion. The stdin payload is
// written first because an elevation helper blocks on it before producing
// any output. Cancellation arrives through ctx or Cancel; both escalate
// from SIGTERM to SIGKILL on the process group. A spawn failure returns an
// error; every other outcome returns a Result.
func (r *Runner) Run(ctx context.Context, req Request) (Result, error) {
	if len(req.Argv) == 0 {
		return Result{}, errors.New("empty argv")
	}
	start := r.now()
	r.cancelled.Store(false)

	cmd := exec.Command(req.Argv[0], req.Argv[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return Result{}, fmt.Errorf("stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, fmt.Errorf("stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return Result{}, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("spawn %s: %w", req.Argv[0], err)
	}
	r.log.Debug("child started", map[string]any{"argv0": req.Argv[0], "pid": cmd.Process.Pid})

	r.mu.Lock()
	r.cmd = cmd
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.cmd = nil
		r.mu.Unlock()
	}()

	if req.StdinPayload != "" {
		io.WriteString(stdin, req.StdinPayload) //nolint:errcheck
	}
	stdin.Close()

	stdoutBuf := &lineBuffer{stream: Stdout, onLine: req.OnLine}
	stderrBuf := &lineBuffer{stream: Stderr, onLine: req.OnLine, filter: isPromptNoise}

	var wg sync.WaitGroup
	wg.Add(2)
	go r.drain(&wg, stdoutPipe, stdoutBuf)
	go r.drain(&wg, stderrPipe, stderrBuf)

	// Wait is only safe after both readers are done with the pipes.
	done := make(chan error, 1)
	go func() {
		wg.Wait()
		done <- cmd.Wait()
	}()

	var timeout <-chan time.Time
	if req.Timeout > 0 {
		timeout = r.after(req.Timeout)
	}

	res := Result{ExitCode: -1}
	var waitErr error
	select {
	case waitErr = <-done:
	case <-ctx.Done():
		r.cancelled.Store(true)
		r.killGroup(cmd.Process.Pid)
		waitErr = <-done
	case <-timeout:
		res.TimedOut = true
		r.cancelled.Store(true)
		r.killGroup(cmd.Process.Pid)
		waitErr = <-done
	}

	res.Cancelled = !res.TimedOut && r.cancelled.Load()
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	res.Stdout = stdoutBuf.String()
	res.Stderr = stderrBuf.String()
	res.Elapsed = r.now().Sub(start)

	r.log.Debug("child finished", map[string]any{
		"argv0":     req.Argv[0],
		"exit_code": res.ExitCode,
		"timed_out": res.TimedOut,
		"cancelled": res.Cancelled,
		"wait_err":  fmt.Sprint(waitErr),
	})
	return res, nil
}

// Cancel cooperatively stops the in-flight child, if any. The readers
// observe the flag; the process group is killed with the usual escalation.
func (r *Runner) Cancel() {
	r.cancelled.Store(true)
	r.mu.Lock()
	cmd := r.cmd
	r.mu.Unlock()
	if cmd != nil && cmd.Process != nil {
		r.killGroup(cmd.Process.Pid)
	}
}

func (r *Runner) drain(wg *sync.WaitGroup, src io.Reader, buf *lineBuffer) {
	defer wg.Done()
	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		buf.add(sc.Text())
		if r.cancelled.Load() {
			break
		}
	}
}

// killGroup escalates: SIGTERM to the group, a bounded grace, SIGKILL if
// anything in the group is still alive. The negative pid addresses the
// whole group.
func (r *Runner) killGroup(pid int) {
	syscall.Kill(-pid, syscall.SIGTERM) //nolint:errcheck
	<-r.after(r.grace)
	if syscall.Kill(-pid, syscall.Signal(0)) == nil {
		syscall.Kill(-pid, syscall.SIGKILL) //nolint:errcheck
	}
}

// lineBuffer accumulates completed lines for one stream. Lines matching
// the filter are dropped entirely; retained bytes are capped while the
// incremental consumer still sees every kept line.
type lineBuffer struct {
	stream    Stream
	onLine    LineFunc
	filter    func(string) bool
	lines     []string
	bytes     int
	truncated bool
}

func (b *lineBuffer) add(line string) {
	if b.filter != nil && b.filter(line) {
		return
	}
	if b.onLine != nil {
		b.onLine(b.stream, line)
	}
	if b.bytes+len(line) > maxStreamBytes {
		b.truncated = true
		return
	}
	b.lines = append(b.lines, line)
	b.bytes += len(line)
}

func (b *lineBuffer) String() string {
	out := strings.Join(b.lines, "\n")
	if b.truncated {
		out += "\n" + truncationMarker
	}
	return out
}
