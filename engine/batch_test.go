package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
)

// scriptedExecutor returns a canned result per command; unknown commands
// succeed.
type scriptedExecutor struct {
	mu      sync.Mutex
	results map[string]Result
	panicOn string
	calls   []string
}

func (e *scriptedExecutor) Execute(_ context.Context, req Request) Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, req.Command)
	if req.Command == e.panicOn {
		panic("executor exploded")
	}
	if res, ok := e.results[req.Command]; ok {
		return res
	}
	return Result{Command: req.Command, Status: StatusSuccess}
}

type progressRecorder struct {
	mu     sync.Mutex
	events []string
	pcts   []int
}

func (p *progressRecorder) Line(Stream, string) {}

func (p *progressRecorder) Progress(pct int, label string) {
	p.mu.Lock()
	p.events = append(p.events, fmt.Sprintf("%d:%s", pct, label))
	p.pcts = append(p.pcts, pct)
	p.mu.Unlock()
}

func descriptors(names ...string) []Descriptor {
	ds := make([]Descriptor, len(names))
	for i, n := range names {
		ds[i] = Descriptor{Name: n, Command: "run " + n, Category: "test"}
	}
	return ds
}

func TestRunAll_AggregatesAndContinuesPastFailure(t *testing.T) {
	exec := &scriptedExecutor{results: map[string]Result{
		"run b": {Command: "run b", Status: StatusFailed, ExitCode: 1},
	}}
	b := NewBatch(exec, BatchOptions{})

	job := b.RunAll(context.Background(), descriptors("a", "b", "c"))
	if job.Total != 3 || job.Succeeded != 2 || job.Failed != 1 {
		t.Errorf("counts = %d/%d/%d, want 3 total, 2 succeeded, 1 failed", job.Total, job.Succeeded, job.Failed)
	}
	if len(job.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(job.Items))
	}
	if job.Items[1].Succeeded {
		t.Error("item b recorded as succeeded, want failed")
	}
	if !job.Items[2].Succeeded {
		t.Error("item c did not run after b failed")
	}
	if got := strings.Join(exec.calls, ","); got != "run a,run b,run c" {
		t.Errorf("execution order = %q", got)
	}
}

func TestRunAll_ProgressSequence(t *testing.T) {
	rec := &progressRecorder{}
	b := NewBatch(&scriptedExecutor{}, BatchOptions{Observer: rec})

	b.RunAll(context.Background(), descriptors("a", "b", "c"))

	want := []string{"0:Executing: a", "33:Executing: b", "66:Executing: c", "100:Completed"}
	if got := strings.Join(rec.events, "|"); got != strings.Join(want, "|") {
		t.Errorf("progress events = %q, want %q", got, strings.Join(want, "|"))
	}
	for i := 1; i < len(rec.pcts); i++ {
		if rec.pcts[i] < rec.pcts[i-1] {
			t.Fatalf("progress decreased: %v", rec.pcts)
		}
	}
	if rec.pcts[len(rec.pcts)-1] != 100 {
		t.Errorf("final progress = %d, want 100", rec.pcts[len(rec.pcts)-1])
	}
}

func TestRunAll_PanicRecordedAsFailure(t *testing.T) {
	exec := &scriptedExecutor{panicOn: "run b"}
	b := NewBatch(exec, BatchOptions{})

	job := b.RunAll(context.Background(), descriptors("a", "b", "c"))
	if job.Failed != 1 || job.Succeeded != 2 {
		t.Errorf("counts = %d succeeded / %d failed, want 2/1", job.Succeeded, job.Failed)
	}
	item := job.Items[1]
	if item.Result.Status != StatusFailed {
		t.Errorf("panicked item status = %s, want %s", item.Result.Status, StatusFailed)
	}
	if !strings.Contains(item.Result.Stderr, "executor exploded") {
		t.Errorf("Stderr = %q, want the panic text", item.Result.Stderr)
	}
	if len(exec.calls) != 3 {
		t.Errorf("calls = %d, want 3 (loop must continue)", len(exec.calls))
	}
}

func TestRunAll_Empty(t *testing.T) {
	rec := &progressRecorder{}
	b := NewBatch(&scriptedExecutor{}, BatchOptions{Observer: rec})

	job := b.RunAll(context.Background(), nil)
	if job.Total != 0 || len(job.Items) != 0 {
		t.Errorf("job = %+v, want empty", job)
	}
	if got := strings.Join(rec.events, "|"); got != "100:Completed" {
		t.Errorf("progress events = %q, want only the final one", got)
	}
}

// cancellingExecutor succeeds each item and cancels the batch context
// right after the first one.
type cancellingExecutor struct {
	cancel context.CancelFunc
	calls  int
}

func (c *cancellingExecutor) Execute(_ context.Context, req Request) Result {
	c.calls++
	c.cancel()
	return Result{Command: req.Command, Status: StatusSuccess}
}

func TestRunAll_ContextCancelledSkipsRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	exec := &cancellingExecutor{cancel: cancel}
	rec := &progressRecorder{}
	b := NewBatch(exec, BatchOptions{Observer: rec})

	job := b.RunAll(ctx, descriptors("a", "b", "c"))
	if exec.calls != 1 {
		t.Errorf("executed items = %d, want 1", exec.calls)
	}
	if job.Total != 3 || job.Succeeded != 1 || job.Failed != 2 {
		t.Errorf("counts = %d/%d/%d, want 3 total, 1 succeeded, 2 failed", job.Total, job.Succeeded, job.Failed)
	}
	for _, item := range job.Items[1:] {
		if item.Result.Status != StatusCancelled {
			t.Errorf("item %s status = %s, want %s", item.Descriptor.Name, item.Result.Status, StatusCancelled)
		}
	}
	if rec.pcts[len(rec.pcts)-1] != 100 {
		t.Errorf("final progress = %d, want 100 even after cancellation", rec.pcts[len(rec.pcts)-1])
	}
}
