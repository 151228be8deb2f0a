package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/tobayashi-san/arch-appcenter/logging"
)

// Descriptor names one catalog tool to execute in a batch.
type Descriptor struct {
	Name     string
	Command  string
	Category string
}

// BatchItem records the outcome of one descriptor.
type BatchItem struct {
	Descriptor Descriptor
	Result     Result
	Succeeded  bool
}

// BatchJob aggregates a full batch run.
type BatchJob struct {
	Items     []BatchItem
	Total     int
	Succeeded int
	Failed    int
}

// Executor runs one command to a terminal Result. *Coordinator implements
// it.
type Executor interface {
	Execute(ctx context.Context, req Request) Result
}

// BatchOptions configure a Batch.
type BatchOptions struct {
	Observer    Observer
	Log         logging.Logger
	ItemTimeout time.Duration // per-item timeout, zero selects DefaultTimeout
}

// Batch runs descriptors strictly sequentially through one Executor.
// Sequential by design: concurrent elevation prompts and concurrent
// contention on the package database lock are avoided structurally, not
// by luck. Incremental output reaches the observer through the executor;
// the batch adds the progress events.
type Batch struct {
	exec    Executor
	obs     Observer
	log     logging.Logger
	timeout time.Duration
}

// NewBatch creates a Batch running items through exec.
func NewBatch(exec Executor, opts BatchOptions) *Batch {
	if opts.Observer == nil {
		opts.Observer = NopObserver{}
	}
	if opts.Log == nil {
		opts.Log = logging.Nop{}
	}
	return &Batch{
		exec:    exec,
		obs:     opts.Observer,
		log:     logging.WithComponent(opts.Log, "batch"),
		timeout: opts.ItemTimeout,
	}
}

// RunAll executes every descriptor in order. One item's failure, or even a
// panic out of the executor, is recorded and never aborts the loop.
// Progress is emitted before each item as completed/total and finally as
// (100, "Completed"). When ctx is cancelled mid-batch the remaining items
// are recorded as cancelled without spawning anything.
func (b *Batch) RunAll(ctx context.Context, descriptors []Descriptor) BatchJob {
	total := len(descriptors)
	job := BatchJob{Total: total, Items: make([]BatchItem, 0, total)}

	for i, d := range descriptors {
		b.obs.Progress(i*100/total, "Executing: "+d.Name)
		b.log.Info("batch item starting", map[string]any{"tool": d.Name, "index": i, "total": total})

		var res Result
		if ctx.Err() != nil {
			res = Result{Command: d.Command, Status: StatusCancelled, ExitCode: -1, Stderr: "batch cancelled"}
		} else {
			res = b.runOne(ctx, d)
		}

		item := BatchItem{Descriptor: d, Result: res, Succeeded: res.Status == StatusSuccess}
		job.Items = append(job.Items, item)
		if item.Succeeded {
			job.Succeeded++
		} else {
			job.Failed++
		}
	}

	b.obs.Progress(100, "Completed")
	b.log.Info("batch finished", map[string]any{
		"total":     job.Total,
		"succeeded": job.Succeeded,
		"failed":    job.Failed,
	})
	return job
}

// runOne shields the loop from a panicking executor; the item is recorded
// as failed with the panic text as diagnostics.
func (b *Batch) runOne(ctx context.Context, d Descriptor) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("batch item panicked", map[string]any{"tool": d.Name, "panic": fmt.Sprint(r)})
			res = Result{
				Command:  d.Command,
				Status:   StatusFailed,
				ExitCode: -1,
				Stderr:   fmt.Sprintf("execution error: %v", r),
			}
		}
	}()
	return b.exec.Execute(ctx, Request{Command: d.Command, Timeout: b.timeout})
}
