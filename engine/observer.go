package engine

import "github.com/tobayashi-san/arch-appcenter/runner"

// Stream identifies the source of an output event.
type Stream = runner.Stream

const (
	Stdout = runner.Stdout
	Stderr = runner.Stderr
)

// Observer receives incremental execution events: one Line call per
// completed output line and Progress updates as batch items finish. Line
// may be called from the runner's reader goroutines; implementations
// synchronize.
type Observer interface {
	Line(stream Stream, text string)
	Progress(percent int, label string)
}

// NopObserver discards every event.
type NopObserver struct{}

func (NopObserver) Line(Stream, string)  {}
func (NopObserver) Progress(int, string) {}
