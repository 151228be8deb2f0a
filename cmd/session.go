package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/tobayashi-san/arch-appcenter/credential"
	"github.com/tobayashi-san/arch-appcenter/engine"
	"github.com/tobayashi-san/arch-appcenter/internal/tui"
	"github.com/tobayashi-san/arch-appcenter/logging"
)

// session wires one engine invocation to its interactive surface: the TUI
// when stdout is a terminal, plain writers otherwise or with --plain.
type session struct {
	log     logging.Logger
	styles  *tui.StyleSet // nil in plain mode
	surface *tui.Surface  // nil in plain mode
	plain   *tui.PlainSurface
	broker  *credential.Broker
	coord   *engine.Coordinator
}

func usePlain() bool {
	return plainOutput || !term.IsTerminal(int(os.Stdout.Fd()))
}

func newSession(log logging.Logger) *session {
	s := &session{log: log}
	if usePlain() {
		s.plain = tui.NewPlainSurface(os.Stdout, os.Stderr)
		s.broker = credential.NewBroker(credential.Options{Sink: s.plain, Log: log})
		s.plain.Creds = s.broker
		s.coord = engine.NewCoordinator(engine.Options{Creds: s.broker, Observer: s.plain, Log: log})
		return s
	}

	s.styles = tui.NewStyleSet(tui.DetectTheme(themeOverride))
	s.surface = &tui.Surface{}
	s.broker = credential.NewBroker(credential.Options{Sink: s.surface, Log: log})
	s.coord = engine.NewCoordinator(engine.Options{Creds: s.broker, Observer: s.surface, Log: log})
	return s
}

// observer returns the engine observer backing this session.
func (s *session) observer() engine.Observer {
	if s.plain != nil {
		return s.plain
	}
	return s.surface
}

// runSingle executes one request to completion and prints the summary.
func (s *session) runSingle(ctx context.Context, cancel context.CancelFunc, req engine.Request, title string) (engine.Result, error) {
	if s.plain != nil {
		res := s.coord.Execute(ctx, req)
		renderRunSummary(os.Stdout, nil, res)
		return res, nil
	}

	model := tui.NewRunModel(s.styles, title, cancel, s.broker)
	p := tea.NewProgram(model)
	s.surface.Attach(p)

	go func() {
		p.Send(tui.RunDoneMsg{Result: s.coord.Execute(ctx, req)})
	}()

	final, err := p.Run()
	if err != nil {
		s.abort(cancel)
		return engine.Result{}, fmt.Errorf("running ui: %w", err)
	}
	rm, ok := final.(tui.RunModel)
	if !ok || rm.Result() == nil {
		s.abort(cancel)
		return engine.Result{}, errors.New("execution aborted")
	}

	res := *rm.Result()
	renderRunSummary(os.Stdout, s.styles, res)
	return res, nil
}

// runBatch executes descriptors sequentially and prints the summary.
// preauth validates the credential once up front so the batch does not
// stall on prompts mid-run; its failure is not fatal, items prompt
// individually.
func (s *session) runBatch(ctx context.Context, cancel context.CancelFunc, descriptors []engine.Descriptor, title string, preauth func() error) (engine.BatchJob, error) {
	batch := engine.NewBatch(s.coord, engine.BatchOptions{
		Observer:    s.observer(),
		Log:         s.log,
		ItemTimeout: batchTimeout,
	})

	if s.plain != nil {
		if preauth != nil {
			if err := preauth(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: preauthentication failed: %v\n", err)
			}
		}
		job := batch.RunAll(ctx, descriptors)
		renderBatchSummary(os.Stdout, nil, job)
		return job, nil
	}

	model := tui.NewRunModel(s.styles, title, cancel, s.broker)
	p := tea.NewProgram(model)
	s.surface.Attach(p)

	go func() {
		if preauth != nil {
			if err := preauth(); err != nil {
				s.log.Warn("preauthentication failed", map[string]any{"error": err.Error()})
			}
		}
		p.Send(tui.BatchDoneMsg{Job: batch.RunAll(ctx, descriptors)})
	}()

	final, err := p.Run()
	if err != nil {
		s.abort(cancel)
		return engine.BatchJob{}, fmt.Errorf("running ui: %w", err)
	}
	rm, ok := final.(tui.RunModel)
	if !ok || rm.Job() == nil {
		s.abort(cancel)
		return engine.BatchJob{}, errors.New("batch aborted")
	}

	job := *rm.Job()
	renderBatchSummary(os.Stdout, s.styles, job)
	return job, nil
}

// abort stops whatever the engine is doing after the UI went away. The
// child runs in its own process group and would outlive us otherwise.
func (s *session) abort(cancel context.CancelFunc) {
	cancel()
	s.coord.Cancel()
}
