package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AdamBeresnev/op-tournaments/internal/bracket"
)

// Outcome tells the pipeline what to do after a step.
type Outcome int

const (
	// Continue runs the next step.
	Continue Outcome = iota
	// Stop halts the run; remaining steps are skipped.
	Stop
	// Fatal is a hard failure that is returned to the caller under every policy.
	Fatal
)

func (o Outcome) String() string {
	switch o {
	case Continue:
		return "continue"
	case Stop:
		return "stop"
	case Fatal:
		return "fatal"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// State is the run state threaded through every step of one run.
type State interface {
	Succeeded() bool
	Fail(err error)
}

// Status is embedded in pipeline state structs to satisfy State.
type Status struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Err     error  `json:"-"`
}

func Ok() Status {
	return Status{Success: true}
}

func (s *Status) Succeeded() bool {
	return s.Success
}

func (s *Status) Fail(err error) {
	s.Success = false
	s.Err = err
	if err != nil {
		s.Message = err.Error()
	}
}

type Step[S State] interface {
	Name() string
	Execute(ctx context.Context, state S) (Outcome, error)
}

type stepFunc[S State] struct {
	name string
	fn   func(ctx context.Context, state S) (Outcome, error)
}

func (s stepFunc[S]) Name() string { return s.name }

func (s stepFunc[S]) Execute(ctx context.Context, state S) (Outcome, error) {
	return s.fn(ctx, state)
}

// StepFunc builds a step from a plain function.
func StepFunc[S State](name string, fn func(ctx context.Context, state S) (Outcome, error)) Step[S] {
	return stepFunc[S]{name: name, fn: fn}
}

// Policy decides what happens to a step error.
type Policy int

const (
	// Propagate returns the first step error to the caller. Used by runs that
	// sit inside an all-or-nothing transaction.
	Propagate Policy = iota
	// Contain records the error on the state and stops. Only Fatal outcomes
	// reach the caller.
	Contain
)

type StepError struct {
	Pipeline string
	Step     string
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

var ErrPanic = errors.New("step panicked")

type Pipeline[S State] struct {
	name   string
	policy Policy
	steps  []Step[S]
	logger *slog.Logger
}

func New[S State](name string, policy Policy, logger *slog.Logger) *Pipeline[S] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline[S]{name: name, policy: policy, logger: logger}
}

func (p *Pipeline[S]) Add(steps ...Step[S]) *Pipeline[S] {
	p.steps = append(p.steps, steps...)
	return p
}

func (p *Pipeline[S]) Name() string {
	return p.name
}

// Run executes the steps in registration order. It returns an error only for
// what the policy lets through; contained failures are found on the state.
func (p *Pipeline[S]) Run(ctx context.Context, state S) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return &StepError{Pipeline: p.name, Step: step.Name(), Err: err}
		}

		start := time.Now()
		outcome, err := p.execute(ctx, step, state)
		p.log(ctx, step.Name(), outcome, time.Since(start), err)

		if err != nil {
			stepErr := &StepError{Pipeline: p.name, Step: step.Name(), Err: err}
			if outcome == Fatal || p.policy == Propagate {
				return stepErr
			}
			state.Fail(stepErr)
			return nil
		}

		switch {
		case outcome == Fatal:
			return &StepError{Pipeline: p.name, Step: step.Name(), Err: errors.New("fatal outcome")}
		case outcome == Stop, !state.Succeeded():
			return nil
		}
	}
	return nil
}

func (p *Pipeline[S]) execute(ctx context.Context, step Step[S], state S) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = Stop
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return step.Execute(ctx, state)
}

func (p *Pipeline[S]) log(ctx context.Context, step string, outcome Outcome, took time.Duration, err error) {
	level := slog.LevelDebug
	attrs := []slog.Attr{
		slog.String("pipeline", p.name),
		slog.String("step", step),
		slog.String("outcome", outcome.String()),
		slog.Duration("duration", took),
	}
	if err != nil {
		attrs = append(attrs, slog.Any("error", err))
		switch {
		case bracket.IsDomain(err):
			level = slog.LevelWarn
		case bracket.Kind(err) == bracket.KindNotFound && outcome == Fatal:
			level = slog.LevelWarn
		default:
			level = slog.LevelError
		}
	}
	p.logger.LogAttrs(ctx, level, "pipeline step", attrs...)
}
