package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

type Handler func(ctx context.Context, event DomainEvent) error

// Dispatcher maps event kinds to handlers registered at startup.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[Kind][]Handler
	logger   *slog.Logger
}

func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{handlers: make(map[Kind][]Handler), logger: logger}
}

func (d *Dispatcher) On(kind Kind, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = append(d.handlers[kind], h)
}

// OnAll registers h for every kind.
func (d *Dispatcher) OnAll(h Handler) {
	for _, kind := range []Kind{
		MatchFinished, StandingFinished, GroupsFinished,
		TournamentStarted, TournamentFinished, TournamentCancelled,
	} {
		d.On(kind, h)
	}
}

// Dispatch delivers events in order, each to its handlers in registration
// order. A failing handler does not stop the others; all errors are joined.
func (d *Dispatcher) Dispatch(ctx context.Context, events []DomainEvent) error {
	var errs []error
	for _, event := range events {
		d.mu.RLock()
		handlers := d.handlers[event.Kind]
		d.mu.RUnlock()

		for _, h := range handlers {
			if err := ctx.Err(); err != nil {
				return errors.Join(append(errs, err)...)
			}
			if err := d.call(ctx, h, event); err != nil {
				d.logger.ErrorContext(ctx, "event handler failed",
					slog.String("kind", string(event.Kind)),
					slog.String("tournament_id", event.TournamentID.String()),
					slog.Any("error", err))
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) call(ctx context.Context, h Handler, event DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler for %s panicked: %v", event.Kind, r)
		}
	}()
	return h(ctx, event)
}
