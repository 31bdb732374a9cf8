package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AdamBeresnev/op-tournaments/internal/bracket"
	"github.com/AdamBeresnev/op-tournaments/internal/events"
	"github.com/AdamBeresnev/op-tournaments/internal/store"
	"github.com/jmoiron/sqlx"
)

// engine holds what every service needs to run a pipeline and publish its
// events afterwards.
type engine struct {
	db         *sqlx.DB
	store      *store.TournamentStore
	dispatcher *events.Dispatcher
	logger     *slog.Logger
	now        func() time.Time
}

func newEngine(db *sqlx.DB, store *store.TournamentStore, dispatcher *events.Dispatcher, logger *slog.Logger) *engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &engine{
		db:         db,
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// publish hands the committed run's events to the dispatcher. Handler
// failures are logged and never undo the commit.
func (e *engine) publish(ctx context.Context, queue *events.Queue) {
	pending := queue.Drain()
	if e.dispatcher == nil || len(pending) == 0 {
		return
	}
	if err := e.dispatcher.Dispatch(ctx, pending); err != nil {
		e.logger.WarnContext(ctx, "event dispatch incomplete", slog.Any("error", err))
	}
}

func checkVersion(t *bracket.Tournament, expected *int) error {
	if expected != nil && *expected != t.Version {
		return fmt.Errorf("%w: tournament %s is at version %d, request expected %d",
			bracket.ErrConflict, t.ID, t.Version, *expected)
	}
	return nil
}
