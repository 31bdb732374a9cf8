package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// RegistrationCloser closes registration on tournaments whose deadline has
// passed and reports how many it closed.
type RegistrationCloser interface {
	CloseExpiredRegistrations(ctx context.Context, now time.Time) (int, error)
}

type Scheduler struct {
	sched  gocron.Scheduler
	logger *slog.Logger
}

// New schedules the registration sweep every interval. Call Start to run it.
func New(ctx context.Context, closer RegistrationCloser, interval time.Duration, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			SweepRegistrations(ctx, closer, time.Now(), logger)
		}),
		gocron.WithName("close-expired-registrations"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("failed to schedule registration sweep: %w", err)
	}

	return &Scheduler{sched: sched, logger: logger}, nil
}

func (s *Scheduler) Start() {
	s.sched.Start()
}

func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}

// SweepRegistrations runs one registration sweep and logs the outcome.
func SweepRegistrations(ctx context.Context, closer RegistrationCloser, now time.Time, logger *slog.Logger) int {
	closed, err := closer.CloseExpiredRegistrations(ctx, now)
	if err != nil {
		logger.ErrorContext(ctx, "registration sweep failed", slog.Any("error", err))
	}
	if closed > 0 {
		logger.InfoContext(ctx, "registrations closed", slog.Int("tournaments", closed))
	}
	return closed
}
