package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type countingCloser struct {
	calls  atomic.Int32
	closed int
	err    error
}

func (c *countingCloser) CloseExpiredRegistrations(ctx context.Context, now time.Time) (int, error) {
	c.calls.Add(1)
	return c.closed, c.err
}

func TestSchedulerRunsSweep(t *testing.T) {
	closer := &countingCloser{closed: 1}
	s, err := New(context.Background(), closer, 20*time.Millisecond, nil)
	require.NoError(t, err)

	s.Start()
	defer s.Shutdown()

	require.Eventually(t, func() bool { return closer.calls.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestSweepRegistrations(t *testing.T) {
	closer := &countingCloser{closed: 3}
	assert.Equal(t, 3, SweepRegistrations(context.Background(), closer, time.Now(), discard))

	failing := &countingCloser{closed: 1, err: errors.New("database is locked")}
	assert.Equal(t, 1, SweepRegistrations(context.Background(), failing, time.Now(), discard))
	assert.EqualValues(t, 1, failing.calls.Load())
}
