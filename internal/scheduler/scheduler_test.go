package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule("0 4 * * *"))
	assert.NoError(t, ValidateSchedule("*/15 * * * *"))
	assert.Error(t, ValidateSchedule("not a cron"))
	assert.Error(t, ValidateSchedule("0 4 * *"))
	// 6-field (seconds) expressions are rejected.
	assert.Error(t, ValidateSchedule("0 0 4 * * *"))
}

func TestNew_InvalidExpression(t *testing.T) {
	_, err := New("bogus", func(ctx context.Context) error { return nil }, nil)
	assert.Error(t, err)
}

func TestNext(t *testing.T) {
	s, err := New("0 4 * * *", func(ctx context.Context) error { return nil }, nil)
	require.NoError(t, err)

	from := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	next := s.Next(from)
	assert.Equal(t, time.Date(2026, 3, 16, 4, 0, 0, 0, time.UTC), next)
}

func TestStart_StopsOnCancel(t *testing.T) {
	s, err := New("0 4 * * *", func(ctx context.Context) error { return nil }, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop on cancel")
	}
}

func TestFire_SkipsOverlap(t *testing.T) {
	calls := 0
	s, err := New("* * * * *", func(ctx context.Context) error {
		calls++
		return nil
	}, nil)
	require.NoError(t, err)

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	s.fire(context.Background())
	assert.Zero(t, calls, "tick during a running acquisition is dropped")

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.fire(context.Background())
	assert.Equal(t, 1, calls)
}

func TestFire_DropsTickWhileRunInFlight(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	s, err := New("* * * * *", func(ctx context.Context) error {
		calls.Add(1)
		<-release
		return nil
	}, nil)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		s.fire(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.running
	}, time.Second, 5*time.Millisecond)

	// A tick landing mid-run is dropped.
	s.fire(context.Background())

	close(release)
	<-done
	assert.Equal(t, int32(1), calls.Load())
}
