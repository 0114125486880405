package track

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_BeginRegistersOperation(t *testing.T) {
	tracker := NewTracker()

	first := tracker.Begin("billing", nil)
	second := tracker.Begin("search", nil)

	require.NotEmpty(t, first)
	require.NotEmpty(t, second)
	assert.NotEqual(t, first, second, "operation ids must be unique")

	ops := tracker.InFlight()
	require.Len(t, ops, 2)

	services := map[string]bool{}
	for _, op := range ops {
		services[op.Service] = true
		assert.Zero(t, op.Attempts)
	}
	assert.True(t, services["billing"])
	assert.True(t, services["search"])
}

func TestTracker_MarkAttempt(t *testing.T) {
	mClock := quartz.NewMock(t)
	tracker := NewTracker(WithClock(mClock))

	id := tracker.Begin("billing", nil)
	started := mClock.Now()

	mClock.Advance(50 * time.Millisecond)
	tracker.MarkAttempt(id)
	mClock.Advance(100 * time.Millisecond)
	tracker.MarkAttempt(id)

	ops := tracker.InFlight()
	require.Len(t, ops, 1)
	assert.Equal(t, 2, ops[0].Attempts)
	assert.Equal(t, started, ops[0].StartedAt)
	assert.Equal(t, started.Add(150*time.Millisecond), ops[0].LastAttemptAt)

	assert.NotPanics(t, func() {
		tracker.MarkAttempt("no-such-id")
	})
}

func TestTracker_CompleteRecordsHistory(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mClock := quartz.NewMock(t)
		tracker := NewTracker(WithClock(mClock))

		id := tracker.Begin("billing", nil)
		tracker.MarkAttempt(id)
		mClock.Advance(250 * time.Millisecond)
		tracker.Complete(id, nil)

		assert.Empty(t, tracker.InFlight())

		history := tracker.History(0)
		require.Len(t, history, 1)
		record := history[0]
		assert.Equal(t, id, record.OperationID)
		assert.Equal(t, "billing", record.Service)
		assert.True(t, record.Success)
		assert.Equal(t, 1, record.Attempts)
		assert.Equal(t, 250*time.Millisecond, record.Duration)
		assert.Empty(t, record.Err)
	})

	t.Run("Failure", func(t *testing.T) {
		tracker := NewTracker(WithClock(quartz.NewMock(t)))

		id := tracker.Begin("billing", nil)
		tracker.MarkAttempt(id)
		tracker.MarkAttempt(id)
		tracker.Complete(id, errors.New("connection reset"))

		history := tracker.History(0)
		require.Len(t, history, 1)
		assert.False(t, history[0].Success)
		assert.Equal(t, 2, history[0].Attempts)
		assert.Equal(t, "connection reset", history[0].Err)
	})

	t.Run("Unknown Id Is No-Op", func(t *testing.T) {
		tracker := NewTracker()

		tracker.Complete("no-such-id", nil)

		assert.Empty(t, tracker.History(0))
	})
}

func TestTracker_HistoryNewestFirst(t *testing.T) {
	tracker := NewTracker()

	for i := 0; i < 3; i++ {
		id := tracker.Begin(fmt.Sprintf("service-%d", i), nil)
		tracker.Complete(id, nil)
	}

	history := tracker.History(0)
	require.Len(t, history, 3)
	assert.Equal(t, "service-2", history[0].Service)
	assert.Equal(t, "service-1", history[1].Service)
	assert.Equal(t, "service-0", history[2].Service)
}

func TestTracker_HistoryCapacityEviction(t *testing.T) {
	tracker := NewTracker(WithHistoryCapacity(3))

	for i := 0; i < 5; i++ {
		id := tracker.Begin(fmt.Sprintf("service-%d", i), nil)
		tracker.Complete(id, nil)
	}

	history := tracker.History(0)
	require.Len(t, history, 3, "history must never exceed its capacity")
	assert.Equal(t, "service-4", history[0].Service)
	assert.Equal(t, "service-3", history[1].Service)
	assert.Equal(t, "service-2", history[2].Service)
}

func TestTracker_HistoryLimit(t *testing.T) {
	tracker := NewTracker()

	for i := 0; i < 4; i++ {
		id := tracker.Begin(fmt.Sprintf("service-%d", i), nil)
		tracker.Complete(id, nil)
	}

	limited := tracker.History(2)
	require.Len(t, limited, 2)
	assert.Equal(t, "service-3", limited[0].Service)
	assert.Equal(t, "service-2", limited[1].Service)

	assert.Len(t, tracker.History(100), 4)
	assert.Len(t, tracker.History(-1), 4)
}

func TestTracker_Cancel(t *testing.T) {
	tracker := NewTracker()

	ctx, cancel := context.WithCancel(context.Background())
	id := tracker.Begin("billing", cancel)

	require.True(t, tracker.Cancel(id))
	assert.ErrorIs(t, ctx.Err(), context.Canceled)

	assert.False(t, tracker.Cancel("no-such-id"))
}

func TestTracker_CancelAll(t *testing.T) {
	tracker := NewTracker()

	var contexts []context.Context
	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		contexts = append(contexts, ctx)
		tracker.Begin("billing", cancel)
	}

	assert.Equal(t, 3, tracker.CancelAll())
	for _, ctx := range contexts {
		assert.ErrorIs(t, ctx.Err(), context.Canceled)
	}

	// Operations stay registered until their executors complete them, and
	// cancelling them again must be harmless.
	assert.Equal(t, 3, tracker.CancelAll())
}

func TestTracker_Stats(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		stats := NewTracker().Stats()

		assert.Zero(t, stats.Completed)
		assert.Zero(t, stats.SuccessRate)
		assert.Zero(t, stats.AverageAttempts)
	})

	t.Run("Aggregates Window", func(t *testing.T) {
		tracker := NewTracker()

		complete := func(attempts int, err error) {
			id := tracker.Begin("billing", nil)
			for i := 0; i < attempts; i++ {
				tracker.MarkAttempt(id)
			}
			tracker.Complete(id, err)
		}
		complete(1, nil)
		complete(3, nil)
		complete(3, errors.New("boom"))
		tracker.Begin("billing", nil)

		stats := tracker.Stats()
		assert.Equal(t, 1, stats.InFlight)
		assert.Equal(t, 3, stats.Completed)
		assert.Equal(t, 2, stats.Succeeded)
		assert.Equal(t, 1, stats.Failed)
		assert.InDelta(t, 2.0/3.0, stats.SuccessRate, 1e-9)
		assert.InDelta(t, 7.0/3.0, stats.AverageAttempts, 1e-9)
	})
}

func TestTracker_ConcurrentUse(t *testing.T) {
	tracker := NewTracker(WithHistoryCapacity(10))

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 50; j++ {
				id := tracker.Begin("billing", nil)
				tracker.MarkAttempt(id)
				tracker.Complete(id, nil)
				tracker.Stats()
				tracker.History(5)
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	stats := tracker.Stats()
	assert.Zero(t, stats.InFlight)
	assert.Equal(t, 10, stats.Completed)
	close(done)
}
