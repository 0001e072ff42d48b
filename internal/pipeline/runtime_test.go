package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutWithRetryImmediate(t *testing.T) {
	rt := testRuntime()
	q := NewQueue[int]("test", 2)
	ok := putWithRetry(context.Background(), rt, NewSignal(), q, 7)
	assert.True(t, ok)
	assert.Equal(t, 1, q.Len())
}

func TestPutWithRetryDeliversDespiteStop(t *testing.T) {
	// A raised stop signal does not discard work already in hand: the first
	// attempt always runs, so a fetched batch drains into a queue with room.
	rt := testRuntime()
	q := NewQueue[int]("test", 2)
	stop := NewSignal()
	stop.Set()

	ok := putWithRetry(context.Background(), rt, stop, q, 7)
	assert.True(t, ok)
	assert.Equal(t, 1, q.Len())
}

func TestPutWithRetryGivesUpOnStopWhenFull(t *testing.T) {
	rt := testRuntime()
	q := NewQueue[int]("test", 1)
	require.NoError(t, q.TryPut(1))
	stop := NewSignal()
	stop.Set()

	ok := putWithRetry(context.Background(), rt, stop, q, 2)
	assert.False(t, ok)
	assert.Equal(t, 1, q.Len())
}

func TestPutWithRetryWaitsForSpace(t *testing.T) {
	rt := testRuntime()
	q := NewQueue[int]("test", 1)
	require.NoError(t, q.TryPut(1))

	go func() {
		time.Sleep(20 * time.Millisecond)
		q.TryGet()
	}()

	ok := putWithRetry(context.Background(), rt, NewSignal(), q, 2)
	assert.True(t, ok)
	v, err := q.TryGet()
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestPutWithRetryStopsOnContextCancel(t *testing.T) {
	rt := testRuntime()
	q := NewQueue[int]("test", 1)
	require.NoError(t, q.TryPut(1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok := putWithRetry(ctx, rt, NewSignal(), q, 2)
	assert.False(t, ok)
}

func TestStopRequested(t *testing.T) {
	stop := NewSignal()
	assert.False(t, stopRequested(context.Background(), stop))

	stop.Set()
	assert.True(t, stopRequested(context.Background(), stop))

	stop.Clear()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, stopRequested(ctx, stop))
}

func TestSleepOrStop(t *testing.T) {
	stop := NewSignal()
	assert.True(t, sleepOrStop(context.Background(), stop, time.Millisecond))

	stop.Set()
	start := time.Now()
	assert.False(t, sleepOrStop(context.Background(), stop, time.Minute))
	assert.Less(t, time.Since(start), time.Second)
}

func TestApplyDefaults(t *testing.T) {
	rt := &Runtime{}
	rt.ApplyDefaults()
	assert.Equal(t, 5*time.Second, rt.AttemptInterval)
	assert.Equal(t, 60*time.Second, rt.MatchScanInterval)
	assert.Equal(t, 200*time.Millisecond, rt.CapacityInterval)

	rt = &Runtime{AttemptInterval: time.Millisecond}
	rt.ApplyDefaults()
	assert.Equal(t, time.Millisecond, rt.AttemptInterval)
}
