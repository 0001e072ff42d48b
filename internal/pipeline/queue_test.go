package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue[int]("test", 10)
	require.NoError(t, q.TryPut(1))
	require.NoError(t, q.TryPut(2))
	require.NoError(t, q.TryPut(3))
	assert.Equal(t, 3, q.Len())

	for want := 1; want <= 3; want++ {
		v, err := q.TryGet()
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueueFull(t *testing.T) {
	q := NewQueue[string]("test", 2)
	require.NoError(t, q.TryPut("a"))
	require.NoError(t, q.TryPut("b"))
	assert.ErrorIs(t, q.TryPut("c"), ErrFull)
	assert.Equal(t, 2, q.Len())

	// Popping one frees a slot.
	_, err := q.TryGet()
	require.NoError(t, err)
	assert.NoError(t, q.TryPut("c"))
}

func TestQueueEmpty(t *testing.T) {
	q := NewQueue[int]("test", 2)
	_, err := q.TryGet()
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestQueueFlush(t *testing.T) {
	q := NewQueue[int]("test", 5)
	for i := 0; i < 4; i++ {
		require.NoError(t, q.TryPut(i))
	}
	assert.Equal(t, 4, q.Flush())
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 0, q.Flush())
}

func TestQueuesStats(t *testing.T) {
	qs := NewQueues(DefaultQueueSizes())
	stats := qs.Stats()
	require.Len(t, stats, 4)

	assert.Equal(t, QueueStat{Name: QueueMailbox, Used: 0, Capacity: 2000}, stats[0])
	assert.Equal(t, QueueStat{Name: QueueExtraction, Used: 0, Capacity: 500}, stats[1])
	assert.Equal(t, QueueStat{Name: QueueMatching, Used: 0, Capacity: 1500}, stats[2])
	assert.Equal(t, QueueStat{Name: QueueOutbound, Used: 0, Capacity: 20}, stats[3])
}

func TestQueuesFlushAll(t *testing.T) {
	qs := NewQueues(QueueSizes{Mailbox: 10, Extraction: 10, Matching: 10, Outbound: 10})
	require.NoError(t, qs.Mailbox.TryPut(nil))
	require.NoError(t, qs.Mailbox.TryPut(nil))
	require.NoError(t, qs.Matching.TryPut(nil))

	dropped := qs.FlushAll()
	require.Len(t, dropped, 4)
	assert.Equal(t, 2, dropped[0].Used)
	assert.Equal(t, 0, dropped[1].Used)
	assert.Equal(t, 1, dropped[2].Used)
	assert.Equal(t, 0, qs.Mailbox.Len())
	assert.Equal(t, 0, qs.Matching.Len())
}
