package livelog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubFanout(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Close()

	a := hub.Subscribe(nil)
	b := hub.Subscribe(nil)
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.NotEqual(t, a.ID, b.ID)

	hub.Publish(Event{Channel: ChanInfo, Payload: []byte("x")})
	for _, sub := range []*Subscription{a, b} {
		select {
		case ev := <-sub.C:
			assert.Equal(t, ChanInfo, ev.Channel)
		case <-time.After(time.Second):
			t.Fatal("subscriber missed the event")
		}
	}
}

func TestHubCancelStopsDelivery(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Close()

	sub := hub.Subscribe(nil)
	require.NotNil(t, sub)
	sub.Cancel()

	// The channel closes once the hub processes the cancellation.
	select {
	case _, ok := <-sub.C:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel never closed")
	}
}

func TestHubCloseReleasesSubscribers(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	sub := hub.Subscribe(nil)
	require.NotNil(t, sub)

	hub.Close()
	hub.Close()

	select {
	case _, ok := <-sub.C:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel never closed")
	}
	assert.Nil(t, hub.Subscribe(nil), "subscribing after close")
	hub.Publish(Event{Channel: ChanInfo, Payload: []byte("x")})
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Close()

	slow := hub.Subscribe(nil)
	require.NotNil(t, slow)

	// Never reading while the hub keeps publishing overflows the buffer and
	// evicts the subscriber instead of stalling the loop.
	for i := 0; i < subscriberBuffer+16; i++ {
		hub.Publish(Event{Channel: ChanInfo, Payload: []byte("x")})
		time.Sleep(time.Millisecond / 4)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-slow.C:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("slow subscriber never dropped")
		}
	}
}
