package stream

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/corkboard/internal/models"
)

func event(board string, seq int64) models.Event {
	return models.Event{BoardID: board, Seq: seq, Kind: "task.updated"}
}

func recv(t *testing.T, sub *Subscription) Message {
	t.Helper()
	select {
	case m, ok := <-sub.Events():
		require.True(t, ok, "channel closed")
		return m
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func TestPublish_DeliversInOrder(t *testing.T) {
	b := New(Options{Buffer: 16})
	sub := b.Subscribe("b1")
	defer b.Unsubscribe(sub)

	for i := int64(1); i <= 5; i++ {
		b.Publish(event("b1", i))
	}
	for i := int64(1); i <= 5; i++ {
		m := recv(t, sub)
		require.NotNil(t, m.Event)
		assert.Equal(t, i, m.Event.Seq)
	}
}

func TestPublish_OnlyToSameBoard(t *testing.T) {
	b := New(Options{Buffer: 16})
	a := b.Subscribe("b1")
	other := b.Subscribe("b2")
	defer b.Unsubscribe(a)
	defer b.Unsubscribe(other)

	b.Publish(event("b1", 1))

	assert.Equal(t, int64(1), recv(t, a).Event.Seq)
	assert.Len(t, other.Events(), 0)
}

func TestPublish_NoSubscribersIsNoop(t *testing.T) {
	b := New(Options{})
	b.Publish(event("nobody", 1))
	assert.Equal(t, 0, b.SubscriberCount("nobody"))
}

func TestOverflow_SlowSubscriberGetsOneWarning(t *testing.T) {
	b := New(Options{Buffer: 4})
	slow := b.Subscribe("b1")
	fast := b.Subscribe("b1")
	defer b.Unsubscribe(slow)
	defer b.Unsubscribe(fast)

	var got []int64
	for i := int64(1); i <= 10; i++ {
		b.Publish(event("b1", i))
		m := recv(t, fast)
		got = append(got, m.Event.Seq)
	}
	assert.Len(t, got, 10, "fast subscriber unaffected")

	// Three events fit, the fourth slot holds the warning.
	var msgs []Message
	for len(slow.Events()) > 0 {
		msgs = append(msgs, <-slow.Events())
	}
	require.Len(t, msgs, 4)
	for i := 0; i < 3; i++ {
		assert.Equal(t, int64(i+1), msgs[i].Event.Seq)
	}
	assert.Equal(t, KindWarning, msgs[3].Kind)
	assert.Nil(t, msgs[3].Event)
	assert.Equal(t, int64(1), msgs[3].Dropped)
	assert.Equal(t, int64(7), slow.Dropped())
}

func TestOverflow_WarningRearmsAfterRecovery(t *testing.T) {
	b := New(Options{Buffer: 2})
	sub := b.Subscribe("b1")
	defer b.Unsubscribe(sub)

	b.Publish(event("b1", 1)) // fills the only event slot
	b.Publish(event("b1", 2)) // dropped, warning queued
	b.Publish(event("b1", 3)) // dropped silently

	assert.Equal(t, int64(1), recv(t, sub).Event.Seq)
	assert.Equal(t, KindWarning, recv(t, sub).Kind)

	b.Publish(event("b1", 4)) // delivered, re-arms
	assert.Equal(t, int64(4), recv(t, sub).Event.Seq)

	b.Publish(event("b1", 5))
	b.Publish(event("b1", 6))
	assert.Equal(t, int64(5), recv(t, sub).Event.Seq)
	w := recv(t, sub)
	assert.Equal(t, KindWarning, w.Kind)
	assert.Equal(t, int64(3), w.Dropped)
}

func TestUnsubscribe_ClosesChannelAndIsIdempotent(t *testing.T) {
	b := New(Options{})
	sub := b.Subscribe("b1")
	assert.Equal(t, 1, b.SubscriberCount("b1"))

	b.Unsubscribe(sub)
	b.Unsubscribe(sub)

	_, ok := <-sub.Events()
	assert.False(t, ok)
	assert.Equal(t, 0, b.SubscriberCount("b1"))

	// Publishing after removal must not panic.
	b.Publish(event("b1", 1))
}

func TestUnsubscribe_ConcurrentWithPublish(t *testing.T) {
	b := New(Options{Buffer: 8})
	var wg sync.WaitGroup

	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		var seq int64
		for {
			select {
			case <-stop:
				return
			default:
				seq++
				b.Publish(event("b1", seq))
			}
		}
	}()

	for i := 0; i < 200; i++ {
		sub := b.Subscribe("b1")
		b.Unsubscribe(sub)
	}
	close(stop)
	wg.Wait()
	assert.Equal(t, 0, b.SubscriberCount("b1"))
}
