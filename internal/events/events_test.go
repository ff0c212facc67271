package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishDeliversToSubscriber(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe(1)

	bus.Publish(Event{Kind: TransactionSubmitted, Operation: "deposit"})

	select {
	case e := <-ch:
		assert.Equal(t, TransactionSubmitted, e.Kind)
		assert.Equal(t, "deposit", e.Operation)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_PublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe(1)

	bus.Publish(Event{Kind: TransactionMined})
	done := make(chan struct{})
	go func() {
		bus.Publish(Event{Kind: TransactionMined})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber buffer")
	}

	require.Len(t, ch, 1)
}

func TestBus_MultipleSubscribers(t *testing.T) {
	bus := NewBus()
	a := bus.Subscribe(1)
	b := bus.Subscribe(1)

	bus.Publish(Event{Kind: ChannelUpdated})

	for _, ch := range []<-chan Event{a, b} {
		select {
		case e := <-ch:
			assert.Equal(t, ChannelUpdated, e.Kind)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}
