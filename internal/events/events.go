// Package events is the engine's lifecycle pub/sub: transaction submission
// events from internal/chain's TxQueue and channel-update events from
// internal/engine, fanned out to subscribers (logging, internal/api
// notification streams, tests). Grounded in spirit on the teacher's
// internal/start.go goroutine-per-subsystem wiring, made explicit as a
// small bounded-channel bus instead of ad hoc channels threaded by hand.
package events

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kyokan/statechannel/internal/chantypes"
)

type Kind string

const (
	TransactionSubmitted Kind = "transaction_submitted"
	TransactionMined     Kind = "transaction_mined"
	TransactionFailed    Kind = "transaction_failed"
	ChannelUpdated       Kind = "channel_updated"
)

// Event is the single envelope type published on the bus; only the field
// matching Kind is populated.
type Event struct {
	Kind Kind

	TxHash    common.Hash
	Signer    common.Address
	Operation string
	Err       error

	Channel common.Address
	State   *chantypes.ChannelState

	GasUsed *big.Int
}

// Bus is a bounded fan-out publisher. Publish never blocks the caller
// once a subscriber's buffer is full — the event is dropped for that
// subscriber rather than stalling the engine's critical section, since
// events are observational, not part of the committed state transition.
type Bus struct {
	mu   sync.Mutex
	subs []chan Event
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe returns a channel that receives every future published Event,
// buffered so a slow subscriber does not back-pressure Publish.
func (b *Bus) Subscribe(buffer int) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, buffer)
	b.subs = append(b.subs, ch)
	return ch
}

func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
