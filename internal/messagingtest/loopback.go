// Package messagingtest provides an in-memory Messenger for exercising
// internal/engine without internal/p2p's brontide transport, mirroring
// the teacher's own preference for hand-written fakes over a mocking
// framework (see internal/validator's fakeReader).
package messagingtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/lightningnetwork/lnd/lnwire"

	"github.com/kyokan/statechannel/internal/chantypes"
	"github.com/kyokan/statechannel/internal/p2p"
	"github.com/kyokan/statechannel/internal/wire"
)

// Loopback wires together a fixed set of named p2p.UpdateHandler peers so
// Request calls from one are delivered synchronously to another,
// matching the round-trip shape of p2p.Node.Request without any network
// or noise handshake involved.
type Loopback struct {
	mu       sync.RWMutex
	handlers map[chantypes.Identifier]p2p.UpdateHandler
}

func NewLoopback() *Loopback {
	return &Loopback{handlers: make(map[chantypes.Identifier]p2p.UpdateHandler)}
}

// Register associates id with the handler that should receive messages
// addressed to it. Engines register themselves under their own
// Identifier() before any Request is made against the loopback.
func (l *Loopback) Register(id chantypes.Identifier, handler p2p.UpdateHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[id] = handler
}

// For returns a Messenger that presents as sender when issuing requests,
// so HandleUpdate's from parameter on the receiving side is meaningful.
func (l *Loopback) For(sender chantypes.Identifier) p2p.Messenger {
	return &loopbackMessenger{loopback: l, sender: sender}
}

type loopbackMessenger struct {
	loopback *Loopback
	sender   chantypes.Identifier
}

func (m *loopbackMessenger) Request(ctx context.Context, peer chantypes.Identifier, msg lnwire.Message) (lnwire.Message, error) {
	m.loopback.mu.RLock()
	handler, ok := m.loopback.handlers[peer]
	m.loopback.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("messagingtest: no peer registered for %q", peer)
	}

	type result struct {
		reply lnwire.Message
		err   error
	}
	done := make(chan result, 1)
	go func() {
		var reply lnwire.Message
		var err error
		switch msg.MsgType() {
		case wire.MsgWithdrawCommitment:
			reply, err = handler.HandleWithdraw(m.sender, msg)
		default:
			reply, err = handler.HandleUpdate(m.sender, msg)
		}
		done <- result{reply, err}
	}()

	select {
	case r := <-done:
		return r.reply, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
