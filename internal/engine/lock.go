package engine

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kyokan/statechannel/internal/chantypes"
)

// lockTable hands out one *sync.Mutex per key, generalizing the
// teacher's protocol.ChannelHandler pendingChannels map (guarded by a
// single mtx) into a real per-channel exclusive lock: outbound,
// inbound and sync all acquire the same key for a given channel, so at
// most one of them advances that channel's nonce at a time (spec.md
// §5), while unrelated channels proceed fully in parallel.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*sync.Mutex)}
}

func (t *lockTable) get(key string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[key]
	if !ok {
		l = &sync.Mutex{}
		t.locks[key] = l
	}
	return l
}

// acquire blocks until key's lock is held and returns the release func.
// The lock itself has no TTL; spec.md §5's TTL bounds the message
// round-trip suspension point inside the critical section (see
// Engine.requestTimeout), not lock acquisition.
func (t *lockTable) acquire(key string) func() {
	l := t.get(key)
	l.Lock()
	return l.Unlock
}

// channelLockKey is the lock key once a channel address is known.
func channelLockKey(addr common.Address) string {
	return "channel:" + addr.Hex()
}

// pairLockKey is the lock key for a Setup proposal, before any channel
// address exists: the two participants, order-independent, so a
// simultaneous Setup proposed from either side serializes against the
// same lock.
func pairLockKey(a, b chantypes.Identifier) string {
	if a > b {
		a, b = b, a
	}
	return "pair:" + string(a) + ":" + string(b)
}
