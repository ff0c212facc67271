package p2p

import (
	"sync"

	"github.com/kyokan/statechannel/internal/chantypes"
)

// PeerBook indexes connected peers by long-term identifier so the node
// can look one up by the identifier a channel was set up with, without
// walking every open connection.
type PeerBook struct {
	peerIndices map[chantypes.Identifier]uint16
	peers       map[uint16]*Peer
	mut         *sync.Mutex
	lastIdx     uint16
}

func NewPeerBook() *PeerBook {
	return &PeerBook{
		peerIndices: make(map[chantypes.Identifier]uint16),
		peers:       make(map[uint16]*Peer),
		mut:         &sync.Mutex{},
		lastIdx:     0,
	}
}

func (p *PeerBook) FindPeer(id chantypes.Identifier) *Peer {
	p.mut.Lock()
	defer p.mut.Unlock()

	peerIdx := p.peerIndices[id]
	if peerIdx == 0 {
		return nil
	}

	return p.peers[peerIdx]
}

func (p *PeerBook) AddPeer(peer *Peer) bool {
	p.mut.Lock()
	defer p.mut.Unlock()

	id := chantypes.Identifier(peer.Identity.Identifier())

	if p.peerIndices[id] != 0 {
		return false
	}

	p.lastIdx++
	p.peerIndices[id] = p.lastIdx
	p.peers[p.lastIdx] = peer
	return true
}

func (p *PeerBook) RemovePeer(id chantypes.Identifier) bool {
	p.mut.Lock()
	defer p.mut.Unlock()

	peerIdx := p.peerIndices[id]
	if peerIdx == 0 {
		return false
	}

	delete(p.peerIndices, id)
	delete(p.peers, peerIdx)
	return true
}
