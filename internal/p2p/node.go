package p2p

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/brontide"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/roasbeef/btcd/connmgr"
	"go.uber.org/zap"

	"github.com/kyokan/statechannel/internal/chantypes"
	"github.com/kyokan/statechannel/internal/logger"
	"github.com/kyokan/statechannel/pkg/xkey"
)

var nLog *zap.SugaredLogger

func init() {
	nLog = logger.Logger.Named("node")
}

// Node is the p2p transport: a noise-encrypted (brontide) listener plus
// outbound dialer, multiplexed through a Reactor and indexed by
// long-term participant identity. It implements Messenger so
// internal/engine can send a ChannelUpdate and block for the reply
// without knowing anything about connections.
type Node struct {
	reactor        *Reactor
	connMgr        *connmgr.ConnManager
	peerBook       *PeerBook
	bootstrapPeers []string
	addr           string
	port           string
}

func NewNode(reactor *Reactor, addr, port string, bootstrapPeers []string) (*Node, error) {
	return &Node{
		reactor:        reactor,
		peerBook:       NewPeerBook(),
		addr:           addr,
		port:           port,
		bootstrapPeers: bootstrapPeers,
	}, nil
}

// Start brings up the listener and outbound dialer under identity, and
// kicks off connections to any configured bootstrap peers.
func (n *Node) Start(identity *xkey.Account) error {
	identityKey := identity.BTCEC()

	nLog.Infow("starting p2p node", "p2pIp", n.addr, "p2pPort", n.port, "identity", identity.Identifier())

	listenAddr, err := net.ResolveTCPAddr("tcp", net.JoinHostPort(n.addr, n.port))
	if err != nil {
		nLog.Panicw("failed to parse TCP address", "err", err)
	}

	listener, err := brontide.NewListener(identityKey, listenAddr.String())
	if err != nil {
		nLog.Panicw("failed to listen to TCP address", "err", err, "addr", listenAddr.String())
	}

	cmgr, err := connmgr.New(&connmgr.Config{
		Listeners: []net.Listener{
			listener,
		},
		OnAccept:       n.onAccept,
		RetryDuration:  time.Second * 5,
		TargetOutbound: 100,
		Dial: func(a net.Addr) (net.Conn, error) {
			if a == nil || a == (*lnwire.NetAddress)(nil) {
				return nil, errors.New("addr is nil")
			}

			return brontide.Dial(identityKey, a.(*lnwire.NetAddress), func(network string, address string) (net.Conn, error) {
				return net.Dial(network, address)
			})
		},
		OnConnection:    n.onConnection,
		OnDisconnection: n.onDisconnection,
	})
	if err != nil {
		nLog.Panicw("failed to start p2p node", "err", err)
	}

	n.connMgr = cmgr
	cmgr.Start()

	if len(n.bootstrapPeers) > 0 {
		addrs, err := ResolveAddrs(n.bootstrapPeers)
		if err != nil {
			nLog.Errorw("failed to resolve bootstrap peers", "err", err, "bootstrapPeers", n.bootstrapPeers)
		}

		go n.bootstrap(addrs)
	}

	return nil
}

// Request implements Messenger: send msg to peer and block for its
// ProtocolUpdateAck/ProtocolError reply.
func (n *Node) Request(ctx context.Context, peer chantypes.Identifier, msg lnwire.Message) (lnwire.Message, error) {
	key, ok := correlationKey(msg)
	if !ok {
		return nil, errors.New("message type is not a request")
	}

	p := n.peerBook.FindPeer(peer)
	if p == nil {
		return nil, errors.New("no peer with id " + string(peer) + " found")
	}

	replyCh := p.awaitReply(key)
	if err := p.Send(msg); err != nil {
		p.cancelReply(key)
		return nil, err
	}

	select {
	case reply := <-replyCh:
		return reply, nil
	case <-ctx.Done():
		p.cancelReply(key)
		return nil, ctx.Err()
	}
}

func (n *Node) onConnection(req *connmgr.ConnReq, conn net.Conn) {
	noiseConn := conn.(*brontide.Conn)
	peer, err := NewPeer(n.reactor, noiseConn, true)
	if err != nil {
		nLog.Errorw("failed to wrap outbound connection", "err", err)
		conn.Close()
		return
	}

	nLog.Infow("established outbound peer connection", "peer", peer)

	if n.peerBook.AddPeer(peer) {
		peer.Start()
	}
}

func (n *Node) onAccept(conn net.Conn) {
	noiseConn := conn.(*brontide.Conn)
	peer, err := NewPeer(n.reactor, noiseConn, false)
	if err != nil {
		nLog.Errorw("failed to wrap inbound connection", "err", err)
		conn.Close()
		return
	}

	nLog.Infow("established inbound peer connection", "peer", peer)

	if n.peerBook.AddPeer(peer) {
		peer.Start()
	}
}

func (n *Node) onDisconnection(req *connmgr.ConnReq) {
	addr, ok := req.Addr.(*lnwire.NetAddress)
	if !ok {
		return
	}

	pub, err := xkey.PublicFromBTCEC(addr.IdentityKey)
	if err != nil {
		return
	}

	id := chantypes.Identifier(pub.Identifier())
	nLog.Infow("peer disconnected", "peer", id)
	n.peerBook.RemovePeer(id)
}

func (n *Node) bootstrap(addrs []*lnwire.NetAddress) {
	var wg sync.WaitGroup

	for _, addr := range addrs {
		wg.Add(1)
		go (func(addr *lnwire.NetAddress) {
			defer wg.Done()
			n.connMgr.Connect(&connmgr.ConnReq{
				Addr:      addr,
				Permanent: true,
			})
		})(addr)
	}

	wg.Wait()
}
