package p2p

import (
	"bytes"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lightningnetwork/lnd/brontide"
	"github.com/lightningnetwork/lnd/lnwire"
	"go.uber.org/zap"

	"github.com/kyokan/statechannel/internal/logger"
	"github.com/kyokan/statechannel/internal/wire"
	"github.com/kyokan/statechannel/pkg/xkey"
)

var pLog *zap.SugaredLogger

const idleTimeout = time.Minute * 5
const pingInterval = time.Minute * 1

func init() {
	pLog = logger.Logger.Named("peer")
}

// Peer is one noise-encrypted connection to a counterparty. Inbound
// ProtocolUpdate proposals are forwarded to the reactor for dispatch to
// the engine; inbound ProtocolUpdateAck/ProtocolError are matched against
// pending requests and delivered directly, and only one that matches no
// pending request is passed on to the reactor.
type Peer struct {
	reactor        *Reactor
	conn           *brontide.Conn
	selfOriginated bool
	writeBuf       *[65535]byte
	incomingQueue  chan *Envelope
	outgoingQueue  chan *Envelope
	disconnected   uint32
	wg             *sync.WaitGroup

	pendingMu sync.Mutex
	pending   map[string]chan lnwire.Message

	Identity *xkey.PublicKey
}

func NewPeer(reactor *Reactor, conn *brontide.Conn, selfOriginated bool) (*Peer, error) {
	identity, err := xkey.PublicFromBTCEC(conn.RemotePub())
	if err != nil {
		return nil, err
	}

	return &Peer{
		reactor:        reactor,
		conn:           conn,
		selfOriginated: selfOriginated,
		writeBuf:       new([65535]byte),
		incomingQueue:  make(chan *Envelope),
		outgoingQueue:  make(chan *Envelope),
		wg:             new(sync.WaitGroup),
		pending:        make(map[string]chan lnwire.Message),
		Identity:       identity,
	}, nil
}

func (p *Peer) Start() {
	p.reactor.AddEnvelopeChan(p.incomingQueue, p.outgoingQueue)

	go p.readHandler()
	go p.writeHandler()
	go p.pingHandler()
}

func (p *Peer) Stop() error {
	atomic.StoreUint32(&p.disconnected, 1)
	p.wg.Wait()
	close(p.incomingQueue)
	close(p.outgoingQueue)
	return p.conn.Close()
}

func (p *Peer) Send(msg lnwire.Message) error {
	p.outgoingQueue <- NewEnvelope(p, msg)
	return nil
}

// awaitReply registers key and returns the channel a matching reply will
// be delivered to.
func (p *Peer) awaitReply(key string) chan lnwire.Message {
	ch := make(chan lnwire.Message, 1)
	p.pendingMu.Lock()
	p.pending[key] = ch
	p.pendingMu.Unlock()
	return ch
}

func (p *Peer) cancelReply(key string) {
	p.pendingMu.Lock()
	delete(p.pending, key)
	p.pendingMu.Unlock()
}

// deliverReply routes msg to a pending awaitReply call. Returns false if
// nothing was waiting on it, meaning it's a fresh inbound proposal rather
// than a reply to one of our requests.
func (p *Peer) deliverReply(msg lnwire.Message) bool {
	key, ok := correlationKey(msg)
	if !ok {
		return false
	}

	p.pendingMu.Lock()
	ch, found := p.pending[key]
	if found {
		delete(p.pending, key)
	}
	p.pendingMu.Unlock()

	if !found {
		return false
	}
	ch <- msg
	return true
}

func (p *Peer) readHandler() {
	p.wg.Add(1)

	idleTimer := time.AfterFunc(idleTimeout, func() {
		pLog.Errorw("peer timed out", "peer", p)
	})

	for {
		if atomic.LoadUint32(&p.disconnected) == 1 {
			p.wg.Done()
			return
		}

		idleTimer.Stop()
		nextMessage, err := p.readMessage()

		if err != nil {
			if err == io.EOF {
				pLog.Infow("remote end hung up", "peer", p, "err", err)
				p.Stop()
			} else {
				pLog.Infow("failed to read message", "peer", p, "err", err)
			}

			continue
		}

		pLog.Infow("received message", "peer", p, "msgType", nextMessage.MsgType())

		switch nextMessage.MsgType() {
		case wire.MsgProtocolUpdateAck, wire.MsgProtocolError:
			if p.deliverReply(nextMessage) {
				idleTimer.Reset(idleTimeout)
				continue
			}
		}

		p.incomingQueue <- NewEnvelope(p, nextMessage)
		idleTimer.Reset(idleTimeout)
	}
}

func (p *Peer) writeHandler() {
	p.wg.Add(1)

	for {
		if atomic.LoadUint32(&p.disconnected) == 1 {
			p.wg.Done()
			return
		}

		envelope := <-p.outgoingQueue
		pLog.Infow("writing message", "peer", p, "msgType", envelope.Msg.MsgType())
		if err := p.writeMessage(envelope.Msg); err != nil {
			pLog.Errorw("failed to write message", "peer", p, "err", err)
		}
	}
}

func (p *Peer) pingHandler() {
	p.wg.Add(1)

	tick := time.NewTicker(pingInterval)
	defer tick.Stop()

	for {
		if atomic.LoadUint32(&p.disconnected) == 1 {
			p.wg.Done()
			return
		}

		select {
		case <-tick.C:
			p.outgoingQueue <- NewEnvelope(p, lnwire.NewPing(16))
		}
	}
}

func (p *Peer) readMessage() (lnwire.Message, error) {
	rawMsg, err := p.conn.ReadNextMessage()
	if err != nil {
		return nil, err
	}

	return wire.ReadMessage(bytes.NewReader(rawMsg))
}

func (p *Peer) writeMessage(msg lnwire.Message) error {
	b := bytes.NewBuffer(p.writeBuf[0:0:len(p.writeBuf)])
	if _, err := wire.WriteMessage(b, msg); err != nil {
		return err
	}

	p.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	_, err := p.conn.Write(b.Bytes())
	return err
}

func (p *Peer) String() string {
	return p.Identity.CompressedHex()
}
