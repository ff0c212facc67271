// Package engine is the update protocol state machine from spec.md
// §4.2-§4.4: it owns the per-channel lock, loads prior state from the
// store, hands parameters or inbound messages to internal/validator,
// exchanges signatures with the counterparty over internal/p2p, and
// persists the result. It is the orchestration layer validator.go's own
// doc comment names as "internal/engine" throughout.
package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/kyokan/statechannel/internal/chantypes"
	"github.com/kyokan/statechannel/internal/events"
	"github.com/kyokan/statechannel/internal/logger"
	"github.com/kyokan/statechannel/internal/p2p"
	"github.com/kyokan/statechannel/internal/store"
	"github.com/kyokan/statechannel/internal/validator"
	"github.com/kyokan/statechannel/pkg/xkey"
)

var eLog *zap.SugaredLogger

func init() {
	eLog = logger.Logger.Named("engine")
}

// defaultRequestTimeout bounds a protocol round trip when the channel's
// own timeout isn't yet known (a Setup proposal, before any channel
// exists to read a timeout from).
const defaultRequestTimeout = 30 * time.Second

// Config are Engine's collaborators. Store, Messenger and Reader (via
// Deps.Reader) must be non-nil; External defaults to
// validator.AllowAll{} and Events to a no-op if nil.
type Config struct {
	Signer         *xkey.Account
	Store          store.Store
	Messenger      p2p.Messenger
	Events         *events.Bus
	Deps           validator.Deps
	RequestTimeout time.Duration
}

// Engine implements both halves of the update protocol (outbound.go,
// inbound.go) plus the shared syncer (sync.go), all under the lock table
// defined here (spec.md §5: single-threaded per channel, parallel
// across channels).
type Engine struct {
	signer     *xkey.Account
	store      store.Store
	messenger  p2p.Messenger
	events     *events.Bus
	deps       validator.Deps
	locks      *lockTable
	reqTimeout time.Duration
}

func New(cfg Config) *Engine {
	deps := cfg.Deps
	if deps.External == nil {
		deps.External = validator.AllowAll{}
	}
	return &Engine{
		signer:     cfg.Signer,
		store:      cfg.Store,
		messenger:  cfg.Messenger,
		events:     cfg.Events,
		deps:       deps,
		locks:      newLockTable(),
		reqTimeout: cfg.RequestTimeout,
	}
}

// Identifier is this engine's own participant identifier, used by
// callers (internal/api) building requests that need to name "us".
func (e *Engine) Identifier() string {
	return e.signer.Identifier()
}

// SetMessenger wires the transport after construction, breaking the
// Engine/Reactor/Node construction cycle: the reactor needs an
// UpdateHandler (the Engine) before the Node exists, and the Engine
// needs a Messenger (the Node) to send outbound proposals.
func (e *Engine) SetMessenger(m p2p.Messenger) {
	e.messenger = m
}

func (e *Engine) publishUpdate(state *chantypes.ChannelState) {
	if e.events == nil {
		return
	}
	e.events.Publish(events.Event{
		Kind:    events.ChannelUpdated,
		Channel: state.ChannelAddress,
		State:   state,
	})
}
