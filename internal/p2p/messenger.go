package p2p

import (
	"context"

	"github.com/lightningnetwork/lnd/lnwire"

	"github.com/kyokan/statechannel/internal/chantypes"
)

// Messenger is the narrow transport contract internal/engine depends on.
// A ProtocolUpdate sent to peer blocks for either a ProtocolUpdateAck or a
// ProtocolError; the engine never sees connection/routing details.
type Messenger interface {
	Request(ctx context.Context, peer chantypes.Identifier, msg lnwire.Message) (lnwire.Message, error)
}

// UpdateHandler processes an inbound ProtocolUpdate proposed by from and
// returns the reply to send back: a ProtocolUpdateAck on success or a
// ProtocolError on rejection. HandleWithdraw does the same for a
// WithdrawCommitment proposal, replying with a WithdrawCommitmentAck.
// Implemented by internal/engine.Engine.
type UpdateHandler interface {
	HandleUpdate(from chantypes.Identifier, msg lnwire.Message) (lnwire.Message, error)
	HandleWithdraw(from chantypes.Identifier, msg lnwire.Message) (lnwire.Message, error)
}
