package engine

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kyokan/statechannel/internal/chain"
	"github.com/kyokan/statechannel/internal/chantypes"
	"github.com/kyokan/statechannel/internal/errs"
	"github.com/kyokan/statechannel/internal/validator"
	"github.com/kyokan/statechannel/internal/wire"
	"github.com/kyokan/statechannel/pkg/xkey"
)

// Setup proposes the creation of a new channel (spec.md §4.1.2, §4.2).
func (e *Engine) Setup(ctx context.Context, bob chantypes.Identifier, network chantypes.NetworkContext, timeout uint64, meta []byte) (*chantypes.ChannelState, error) {
	alice := chantypes.Identifier(e.signer.Identifier())
	params := validator.SetupParams{Alice: alice, Bob: bob, Network: network, Timeout: timeout, Meta: meta}
	return e.propose(ctx, pairLockKey(alice, bob), common.Address{}, false, params)
}

// Deposit proposes crediting newly observed on-chain deposits for
// assetID into an existing channel (spec.md §4.1.3).
func (e *Engine) Deposit(ctx context.Context, channel common.Address, assetID common.Address, meta []byte) (*chantypes.ChannelState, error) {
	return e.propose(ctx, channelLockKey(channel), channel, true, validator.DepositParams{AssetID: assetID, Meta: meta})
}

// CreateTransfer proposes locking funds into a new conditional transfer
// (spec.md §4.1.4).
func (e *Engine) CreateTransfer(ctx context.Context, channel common.Address, params validator.CreateParams) (*chantypes.ChannelState, error) {
	return e.propose(ctx, channelLockKey(channel), channel, true, params)
}

// ResolveTransfer proposes resolving (settling or cooperatively
// cancelling) an existing conditional transfer (spec.md §4.1.5).
func (e *Engine) ResolveTransfer(ctx context.Context, channel common.Address, params validator.ResolveParams) (*chantypes.ChannelState, error) {
	return e.propose(ctx, channelLockKey(channel), channel, true, params)
}

// propose acquires key's lock and runs the outbound flow to completion.
func (e *Engine) propose(ctx context.Context, key string, channel common.Address, hasChannel bool, params validator.Params) (*chantypes.ChannelState, error) {
	release := e.locks.acquire(key)
	defer release()
	return e.proposeLocked(ctx, channel, hasChannel, params, true)
}

// proposeLocked implements spec.md §4.2 under the caller's held lock.
// allowSync permits exactly one stale-update sync-and-retry (step 5); a
// StaleUpdate reply received on the retry itself is a hard failure
// rather than looping forever.
func (e *Engine) proposeLocked(ctx context.Context, channel common.Address, hasChannel bool, params validator.Params, allowSync bool) (*chantypes.ChannelState, error) {
	prev, active, err := e.loadForPropose(channel, hasChannel)
	if err != nil {
		return nil, err
	}

	result, err := validator.ValidateOutbound(e.deps, e.signer, prev, active, params)
	if err != nil {
		return nil, err
	}

	peer := counterparty(result.NextState, chantypes.Identifier(e.signer.Identifier()))

	reqCtx, cancel := context.WithTimeout(ctx, e.requestTimeout(result.NextState))
	defer cancel()

	msg := &wire.ProtocolUpdate{Update: result.Update}
	if prev != nil {
		msg.PreviousUpdate = prev.LatestUpdate
	}
	reply, err := e.messenger.Request(reqCtx, peer, msg)
	if err != nil {
		return nil, errs.TransientErr(map[string]interface{}{
			"channel": result.NextState.ChannelAddress.Hex(),
			"peer":    string(peer),
		}, "protocol request failed: %v", err)
	}

	switch m := reply.(type) {
	case *wire.ProtocolUpdateAck:
		return e.finishOutbound(result, m)

	case *wire.ProtocolError:
		return e.handleOutboundError(ctx, channel, hasChannel, params, allowSync, prev, active, m)

	default:
		return nil, errs.FatalErr(nil, "unexpected reply type %T", reply)
	}
}

func (e *Engine) loadForPropose(channel common.Address, hasChannel bool) (*chantypes.ChannelState, []*chantypes.Transfer, error) {
	if !hasChannel {
		return nil, nil, nil
	}
	prev, err := e.store.GetChannelState(channel)
	if err != nil {
		return nil, nil, errs.StoreErr(nil, "GetChannelState", err)
	}
	if prev == nil {
		return nil, nil, errs.ValidationErr(map[string]interface{}{"channel": channel.Hex()}, "channel does not exist")
	}
	active, err := e.store.GetActiveTransfers(channel)
	if err != nil {
		return nil, nil, errs.StoreErr(nil, "GetActiveTransfers", err)
	}
	return validator.NormalizeChannelState(prev), active, nil
}

// finishOutbound verifies the counterparty's countersignature, persists
// the durable double-signed state, and publishes the update event
// (spec.md §4.2 steps 6-8).
func (e *Engine) finishOutbound(result *validator.OutboundResult, ack *wire.ProtocolUpdateAck) (*chantypes.ChannelState, error) {
	if ack.ChannelAddress != result.NextState.ChannelAddress || ack.Nonce != result.NextState.Nonce {
		return nil, errs.FatalErr(map[string]interface{}{
			"expectedChannel": result.NextState.ChannelAddress.Hex(),
			"actualChannel":   ack.ChannelAddress.Hex(),
			"expectedNonce":   result.NextState.Nonce,
			"actualNonce":     ack.Nonce,
		}, "ack does not match proposed update")
	}

	peerID := counterparty(result.NextState, chantypes.Identifier(e.signer.Identifier()))
	peerPub, err := xkey.PublicFromCompressedHex(string(peerID))
	if err != nil {
		return nil, errs.FatalErr(nil, "invalid counterparty identifier: %v", err)
	}
	ok, err := chain.Verify(peerPub, result.NextState, xkey.Signature(ack.Signature))
	if err != nil || !ok {
		return nil, errs.FatalErr(map[string]interface{}{
			"channel": result.NextState.ChannelAddress.Hex(),
			"peer":    string(peerID),
		}, "bad countersignature")
	}
	assignSignature(result.Update, result.NextState, peerID, ack.Signature)

	state := result.NextState.Clone()
	state.LatestUpdate = result.Update

	if err := e.saveResult(result.Update.Type, state, result.Transfer); err != nil {
		return nil, err
	}
	e.publishUpdate(state)
	return state, nil
}

// handleOutboundError implements spec.md §4.2 step 5 and the protocol
// error taxonomy from §7: a StaleUpdate from a peer exactly one nonce
// ahead syncs once and retries; a StaleUpdate from a peer two or more
// nonces ahead, and anything else, is surfaced to the caller without a
// retry.
func (e *Engine) handleOutboundError(
	ctx context.Context,
	channel common.Address,
	hasChannel bool,
	params validator.Params,
	allowSync bool,
	prev *chantypes.ChannelState,
	active []*chantypes.Transfer,
	protoErr *wire.ProtocolError,
) (*chantypes.ChannelState, error) {
	switch protoErr.Reason {
	case wire.ReasonStaleUpdate:
		if params.Type() == chantypes.Setup {
			return nil, errs.ProtocolErr(nil, "peer reports stale update for a setup proposal")
		}
		if !allowSync {
			return nil, errs.ProtocolErr(map[string]interface{}{
				"channel": channel.Hex(),
			}, "stale update persisted after a sync retry")
		}
		if protoErr.LatestUpdate == nil {
			return nil, errs.ProtocolErr(nil, "stale update reply carried no latest update to sync from")
		}
		if protoErr.LatestUpdate.Nonce >= prev.Nonce+2 {
			return nil, errs.FatalErr(map[string]interface{}{
				"channel": channel.Hex(),
			}, "peer is ahead by 2 or more nonces; restore required")
		}
		if _, _, err := e.sync(prev, active, protoErr.LatestUpdate); err != nil {
			return nil, err
		}
		return e.proposeLocked(ctx, channel, hasChannel, params, false)

	case wire.ReasonRestoreNeeded:
		return nil, errs.FatalErr(map[string]interface{}{
			"channel": channel.Hex(),
		}, "peer is behind by 2 or more nonces; restore required")

	default:
		return nil, errs.ProtocolErr(map[string]interface{}{
			"reason":  string(protoErr.Reason),
			"message": protoErr.Message,
		}, "update rejected by counterparty")
	}
}

// requestTimeout bounds the protocol round trip: an explicit override
// supplied by the caller takes precedence; otherwise it is the channel's
// own timeout / 10 per spec.md §5, falling back to defaultRequestTimeout
// when no such window is known yet (a first Setup proposal).
func (e *Engine) requestTimeout(s *chantypes.ChannelState) time.Duration {
	if e.reqTimeout > 0 {
		return e.reqTimeout
	}
	if s.Timeout > 0 {
		return time.Duration(s.Timeout) * time.Second / 10
	}
	return defaultRequestTimeout
}

func counterparty(s *chantypes.ChannelState, our chantypes.Identifier) chantypes.Identifier {
	if our == s.AliceID {
		return s.BobID
	}
	return s.AliceID
}

// assignSignature writes sig into whichever of Alice/Bob's signature
// slots matches id.
func assignSignature(update *chantypes.ChannelUpdate, s *chantypes.ChannelState, id chantypes.Identifier, sig []byte) {
	if id == s.AliceID {
		update.AliceSignature = sig
	} else {
		update.BobSignature = sig
	}
}

// saveResult persists state using the store method matching spec.md
// §6's atomicity granularity: Setup/Deposit touch no transfer row,
// Create/Resolve touch exactly the one transfer that changed.
func (e *Engine) saveResult(updateType chantypes.UpdateType, state *chantypes.ChannelState, transfer *chantypes.Transfer) error {
	switch updateType {
	case chantypes.Create, chantypes.Resolve:
		if err := e.store.SaveChannelState(state, transfer); err != nil {
			return errs.StoreErr(map[string]interface{}{"channel": state.ChannelAddress.Hex()}, "SaveChannelState", err)
		}
	default:
		if err := e.store.SaveChannelState(state, nil); err != nil {
			return errs.StoreErr(map[string]interface{}{"channel": state.ChannelAddress.Hex()}, "SaveChannelState", err)
		}
	}
	return nil
}
