package engine

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/lightningnetwork/lnd/lnwire"

	"github.com/kyokan/statechannel/internal/chain"
	"github.com/kyokan/statechannel/internal/chantypes"
	"github.com/kyokan/statechannel/internal/errs"
	"github.com/kyokan/statechannel/internal/validator"
	"github.com/kyokan/statechannel/internal/wire"
)

// HandleUpdate implements p2p.UpdateHandler: the inbound half of the
// update protocol (spec.md §4.3). A rejected proposal is answered with a
// ProtocolError reply, never a Go error — a non-nil error return means
// the reactor couldn't even form a reply (an unrecognized message type),
// which the reactor logs and drops rather than sending anything back.
func (e *Engine) HandleUpdate(from chantypes.Identifier, msg lnwire.Message) (lnwire.Message, error) {
	req, ok := msg.(*wire.ProtocolUpdate)
	if !ok || req.Update == nil {
		return nil, errs.FatalErr(nil, "not a protocol update")
	}
	update := req.Update
	isSetup := update.Type == chantypes.Setup

	key := channelLockKey(update.ChannelAddress)
	if isSetup {
		key = pairLockKey(update.FromIdentifier, update.ToIdentifier)
	}
	release := e.locks.acquire(key)
	defer release()

	prev, active, err := e.loadForInbound(update.ChannelAddress, isSetup)
	if err != nil {
		return e.errorReply(update, wire.ReasonValidationFailed, err), nil
	}

	var k uint64
	if prev != nil {
		k = prev.Nonce
	}
	diff := int64(update.Nonce) - int64(k)

	switch {
	case diff <= 0:
		return e.staleReply(update.ChannelAddress, update.Nonce, prev, active), nil

	case diff >= 3:
		return e.restoreReply(update.ChannelAddress, update.Nonce), nil

	case diff == 2:
		if isSetup {
			return e.errorReply(update, wire.ReasonCannotSyncSetup, errs.ProtocolErr(nil, "cannot sync a setup update")), nil
		}
		if req.PreviousUpdate == nil || !req.PreviousUpdate.DoubleSigned() {
			return e.errorReply(update, wire.ReasonCannotSyncSingleSigned, errs.ProtocolErr(nil, "sync requires a double-signed previous update")), nil
		}
		syncedState, syncedActive, err := e.sync(prev, active, req.PreviousUpdate)
		if err != nil {
			return e.errorReply(update, wire.ReasonValidationFailed, err), nil
		}
		prev, active = syncedState, syncedActive
	}

	result, err := validator.ValidateInbound(e.deps, prev, active, update)
	if err != nil {
		return e.errorReply(update, wire.ReasonValidationFailed, err), nil
	}

	sig, err := chain.Sign(e.signer, result.NextState)
	if err != nil {
		return e.errorReply(update, wire.ReasonValidationFailed, errs.FatalErr(nil, "sign commitment: %v", err)), nil
	}
	assignSignature(result.Update, result.NextState, chantypes.Identifier(e.signer.Identifier()), sig.Bytes())

	state := result.NextState.Clone()
	state.LatestUpdate = result.Update

	if err := e.saveResult(update.Type, state, result.Transfer); err != nil {
		return e.errorReply(update, wire.ReasonValidationFailed, err), nil
	}
	e.publishUpdate(state)

	return &wire.ProtocolUpdateAck{
		ChannelAddress: state.ChannelAddress,
		Nonce:          state.Nonce,
		Signature:      sig.Bytes(),
	}, nil
}

func (e *Engine) loadForInbound(channel common.Address, isSetup bool) (*chantypes.ChannelState, []*chantypes.Transfer, error) {
	if isSetup {
		return nil, nil, nil
	}
	state, err := e.store.GetChannelState(channel)
	if err != nil {
		return nil, nil, errs.StoreErr(nil, "GetChannelState", err)
	}
	if state == nil {
		return nil, nil, nil
	}
	active, err := e.store.GetActiveTransfers(channel)
	if err != nil {
		return nil, nil, errs.StoreErr(nil, "GetActiveTransfers", err)
	}
	return validator.NormalizeChannelState(state), active, nil
}

func (e *Engine) errorReply(update *chantypes.ChannelUpdate, reason wire.ErrorReason, cause error) *wire.ProtocolError {
	eLog.Warnw("rejecting inbound update",
		"channel", update.ChannelAddress.Hex(),
		"nonce", update.Nonce,
		"type", update.Type,
		"reason", reason,
		"err", cause,
	)
	return &wire.ProtocolError{
		ChannelAddress: update.ChannelAddress,
		Nonce:          update.Nonce,
		Reason:         reason,
		Message:        cause.Error(),
	}
}

// staleReply answers with our own canonical state so the proposer can
// sync (spec.md §4.3 diff<=0, §4.4).
func (e *Engine) staleReply(channel common.Address, theirNonce uint64, prev *chantypes.ChannelState, active []*chantypes.Transfer) *wire.ProtocolError {
	var latest *chantypes.ChannelUpdate
	if prev != nil {
		latest = prev.LatestUpdate
	}
	return &wire.ProtocolError{
		ChannelAddress:  channel,
		Nonce:           theirNonce,
		Reason:          wire.ReasonStaleUpdate,
		Message:         "local nonce is at or ahead of the proposed update",
		LatestUpdate:    latest,
		ActiveTransfers: active,
	}
}

func (e *Engine) restoreReply(channel common.Address, theirNonce uint64) *wire.ProtocolError {
	return &wire.ProtocolError{
		ChannelAddress: channel,
		Nonce:          theirNonce,
		Reason:         wire.ReasonRestoreNeeded,
		Message:        "local nonce is behind by 2 or more; restore required",
	}
}
