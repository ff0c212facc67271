package engine

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lightningnetwork/lnd/lnwire"

	"github.com/kyokan/statechannel/internal/chain"
	"github.com/kyokan/statechannel/internal/chantypes"
	"github.com/kyokan/statechannel/internal/errs"
	"github.com/kyokan/statechannel/internal/validator"
	"github.com/kyokan/statechannel/internal/wire"
	"github.com/kyokan/statechannel/pkg/xkey"
)

// Withdraw proposes a direct, off-nonce withdrawal of channel balance
// (spec.md §4.1.5's WithdrawCommitment, detailed in SPEC_FULL.md §11).
// It shares the channel lock with the update protocol since it mutates
// Balances, but never touches Nonce or LatestUpdate.
func (e *Engine) Withdraw(ctx context.Context, channel common.Address, assetID common.Address, amount *big.Int, recipient common.Address) (*chantypes.WithdrawCommitment, error) {
	release := e.locks.acquire(channelLockKey(channel))
	defer release()

	prev, err := e.store.GetChannelState(channel)
	if err != nil {
		return nil, errs.StoreErr(nil, "GetChannelState", err)
	}
	if prev == nil {
		return nil, errs.ValidationErr(map[string]interface{}{"channel": channel.Hex()}, "channel does not exist")
	}

	ourID := chantypes.Identifier(e.signer.Identifier())
	commitment, next, err := validator.ValidateWithdraw(prev, ourID, validator.WithdrawParams{
		AssetID:   assetID,
		Amount:    amount,
		Recipient: recipient,
	})
	if err != nil {
		return nil, err
	}

	sig, err := validator.SignWithdrawCommitment(e.signer, commitment)
	if err != nil {
		return nil, errs.FatalErr(nil, "sign withdrawal commitment: %v", err)
	}
	assignWithdrawSignature(commitment, prev, ourID, sig.Bytes())

	peer := counterparty(prev, ourID)
	reqCtx, cancel := context.WithTimeout(ctx, e.requestTimeout(prev))
	defer cancel()

	reply, err := e.messenger.Request(reqCtx, peer, &wire.WithdrawCommitment{Commitment: commitment})
	if err != nil {
		return nil, errs.TransientErr(map[string]interface{}{"channel": channel.Hex()}, "withdrawal request failed: %v", err)
	}
	ack, ok := reply.(*wire.WithdrawCommitmentAck)
	if !ok {
		return nil, errs.ProtocolErr(nil, "withdrawal proposal rejected by counterparty")
	}

	peerPub, err := xkey.PublicFromCompressedHex(string(peer))
	if err != nil {
		return nil, errs.FatalErr(nil, "invalid counterparty identifier: %v", err)
	}
	valid, err := validator.VerifyWithdrawCommitment(peerPub, commitment, xkey.Signature(ack.Signature))
	if err != nil || !valid {
		return nil, errs.FatalErr(map[string]interface{}{"channel": channel.Hex()}, "bad withdrawal countersignature")
	}
	assignWithdrawSignature(commitment, prev, peer, ack.Signature)

	if err := e.store.SaveWithdrawalCommitment(chantypes.TransferID(chain.HashWithdrawCommitment(commitment)), commitment); err != nil {
		return nil, errs.StoreErr(map[string]interface{}{"channel": channel.Hex()}, "SaveWithdrawalCommitment", err)
	}
	if err := e.store.SaveChannelState(next, nil); err != nil {
		return nil, errs.StoreErr(map[string]interface{}{"channel": channel.Hex()}, "SaveChannelState", err)
	}
	e.publishUpdate(next)

	return commitment, nil
}

// HandleWithdraw implements p2p.UpdateHandler's withdrawal half: it
// recomputes the same deduction independently from local state rather
// than trusting the proposer's commitment fields, countersigns only if
// they match, and rejects outright otherwise (no sync story, unlike
// HandleUpdate: a withdrawal never advances the channel nonce).
func (e *Engine) HandleWithdraw(from chantypes.Identifier, msg lnwire.Message) (lnwire.Message, error) {
	req, ok := msg.(*wire.WithdrawCommitment)
	if !ok || req.Commitment == nil {
		return nil, errs.FatalErr(nil, "not a withdraw commitment proposal")
	}
	commitment := req.Commitment

	release := e.locks.acquire(channelLockKey(commitment.ChannelAddress))
	defer release()

	prev, err := e.store.GetChannelState(commitment.ChannelAddress)
	if err != nil || prev == nil {
		return nil, errs.FatalErr(nil, "unknown channel")
	}

	recomputed, next, err := validator.ValidateWithdraw(prev, from, validator.WithdrawParams{
		AssetID:   commitment.AssetID,
		Amount:    commitment.Amount,
		Recipient: commitment.Recipient,
		CallTo:    commitment.CallTo,
		CallData:  commitment.CallData,
	})
	if err != nil {
		return nil, err
	}
	if recomputed.Nonce != commitment.Nonce {
		return nil, errs.ValidationErr(nil, "withdrawal nonce mismatch")
	}

	sig, err := validator.SignWithdrawCommitment(e.signer, recomputed)
	if err != nil {
		return nil, errs.FatalErr(nil, "sign withdrawal commitment: %v", err)
	}

	if err := e.store.SaveChannelState(next, nil); err != nil {
		return nil, errs.StoreErr(nil, "SaveChannelState", err)
	}
	e.publishUpdate(next)

	return &wire.WithdrawCommitmentAck{Signature: sig.Bytes()}, nil
}

func assignWithdrawSignature(w *chantypes.WithdrawCommitment, s *chantypes.ChannelState, id chantypes.Identifier, sig []byte) {
	if id == s.AliceID {
		w.AliceSignature = sig
	} else {
		w.BobSignature = sig
	}
}
