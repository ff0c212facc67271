package validator

import (
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/kyokan/statechannel/internal/chain"
	"github.com/kyokan/statechannel/internal/chantypes"
	"github.com/kyokan/statechannel/internal/errs"
	"github.com/kyokan/statechannel/internal/merkle"
)

// applyCreate locks funds from the proposer's balance into a new
// conditional transfer (spec.md §4.1.4). The asset must already be
// tracked on the channel (i.e. have seen at least one deposit) — a
// transfer cannot create liquidity the channel was never funded with.
func applyCreate(reader chain.Reader, prev *chantypes.ChannelState, active []*chantypes.Transfer, p CreateParams, fromID chantypes.Identifier) (*applied, error) {
	if p.Amount == nil || p.Amount.Sign() <= 0 {
		return nil, errs.ValidationErr(nil, "create amount must be positive")
	}
	for _, t := range active {
		if t.TransferID == p.TransferID {
			return nil, errs.ValidationErr(map[string]interface{}{"transferId": p.TransferID}, "transfer id already in use")
		}
	}

	idx := prev.AssetIndex(p.AssetID)
	if idx < 0 {
		return nil, errs.ValidationErr(map[string]interface{}{"asset": p.AssetID.Hex()}, "asset has never been deposited on this channel")
	}
	if p.TransferTimeout > prev.Timeout {
		return nil, errs.ValidationErr(map[string]interface{}{
			"transferTimeout": p.TransferTimeout,
			"channelTimeout":  prev.Timeout,
		}, "transfer timeout exceeds channel timeout")
	}

	next := prev.Clone()

	initiatorSlot := 0
	responderID := next.BobID
	if fromID == next.BobID {
		initiatorSlot = 1
		responderID = next.AliceID
	}

	remaining := new(big.Int).Sub(next.Balances[idx].Amount[initiatorSlot], p.Amount)
	if remaining.Sign() < 0 {
		return nil, errs.ValidationErr(map[string]interface{}{
			"balance": next.Balances[idx].Amount[initiatorSlot].String(),
			"amount":  p.Amount.String(),
		}, "insufficient balance to create transfer")
	}
	next.Balances[idx].Amount[initiatorSlot] = remaining

	transferBalance := chantypes.ZeroBalance(next.AliceID, next.BobID)
	transferBalance.Amount[initiatorSlot] = new(big.Int).Set(p.Amount)

	// The transfer definition must be registered in the transfer registry
	// regardless of whether the caller already supplied encodings for it.
	// A caller that filled in TransferEncodings itself would otherwise be
	// able to create a transfer against an arbitrary unregistered
	// definition.
	registered, err := reader.GetRegisteredTransferByDefinition(p.TransferDefinition, next.Network.TransferRegistry)
	if err != nil {
		return nil, errs.Wrap(errs.Transient, map[string]interface{}{"op": "GetRegisteredTransferByDefinition"}, err)
	}
	if len(p.TransferEncodings[0]) == 0 {
		p.TransferEncodings = [2]string{registered.StateEncoding, registered.ResolverEncoding}
	} else if p.TransferEncodings[0] != registered.StateEncoding || p.TransferEncodings[1] != registered.ResolverEncoding {
		return nil, errs.ValidationErr(map[string]interface{}{
			"suppliedStateEncoding":      p.TransferEncodings[0],
			"suppliedResolverEncoding":   p.TransferEncodings[1],
			"registeredStateEncoding":    registered.StateEncoding,
			"registeredResolverEncoding": registered.ResolverEncoding,
		}, "supplied transfer encodings do not match the registered definition")
	}

	ok, err := reader.Create(p.TransferInitialState, transferBalance, p.TransferDefinition, next.Network.TransferRegistry)
	if err != nil {
		return nil, errs.Wrap(errs.Transient, map[string]interface{}{"op": "Create"}, err)
	}
	if !ok {
		return nil, errs.ValidationErr(map[string]interface{}{"transferId": p.TransferID}, "transfer definition rejected initial state")
	}

	var initialStateHash [32]byte
	copy(initialStateHash[:], crypto.Keccak256(p.TransferInitialState))

	transfer := &chantypes.Transfer{
		TransferID:            p.TransferID,
		ChannelAddress:        next.ChannelAddress,
		ChainID:               next.Network.ChainID,
		ChannelFactoryAddress: next.Network.ChannelFactoryAddress,
		Initiator:             fromID,
		Responder:             responderID,
		ChannelNonce:          next.Nonce + 1,
		TransferDefinition:    p.TransferDefinition,
		TransferEncodings:     p.TransferEncodings,
		Balance:               transferBalance,
		AssetID:               p.AssetID,
		TransferTimeout:       p.TransferTimeout,
		InitialStateHash:      initialStateHash,
		TransferState:         p.TransferInitialState,
		Meta:                  p.Meta,
	}

	nextActive := append(append([]*chantypes.Transfer(nil), active...), transfer)
	next.MerkleRoot = activeMerkleRoot(nextActive)
	next.Nonce = prev.Nonce + 1

	if err := next.CheckInvariants(); err != nil {
		return nil, errs.FatalErr(nil, "invariant violation: %v", err)
	}

	return &applied{
		nextState:       next,
		activeTransfers: nextActive,
		transfer:        transfer,
		assetID:         p.AssetID,
		balance:         next.Balances[idx].Clone(),
		createDetails: &chantypes.CreateDetails{
			TransferID:           p.TransferID,
			Balance:               transferBalance,
			TransferDefinition:    p.TransferDefinition,
			TransferTimeout:       p.TransferTimeout,
			TransferInitialState:  p.TransferInitialState,
			TransferEncodings:     p.TransferEncodings,
			MerkleRoot:            next.MerkleRoot,
			Meta:                  p.Meta,
		},
	}, nil
}

// activeMerkleRoot recomputes the channel's merkle commitment over every
// active transfer's initial-state hash (spec.md §3).
func activeMerkleRoot(active []*chantypes.Transfer) [32]byte {
	leaves := make([][32]byte, 0, len(active))
	for _, t := range active {
		if t.Active() {
			leaves = append(leaves, t.InitialStateHash)
		}
	}
	return merkle.Root(leaves)
}
