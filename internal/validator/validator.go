// Package validator implements the pure validate-and-apply core from
// spec.md §4.1: given a prior channel state (and, for outbound proposals,
// locally supplied parameters, or, for inbound messages, a peer-supplied
// ChannelUpdate) it produces the next channel state, the ChannelUpdate
// that carries the transition, and the updated active-transfer set, or a
// categorized error. It touches neither the store nor the network —
// internal/engine owns the lock, the load, the message round trip and the
// save; this package only ever sees what it is handed.
package validator

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kyokan/statechannel/internal/chain"
	"github.com/kyokan/statechannel/internal/chantypes"
	"github.com/kyokan/statechannel/internal/errs"
	"github.com/kyokan/statechannel/pkg/xkey"
)

// Deps are the collaborators every validate call needs: the chain reader
// for on-chain facts and predicate simulation, and the pluggable
// external validator from spec.md §4/§6.
type Deps struct {
	Reader    chain.Reader
	External  ExternalValidator
}

// OutboundResult is what ValidateOutbound returns on success.
type OutboundResult struct {
	Update          *chantypes.ChannelUpdate
	NextState       *chantypes.ChannelState
	Transfer        *chantypes.Transfer
	ActiveTransfers []*chantypes.Transfer
}

// InboundResult is what ValidateInbound returns on success. Update carries
// only the sender's signature (and, if the message was already
// double-signed, both) — internal/engine adds the local countersignature
// and persists.
type InboundResult struct {
	Update          *chantypes.ChannelUpdate
	NextState       *chantypes.ChannelState
	Transfer        *chantypes.Transfer
	ActiveTransfers []*chantypes.Transfer
}

// applied is the type-agnostic result every per-type apply function
// produces; ValidateOutbound/ValidateInbound wrap it into a ChannelUpdate.
type applied struct {
	nextState       *chantypes.ChannelState
	activeTransfers []*chantypes.Transfer
	transfer        *chantypes.Transfer
	assetID         common.Address
	balance         chantypes.Balance
	setupDetails    *chantypes.SetupDetails
	depositDetails  *chantypes.DepositDetails
	createDetails   *chantypes.CreateDetails
	resolveDetails  *chantypes.ResolveDetails
}

// ValidateOutbound validates a locally proposed set of parameters against
// prev/active and, on success, signs the resulting commitment with
// signer. prev is nil only for Setup.
func ValidateOutbound(deps Deps, signer *xkey.Account, prev *chantypes.ChannelState, active []*chantypes.Transfer, params Params) (*OutboundResult, error) {
	fromID := chantypes.Identifier(signer.Identifier())

	if err := checkOutboundPreconditions(prev, params, fromID); err != nil {
		return nil, err
	}
	if err := deps.External.ValidateOutbound(params, prev, active); err != nil {
		return nil, err
	}

	a, err := applyParams(deps.Reader, fromID, prev, active, params)
	if err != nil {
		return nil, err
	}

	toID := counterpartyID(a.nextState, fromID)
	update := &chantypes.ChannelUpdate{
		ChannelAddress: a.nextState.ChannelAddress,
		Nonce:          a.nextState.Nonce,
		Type:           params.Type(),
		FromIdentifier: fromID,
		ToIdentifier:   toID,
		Balance:        a.balance,
		AssetID:        a.assetID,
		SetupDetails:   a.setupDetails,
		DepositDetails: a.depositDetails,
		CreateDetails:  a.createDetails,
		ResolveDetails: a.resolveDetails,
	}

	sig, err := chain.Sign(signer, a.nextState)
	if err != nil {
		return nil, errs.FatalErr(nil, "sign commitment: %v", err)
	}
	assignSignature(update, a.nextState, fromID, sig)

	return &OutboundResult{
		Update:          update,
		NextState:       a.nextState,
		Transfer:        a.transfer,
		ActiveTransfers: a.activeTransfers,
	}, nil
}

// ValidateInbound validates a peer-supplied ChannelUpdate against
// prev/active, independently re-deriving the next state from the
// update's Details rather than trusting its Balance/AssetID/MerkleRoot
// fields, and verifies the sender's (and, if present, the
// countersigner's) signature against the re-derived commitment hash.
func ValidateInbound(deps Deps, prev *chantypes.ChannelState, active []*chantypes.Transfer, update *chantypes.ChannelUpdate) (*InboundResult, error) {
	if err := checkInboundPreconditions(prev, update); err != nil {
		return nil, err
	}

	params, err := paramsFromUpdate(update)
	if err != nil {
		return nil, err
	}
	if err := deps.External.ValidateInbound(update, prev, active); err != nil {
		return nil, err
	}

	a, err := applyParams(deps.Reader, update.FromIdentifier, prev, active, params)
	if err != nil {
		return nil, err
	}

	if a.nextState.ChannelAddress != update.ChannelAddress {
		return nil, errs.ValidationErr(map[string]interface{}{
			"expected": a.nextState.ChannelAddress.Hex(),
			"actual":   update.ChannelAddress.Hex(),
		}, "derived channel address does not match update")
	}

	if err := verifySignatures(a.nextState, update); err != nil {
		return nil, err
	}

	out := &chantypes.ChannelUpdate{
		ChannelAddress:  a.nextState.ChannelAddress,
		Nonce:           a.nextState.Nonce,
		Type:            update.Type,
		FromIdentifier:  update.FromIdentifier,
		ToIdentifier:    update.ToIdentifier,
		Balance:         a.balance,
		AssetID:         a.assetID,
		SetupDetails:    a.setupDetails,
		DepositDetails:  a.depositDetails,
		CreateDetails:   a.createDetails,
		ResolveDetails:  a.resolveDetails,
		AliceSignature:  update.AliceSignature,
		BobSignature:    update.BobSignature,
	}

	return &InboundResult{
		Update:          out,
		NextState:       a.nextState,
		Transfer:        a.transfer,
		ActiveTransfers: a.activeTransfers,
	}, nil
}

func checkOutboundPreconditions(prev *chantypes.ChannelState, params Params, fromID chantypes.Identifier) error {
	if params.Type() == chantypes.Setup {
		if prev != nil {
			return errs.ValidationErr(nil, "channel already exists")
		}
		return nil
	}
	if prev == nil {
		return errs.ValidationErr(nil, "channel does not exist")
	}
	if fromID != prev.AliceID && fromID != prev.BobID {
		return errs.ValidationErr(nil, "proposer is not a channel participant")
	}
	return nil
}

func checkInboundPreconditions(prev *chantypes.ChannelState, update *chantypes.ChannelUpdate) error {
	switch update.Type {
	case chantypes.Setup, chantypes.Deposit, chantypes.Create, chantypes.Resolve:
	default:
		return errs.ValidationErr(map[string]interface{}{"type": update.Type}, "unknown update type")
	}

	if update.Type == chantypes.Setup {
		if prev != nil {
			return errs.ValidationErr(nil, "channel already exists")
		}
		return nil
	}

	if prev == nil {
		return errs.ValidationErr(nil, "channel does not exist")
	}
	if update.ChannelAddress != prev.ChannelAddress {
		return errs.ValidationErr(nil, "update channel address does not match prior state")
	}
	if update.FromIdentifier != prev.AliceID && update.FromIdentifier != prev.BobID {
		return errs.ValidationErr(nil, "update sender is not a channel participant")
	}
	if update.Nonce != prev.Nonce+1 {
		return errs.ProtocolErr(map[string]interface{}{
			"expected": prev.Nonce + 1,
			"actual":   update.Nonce,
		}, "nonce out of sequence")
	}
	return nil
}

func applyParams(reader chain.Reader, fromID chantypes.Identifier, prev *chantypes.ChannelState, active []*chantypes.Transfer, params Params) (*applied, error) {
	switch p := params.(type) {
	case SetupParams:
		return applySetup(reader, fromID, p)
	case DepositParams:
		return applyDeposit(reader, prev, active, p)
	case CreateParams:
		return applyCreate(reader, prev, active, p, fromID)
	case ResolveParams:
		return applyResolve(reader, prev, active, p)
	default:
		return nil, errs.FatalErr(nil, "unknown params type %T", params)
	}
}

func counterpartyID(s *chantypes.ChannelState, fromID chantypes.Identifier) chantypes.Identifier {
	if fromID == s.AliceID {
		return s.BobID
	}
	return s.AliceID
}

// assignSignature signs into the slot matching fromID's role.
func assignSignature(update *chantypes.ChannelUpdate, s *chantypes.ChannelState, fromID chantypes.Identifier, sig xkey.Signature) {
	if fromID == s.AliceID {
		update.AliceSignature = sig.Bytes()
	} else {
		update.BobSignature = sig.Bytes()
	}
}

// verifySignatures requires the sender's slot to be populated and valid,
// and, if the other slot is also populated (a double-signed sync or
// restore message), verifies that one too.
func verifySignatures(s *chantypes.ChannelState, update *chantypes.ChannelUpdate) error {
	alicePub, err := xkey.PublicFromCompressedHex(string(s.AliceID))
	if err != nil {
		return errs.ValidationErr(nil, "invalid alice identifier: %v", err)
	}
	bobPub, err := xkey.PublicFromCompressedHex(string(s.BobID))
	if err != nil {
		return errs.ValidationErr(nil, "invalid bob identifier: %v", err)
	}

	senderIsAlice := update.FromIdentifier == s.AliceID
	senderSig, counterpartySig := update.AliceSignature, update.BobSignature
	senderPub, counterpartyPub := alicePub, bobPub
	if !senderIsAlice {
		senderSig, counterpartySig = update.BobSignature, update.AliceSignature
		senderPub, counterpartyPub = bobPub, alicePub
	}

	if len(senderSig) == 0 {
		return errs.FatalErr(nil, "sender signature missing")
	}
	ok, err := chain.Verify(senderPub, s, xkey.Signature(senderSig))
	if err != nil || !ok {
		return errs.FatalErr(nil, "sender signature invalid")
	}

	if len(counterpartySig) > 0 {
		ok, err := chain.Verify(counterpartyPub, s, xkey.Signature(counterpartySig))
		if err != nil || !ok {
			return errs.FatalErr(nil, "counterparty signature invalid")
		}
	}
	return nil
}

func identifierAddress(id chantypes.Identifier) (common.Address, error) {
	pub, err := xkey.PublicFromCompressedHex(string(id))
	if err != nil {
		return common.Address{}, err
	}
	return pub.Address(), nil
}

// ensureAsset returns the index of asset within state.AssetIDs, appending
// a zero entry (and extending every parallel array, preserving the
// invariant from spec.md §3) if the asset has never been transacted on
// this channel before.
func ensureAsset(state *chantypes.ChannelState, asset common.Address) int {
	if idx := state.AssetIndex(asset); idx >= 0 {
		return idx
	}
	state.AssetIDs = append(state.AssetIDs, asset)
	state.Balances = append(state.Balances, chantypes.ZeroBalance(state.AliceID, state.BobID))
	state.ProcessedDepositsA = append(state.ProcessedDepositsA, big.NewInt(0))
	state.ProcessedDepositsB = append(state.ProcessedDepositsB, big.NewInt(0))
	state.DefundNonces = append(state.DefundNonces, 0)
	return len(state.AssetIDs) - 1
}
