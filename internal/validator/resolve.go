package validator

import (
	"github.com/kyokan/statechannel/internal/chain"
	"github.com/kyokan/statechannel/internal/chantypes"
	"github.com/kyokan/statechannel/internal/errs"
)

// applyResolve settles or cooperatively cancels an existing active
// transfer (spec.md §4.1.5). An empty Resolver returns the locked
// balance to whoever created the transfer without consulting the chain;
// a non-empty Resolver is passed to the transfer definition's on-chain
// (or simulated) resolve function, and the result must sum to exactly
// the amount that was locked — the predicate may redistribute funds
// between the two participants, but it may never mint or burn value.
func applyResolve(reader chain.Reader, prev *chantypes.ChannelState, active []*chantypes.Transfer, p ResolveParams) (*applied, error) {
	var transfer *chantypes.Transfer
	var transferIdx int
	for i, t := range active {
		if t.TransferID == p.TransferID && t.Active() {
			transfer = t
			transferIdx = i
			break
		}
	}
	if transfer == nil {
		return nil, errs.ValidationErr(map[string]interface{}{"transferId": p.TransferID}, "no active transfer with this id")
	}

	var distribution chantypes.Balance
	if len(p.Resolver) == 0 {
		distribution = transfer.Balance.Clone()
	} else {
		resolved, err := reader.Resolve(p.TransferID, transfer.TransferDefinition, p.Resolver)
		if err != nil {
			return nil, errs.Wrap(errs.Transient, map[string]interface{}{"op": "Resolve"}, err)
		}
		if resolved.Sum().Cmp(transfer.Balance.Sum()) != 0 {
			return nil, errs.ValidationErr(map[string]interface{}{
				"locked":   transfer.Balance.Sum().String(),
				"resolved": resolved.Sum().String(),
			}, "resolved balance does not conserve locked value")
		}
		distribution = resolved
	}

	next := prev.Clone()
	idx := next.AssetIndex(transfer.AssetID)
	if idx < 0 {
		return nil, errs.FatalErr(map[string]interface{}{"asset": transfer.AssetID.Hex()}, "transfer asset no longer tracked on channel")
	}

	// distribution is always in [alice, bob] order (chantypes.Balance's
	// invariant), so it credits back directly regardless of which
	// participant initiated the transfer.
	next.Balances[idx].Amount[0].Add(next.Balances[idx].Amount[0], distribution.Amount[0])
	next.Balances[idx].Amount[1].Add(next.Balances[idx].Amount[1], distribution.Amount[1])
	next.Nonce = prev.Nonce + 1

	resolvedTransfer := *transfer
	resolvedTransfer.Resolved = true
	resolvedTransfer.TransferResolver = p.Resolver
	resolvedTransfer.Meta = p.Meta

	nextActive := append([]*chantypes.Transfer(nil), active[:transferIdx]...)
	nextActive = append(nextActive, active[transferIdx+1:]...)
	next.MerkleRoot = activeMerkleRoot(nextActive)

	if err := next.CheckInvariants(); err != nil {
		return nil, errs.FatalErr(nil, "invariant violation: %v", err)
	}

	return &applied{
		nextState:       next,
		activeTransfers: nextActive,
		transfer:        &resolvedTransfer,
		assetID:         transfer.AssetID,
		balance:         next.Balances[idx].Clone(),
		resolveDetails: &chantypes.ResolveDetails{
			TransferID:         p.TransferID,
			TransferDefinition: transfer.TransferDefinition,
			TransferResolver:   p.Resolver,
			MerkleRoot:         next.MerkleRoot,
			Meta:               p.Meta,
		},
	}, nil
}
