package validator

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kyokan/statechannel/internal/chantypes"
	"github.com/kyokan/statechannel/internal/errs"
)

// Params is implemented by the four per-operation parameter types a
// caller supplies to ValidateOutbound. The same types are reconstructed
// from an inbound ChannelUpdate's Details (paramsFromUpdate) so that both
// directions run through the identical apply* functions.
type Params interface {
	Type() chantypes.UpdateType
}

// SetupParams proposes the creation of a new channel (spec.md §4.1.2).
type SetupParams struct {
	Alice   chantypes.Identifier
	Bob     chantypes.Identifier
	Network chantypes.NetworkContext
	Timeout uint64
	Meta    []byte
}

func (SetupParams) Type() chantypes.UpdateType { return chantypes.Setup }

// DepositParams proposes crediting on-chain deposits observed for asset
// into the channel (spec.md §4.1.3). The caller supplies the asset; the
// validator reads the current on-chain totals itself rather than trusting
// caller-supplied amounts.
type DepositParams struct {
	AssetID common.Address
	Meta    []byte
}

func (DepositParams) Type() chantypes.UpdateType { return chantypes.Deposit }

// CreateParams proposes locking funds into a new conditional transfer
// (spec.md §4.1.4).
type CreateParams struct {
	TransferID           chantypes.TransferID
	AssetID              common.Address
	Amount               *big.Int
	TransferDefinition   common.Address
	TransferTimeout      uint64
	TransferInitialState []byte
	TransferEncodings    [2]string
	Meta                 []byte
}

func (CreateParams) Type() chantypes.UpdateType { return chantypes.Create }

// ResolveParams proposes resolving (settling or cancelling) an existing
// conditional transfer (spec.md §4.1.5). An empty Resolver is the
// cooperative-cancellation fast path; a non-empty Resolver is checked
// against the transfer's predicate contract.
type ResolveParams struct {
	TransferID chantypes.TransferID
	Resolver   []byte
	Meta       []byte
}

func (ResolveParams) Type() chantypes.UpdateType { return chantypes.Resolve }

// paramsFromUpdate reconstructs the Params an inbound update claims to
// carry, from its typed Details struct. ValidateInbound then re-derives
// the next state from these params rather than from the update's
// top-level Balance/AssetID/MerkleRoot fields, so a peer cannot smuggle
// a forged balance past signature verification.
func paramsFromUpdate(update *chantypes.ChannelUpdate) (Params, error) {
	switch update.Type {
	case chantypes.Setup:
		d := update.SetupDetails
		if d == nil {
			return nil, errs.ValidationErr(nil, "setup update missing details")
		}
		alice, bob := update.FromIdentifier, update.ToIdentifier
		return SetupParams{
			Alice:   alice,
			Bob:     bob,
			Network: d.Network,
			Timeout: d.Timeout,
			Meta:    d.Meta,
		}, nil
	case chantypes.Deposit:
		if update.DepositDetails == nil {
			return nil, errs.ValidationErr(nil, "deposit update missing details")
		}
		return DepositParams{
			AssetID: update.AssetID,
			Meta:    update.DepositDetails.Meta,
		}, nil
	case chantypes.Create:
		d := update.CreateDetails
		if d == nil {
			return nil, errs.ValidationErr(nil, "create update missing details")
		}
		amount := new(big.Int)
		for _, role := range [2]int{0, 1} {
			if d.Balance.To[role] == update.FromIdentifier {
				amount = d.Balance.Amount[role]
			}
		}
		return CreateParams{
			TransferID:           d.TransferID,
			AssetID:              update.AssetID,
			Amount:               amount,
			TransferDefinition:   d.TransferDefinition,
			TransferTimeout:      d.TransferTimeout,
			TransferInitialState: d.TransferInitialState,
			TransferEncodings:    d.TransferEncodings,
			Meta:                 d.Meta,
		}, nil
	case chantypes.Resolve:
		d := update.ResolveDetails
		if d == nil {
			return nil, errs.ValidationErr(nil, "resolve update missing details")
		}
		return ResolveParams{
			TransferID: d.TransferID,
			Resolver:   d.TransferResolver,
			Meta:       d.Meta,
		}, nil
	default:
		return nil, errs.ValidationErr(map[string]interface{}{"type": update.Type}, "unknown update type")
	}
}
