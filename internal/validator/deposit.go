package validator

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kyokan/statechannel/internal/chain"
	"github.com/kyokan/statechannel/internal/chantypes"
	"github.com/kyokan/statechannel/internal/errs"
)

// isDeployed reports whether the channel's multisig contract has been
// deployed on-chain yet. Before deployment, deposits arrive as plain
// token transfers to the (deterministically precomputed) channel address
// rather than as tracked per-participant contract deposits.
func isDeployed(reader chain.Reader, channel chantypes.ID) (bool, error) {
	code, err := reader.GetCode(channel)
	if err != nil {
		return false, errs.Wrap(errs.Transient, map[string]interface{}{"op": "GetCode"}, err)
	}
	return len(code) > 0, nil
}

// reconcileDeposit computes the balance each participant should be
// credited for asset, given what the chain now reports and what this
// channel has already processed (spec.md §4.1.3).
//
// Before the channel contract is deployed there is no per-participant
// deposit ledger on-chain to read — only the raw token balance held at
// the channel address — so every deposit observed pre-deployment is
// credited entirely to Bob. This is deliberate, not a placeholder: it
// mirrors the convention that Bob (the responder) fronts the channel's
// initial liquidity before Alice's setup proposal is even countersigned,
// and it must not be "corrected" to split credit once the contract
// exists, because processedDeposits for the asset is tracked as a single
// combined figure while the channel is undeployed.
func reconcileDeposit(reader chain.Reader, state *chantypes.ChannelState, idx int, asset common.Address) (creditA, creditB, newProcessedA, newProcessedB *big.Int, err error) {
	deployed, err := isDeployed(reader, state.ChannelAddress)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	if deployed {
		totalA, err := reader.GetTotalDepositsAlice(state.ChannelAddress, asset)
		if err != nil {
			return nil, nil, nil, nil, errs.Wrap(errs.Transient, map[string]interface{}{"op": "GetTotalDepositsAlice"}, err)
		}
		totalB, err := reader.GetTotalDepositsBob(state.ChannelAddress, asset)
		if err != nil {
			return nil, nil, nil, nil, errs.Wrap(errs.Transient, map[string]interface{}{"op": "GetTotalDepositsBob"}, err)
		}
		creditA = new(big.Int).Sub(totalA, state.ProcessedDepositsA[idx])
		creditB = new(big.Int).Sub(totalB, state.ProcessedDepositsB[idx])
		if creditA.Sign() < 0 || creditB.Sign() < 0 {
			return nil, nil, nil, nil, errs.FatalErr(map[string]interface{}{
				"processedAlice": state.ProcessedDepositsA[idx].String(),
				"totalAlice":     totalA.String(),
				"processedBob":   state.ProcessedDepositsB[idx].String(),
				"totalBob":       totalB.String(),
			}, "on-chain total deposits decreased")
		}
		return creditA, creditB, totalA, totalB, nil
	}

	totalOnchain, err := reader.GetOnchainBalance(asset, state.ChannelAddress)
	if err != nil {
		return nil, nil, nil, nil, errs.Wrap(errs.Transient, map[string]interface{}{"op": "GetOnchainBalance"}, err)
	}
	processed := new(big.Int).Add(state.ProcessedDepositsA[idx], state.ProcessedDepositsB[idx])
	delta := new(big.Int).Sub(totalOnchain, processed)
	if delta.Sign() < 0 {
		return nil, nil, nil, nil, errs.FatalErr(map[string]interface{}{
			"processed": processed.String(),
			"onchain":   totalOnchain.String(),
		}, "on-chain balance decreased before channel deployment")
	}
	creditA = big.NewInt(0)
	creditB = delta
	newProcessedA = new(big.Int).Set(state.ProcessedDepositsA[idx])
	newProcessedB = new(big.Int).Add(state.ProcessedDepositsB[idx], delta)
	return creditA, creditB, newProcessedA, newProcessedB, nil
}

// applyDeposit credits observed on-chain deposits for p.AssetID into the
// channel's off-chain balance for that asset, adding the asset to the
// channel's tracked set if it has never been deposited before.
func applyDeposit(reader chain.Reader, prev *chantypes.ChannelState, active []*chantypes.Transfer, p DepositParams) (*applied, error) {
	next := prev.Clone()
	idx := ensureAsset(next, p.AssetID)

	creditA, creditB, totalA, totalB, err := reconcileDeposit(reader, next, idx, p.AssetID)
	if err != nil {
		return nil, err
	}
	if creditA.Sign() == 0 && creditB.Sign() == 0 {
		return nil, errs.ValidationErr(map[string]interface{}{"asset": p.AssetID.Hex()}, "no new on-chain deposits to credit")
	}

	next.Balances[idx].Amount[0].Add(next.Balances[idx].Amount[0], creditA)
	next.Balances[idx].Amount[1].Add(next.Balances[idx].Amount[1], creditB)
	next.ProcessedDepositsA[idx] = totalA
	next.ProcessedDepositsB[idx] = totalB
	next.Nonce = prev.Nonce + 1

	if err := next.CheckInvariants(); err != nil {
		return nil, errs.FatalErr(nil, "invariant violation: %v", err)
	}

	return &applied{
		nextState:       next,
		activeTransfers: active,
		assetID:         p.AssetID,
		balance:         next.Balances[idx].Clone(),
		depositDetails: &chantypes.DepositDetails{
			TotalDepositsAlice: totalA,
			TotalDepositsBob:   totalB,
			Meta:               p.Meta,
		},
	}, nil
}
