package validator

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kyokan/statechannel/internal/chantypes"
)

// NormalizeChannelState merges duplicate asset-id entries in state's
// parallel arrays, per spec.md §3's edge case: asset ids are decoded into
// common.Address before ever reaching this package, which already
// lower-cases and checksums the value, so two entries that once differed
// only by casing in a wire message collapse into an exact duplicate by
// the time they arrive here. Rather than reject such a state outright,
// merge-on-load sums the balances and deposits and keeps the higher
// defund nonce, on the theory that both entries describe the same asset
// and the larger nonce is the more recent one.
//
// CheckInvariants rejects duplicates outright, so both engine load paths
// (loadForPropose, loadForInbound) call this on every channel state they
// read from the store before it ever reaches the validator, not just on
// state that predates this fix — a state already free of duplicates
// passes through unchanged.
func NormalizeChannelState(state *chantypes.ChannelState) *chantypes.ChannelState {
	index := make(map[common.Address]int, len(state.AssetIDs))
	out := state.Clone()
	out.AssetIDs = nil
	out.Balances = nil
	out.ProcessedDepositsA = nil
	out.ProcessedDepositsB = nil
	out.DefundNonces = nil

	for i, asset := range state.AssetIDs {
		if j, ok := index[asset]; ok {
			out.Balances[j].Amount[0].Add(out.Balances[j].Amount[0], state.Balances[i].Amount[0])
			out.Balances[j].Amount[1].Add(out.Balances[j].Amount[1], state.Balances[i].Amount[1])
			out.ProcessedDepositsA[j] = new(big.Int).Add(out.ProcessedDepositsA[j], state.ProcessedDepositsA[i])
			out.ProcessedDepositsB[j] = new(big.Int).Add(out.ProcessedDepositsB[j], state.ProcessedDepositsB[i])
			if state.DefundNonces[i] > out.DefundNonces[j] {
				out.DefundNonces[j] = state.DefundNonces[i]
			}
			continue
		}
		index[asset] = len(out.AssetIDs)
		out.AssetIDs = append(out.AssetIDs, asset)
		out.Balances = append(out.Balances, state.Balances[i].Clone())
		out.ProcessedDepositsA = append(out.ProcessedDepositsA, new(big.Int).Set(state.ProcessedDepositsA[i]))
		out.ProcessedDepositsB = append(out.ProcessedDepositsB, new(big.Int).Set(state.ProcessedDepositsB[i]))
		out.DefundNonces = append(out.DefundNonces, state.DefundNonces[i])
	}
	return out
}
