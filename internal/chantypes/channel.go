package chantypes

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Balance is the ordered pair of per-asset amounts held by the two
// participants, always in [alice, bob] order regardless of who proposed
// the update that produced it.
type Balance struct {
	To     [2]Identifier
	Amount [2]*big.Int
}

func ZeroBalance(alice, bob Identifier) Balance {
	return Balance{
		To:     [2]Identifier{alice, bob},
		Amount: [2]*big.Int{big.NewInt(0), big.NewInt(0)},
	}
}

func (b Balance) Clone() Balance {
	return Balance{
		To:     b.To,
		Amount: [2]*big.Int{new(big.Int).Set(b.Amount[0]), new(big.Int).Set(b.Amount[1])},
	}
}

// Sum returns Amount[0] + Amount[1].
func (b Balance) Sum() *big.Int {
	return new(big.Int).Add(b.Amount[0], b.Amount[1])
}

// ChannelState is the authoritative off-chain record described in
// spec.md §3. Balances, ProcessedDepositsAlice/Bob and DefundNonces are
// parallel arrays indexed the same way as AssetIDs.
type ChannelState struct {
	ChannelAddress common.Address
	Alice          common.Address
	Bob            common.Address
	AliceID        Identifier
	BobID          Identifier
	Network        NetworkContext

	Nonce uint64

	AssetIDs            []common.Address
	Balances            []Balance
	ProcessedDepositsA  []*big.Int
	ProcessedDepositsB  []*big.Int
	DefundNonces        []uint64

	MerkleRoot   [32]byte
	LatestUpdate *ChannelUpdate
	Timeout      uint64
	InDispute    bool
}

// AssetIndex returns the index of asset in AssetIDs, or -1.
func (s *ChannelState) AssetIndex(asset common.Address) int {
	for i, a := range s.AssetIDs {
		if a == asset {
			return i
		}
	}
	return -1
}

// CheckInvariants verifies the parallel-array and dedup invariants from
// spec.md §3. It does not verify signatures or the merkle root — those are
// checked where the data needed to recompute them is available
// (internal/validator, internal/merkle).
func (s *ChannelState) CheckInvariants() error {
	n := len(s.AssetIDs)
	if len(s.Balances) != n || len(s.ProcessedDepositsA) != n ||
		len(s.ProcessedDepositsB) != n || len(s.DefundNonces) != n {
		return errMismatchedArrayLengths
	}
	seen := make(map[common.Address]bool, n)
	for _, a := range s.AssetIDs {
		if seen[a] {
			return errDuplicateAssetID
		}
		seen[a] = true
	}
	return nil
}

// Clone deep-copies the state so validators can derive a next state without
// mutating the one the caller loaded from the store.
func (s *ChannelState) Clone() *ChannelState {
	out := *s
	out.AssetIDs = append([]common.Address(nil), s.AssetIDs...)
	out.Balances = make([]Balance, len(s.Balances))
	for i, b := range s.Balances {
		out.Balances[i] = b.Clone()
	}
	out.ProcessedDepositsA = cloneBigSlice(s.ProcessedDepositsA)
	out.ProcessedDepositsB = cloneBigSlice(s.ProcessedDepositsB)
	out.DefundNonces = append([]uint64(nil), s.DefundNonces...)
	if s.LatestUpdate != nil {
		u := *s.LatestUpdate
		out.LatestUpdate = &u
	}
	return &out
}

func cloneBigSlice(in []*big.Int) []*big.Int {
	out := make([]*big.Int, len(in))
	for i, v := range in {
		out[i] = new(big.Int).Set(v)
	}
	return out
}
