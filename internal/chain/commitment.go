// Package chain is the boundary the engine uses to read on-chain facts,
// simulate transfer predicates, and submit on-chain writes. This file
// holds the ABI-style encode/hash/sign discipline from spec.md §4.1.5,
// grounded on the teacher's channel/backend.go Sign/Verify methods (which
// build a flat byte buffer by hand rather than calling a generic ABI
// encoder) and pkg/txout/txout.go's SigData (keccak over a structured
// buffer).
package chain

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/kyokan/statechannel/internal/chantypes"
	"github.com/kyokan/statechannel/pkg/xkey"
)

// EncodeCore packs the "core" of a channel state: the channel address,
// the nonce, per asset (in AssetIDs order) the asset id, both balances,
// both processed-deposit totals and the defund nonce, then the merkle
// root, the timeout and the dispute flag. NetworkContext, LatestUpdate,
// and the participant addresses and identifiers (Alice, Bob, AliceID,
// BobID) are not encoded. The encoding is deterministic in AssetIDs
// order and does not depend on NetworkContext, satisfying the
// "signature commutativity" testable property.
func EncodeCore(s *chantypes.ChannelState) []byte {
	var buf []byte
	buf = append(buf, s.ChannelAddress.Bytes()...)
	buf = append(buf, uint64Bytes(s.Nonce)...)

	for i, asset := range s.AssetIDs {
		buf = append(buf, asset.Bytes()...)
		buf = append(buf, math.PaddedBigBytes(s.Balances[i].Amount[0], 32)...)
		buf = append(buf, math.PaddedBigBytes(s.Balances[i].Amount[1], 32)...)
		buf = append(buf, math.PaddedBigBytes(s.ProcessedDepositsA[i], 32)...)
		buf = append(buf, math.PaddedBigBytes(s.ProcessedDepositsB[i], 32)...)
		buf = append(buf, uint64Bytes(s.DefundNonces[i])...)
	}

	buf = append(buf, s.MerkleRoot[:]...)
	buf = append(buf, uint64Bytes(s.Timeout)...)
	buf = append(buf, boolByte(s.InDispute))
	return buf
}

// HashState computes H(S) = keccak(abi.encode(core(S))).
func HashState(s *chantypes.ChannelState) [32]byte {
	var out [32]byte
	copy(out[:], crypto.Keccak256(EncodeCore(s)))
	return out
}

// EncodeWithdrawCommitment mirrors EncodeCore for withdrawal commitments.
func EncodeWithdrawCommitment(w *chantypes.WithdrawCommitment) []byte {
	var buf []byte
	buf = append(buf, w.ChannelAddress.Bytes()...)
	buf = append(buf, w.Alice.Bytes()...)
	buf = append(buf, w.Bob.Bytes()...)
	buf = append(buf, w.Recipient.Bytes()...)
	buf = append(buf, w.AssetID.Bytes()...)
	buf = append(buf, math.PaddedBigBytes(w.Amount, 32)...)
	buf = append(buf, uint64Bytes(w.Nonce)...)
	buf = append(buf, w.CallTo.Bytes()...)
	buf = append(buf, w.CallData...)
	return buf
}

func HashWithdrawCommitment(w *chantypes.WithdrawCommitment) [32]byte {
	var out [32]byte
	copy(out[:], crypto.Keccak256(EncodeWithdrawCommitment(w)))
	return out
}

// Sign signs a channel state's commitment hash with acc.
func Sign(acc *xkey.Account, s *chantypes.ChannelState) (xkey.Signature, error) {
	return acc.SignDigest(HashState(s))
}

// Verify checks that sig is a valid signature over s's commitment hash by
// the holder of pub.
func Verify(pub *xkey.PublicKey, s *chantypes.ChannelState, sig xkey.Signature) (bool, error) {
	return xkey.VerifySignature(HashState(s), sig, pub)
}

func uint64Bytes(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
