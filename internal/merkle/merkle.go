// Package merkle computes the commitment to a channel's currently-active
// transfers: the root of the ordered hash set of their initial-state
// hashes (spec.md §3, §4.1.2). No teacher package covers a merkle tree;
// this is grounded on the teacher's own keccak usage
// (pkg/txout/txout.go's SigData, internal/eth/chainsaw.go's event-signature
// hashing) rather than on any particular merkle-tree library.
package merkle

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/crypto"
)

// Zero is the root of an empty transfer set.
var Zero [32]byte

// Root computes the merkle root over leaves, after sorting them so the
// root does not depend on insertion order (spec.md §3: "merkleRoot equals
// the root of the ordered hash set of all currently-active transfers").
// A single leaf's hash is promoted to the root unchanged; an empty set
// yields Zero.
func Root(leaves [][32]byte) [32]byte {
	if len(leaves) == 0 {
		return Zero
	}

	sorted := make([][32]byte, len(leaves))
	copy(sorted, leaves)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i][:], sorted[j][:]) < 0
	})

	level := sorted
	for len(level) > 1 {
		var next [][32]byte
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			next = append(next, hashPair(level[i], level[i+1]))
		}
		level = next
	}
	return level[0]
}

func hashPair(a, b [32]byte) [32]byte {
	var buf [64]byte
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	var out [32]byte
	copy(out[:], crypto.Keccak256(buf[:]))
	return out
}
