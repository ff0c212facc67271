package chantypes

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// WithdrawCommitment is signed by both participants to authorize a
// cooperative on-chain withdrawal. It uses the same hash-and-sign
// discipline as a channel commitment (see internal/chain/commitment.go).
type WithdrawCommitment struct {
	ChannelAddress common.Address
	Alice          common.Address
	Bob            common.Address
	Recipient      common.Address
	AssetID        common.Address
	Amount         *big.Int
	Nonce          uint64
	CallTo         common.Address
	CallData       []byte

	AliceSignature []byte `json:",omitempty"`
	BobSignature   []byte `json:",omitempty"`
}
