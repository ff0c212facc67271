package chantypes

import (
	"github.com/ethereum/go-ethereum/common"
)

// Transfer is a conditional transfer locked in-channel: an in-flight
// payment whose release depends on a programmable unlock predicate
// deployed on-chain as TransferDefinition.
type Transfer struct {
	TransferID            TransferID
	ChannelAddress        common.Address
	ChainID               uint64
	ChannelFactoryAddress common.Address

	Initiator Identifier
	Responder Identifier

	ChannelNonce uint64

	TransferDefinition common.Address
	TransferEncodings  [2]string // [stateEncoding, resolverEncoding]

	Balance         Balance
	AssetID         common.Address
	TransferTimeout uint64

	InitialStateHash [32]byte
	TransferState    []byte

	// Resolved is set by a resolve update, independently of whether
	// TransferResolver is empty: an empty resolver is a valid
	// cooperative-cancellation resolution, not an unresolved transfer.
	Resolved         bool
	TransferResolver []byte // meaningful only once Resolved

	Meta []byte

	InDispute bool
}

// Active reports whether the transfer has not yet been resolved.
func (t *Transfer) Active() bool {
	return !t.Resolved
}
