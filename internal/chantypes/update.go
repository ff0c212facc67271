package chantypes

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// UpdateType is one of the four update kinds a ChannelUpdate can carry.
type UpdateType string

const (
	Setup   UpdateType = "setup"
	Deposit UpdateType = "deposit"
	Create  UpdateType = "create"
	Resolve UpdateType = "resolve"
)

// ChannelUpdate is an in-flight or durably-signed state transition.
// Nonce is the nonce the state would have *after* applying it.
type ChannelUpdate struct {
	ChannelAddress  common.Address
	Nonce           uint64
	Type            UpdateType
	FromIdentifier  Identifier
	ToIdentifier    Identifier

	// Balance is the channel's post-update balance for AssetID — i.e.
	// next.Balances[next.AssetIndex(AssetID)] after this update was
	// applied, for every update type. It is never a delta, a locked
	// transfer amount, or a resolved distribution; those live on the
	// type-specific *Details struct (DepositDetails/CreateDetails/
	// ResolveDetails) instead. For Setup, AssetID is the zero address
	// and Balance is zero, since no asset has been deposited yet.
	Balance Balance
	AssetID common.Address

	SetupDetails   *SetupDetails   `json:",omitempty"`
	DepositDetails *DepositDetails `json:",omitempty"`
	CreateDetails  *CreateDetails  `json:",omitempty"`
	ResolveDetails *ResolveDetails `json:",omitempty"`

	AliceSignature []byte `json:",omitempty"`
	BobSignature   []byte `json:",omitempty"`
}

// DoubleSigned reports whether both participants have signed.
func (u *ChannelUpdate) DoubleSigned() bool {
	return len(u.AliceSignature) > 0 && len(u.BobSignature) > 0
}

// SingleSigned reports whether exactly one participant has signed.
func (u *ChannelUpdate) SingleSigned() bool {
	return (len(u.AliceSignature) > 0) != (len(u.BobSignature) > 0)
}

type SetupDetails struct {
	Network NetworkContext
	Timeout uint64
	Meta    []byte
}

type DepositDetails struct {
	TotalDepositsAlice *big.Int
	TotalDepositsBob   *big.Int
	Meta               []byte
}

type CreateDetails struct {
	TransferID             TransferID
	Balance                Balance
	TransferDefinition     common.Address
	TransferTimeout        uint64
	TransferInitialState   []byte
	TransferEncodings      [2]string
	MerkleRoot             [32]byte
	Meta                   []byte
}

type ResolveDetails struct {
	TransferID         TransferID
	TransferDefinition common.Address
	TransferResolver   []byte
	MerkleRoot         [32]byte
	Meta               []byte
}
