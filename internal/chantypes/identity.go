// Package chantypes is the data model from the channel protocol: channel
// state, updates, transfers and their supporting value types. It has no
// behavior of its own — validation and application live in
// internal/validator, persistence in internal/store.
package chantypes

import (
	"github.com/ethereum/go-ethereum/common"
)

// ID is a channel address: the deterministic derivation of
// (alice, bob, channelFactory).
type ID = common.Address

// TransferID is the 32-byte random identifier assigned at transfer
// creation.
type TransferID [32]byte

// Identifier is a participant's long-term public key in textual form.
type Identifier string

// NetworkContext pins a channel to one chain and one deployment of the
// channel factory / transfer registry contracts.
type NetworkContext struct {
	ChainID               uint64
	ChannelFactoryAddress common.Address
	TransferRegistry      common.Address
}

// Role distinguishes the two fixed channel participants.
type Role uint8

const (
	RoleAlice Role = iota
	RoleBob
)

func (r Role) String() string {
	if r == RoleAlice {
		return "alice"
	}
	return "bob"
}
