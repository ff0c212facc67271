// Package pkg holds the engine's process-wide Config, grounded on the
// teacher's pkg.Config (a flat struct of dial targets and a signing
// key) but re-keyed from BTC chain-hash/pubkey fields to the EVM network
// context and protocol tunables the engine actually needs.
package pkg

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is every tunable internal/start.go's Start wires into the
// engine, store, chain client and p2p node. Flags and viper keys in
// cmd/statechannel bind to these fields one-to-one.
type Config struct {
	// Chain
	RPCURL                string
	ChainID               uint64
	ChannelFactoryAddress common.Address
	TransferRegistry      common.Address
	ChainRetries          int

	// Signing
	PrivateKeyHex         string
	IdentityPrivateKeyHex string

	// Storage
	DatabaseURL string

	// Transport
	P2PAddr        string
	P2PPort        string
	BootstrapPeers []string

	// RPC front door
	RPCAddr string
	RPCPort string

	// Protocol
	LockTTL time.Duration
}
