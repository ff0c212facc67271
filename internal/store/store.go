// Package store is the persistence boundary from spec.md §6: channel
// state, transfers, withdrawal commitments and transaction lifecycle
// records. The interfaces here are what internal/validator and
// internal/engine depend on; PostgresStore is the only implementation,
// grounded on the teacher's internal/db package.
package store

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/kyokan/statechannel/internal/chantypes"
)

// TransferFilter narrows GetTransfers; zero-value fields are unconstrained.
type TransferFilter struct {
	Channel common.Address
	Active  *bool
}

type Channels interface {
	GetChannelState(channel common.Address) (*chantypes.ChannelState, error)
	GetChannelStateByParticipants(aliceID, bobID chantypes.Identifier, chainID uint64) (*chantypes.ChannelState, error)
	SaveChannelState(state *chantypes.ChannelState, transfer *chantypes.Transfer) error
	SaveChannelStateAndTransfers(state *chantypes.ChannelState, active []*chantypes.Transfer) error
}

type Transfers interface {
	GetActiveTransfers(channel common.Address) ([]*chantypes.Transfer, error)
	GetTransferState(id chantypes.TransferID) (*chantypes.Transfer, error)
	GetTransfers(filter TransferFilter) ([]*chantypes.Transfer, error)
}

type Withdrawals interface {
	SaveWithdrawalCommitment(transferID chantypes.TransferID, commitment *chantypes.WithdrawCommitment) error
	GetWithdrawalCommitment(transferID chantypes.TransferID) (*chantypes.WithdrawCommitment, error)
	GetWithdrawalCommitmentByTransactionHash(hash common.Hash) (*chantypes.WithdrawCommitment, error)
}

// TransactionRecord is the persisted lifecycle record for one on-chain
// submission, surfaced alongside internal/events for anything that needs
// it after the fact (a restart, an audit query) rather than only as a
// live subscription.
type TransactionRecord struct {
	TxHash    common.Hash
	Signer    common.Address
	Operation string
	Status    string // "submitted", "mined", "failed"
	Error     string
	GasUsed   uint64
}

type Transactions interface {
	SaveTransactionResponse(rec *TransactionRecord) error
	SaveTransactionReceipt(txHash common.Hash, gasUsed uint64) error
	SaveTransactionFailure(txHash common.Hash, reason string) error
}

// Store composes the four sub-stores. PostgresStore implements it, backed
// by a single *sql.DB so SaveChannelState etc. can share one transaction
// per call.
type Store interface {
	Channels
	Transfers
	Withdrawals
	Transactions
}
