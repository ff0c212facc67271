package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kyokan/statechannel/internal/chantypes"
)

// RegisteredTransfer describes one entry from the on-chain transfer
// registry: a named transfer definition (e.g. "HashLock", "Withdraw")
// together with the contract address implementing its create/resolve
// predicates and its ABI encodings.
type RegisteredTransfer struct {
	Name              string
	DefinitionAddress common.Address
	StateEncoding     string
	ResolverEncoding  string
}

// ChannelDispute mirrors the on-chain dispute record raised by
// getChannelDispute; nil (via the ok bool on Reader.GetChannelDispute)
// means the channel has never been disputed.
type ChannelDispute struct {
	ChannelAddress common.Address
	Nonce          uint64
	MerkleRoot     [32]byte
	ConsensusHash  [32]byte
	Timeout        uint64
}

// Reader is the boundary the validator and engine use for every on-chain
// fact, per spec.md §4.5. Implementations (EthReader, Retrier) may block
// and must be safe for concurrent use across channels.
type Reader interface {
	GetCode(address common.Address) ([]byte, error)
	GetTotalDepositsAlice(channel common.Address, asset common.Address) (*big.Int, error)
	GetTotalDepositsBob(channel common.Address, asset common.Address) (*big.Int, error)
	GetChannelAddress(alice, bob, factory common.Address) (common.Address, error)
	GetRegisteredTransferByName(name string, registry common.Address) (*RegisteredTransfer, error)
	GetRegisteredTransferByDefinition(definition common.Address, registry common.Address) (*RegisteredTransfer, error)
	GetRegisteredTransfers(registry common.Address) ([]*RegisteredTransfer, error)
	Create(initialState []byte, balance chantypes.Balance, definition common.Address, registry common.Address) (bool, error)
	Resolve(transferID chantypes.TransferID, definition common.Address, resolver []byte) (chantypes.Balance, error)
	GetChannelDispute(channel common.Address) (*ChannelDispute, bool, error)
	GetOnchainBalance(asset common.Address, holder common.Address) (*big.Int, error)
	GetWithdrawalTransactionRecord(commitment [32]byte, channel common.Address) (bool, error)
}

// Writer is the on-chain write surface consumed by TxQueue. Every method
// submits a transaction and returns its hash; mining/failure is observed
// asynchronously via events, not by blocking here.
type Writer interface {
	Dispute(channel common.Address, state *chantypes.ChannelState, sig []byte) (common.Hash, error)
	Deploy(channel common.Address, alice, bob common.Address) (common.Hash, error)
	Deposit(channel common.Address, asset common.Address, amount *big.Int) (common.Hash, error)
	Withdraw(commitment *chantypes.WithdrawCommitment) (common.Hash, error)
	Approve(spender common.Address, asset common.Address, amount *big.Int) (common.Hash, error)
}
