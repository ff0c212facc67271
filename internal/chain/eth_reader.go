package chain

import (
	"context"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/kyokan/statechannel/internal/chantypes"
	"github.com/kyokan/statechannel/internal/errs"
	"github.com/kyokan/statechannel/internal/logger"
)

var ethLog = logger.Logger.Named("chain")

// EthReader is the go-ethereum-backed Reader, grounded on the teacher's
// internal/eth/client.go (ethclient.Client wrapping a raw *rpc.Client) and
// internal/eth/chainsaw.go's pattern of parsing ABI fragments once at
// init. It calls contracts through bind.BoundContract rather than
// abigen-generated bindings, since no contract is deployed for this
// module to generate against. It has no retry of its own and no cache of
// its own; callers wrap it in a Retrier and, for the registry, a
// RegistryCache.
type EthReader struct {
	client *ethclient.Client
	log    *zap.SugaredLogger
}

func NewEthReader(client *ethclient.Client) *EthReader {
	return &EthReader{client: client, log: ethLog}
}

func packBalance(balance chantypes.Balance) ([]byte, error) {
	if balance.Amount[0] == nil || balance.Amount[1] == nil {
		return nil, errs.ValidationErr(nil, "balance amounts must be set")
	}
	out := make([]byte, 0, 64)
	out = append(out, math.PaddedBigBytes(balance.Amount[0], 32)...)
	out = append(out, math.PaddedBigBytes(balance.Amount[1], 32)...)
	return out, nil
}

func (r *EthReader) bound(address common.Address, contractABI abi.ABI) *bind.BoundContract {
	return bind.NewBoundContract(address, contractABI, r.client, r.client, r.client)
}

func (r *EthReader) call(contract *bind.BoundContract, method string, out *[]interface{}, args ...interface{}) error {
	if err := contract.Call(&bind.CallOpts{Context: context.Background()}, out, method, args...); err != nil {
		return errs.TransientErr(map[string]interface{}{"op": method}, "%s: %v", method, err)
	}
	return nil
}

func (r *EthReader) GetCode(address common.Address) ([]byte, error) {
	code, err := r.client.CodeAt(context.Background(), address, nil)
	if err != nil {
		return nil, errs.TransientErr(map[string]interface{}{"op": "getCode", "address": address.Hex()}, "getCode: %v", err)
	}
	return code, nil
}

func (r *EthReader) GetTotalDepositsAlice(channel, asset common.Address) (*big.Int, error) {
	var out []interface{}
	if err := r.call(r.bound(channel, channelABI), "totalDepositsAlice", &out, asset); err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

func (r *EthReader) GetTotalDepositsBob(channel, asset common.Address) (*big.Int, error) {
	var out []interface{}
	if err := r.call(r.bound(channel, channelABI), "totalDepositsBob", &out, asset); err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

func (r *EthReader) GetChannelAddress(alice, bob, factory common.Address) (common.Address, error) {
	var out []interface{}
	if err := r.call(r.bound(factory, channelFactoryABI), "getChannelAddress", &out, alice, bob); err != nil {
		return common.Address{}, err
	}
	return out[0].(common.Address), nil
}

func (r *EthReader) GetRegisteredTransferByName(name string, registry common.Address) (*RegisteredTransfer, error) {
	var out []interface{}
	if err := r.call(r.bound(registry, transferRegistryABI), "getTransferByName", &out, name); err != nil {
		return nil, err
	}
	return &RegisteredTransfer{
		Name:              name,
		DefinitionAddress: out[0].(common.Address),
		StateEncoding:     out[1].(string),
		ResolverEncoding:  out[2].(string),
	}, nil
}

func (r *EthReader) GetRegisteredTransferByDefinition(definition, registry common.Address) (*RegisteredTransfer, error) {
	var out []interface{}
	if err := r.call(r.bound(registry, transferRegistryABI), "getTransferByDefinition", &out, definition); err != nil {
		return nil, err
	}
	return &RegisteredTransfer{
		Name:              out[0].(string),
		DefinitionAddress: definition,
		StateEncoding:     out[1].(string),
		ResolverEncoding:  out[2].(string),
	}, nil
}

// GetRegisteredTransfers enumerates the registry via its TransferAdded log
// history, mirroring the teacher's chainsaw.go log-scan pattern
// (FilterUTXOContract + event-signature matching) rather than an on-chain
// enumeration method the registry contract does not expose.
func (r *EthReader) GetRegisteredTransfers(registry common.Address) ([]*RegisteredTransfer, error) {
	event, ok := transferRegistryABI.Events["TransferAdded"]
	if !ok {
		return nil, errs.FatalErr(nil, "transfer registry ABI missing TransferAdded event")
	}

	logs, err := r.client.FilterLogs(context.Background(), ethereum.FilterQuery{
		Addresses: []common.Address{registry},
		Topics:    [][]common.Hash{{event.ID}},
	})
	if err != nil {
		return nil, errs.TransientErr(map[string]interface{}{"op": "getRegisteredTransfers", "registry": registry.Hex()}, "filter TransferAdded: %v", err)
	}

	out := make([]*RegisteredTransfer, 0, len(logs))
	for _, lg := range logs {
		unpacked, err := transferRegistryABI.Unpack("TransferAdded", lg.Data)
		if err != nil {
			return nil, errs.TransientErr(nil, "unpack TransferAdded: %v", err)
		}
		out = append(out, &RegisteredTransfer{
			Name:              unpacked[0].(string),
			DefinitionAddress: common.BytesToAddress(lg.Topics[1].Bytes()),
			StateEncoding:     unpacked[1].(string),
			ResolverEncoding:  unpacked[2].(string),
		})
	}
	return out, nil
}

func (r *EthReader) Create(initialState []byte, balance chantypes.Balance, definition, registry common.Address) (bool, error) {
	packedBalance, err := packBalance(balance)
	if err != nil {
		return false, err
	}
	var out []interface{}
	if err := r.call(r.bound(definition, transferDefinitionABI), "create", &out, initialState, packedBalance); err != nil {
		return false, err
	}
	return out[0].(bool), nil
}

func (r *EthReader) Resolve(transferID chantypes.TransferID, definition common.Address, resolver []byte) (chantypes.Balance, error) {
	var out []interface{}
	if err := r.call(r.bound(definition, transferDefinitionABI), "resolve", &out, transferID[:], resolver); err != nil {
		return chantypes.Balance{}, err
	}
	return chantypes.Balance{
		Amount: [2]*big.Int{out[0].(*big.Int), out[1].(*big.Int)},
	}, nil
}

func (r *EthReader) GetChannelDispute(channel common.Address) (*ChannelDispute, bool, error) {
	var out []interface{}
	if err := r.call(r.bound(channel, channelABI), "getDispute", &out); err != nil {
		return nil, false, err
	}
	exists := out[4].(bool)
	if !exists {
		return nil, false, nil
	}
	return &ChannelDispute{
		ChannelAddress: channel,
		Nonce:          out[0].(uint64),
		MerkleRoot:     out[1].([32]byte),
		ConsensusHash:  out[2].([32]byte),
		Timeout:        out[3].(uint64),
	}, true, nil
}

func (r *EthReader) GetOnchainBalance(asset, holder common.Address) (*big.Int, error) {
	var out []interface{}
	if err := r.call(r.bound(asset, erc20ABI), "balanceOf", &out, holder); err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

func (r *EthReader) GetWithdrawalTransactionRecord(commitment [32]byte, channel common.Address) (bool, error) {
	var out []interface{}
	if err := r.call(r.bound(channel, channelABI), "withdrawalRecorded", &out, commitment); err != nil {
		return false, err
	}
	return out[0].(bool), nil
}
