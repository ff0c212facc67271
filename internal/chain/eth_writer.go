package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/kyokan/statechannel/internal/chantypes"
	"github.com/kyokan/statechannel/internal/errs"
	"github.com/kyokan/statechannel/pkg/xkey"
)

// EthWriter submits on-chain writes signed by a single account, grounded
// on the teacher's internal/wallet/key_manager.go (bind.TransactOpts via
// a keyed transactor) and internal/eth/client.go (contract method calls
// through bind). It is always used behind a QueuedWriter so the account's
// nonce is never raced.
type EthWriter struct {
	client  *ethclient.Client
	account *xkey.Account
	chainID *big.Int
}

func NewEthWriter(client *ethclient.Client, account *xkey.Account, chainID *big.Int) *EthWriter {
	return &EthWriter{client: client, account: account, chainID: chainID}
}

func (w *EthWriter) transact(gasLimit uint64) (*bind.TransactOpts, error) {
	opts, err := w.account.Transactor(w.chainID, gasLimit)
	if err != nil {
		return nil, errs.FatalErr(nil, "build transactor: %v", err)
	}
	return opts, nil
}

func (w *EthWriter) submit(contract *bind.BoundContract, gasLimit uint64, method string, args ...interface{}) (common.Hash, error) {
	opts, err := w.transact(gasLimit)
	if err != nil {
		return common.Hash{}, err
	}
	tx, err := contract.Transact(opts, method, args...)
	if err != nil {
		return common.Hash{}, errs.TransientErr(map[string]interface{}{"op": method}, "submit %s: %v", method, err)
	}
	return tx.Hash(), nil
}

func (w *EthWriter) Dispute(channel common.Address, state *chantypes.ChannelState, sig []byte) (common.Hash, error) {
	bound := bind.NewBoundContract(channel, channelABI, w.client, w.client, w.client)
	hash := HashState(state)
	return w.submit(bound, 0, "dispute", hash, state.Nonce, sig)
}

func (w *EthWriter) Deploy(channel common.Address, alice, bob common.Address) (common.Hash, error) {
	bound := bind.NewBoundContract(channel, channelFactoryABI, w.client, w.client, w.client)
	return w.submit(bound, 0, "deploy", alice, bob)
}

func (w *EthWriter) Deposit(channel common.Address, asset common.Address, amount *big.Int) (common.Hash, error) {
	bound := bind.NewBoundContract(channel, channelABI, w.client, w.client, w.client)
	return w.submit(bound, 0, "deposit", asset, amount)
}

func (w *EthWriter) Withdraw(commitment *chantypes.WithdrawCommitment) (common.Hash, error) {
	bound := bind.NewBoundContract(commitment.ChannelAddress, channelABI, w.client, w.client, w.client)
	digest := HashWithdrawCommitment(commitment)
	return w.submit(bound, 0, "withdraw", digest, commitment.AliceSignature, commitment.BobSignature)
}

func (w *EthWriter) Approve(spender common.Address, asset common.Address, amount *big.Int) (common.Hash, error) {
	bound := bind.NewBoundContract(asset, erc20ABI, w.client, w.client, w.client)
	return w.submit(bound, 0, "approve", spender, amount)
}
