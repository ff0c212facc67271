package api

import (
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"github.com/kyokan/statechannel/internal/chain"
	"github.com/kyokan/statechannel/internal/logger"
)

var ocLog *zap.SugaredLogger

func init() {
	ocLog = logger.Logger.Named("onchain-service")
}

// OnChainService exposes the chain.Writer write surface from spec.md §5's
// transaction queue (approve, deploy, deposit, withdraw), grounded
// directly on the teacher's FundingService (Approve/Deposit over
// net/rpc), re-keyed onto the channel's asset/deposit model instead of
// the teacher's single hardcoded ERC20.
type OnChainService struct {
	writer chain.Writer
}

func NewOnChainService(writer chain.Writer) *OnChainService {
	return &OnChainService{writer: writer}
}

type ApproveArgs struct {
	Spender string
	AssetID string
	Amount  string
}

type ApproveReply struct {
	TxHash string
	Status string
}

func (o *OnChainService) Approve(r *http.Request, args *ApproveArgs, reply *ApproveReply) error {
	ocLog.Infow("received approve request", "spender", args.Spender, "asset", args.AssetID, "amount", args.Amount)

	amount, ok := new(big.Int).SetString(args.Amount, 10)
	if !ok {
		return errInvalidAmount(args.Amount)
	}

	hash, err := o.writer.Approve(common.HexToAddress(args.Spender), common.HexToAddress(args.AssetID), amount)
	if err != nil {
		return err
	}

	reply.TxHash = hexutil.Encode(hash[:])
	reply.Status = StatusOk
	return nil
}

type DepositOnChainArgs struct {
	ChannelAddress string
	AssetID        string
	Amount         string
}

type DepositOnChainReply struct {
	TxHash string
	Status string
}

func (o *OnChainService) DepositOnChain(r *http.Request, args *DepositOnChainArgs, reply *DepositOnChainReply) error {
	ocLog.Infow("received on-chain deposit request", "channel", args.ChannelAddress, "asset", args.AssetID, "amount", args.Amount)

	amount, ok := new(big.Int).SetString(args.Amount, 10)
	if !ok {
		return errInvalidAmount(args.Amount)
	}

	hash, err := o.writer.Deposit(common.HexToAddress(args.ChannelAddress), common.HexToAddress(args.AssetID), amount)
	if err != nil {
		return err
	}

	reply.TxHash = hexutil.Encode(hash[:])
	reply.Status = StatusOk
	return nil
}

type DeployArgs struct {
	ChannelAddress string
	Alice          string
	Bob            string
}

type DeployReply struct {
	TxHash string
	Status string
}

func (o *OnChainService) Deploy(r *http.Request, args *DeployArgs, reply *DeployReply) error {
	ocLog.Infow("received deploy request", "channel", args.ChannelAddress)

	hash, err := o.writer.Deploy(common.HexToAddress(args.ChannelAddress), common.HexToAddress(args.Alice), common.HexToAddress(args.Bob))
	if err != nil {
		return err
	}

	reply.TxHash = hexutil.Encode(hash[:])
	reply.Status = StatusOk
	return nil
}
