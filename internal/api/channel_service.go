package api

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/kyokan/statechannel/internal/chantypes"
	"github.com/kyokan/statechannel/internal/conv"
	"github.com/kyokan/statechannel/internal/engine"
	"github.com/kyokan/statechannel/internal/logger"
	"github.com/kyokan/statechannel/internal/store"
)

var csLog *zap.SugaredLogger

func init() {
	csLog = logger.Logger.Named("channel-service")
}

// ChannelService exposes the channel-lifecycle halves of the update
// protocol (setup, deposit) plus read access to channel state, grounded
// on the teacher's FundingService (Approve/Deposit over net/rpc).
type ChannelService struct {
	engine *engine.Engine
	store  store.Store
}

func NewChannelService(e *engine.Engine, s store.Store) *ChannelService {
	return &ChannelService{engine: e, store: s}
}

type SetupArgs struct {
	Bob                   string
	ChainID               uint64
	ChannelFactoryAddress string
	TransferRegistry      string
	Timeout               uint64
}

type SetupReply struct {
	ChannelAddress string
	Status         string
}

func (c *ChannelService) Setup(r *http.Request, args *SetupArgs, reply *SetupReply) error {
	csLog.Infow("received setup request", "bob", args.Bob)

	network := chantypes.NetworkContext{
		ChainID:               args.ChainID,
		ChannelFactoryAddress: common.HexToAddress(args.ChannelFactoryAddress),
		TransferRegistry:      common.HexToAddress(args.TransferRegistry),
	}

	state, err := c.engine.Setup(r.Context(), chantypes.Identifier(args.Bob), network, args.Timeout, nil)
	if err != nil {
		return err
	}

	reply.ChannelAddress = state.ChannelAddress.Hex()
	reply.Status = StatusOk
	csLog.Infow("processed setup request", "channel", reply.ChannelAddress)
	return nil
}

type DepositArgs struct {
	ChannelAddress string
	AssetID        string
}

type DepositReply struct {
	Balance0 string
	Balance1 string
	Status   string
}

func (c *ChannelService) Deposit(r *http.Request, args *DepositArgs, reply *DepositReply) error {
	channel := common.HexToAddress(args.ChannelAddress)
	asset := common.HexToAddress(args.AssetID)

	csLog.Infow("received deposit request", "channel", args.ChannelAddress, "asset", args.AssetID)

	state, err := c.engine.Deposit(r.Context(), channel, asset, nil)
	if err != nil {
		return err
	}

	for i, a := range state.AssetIDs {
		if a == asset {
			reply.Balance0 = state.Balances[i].Amount[0].String()
			reply.Balance1 = state.Balances[i].Amount[1].String()
			csLog.Infow("channel balance after deposit",
				"channel", args.ChannelAddress,
				"alice", conv.WeiToEther(state.Balances[i].Amount[0]).Text('f', 6),
				"bob", conv.WeiToEther(state.Balances[i].Amount[1]).Text('f', 6),
			)
			break
		}
	}
	reply.Status = StatusOk
	return nil
}

type GetChannelArgs struct {
	ChannelAddress string
}

type GetChannelReply struct {
	Nonce     uint64
	AssetIDs  []string
	InDispute bool
}

func (c *ChannelService) GetChannel(r *http.Request, args *GetChannelArgs, reply *GetChannelReply) error {
	state, err := c.store.GetChannelState(common.HexToAddress(args.ChannelAddress))
	if err != nil {
		return err
	}
	reply.Nonce = state.Nonce
	reply.InDispute = state.InDispute
	for _, a := range state.AssetIDs {
		reply.AssetIDs = append(reply.AssetIDs, a.Hex())
	}
	return nil
}
