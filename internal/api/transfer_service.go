package api

import (
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"github.com/kyokan/statechannel/internal/chantypes"
	"github.com/kyokan/statechannel/internal/conv"
	"github.com/kyokan/statechannel/internal/engine"
	"github.com/kyokan/statechannel/internal/logger"
	"github.com/kyokan/statechannel/internal/store"
	"github.com/kyokan/statechannel/internal/validator"
)

var tsLog *zap.SugaredLogger

func init() {
	tsLog = logger.Logger.Named("transfer-service")
}

// TransferService exposes create/resolve (spec.md §4.1.2's conditional
// transfer half) plus read access to active transfers, grounded on the
// teacher's SwapService (DoSwap over protocol.SwapHandler).
type TransferService struct {
	engine *engine.Engine
	store  store.Store
}

func NewTransferService(e *engine.Engine, s store.Store) *TransferService {
	return &TransferService{engine: e, store: s}
}

type CreateTransferArgs struct {
	ChannelAddress     string
	AssetID            string
	Amount             string
	TransferDefinition string
	TransferTimeout    uint64
	TransferState      string // hex-encoded
	StateEncoding      string
	ResolverEncoding   string
}

type CreateTransferReply struct {
	TransferID string
	Status     string
}

func (t *TransferService) CreateTransfer(r *http.Request, args *CreateTransferArgs, reply *CreateTransferReply) error {
	tsLog.Infow("received create-transfer request", "channel", args.ChannelAddress)

	amount, ok := new(big.Int).SetString(args.Amount, 10)
	if !ok {
		return errInvalidAmount(args.Amount)
	}

	transferState, err := hexutil.Decode(args.TransferState)
	if err != nil {
		return err
	}

	var transferID chantypes.TransferID
	rnd, err := randomTransferID()
	if err != nil {
		return err
	}
	transferID = rnd

	params := validator.CreateParams{
		TransferID:           transferID,
		AssetID:              common.HexToAddress(args.AssetID),
		Amount:               amount,
		TransferDefinition:   common.HexToAddress(args.TransferDefinition),
		TransferTimeout:      args.TransferTimeout,
		TransferInitialState: transferState,
		TransferEncodings:    [2]string{args.StateEncoding, args.ResolverEncoding},
	}

	_, err = t.engine.CreateTransfer(r.Context(), common.HexToAddress(args.ChannelAddress), params)
	if err != nil {
		return err
	}

	reply.TransferID = hexutil.Encode(transferID[:])
	reply.Status = StatusOk
	return nil
}

type ResolveTransferArgs struct {
	ChannelAddress string
	TransferID     string
	Resolver       string // hex-encoded, may be empty for cooperative cancellation
}

type ResolveTransferReply struct {
	Status string
}

func (t *TransferService) ResolveTransfer(r *http.Request, args *ResolveTransferArgs, reply *ResolveTransferReply) error {
	tsLog.Infow("received resolve-transfer request", "channel", args.ChannelAddress, "transfer", args.TransferID)

	transferID, err := conv.HexToBytes32(args.TransferID)
	if err != nil {
		return err
	}

	var resolver []byte
	if args.Resolver != "" {
		resolver, err = hexutil.Decode(args.Resolver)
		if err != nil {
			return err
		}
	}

	params := validator.ResolveParams{
		TransferID: chantypes.TransferID(transferID),
		Resolver:   resolver,
	}

	_, err = t.engine.ResolveTransfer(r.Context(), common.HexToAddress(args.ChannelAddress), params)
	if err != nil {
		return err
	}

	reply.Status = StatusOk
	return nil
}

type GetActiveTransfersArgs struct {
	ChannelAddress string
}

type GetActiveTransfersReply struct {
	TransferIDs []string
}

func (t *TransferService) GetActiveTransfers(r *http.Request, args *GetActiveTransfersArgs, reply *GetActiveTransfersReply) error {
	transfers, err := t.store.GetActiveTransfers(common.HexToAddress(args.ChannelAddress))
	if err != nil {
		return err
	}
	for _, tr := range transfers {
		reply.TransferIDs = append(reply.TransferIDs, hexutil.Encode(tr.TransferID[:]))
	}
	return nil
}
