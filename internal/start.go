package internal

import (
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethclient "github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kyokan/statechannel/internal/api"
	"github.com/kyokan/statechannel/internal/chain"
	"github.com/kyokan/statechannel/internal/engine"
	"github.com/kyokan/statechannel/internal/events"
	"github.com/kyokan/statechannel/internal/logger"
	"github.com/kyokan/statechannel/internal/p2p"
	"github.com/kyokan/statechannel/internal/store"
	"github.com/kyokan/statechannel/internal/validator"
	"github.com/kyokan/statechannel/pkg"
	"github.com/kyokan/statechannel/pkg/xkey"
)

var log *zap.SugaredLogger

func init() {
	log = logger.Logger.Named("start")
}

// Start wires every component the engine needs and runs until the
// process is killed, grounded on the teacher's internal/start.go: parse
// flags into keys/clients, build the collaborator graph, launch each
// long-running subsystem on its own goroutine, and block.
func Start() {
	cfg := configFromFlags()

	signer, err := xkey.NewAccount(cfg.PrivateKeyHex)
	if err != nil {
		log.Panicw("invalid private key", "err", err.Error())
	}

	identity, err := xkey.NewAccount(cfg.IdentityPrivateKeyHex)
	if err != nil {
		log.Panicw("invalid identity key", "err", err.Error())
	}

	ethClient, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		log.Panicw("failed to dial RPC endpoint", "err", err.Error())
	}

	reader := chain.Reader(chain.NewRetrierWithRetries(chain.NewRegistryCache(chain.NewEthReader(ethClient)), cfg.ChainRetries))
	writer := chain.Writer(chain.NewEthWriter(ethClient, signer, chainIDBig(cfg.ChainID)))

	bus := events.NewBus()
	txQueue := chain.NewTxQueue(bus)
	queuedWriter := chain.NewQueuedWriter(writer, txQueue)

	db, err := store.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		log.Panicw("failed to open database connection", "err", err.Error())
	}
	if err := db.Connect(); err != nil {
		log.Panicw("failed to connect to the database", "err", err.Error())
	}

	peerBook := p2p.NewPeerBook()

	e := engine.New(engine.Config{
		Signer: signer,
		Store:  db,
		Deps: validator.Deps{
			Reader:   reader,
			External: validator.AllowAll{},
		},
		Events:         bus,
		RequestTimeout: cfg.LockTTL,
	})

	reactor := p2p.NewReactor(e)
	node, err := p2p.NewNode(reactor, cfg.P2PAddr, cfg.P2PPort, cfg.BootstrapPeers)
	if err != nil {
		log.Panicw("failed to create node", "err", err.Error())
	}
	e.SetMessenger(node)

	container := &api.ServiceContainer{
		ChannelService:  api.NewChannelService(e, db),
		TransferService: api.NewTransferService(e, db),
		OnChainService:  api.NewOnChainService(queuedWriter),
	}

	go reactor.Run()

	sweeper := engine.NewSweeper(e, 30*time.Second)
	go sweeper.Run()

	go func() {
		if err := api.Start(container, cfg.RPCAddr, cfg.RPCPort); err != nil {
			log.Panicw("failed to start RPC listener", "err", err.Error())
		}
	}()

	go func() {
		if err := node.Start(identity); err != nil {
			log.Panicw("failed to start node", "err", err.Error())
		}
	}()

	log.Info("started")

	select {}
}

func configFromFlags() *pkg.Config {
	chainID, err := strconv.ParseUint(stringFlag("chain-id"), 10, 64)
	if err != nil {
		log.Panicw("mal-formed chain id argument", "err", err.Error())
	}

	retries := chain.DefaultRetries
	if v := stringFlag("chain-retries"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Panicw("mal-formed chain-retries argument", "err", err.Error())
		}
		retries = n
	}

	lockTTL := 30 * time.Second
	if v := stringFlag("lock-ttl"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Panicw("mal-formed lock-ttl argument", "err", err.Error())
		}
		lockTTL = d
	}

	return &pkg.Config{
		RPCURL:                stringFlag("rpc-url"),
		ChainID:               chainID,
		ChannelFactoryAddress: addressFlag("channel-factory-address"),
		TransferRegistry:      addressFlag("transfer-registry-address"),
		ChainRetries:          retries,
		PrivateKeyHex:         stringFlag("private-key"),
		IdentityPrivateKeyHex: stringFlag("identity-private-key"),
		DatabaseURL:           stringFlag("database-url"),
		P2PAddr:               stringFlag("p2p-ip"),
		P2PPort:               stringFlag("p2p-port"),
		BootstrapPeers:        viper.GetStringSlice("bootstrap-peers"),
		RPCAddr:               stringFlag("rpc-ip"),
		RPCPort:               stringFlag("rpc-port"),
		LockTTL:               lockTTL,
	}
}

func stringFlag(name string) string {
	return viper.GetString(name)
}

func addressFlag(name string) common.Address {
	return common.HexToAddress(viper.GetString(name))
}

func chainIDBig(chainID uint64) *big.Int {
	return new(big.Int).SetUint64(chainID)
}
