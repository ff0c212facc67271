package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kyokan/statechannel/internal"
	"github.com/kyokan/statechannel/internal/logger"
)

var configFile string

var rootCmd *cobra.Command

var log *zap.SugaredLogger

func init() {
	log = logger.Logger.Named("cli")

	cobra.OnInitialize(initConfig)

	rootCmd = &cobra.Command{
		Use:   "statechannel",
		Short: "runs a two-party off-chain state channel engine over an EVM chain",
		Run: func(cmd *cobra.Command, args []string) {
			internal.Start()
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file")
	rootCmd.PersistentFlags().String("rpc-url", "", "URL to a running Ethereum RPC node")
	rootCmd.PersistentFlags().String("channel-factory-address", "", "address of the channel factory contract")
	rootCmd.PersistentFlags().String("transfer-registry-address", "", "address of the transfer registry contract")
	rootCmd.PersistentFlags().String("chain-id", "", "target chain ID")
	rootCmd.PersistentFlags().String("private-key", "", "this node's channel-signing private key")
	rootCmd.PersistentFlags().String("identity-private-key", "", "this node's long-term p2p identity private key")
	rootCmd.PersistentFlags().String("database-url", "", "postgres:// connection string")
	rootCmd.PersistentFlags().String("rpc-ip", "127.0.0.1", "IP address to listen for JSON-RPC requests on")
	rootCmd.PersistentFlags().String("rpc-port", "8080", "port to listen for JSON-RPC requests on")
	rootCmd.PersistentFlags().String("p2p-ip", "0.0.0.0", "IP address to listen for p2p connections on")
	rootCmd.PersistentFlags().String("p2p-port", "9735", "port to listen for p2p connections on")
	rootCmd.PersistentFlags().StringSlice("bootstrap-peers", make([]string, 0), "initial set of peers to bootstrap from")
	rootCmd.PersistentFlags().String("lock-ttl", "30s", "per-channel lock / protocol round-trip timeout")
	rootCmd.PersistentFlags().String("chain-retries", "5", "bounded retry count for chain reads")

	for _, name := range []string{
		"rpc-url", "channel-factory-address", "transfer-registry-address", "chain-id",
		"private-key", "identity-private-key", "database-url",
		"rpc-ip", "rpc-port", "p2p-ip", "p2p-port", "bootstrap-peers",
		"lock-ttl", "chain-retries",
	} {
		viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}

	viper.SetDefault("rpc-ip", "127.0.0.1")
	viper.SetDefault("rpc-port", "8080")
	viper.SetDefault("p2p-ip", "0.0.0.0")
	viper.SetDefault("p2p-port", "9735")
	viper.SetDefault("lock-ttl", "30s")
	viper.SetDefault("chain-retries", "5")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func initConfig() {
	if configFile == "" {
		log.Info("no config file argument found")
		return
	}

	log.Infow("reading in config", "configFile", configFile)

	viper.SetConfigFile(configFile)

	if err := viper.ReadInConfig(); err != nil {
		log.Panicw("failed to read in config file", "err", err.Error())
	}
}
