package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Minimal ABI fragments for the contracts EthReader talks to. The teacher
// generates full bindings with abigen into pkg/contracts (see
// cmd/extract_abi.go); this module has no deployed contract to generate
// bindings against, so EthReader parses hand-written fragments with
// accounts/abi and drives them through bind.BoundContract directly,
// exactly the call shape abigen's own generated code produces.
const channelFactoryABIJSON = `[
	{"type":"function","name":"getChannelAddress","stateMutability":"view",
	 "inputs":[{"name":"alice","type":"address"},{"name":"bob","type":"address"}],
	 "outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"deploy","stateMutability":"nonpayable",
	 "inputs":[{"name":"alice","type":"address"},{"name":"bob","type":"address"}],
	 "outputs":[]}
]`

const channelABIJSON = `[
	{"type":"function","name":"totalDepositsAlice","stateMutability":"view",
	 "inputs":[{"name":"asset","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"totalDepositsBob","stateMutability":"view",
	 "inputs":[{"name":"asset","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"deposit","stateMutability":"nonpayable",
	 "inputs":[{"name":"asset","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"dispute","stateMutability":"nonpayable",
	 "inputs":[{"name":"stateHash","type":"bytes32"},{"name":"nonce","type":"uint64"},{"name":"sig","type":"bytes"}],
	 "outputs":[]},
	{"type":"function","name":"getDispute","stateMutability":"view",
	 "inputs":[],"outputs":[
	   {"name":"nonce","type":"uint64"},{"name":"merkleRoot","type":"bytes32"},
	   {"name":"consensusHash","type":"bytes32"},{"name":"timeout","type":"uint64"},{"name":"exists","type":"bool"}]},
	{"type":"function","name":"withdraw","stateMutability":"nonpayable",
	 "inputs":[{"name":"commitment","type":"bytes32"},{"name":"aliceSig","type":"bytes"},{"name":"bobSig","type":"bytes"}],
	 "outputs":[]},
	{"type":"function","name":"withdrawalRecorded","stateMutability":"view",
	 "inputs":[{"name":"commitment","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}]}
]`

const transferRegistryABIJSON = `[
	{"type":"function","name":"getTransferByName","stateMutability":"view",
	 "inputs":[{"name":"name","type":"string"}],
	 "outputs":[{"name":"definition","type":"address"},{"name":"stateEncoding","type":"string"},{"name":"resolverEncoding","type":"string"}]},
	{"type":"function","name":"getTransferByDefinition","stateMutability":"view",
	 "inputs":[{"name":"definition","type":"address"}],
	 "outputs":[{"name":"name","type":"string"},{"name":"stateEncoding","type":"string"},{"name":"resolverEncoding","type":"string"}]},
	{"type":"event","name":"TransferAdded","inputs":[
	   {"name":"name","type":"string","indexed":false},
	   {"name":"definition","type":"address","indexed":true},
	   {"name":"stateEncoding","type":"string","indexed":false},
	   {"name":"resolverEncoding","type":"string","indexed":false}]}
]`

const transferDefinitionABIJSON = `[
	{"type":"function","name":"create","stateMutability":"view",
	 "inputs":[{"name":"initialState","type":"bytes"},{"name":"balance","type":"bytes"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"resolve","stateMutability":"view",
	 "inputs":[{"name":"initialState","type":"bytes"},{"name":"resolver","type":"bytes"}],
	 "outputs":[{"name":"toAlice","type":"uint256"},{"name":"toBob","type":"uint256"}]}
]`

const erc20ABIJSON = `[
	{"type":"function","name":"balanceOf","stateMutability":"view",
	 "inputs":[{"name":"holder","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"approve","stateMutability":"nonpayable",
	 "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		// the ABI fragments above are compile-time constants; a parse
		// failure here means the JSON itself is malformed.
		panic(err)
	}
	return parsed
}

var (
	channelFactoryABI    = mustParseABI(channelFactoryABIJSON)
	channelABI           = mustParseABI(channelABIJSON)
	transferRegistryABI  = mustParseABI(transferRegistryABIJSON)
	transferDefinitionABI = mustParseABI(transferDefinitionABIJSON)
	erc20ABI             = mustParseABI(erc20ABIJSON)
)
