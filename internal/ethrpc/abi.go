package ethrpc

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const erc20JSON = `[
	{"type":"function","name":"balanceOf","stateMutability":"view",
	 "inputs":[{"name":"account","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"transferFrom","stateMutability":"nonpayable",
	 "inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]}
]`

const keyDirectoryJSON = `[
	{"type":"function","name":"currentKey","stateMutability":"view",
	 "inputs":[],
	 "outputs":[{"name":"","type":"address"}]}
]`

const factoryJSON = `[
	{"type":"function","name":"createAccount","stateMutability":"nonpayable",
	 "inputs":[{"name":"key","type":"address"}],
	 "outputs":[{"name":"wallet","type":"address"}]}
]`

var (
	erc20ABI        = mustParseABI(erc20JSON)
	keyDirectoryABI = mustParseABI(keyDirectoryJSON)
	factoryABI      = mustParseABI(factoryJSON)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic("ethrpc: invalid ABI: " + err.Error())
	}
	return parsed
}
