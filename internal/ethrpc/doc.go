// Package ethrpc implements the engine's collaborator ports against a live
// EVM node over JSON-RPC.
//
// Reads (contract code, token balances, the current authorization key) are
// eth_call requests. Writes (provisioning a successor wallet, pulling a
// token balance) are signed transactions that are waited on until mined; a
// mined transaction with a failed receipt is reported as ErrReverted.
//
// Every adapter takes the narrowest go-ethereum backend interface it needs,
// so read paths can be exercised without a node.
package ethrpc
