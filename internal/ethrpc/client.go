package ethrpc

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/roach88/relaymigrate/internal/domain"
)

// ErrReverted is returned when a transaction was mined with a failed status.
var ErrReverted = errors.New("transaction reverted")

// Backend is everything the write paths need from a node.
// *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Options configures Dial.
type Options struct {
	URL string

	// KeyHex is the hex-encoded secp256k1 private key that signs every
	// transaction. Its address is the migrator: the spender the source
	// entities authorize.
	KeyHex string

	// ChainID is queried from the node when zero.
	ChainID int64
}

// Client bundles a node connection with the signing key.
type Client struct {
	backend Backend
	auth    *bind.TransactOpts
	close   func()
}

// Dial connects to the node and prepares the signer.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	key, err := parseKey(opts.KeyHex)
	if err != nil {
		return nil, err
	}

	ec, err := ethclient.DialContext(ctx, opts.URL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", opts.URL, err)
	}

	chainID := big.NewInt(opts.ChainID)
	if opts.ChainID == 0 {
		chainID, err = ec.ChainID(ctx)
		if err != nil {
			ec.Close()
			return nil, fmt.Errorf("query chain id: %w", err)
		}
	}

	c, err := NewClient(ec, key, chainID)
	if err != nil {
		ec.Close()
		return nil, err
	}
	c.close = ec.Close
	return c, nil
}

// NewClient wraps an existing backend.
func NewClient(backend Backend, key *ecdsa.PrivateKey, chainID *big.Int) (*Client, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("create transactor: %w", err)
	}
	return &Client{backend: backend, auth: auth}, nil
}

// KeyFromEnv reads a hex private key from the environment variable name.
func KeyFromEnv(name string) (string, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return "", fmt.Errorf("environment variable %s is not set", name)
	}
	return v, nil
}

func parseKey(hex string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	return key, nil
}

// Close releases the node connection.
func (c *Client) Close() {
	if c.close != nil {
		c.close()
	}
}

// Signer returns the address that signs every transaction.
func (c *Client) Signer() domain.Address {
	return c.auth.From
}

// Code returns the contract-code inspector.
func (c *Client) Code() *CodeInspector {
	return NewCodeInspector(c.backend)
}

// KeyDirectory returns the key directory contract at addr.
func (c *Client) KeyDirectory(addr domain.Address) *KeyDirectory {
	return NewKeyDirectory(addr, c.backend)
}

// Factory returns the wallet factory at addr.
func (c *Client) Factory(addr domain.Address) *Factory {
	return &Factory{
		address:  addr,
		backend:  c.backend,
		contract: bind.NewBoundContract(addr, factoryABI, c.backend, c.backend, c.backend),
		auth:     c.auth,
	}
}

// Ledger returns the ERC-20 token at token, pulling on behalf of the signer.
func (c *Client) Ledger(token domain.Address) *Ledger {
	l := NewReadOnlyLedger(token, c.backend)
	l.backend = c.backend
	l.contract = bind.NewBoundContract(token, erc20ABI, c.backend, c.backend, c.backend)
	l.auth = c.auth
	return l
}

// transact sends method with args from auth, waits until it is mined and
// checks the receipt.
func transact(ctx context.Context, backend bind.DeployBackend, contract *bind.BoundContract, auth *bind.TransactOpts, method string, args ...any) (*types.Receipt, error) {
	opts := *auth
	opts.Context = ctx

	tx, err := contract.Transact(&opts, method, args...)
	if err != nil {
		return nil, fmt.Errorf("send %s: %w", method, err)
	}
	receipt, err := bind.WaitMined(ctx, backend, tx)
	if err != nil {
		return nil, fmt.Errorf("wait for %s %s: %w", method, tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%s %s: %w", method, tx.Hash().Hex(), ErrReverted)
	}
	return receipt, nil
}
