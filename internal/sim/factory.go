package sim

import (
	"context"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/roach88/relaymigrate/internal/domain"
)

// ErrZeroKey is returned when a successor is requested for the zero key.
var ErrZeroKey = errors.New("authorization key is the zero address")

// Factory provisions successor wallets at CREATE-derived addresses.
type Factory struct {
	mu       sync.Mutex
	chain    *Chain
	address  domain.Address
	nonce    uint64
	keys     map[domain.Address]domain.Address
	failNext error
}

// NewFactory returns a factory deployed at address whose wallets are
// registered as contracts on chain.
func NewFactory(chain *Chain, address domain.Address) *Factory {
	return &Factory{
		chain:   chain,
		address: address,
		keys:    make(map[domain.Address]domain.Address),
	}
}

// Provision implements domain.Factory.
func (f *Factory) Provision(_ context.Context, key domain.Address) (domain.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failNext; err != nil {
		f.failNext = nil
		return domain.Address{}, err
	}
	if key == domain.ZeroAddress {
		return domain.Address{}, ErrZeroKey
	}

	wallet := crypto.CreateAddress(f.address, f.nonce)
	f.nonce++
	f.keys[wallet] = key
	f.chain.Deploy(wallet)
	return wallet, nil
}

// FailNext makes the next Provision call fail with err and have no effect.
func (f *Factory) FailNext(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext = err
}

// KeyOf returns the authorization key a wallet was provisioned with.
func (f *Factory) KeyOf(wallet domain.Address) (domain.Address, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k, ok := f.keys[wallet]
	return k, ok
}

// Provisioned returns the number of wallets created so far.
func (f *Factory) Provisioned() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int(f.nonce)
}
