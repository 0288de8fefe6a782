package sim

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/roach88/relaymigrate/internal/domain"
)

// AddressFor derives a stable address from a human-readable name.
// Scenario files refer to entities by name; this gives each one an address.
func AddressFor(name string) domain.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte(name)))
}

// Chain tracks which addresses hold contract code.
type Chain struct {
	mu   sync.Mutex
	code map[domain.Address]struct{}
}

// NewChain returns a chain with no contracts.
func NewChain() *Chain {
	return &Chain{code: make(map[domain.Address]struct{})}
}

// Deploy marks addrs as contract accounts.
func (c *Chain) Deploy(addrs ...domain.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, a := range addrs {
		c.code[a] = struct{}{}
	}
}

// IsContract implements domain.CodeInspector.
func (c *Chain) IsContract(_ context.Context, account domain.Address) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.code[account]
	return ok, nil
}
