package testutil

import (
	"sort"
	"sync"

	"github.com/roach88/relaymigrate/internal/domain"
)

// AddressBook maps addresses to human-readable names for traces.
type AddressBook struct {
	mu     sync.RWMutex
	names  map[domain.Address]string
	byName map[string]domain.Address
}

// NewAddressBook returns an empty book.
func NewAddressBook() *AddressBook {
	return &AddressBook{
		names:  make(map[domain.Address]string),
		byName: make(map[string]domain.Address),
	}
}

// Add records name for addr. A later Add for the same address wins.
func (b *AddressBook) Add(name string, addr domain.Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.names[addr] = name
	b.byName[name] = addr
}

// Name returns the recorded name of addr, "zero" for the zero address, or
// the checksummed hex form.
func (b *AddressBook) Name(addr domain.Address) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n, ok := b.names[addr]; ok {
		return n
	}
	if addr == domain.ZeroAddress {
		return "zero"
	}
	return addr.Hex()
}

// Lookup returns the address recorded under name.
func (b *AddressBook) Lookup(name string) (domain.Address, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	a, ok := b.byName[name]
	return a, ok
}

// Names returns every recorded name in sorted order.
func (b *AddressBook) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.byName))
	for n := range b.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
