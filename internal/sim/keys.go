package sim

import (
	"context"
	"sync"

	"github.com/roach88/relaymigrate/internal/domain"
)

// KeyDirectory holds one authorization key that can be rotated at any time.
type KeyDirectory struct {
	mu    sync.Mutex
	key   domain.Address
	reads int
}

func NewKeyDirectory(key domain.Address) *KeyDirectory {
	return &KeyDirectory{key: key}
}

// CurrentKey implements domain.KeyDirectory.
func (d *KeyDirectory) CurrentKey(context.Context) (domain.Address, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reads++
	return d.key, nil
}

// Rotate replaces the current key.
func (d *KeyDirectory) Rotate(key domain.Address) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.key = key
}

// Reads returns how many times CurrentKey was called.
func (d *KeyDirectory) Reads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reads
}
