package ethrpc

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"

	"github.com/roach88/relaymigrate/internal/domain"
)

// KeyDirectory implements domain.KeyDirectory by calling currentKey().
type KeyDirectory struct {
	contract *bind.BoundContract
}

// NewKeyDirectory returns the key directory at addr.
func NewKeyDirectory(addr domain.Address, caller bind.ContractCaller) *KeyDirectory {
	return &KeyDirectory{contract: bind.NewBoundContract(addr, keyDirectoryABI, caller, nil, nil)}
}

// CurrentKey returns the authorization key new successors are bound to.
func (d *KeyDirectory) CurrentKey(ctx context.Context) (domain.Address, error) {
	var out []any
	if err := d.contract.Call(&bind.CallOpts{Context: ctx}, &out, "currentKey"); err != nil {
		return domain.Address{}, fmt.Errorf("currentKey: %w", err)
	}
	return *abi.ConvertType(out[0], new(domain.Address)).(*domain.Address), nil
}
