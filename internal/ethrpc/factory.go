package ethrpc

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"

	"github.com/roach88/relaymigrate/internal/domain"
)

// Factory implements domain.Factory with createAccount(key).
type Factory struct {
	address  domain.Address
	backend  Backend
	contract *bind.BoundContract
	auth     *bind.TransactOpts
}

// Provision simulates createAccount to learn the wallet address, sends it,
// and checks that code exists at that address once mined.
func (f *Factory) Provision(ctx context.Context, key domain.Address) (domain.Address, error) {
	var out []any
	err := f.contract.Call(&bind.CallOpts{Context: ctx, From: f.auth.From}, &out, "createAccount", key)
	if err != nil {
		return domain.Address{}, fmt.Errorf("simulate createAccount: %w", err)
	}
	wallet := *abi.ConvertType(out[0], new(domain.Address)).(*domain.Address)

	if _, err := transact(ctx, f.backend, f.contract, f.auth, "createAccount", key); err != nil {
		return domain.Address{}, err
	}

	code, err := f.backend.CodeAt(ctx, wallet, nil)
	if err != nil {
		return domain.Address{}, fmt.Errorf("verify wallet %s: %w", wallet.Hex(), err)
	}
	if len(code) == 0 {
		return domain.Address{}, fmt.Errorf("wallet %s has no code after createAccount on %s", wallet.Hex(), f.address.Hex())
	}
	return wallet, nil
}
