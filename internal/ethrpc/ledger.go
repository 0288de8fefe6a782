package ethrpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/holiman/uint256"

	"github.com/roach88/relaymigrate/internal/domain"
)

// ErrReadOnly is returned by PullTransfer on a ledger built without a signer.
var ErrReadOnly = errors.New("ledger is read-only")

// Ledger implements domain.Ledger for an ERC-20 token.
type Ledger struct {
	token  domain.Address
	caller ethereum.ContractCaller

	backend  bind.DeployBackend
	contract *bind.BoundContract
	auth     *bind.TransactOpts
}

// NewReadOnlyLedger returns a ledger that can read balances only.
func NewReadOnlyLedger(token domain.Address, caller ethereum.ContractCaller) *Ledger {
	return &Ledger{token: token, caller: caller}
}

// BalanceOf calls balanceOf(account) at the latest block.
func (l *Ledger) BalanceOf(ctx context.Context, account domain.Address) (*uint256.Int, error) {
	data, err := erc20ABI.Pack("balanceOf", account)
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}
	token := l.token
	out, err := l.caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("balanceOf %s on %s: %w", account.Hex(), l.token.Hex(), err)
	}

	values, err := erc20ABI.Unpack("balanceOf", out)
	if err != nil {
		return nil, fmt.Errorf("unpack balanceOf: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unpack balanceOf: got %d values", len(values))
	}
	b, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unpack balanceOf: unexpected %T", values[0])
	}
	amount, overflow := uint256.FromBig(b)
	if overflow {
		return nil, fmt.Errorf("balanceOf %s: value overflows 256 bits", account.Hex())
	}
	return amount, nil
}

// PullTransfer sends transferFrom(from, to, amount) signed by the migrator
// and waits for it to be mined. Any failure, including a revert at gas
// estimation, is returned as an error for the engine to record.
func (l *Ledger) PullTransfer(ctx context.Context, from, to domain.Address, amount *uint256.Int) error {
	if l.contract == nil || l.auth == nil {
		return ErrReadOnly
	}
	_, err := transact(ctx, l.backend, l.contract, l.auth, "transferFrom", from, to, amount.ToBig())
	return err
}
