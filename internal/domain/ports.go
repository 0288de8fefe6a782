package domain

import (
	"context"

	"github.com/holiman/uint256"
)

// Factory provisions successor entities.
// Provision either succeeds as a whole or fails with no partial effect.
type Factory interface {
	Provision(ctx context.Context, key Address) (Address, error)
}

// KeyDirectory returns the authorization key current at call time.
// The value may change between calls.
type KeyDirectory interface {
	CurrentKey(ctx context.Context) (Address, error)
}

// Ledger is one balance ledger.
//
// PullTransfer moves amount from one account to another on behalf of the
// holder. It depends on a prior authorization granted by the holder to the
// migrator. A non-nil error means the transfer did not happen; the engine
// treats it as a per-entity outcome, never as a reason to stop.
type Ledger interface {
	BalanceOf(ctx context.Context, account Address) (*uint256.Int, error)
	PullTransfer(ctx context.Context, from, to Address, amount *uint256.Int) error
}

// CodeInspector reports whether an address holds contract code.
type CodeInspector interface {
	IsContract(ctx context.Context, account Address) (bool, error)
}

// TrackedLedger binds a ledger to the balance type it carries.
type TrackedLedger struct {
	Type   BalanceType
	Ledger Ledger
}
