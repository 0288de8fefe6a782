package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	"github.com/roach88/relaymigrate/internal/domain"
)

var (
	ErrInsufficientAllowance = errors.New("transfer amount exceeds allowance")
	ErrInsufficientBalance   = errors.New("transfer amount exceeds balance")
)

// maxAllowance is treated as unlimited and never decremented, following the
// common ERC-20 convention.
var maxAllowance = new(uint256.Int).SetAllOne()

// Transfer is one successful pull transfer.
type Transfer struct {
	From   domain.Address
	To     domain.Address
	Amount *uint256.Int
}

// Ledger is an allowance-based token ledger.
type Ledger struct {
	mu         sync.Mutex
	symbol     domain.BalanceType
	balances   map[domain.Address]*uint256.Int
	allowances map[domain.Address]map[domain.Address]*uint256.Int
	transfers  []Transfer
	readErr    error
}

func NewLedger(symbol domain.BalanceType) *Ledger {
	return &Ledger{
		symbol:     symbol,
		balances:   make(map[domain.Address]*uint256.Int),
		allowances: make(map[domain.Address]map[domain.Address]*uint256.Int),
	}
}

// Tracked binds a spender view of the ledger to its symbol for the engine.
func (l *Ledger) Tracked(spender domain.Address) domain.TrackedLedger {
	return domain.TrackedLedger{Type: l.symbol, Ledger: l.Spender(spender)}
}

// Mint credits amount to account.
func (l *Ledger) Mint(account domain.Address, amount *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balanceLocked(account).Add(l.balanceLocked(account), amount)
}

// Approve sets the allowance owner grants spender.
func (l *Ledger) Approve(owner, spender domain.Address, amount *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.allowances[owner]
	if !ok {
		m = make(map[domain.Address]*uint256.Int)
		l.allowances[owner] = m
	}
	m[spender] = amount.Clone()
}

// ApproveUnlimited grants spender an allowance that is never decremented.
func (l *Ledger) ApproveUnlimited(owner, spender domain.Address) {
	l.Approve(owner, spender, maxAllowance)
}

// Revoke removes any allowance owner granted spender.
func (l *Ledger) Revoke(owner, spender domain.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.allowances[owner], spender)
}

// FailReads makes every BalanceOf call fail with err until cleared with nil.
func (l *Ledger) FailReads(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.readErr = err
}

// Balance returns the balance of account without going through the port.
func (l *Ledger) Balance(account domain.Address) *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balanceLocked(account).Clone()
}

// Transfers returns every successful pull transfer in order.
func (l *Ledger) Transfers() []Transfer {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Transfer, len(l.transfers))
	copy(out, l.transfers)
	return out
}

// BalanceOf reads the balance of account.
func (l *Ledger) BalanceOf(_ context.Context, account domain.Address) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.readErr != nil {
		return nil, l.readErr
	}
	return l.balanceLocked(account).Clone(), nil
}

// Spender returns a domain.Ledger view that pulls on behalf of spender.
// The engine's pull transfers are checked against the allowance granted to
// spender, which is the migrator's address.
func (l *Ledger) Spender(spender domain.Address) domain.Ledger {
	return &spenderView{ledger: l, spender: spender}
}

func (l *Ledger) pull(spender, from, to domain.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	allowance, ok := l.allowances[from][spender]
	if !ok || allowance.Lt(amount) {
		return fmt.Errorf("%s: %w", l.symbol, ErrInsufficientAllowance)
	}
	bal := l.balanceLocked(from)
	if bal.Lt(amount) {
		return fmt.Errorf("%s: %w", l.symbol, ErrInsufficientBalance)
	}

	if !allowance.Eq(maxAllowance) {
		allowance.Sub(allowance, amount)
	}
	bal.Sub(bal, amount)
	dst := l.balanceLocked(to)
	dst.Add(dst, amount)

	l.transfers = append(l.transfers, Transfer{From: from, To: to, Amount: amount.Clone()})
	return nil
}

func (l *Ledger) balanceLocked(account domain.Address) *uint256.Int {
	b, ok := l.balances[account]
	if !ok {
		b = new(uint256.Int)
		l.balances[account] = b
	}
	return b
}

type spenderView struct {
	ledger  *Ledger
	spender domain.Address
}

func (v *spenderView) BalanceOf(ctx context.Context, account domain.Address) (*uint256.Int, error) {
	return v.ledger.BalanceOf(ctx, account)
}

func (v *spenderView) PullTransfer(_ context.Context, from, to domain.Address, amount *uint256.Int) error {
	return v.ledger.pull(v.spender, from, to, amount)
}
