package engine

import (
	"fmt"
	"math"
)

// Budget is the resource allowance of a single engine call.
//
// The deployment and migration loops check Remaining before each step and
// stop voluntarily, persisting their position, once it drops below the
// safety margin for one more step. Consume never fails: spending past the
// limit saturates at zero remaining.
type Budget interface {
	Remaining() uint64
	Consume(amount uint64)
}

// GasMeter is a Budget with a fixed limit.
//
// Unlike the limit itself, the used counter only grows. One meter is
// normally created per call and discarded afterwards.
type GasMeter struct {
	limit uint64
	used  uint64
}

// NewGasMeter creates a meter allowing limit units.
func NewGasMeter(limit uint64) *GasMeter {
	return &GasMeter{limit: limit}
}

// UnlimitedGas creates a meter that never runs low.
func UnlimitedGas() *GasMeter {
	return NewGasMeter(math.MaxUint64)
}

// Remaining returns the units left before the limit.
func (m *GasMeter) Remaining() uint64 {
	if m.used >= m.limit {
		return 0
	}
	return m.limit - m.used
}

// Consume records amount as spent, saturating at the maximum counter value.
func (m *GasMeter) Consume(amount uint64) {
	if m.used > math.MaxUint64-amount {
		m.used = math.MaxUint64
		return
	}
	m.used += amount
}

// Used returns the units spent so far.
func (m *GasMeter) Used() uint64 {
	return m.used
}

// Limit returns the configured limit.
func (m *GasMeter) Limit() uint64 {
	return m.limit
}

// CostSchedule prices each kind of work the engine performs.
//
// The defaults approximate on-chain gas for the corresponding calls; the
// absolute values matter less than their ratios, which decide how many
// steps fit in a given budget.
type CostSchedule struct {
	Provision    uint64 // one factory call
	KeyRead      uint64 // one key directory read
	BalanceRead  uint64 // one ledger balance query
	PullTransfer uint64 // one pull transfer attempt
	Bookkeeping  uint64 // per-step state updates
}

// DefaultCosts is used unless WithCostSchedule overrides it.
var DefaultCosts = CostSchedule{
	Provision:    250_000,
	KeyRead:      5_000,
	BalanceRead:  5_000,
	PullTransfer: 60_000,
	Bookkeeping:  25_000,
}

// Validate rejects schedules in which some step is free. A free step would
// let a loop run without ever approaching its margin.
func (c CostSchedule) Validate() error {
	if c.Provision == 0 || c.BalanceRead == 0 || c.PullTransfer == 0 || c.Bookkeeping == 0 {
		return fmt.Errorf("cost schedule: provision, balanceRead, pullTransfer and bookkeeping must be non-zero: %+v", c)
	}
	return nil
}

// DeployMargin is the budget one more provisioning step needs.
func (c CostSchedule) DeployMargin() uint64 {
	return c.Provision + c.Bookkeeping
}

// MigrationMargin is the budget the heaviest migration step needs: a balance
// read and a pull attempt per ledger, plus bookkeeping.
func (c CostSchedule) MigrationMargin(ledgers int) uint64 {
	return uint64(ledgers)*(c.BalanceRead+c.PullTransfer) + c.Bookkeeping
}
