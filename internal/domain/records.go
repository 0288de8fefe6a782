package domain

import "github.com/holiman/uint256"

// Pair is a source entity and the successor provisioned for it.
type Pair struct {
	Index     int     `json:"index"`
	Source    Address `json:"source"`
	Successor Address `json:"successor"`
}

// Successor records one provisioning step of the deployment loop.
type Successor struct {
	Index   int
	Address Address
	Key     Address // authorization key the factory was called with
	Seq     int64
	CallID  string
}

// MigrationError records a pull transfer that did not succeed.
// It is the only externally observable signal of a per-entity failure.
type MigrationError struct {
	ID          string
	Seq         int64
	CallID      string
	Pass        int
	Index       int
	BalanceType BalanceType
	Source      Address
	Successor   Address
	Amount      *uint256.Int
	Reason      string
}

// Transition records one stage advance.
type Transition struct {
	Seq    int64
	CallID string
	From   Stage
	To     Stage
}

// Progress is the mutable process state of the engine.
type Progress struct {
	Stage           Stage
	Cursor          int
	PassesCompleted int
}

// Snapshot is the full persisted state of an engine.
type Snapshot struct {
	Admin      Address
	Sources    []Address
	Successors []Successor
	Progress   Progress
	LastSeq    int64
}
