package domain

// BalanceType names one tracked ledger (e.g. "DAI").
// The engine migrates every tracked balance type for every pair, in the
// order the ledgers were configured.
type BalanceType string

func (b BalanceType) String() string { return string(b) }
