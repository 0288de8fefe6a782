// Package domain defines the value types shared by the migration engine and
// its store.
//
// Addresses are go-ethereum addresses and balances are 256-bit unsigned
// integers, matching the ledgers the engine migrates between. The package
// also holds the phase lattice (Stage), the audit records written during a
// migration, and the narrow ports through which the engine reaches its
// external collaborators: the successor factory, the key directory, the
// balance ledgers and the code inspector used to validate registrations.
//
// Nothing in this package performs I/O.
package domain
