// Package testutil holds deterministic stand-ins used by the scenario
// harness and by tests: a resettable step clock, a sequential call ID
// generator and an address book that renders addresses by name.
package testutil
