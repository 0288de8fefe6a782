package domain

import "fmt"

// Stage is the position of the engine in its phase lattice.
//
// The five phase flags of the engine form a chain in which every flag
// depends on the one before it:
//
//	registrationClosed -> deploymentClosed -> migrationStarted
//	    -> migrationFirstPassDone -> migrationClosed
//
// A chain of monotone booleans is equivalent to a single ordinal, so the
// engine stores one Stage and derives the flags from it. Stages only ever
// advance by exactly one step; see CanAdvanceTo.
type Stage uint8

const (
	// StageRegistering accepts new source entities. No flag is set.
	StageRegistering Stage = iota

	// StageDeploying provisions successors. registrationClosed is set.
	StageDeploying

	// StageAwaitingApprovals waits for source entities to authorize the
	// migrator on the ledgers. deploymentClosed is set.
	StageAwaitingApprovals

	// StageMigrating runs migration passes. migrationStarted is set.
	StageMigrating

	// StageFirstPassDone has completed at least one full pass and may be
	// closed. Further passes are still allowed.
	StageFirstPassDone

	// StageClosed is terminal. Only views remain meaningful.
	StageClosed
)

var stageNames = [...]string{
	StageRegistering:       "registering",
	StageDeploying:         "deploying",
	StageAwaitingApprovals: "awaiting-approvals",
	StageMigrating:         "migrating",
	StageFirstPassDone:     "first-pass-done",
	StageClosed:            "closed",
}

func (s Stage) String() string {
	if !s.Valid() {
		return fmt.Sprintf("stage(%d)", uint8(s))
	}
	return stageNames[s]
}

// Valid reports whether s is a defined stage.
func (s Stage) Valid() bool {
	return s <= StageClosed
}

// ParseStage is the inverse of Stage.String.
func ParseStage(name string) (Stage, error) {
	for i, n := range stageNames {
		if n == name {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q", name)
}

// CanAdvanceTo reports whether to is the immediate successor of s.
// Skipping, repeating or reversing a stage is never allowed.
func (s Stage) CanAdvanceTo(to Stage) bool {
	return s.Valid() && to.Valid() && to == s+1
}

// Reached reports whether s is at or beyond target.
func (s Stage) Reached(target Stage) bool {
	return s >= target
}

// Flags expands s into the five phase flags.
func (s Stage) Flags() Flags {
	return Flags{
		RegistrationClosed:     s.Reached(StageDeploying),
		DeploymentClosed:       s.Reached(StageAwaitingApprovals),
		MigrationStarted:       s.Reached(StageMigrating),
		MigrationFirstPassDone: s.Reached(StageFirstPassDone),
		MigrationClosed:        s.Reached(StageClosed),
	}
}

// Flags is the boolean view of a Stage.
type Flags struct {
	RegistrationClosed     bool `json:"registration_closed"`
	DeploymentClosed       bool `json:"deployment_closed"`
	MigrationStarted       bool `json:"migration_started"`
	MigrationFirstPassDone bool `json:"migration_first_pass_done"`
	MigrationClosed        bool `json:"migration_closed"`
}
