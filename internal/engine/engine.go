package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/relaymigrate/internal/domain"
)

// StateStore persists engine state. Implemented by *store.Store.
//
// Every method must commit atomically: the engine updates its in-memory
// state only after the corresponding write has succeeded.
type StateStore interface {
	LoadSnapshot(ctx context.Context) (domain.Snapshot, error)
	AppendSources(ctx context.Context, start int, addrs []domain.Address) error
	AppendSuccessor(ctx context.Context, succ domain.Successor) error
	SaveProgress(ctx context.Context, p domain.Progress, tr *domain.Transition) error
	// WriteMigrationError reports false when a record with the same ID
	// already exists.
	WriteMigrationError(ctx context.Context, rec domain.MigrationError) (bool, error)
}

// Collaborators are the external systems the engine calls.
type Collaborators struct {
	Factory domain.Factory
	Keys    domain.KeyDirectory
	Code    domain.CodeInspector

	// Ledgers are migrated in this order for every pair.
	Ledgers []domain.TrackedLedger
}

func (c Collaborators) validate() error {
	if c.Factory == nil || c.Keys == nil || c.Code == nil {
		return errors.New("factory, key directory and code inspector are required")
	}
	if len(c.Ledgers) == 0 {
		return errors.New("at least one ledger is required")
	}
	seen := make(map[domain.BalanceType]bool, len(c.Ledgers))
	for i, l := range c.Ledgers {
		if l.Type == "" || l.Ledger == nil {
			return fmt.Errorf("ledger %d: type and ledger are required", i)
		}
		if seen[l.Type] {
			return fmt.Errorf("ledger %d: duplicate balance type %q", i, l.Type)
		}
		seen[l.Type] = true
	}
	return nil
}

// Engine is the phase-gated migration state machine.
//
// Thread-safety model: every exported method takes the engine lock for its
// whole duration, so calls are serialized and never interleave. There is
// no parallelism inside the engine.
//
// INVARIANTS:
//   - sources is append-only and registered mirrors it exactly
//   - successors[i] was provisioned for sources[i]; len(successors) <= len(sources)
//   - progress.Stage only ever advances by one step
//   - 0 <= progress.Cursor <= len(sources)
type Engine struct {
	mu sync.Mutex

	store     StateStore
	collab    Collaborators
	clock     *Clock
	callIDs   CallIDGenerator
	costs     CostSchedule
	observers []Observer

	admin      domain.Address
	sources    []domain.Address
	registered map[domain.Address]struct{}
	successors []domain.Successor
	progress   domain.Progress
}

// Option configures an Engine.
type Option func(*Engine)

// WithCostSchedule overrides DefaultCosts.
func WithCostSchedule(c CostSchedule) Option {
	return func(e *Engine) {
		e.costs = c
	}
}

// WithCallIDGenerator overrides the UUIDv7 call ID generator.
func WithCallIDGenerator(g CallIDGenerator) Option {
	return func(e *Engine) {
		e.callIDs = g
	}
}

// WithObserver registers an observer. May be given more than once.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observers = append(e.observers, o)
	}
}

// Open loads an engine from st.
//
// The store must already be initialized with an administrator. The loaded
// snapshot is checked against the engine invariants; a store that violates
// them is rejected rather than repaired.
func Open(ctx context.Context, st StateStore, collab Collaborators, opts ...Option) (*Engine, error) {
	if err := collab.validate(); err != nil {
		return nil, fmt.Errorf("open engine: %w", err)
	}

	snap, err := st.LoadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("open engine: %w", err)
	}

	e := &Engine{
		store:   st,
		collab:  collab,
		clock:   NewClockAt(snap.LastSeq),
		callIDs: UUIDv7Generator{},
		costs:   DefaultCosts,
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.costs.Validate(); err != nil {
		return nil, fmt.Errorf("open engine: %w", err)
	}

	if err := e.restore(snap); err != nil {
		return nil, fmt.Errorf("open engine: %w", err)
	}

	slog.Info("engine opened",
		"admin", e.admin.Hex(),
		"stage", e.progress.Stage.String(),
		"population", len(e.sources),
		"successors", len(e.successors),
		"cursor", e.progress.Cursor,
		"passes_completed", e.progress.PassesCompleted,
	)
	return e, nil
}

// restore installs snap after checking the engine invariants.
func (e *Engine) restore(snap domain.Snapshot) error {
	p := snap.Progress
	if !p.Stage.Valid() {
		return fmt.Errorf("corrupt state: invalid stage %d", p.Stage)
	}
	if len(snap.Successors) > len(snap.Sources) {
		return fmt.Errorf("corrupt state: %d successors for %d sources", len(snap.Successors), len(snap.Sources))
	}
	if p.Cursor < 0 || p.Cursor > len(snap.Sources) {
		return fmt.Errorf("corrupt state: cursor %d outside [0, %d]", p.Cursor, len(snap.Sources))
	}
	if p.Stage.Reached(domain.StageAwaitingApprovals) && len(snap.Successors) != len(snap.Sources) {
		return fmt.Errorf("corrupt state: deployment closed with %d of %d successors", len(snap.Successors), len(snap.Sources))
	}

	registered := make(map[domain.Address]struct{}, len(snap.Sources))
	for i, a := range snap.Sources {
		if _, dup := registered[a]; dup {
			return fmt.Errorf("corrupt state: source %s registered twice (index %d)", a.Hex(), i)
		}
		registered[a] = struct{}{}
	}
	for i, s := range snap.Successors {
		if s.Index != i {
			return fmt.Errorf("corrupt state: successor at position %d has index %d", i, s.Index)
		}
	}

	e.admin = snap.Admin
	e.sources = snap.Sources
	e.registered = registered
	e.successors = snap.Successors
	e.progress = p
	return nil
}

// requireAdmin guards the privileged surface.
func (e *Engine) requireAdmin(op string, caller domain.Address) error {
	if caller != e.admin {
		err := newError(op, ErrUnauthorized)
		err.Entity = caller
		return err
	}
	return nil
}

// advance moves the engine one stage forward and persists p with it.
// The transition is written in the same store transaction as p.
func (e *Engine) advance(ctx context.Context, callID string, to domain.Stage, p domain.Progress) error {
	from := e.progress.Stage
	if !from.CanAdvanceTo(to) {
		return fmt.Errorf("illegal stage transition %s -> %s", from, to)
	}

	tr := domain.Transition{
		Seq:    e.clock.Next(),
		CallID: callID,
		From:   from,
		To:     to,
	}
	p.Stage = to
	if err := e.store.SaveProgress(ctx, p, &tr); err != nil {
		return fmt.Errorf("advance to %s: %w", to, err)
	}
	e.progress = p

	slog.Info("stage advanced",
		"from", from.String(),
		"to", to.String(),
		"seq", tr.Seq,
		"call_id", callID,
	)
	for _, o := range e.observers {
		o.StageAdvanced(tr)
	}
	return nil
}

// Admin returns the administrator bound to this engine.
func (e *Engine) Admin() domain.Address {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.admin
}

// PopulationSize returns the number of registered source entities.
func (e *Engine) PopulationSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sources)
}

// SuccessorCount returns the number of successors provisioned so far.
func (e *Engine) SuccessorCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.successors)
}

// Pair returns the source at index i and its successor.
//
// Fails with ErrIndexOutOfRange when i is outside the registered population.
// For a registered source whose successor has not been provisioned yet the
// successor is the zero address.
func (e *Engine) Pair(i int) (domain.Pair, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if i < 0 || i >= len(e.sources) {
		err := newError("pair", ErrIndexOutOfRange)
		err.Index = i
		return domain.Pair{}, err
	}
	p := domain.Pair{Index: i, Source: e.sources[i]}
	if i < len(e.successors) {
		p.Successor = e.successors[i].Address
	}
	return p, nil
}

// Stage returns the current stage.
func (e *Engine) Stage() domain.Stage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progress.Stage
}

// Flags returns the five phase flags.
func (e *Engine) Flags() domain.Flags {
	return e.Stage().Flags()
}

// Cursor returns the index the next migration pass call resumes at.
func (e *Engine) Cursor() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progress.Cursor
}

// PassesCompleted returns how many full migration passes have finished.
func (e *Engine) PassesCompleted() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progress.PassesCompleted
}

// Ledgers returns the tracked balance types in migration order.
// The ledger set is fixed at Open, so no lock is needed.
func (e *Engine) Ledgers() []domain.BalanceType {
	out := make([]domain.BalanceType, len(e.collab.Ledgers))
	for i, l := range e.collab.Ledgers {
		out[i] = l.Type
	}
	return out
}

// Status is a point-in-time view of the engine for reporting.
type Status struct {
	Admin           string               `json:"admin"`
	Stage           string               `json:"stage"`
	Flags           domain.Flags         `json:"flags"`
	Population      int                  `json:"population"`
	Successors      int                  `json:"successors"`
	Cursor          int                  `json:"cursor"`
	PassesCompleted int                  `json:"passes_completed"`
	Ledgers         []domain.BalanceType `json:"ledgers"`
}

// Status returns a consistent snapshot of every view.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		Admin:           e.admin.Hex(),
		Stage:           e.progress.Stage.String(),
		Flags:           e.progress.Stage.Flags(),
		Population:      len(e.sources),
		Successors:      len(e.successors),
		Cursor:          e.progress.Cursor,
		PassesCompleted: e.progress.PassesCompleted,
		Ledgers:         e.Ledgers(),
	}
}
