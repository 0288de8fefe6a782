package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/relaymigrate/internal/domain"
	"github.com/roach88/relaymigrate/internal/engine"
	"github.com/roach88/relaymigrate/internal/sim"
	"github.com/roach88/relaymigrate/internal/store"
	"github.com/roach88/relaymigrate/internal/testutil"
)

// Well-known names in every scenario.
const (
	AdminName    = "admin"
	MigratorName = "migrator"
	FactoryName  = "factory"
	InitialKey   = "key-1"

	successorPrefix = "successor:"
)

// maxRepeats bounds an until: done step.
const maxRepeats = 1000

// Harness runs one scenario against a fresh engine and simulated chain.
type Harness struct {
	scenario *Scenario
	store    *store.Store
	engine   *engine.Engine
	chain    *sim.Chain
	factory  *sim.Factory
	keys     *sim.KeyDirectory
	ledgers  map[string]*sim.Ledger
	book     *testutil.AddressBook
	clock    *testutil.StepClock
	logger   *slog.Logger

	// notes collects observer output until the running step is traced.
	notes []string
}

// Run executes a scenario and returns the result.
//
// Each run uses a fresh in-memory database and deterministic call IDs,
// addresses and step numbers, so the trace is identical across runs.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	h, err := newHarness(ctx, scenario, st)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	for i, step := range scenario.Setup {
		if _, err := h.apply(ctx, step); err != nil {
			return nil, fmt.Errorf("setup step %d (%s): %w", i, step.Action, err)
		}
	}
	h.notes = nil

	for i, step := range scenario.Flow {
		h.executeFlowStep(ctx, i, step, result)
	}

	for _, msg := range EvaluateAssertions(ctx, h, result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(ctx context.Context, scenario *Scenario, st *store.Store) (*Harness, error) {
	h := &Harness{
		scenario: scenario,
		store:    st,
		chain:    sim.NewChain(),
		ledgers:  make(map[string]*sim.Ledger, len(scenario.Ledgers)),
		book:     testutil.NewAddressBook(),
		clock:    testutil.NewStepClock(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	admin := h.name(AdminName)
	migrator := h.name(MigratorName)
	h.factory = sim.NewFactory(h.chain, h.name(FactoryName))
	h.keys = sim.NewKeyDirectory(h.name(InitialKey))

	for _, e := range scenario.Entities {
		h.chain.Deploy(h.name(e))
	}

	tracked := make([]domain.TrackedLedger, 0, len(scenario.Ledgers))
	for _, sym := range scenario.Ledgers {
		l := sim.NewLedger(domain.BalanceType(sym))
		h.ledgers[sym] = l
		tracked = append(tracked, l.Tracked(migrator))
	}

	if err := st.Init(ctx, admin); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	eng, err := engine.Open(ctx, st, engine.Collaborators{
		Factory: h.factory,
		Keys:    h.keys,
		Code:    h.chain,
		Ledgers: tracked,
	},
		engine.WithCostSchedule(scenario.Schedule()),
		engine.WithCallIDGenerator(testutil.NewCallIDs(scenario.Name)),
		engine.WithObserver(h),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open engine: %w", err)
	}
	h.engine = eng
	return h, nil
}

// name resolves a scenario name to an address and records it for traces.
func (h *Harness) name(n string) domain.Address {
	if n == "zero" {
		return domain.ZeroAddress
	}
	if a, ok := h.book.Lookup(n); ok {
		return a
	}
	a := sim.AddressFor(n)
	h.book.Add(n, a)
	return a
}

// holder resolves an entity name or "successor:<entity>".
func (h *Harness) holder(n string) (domain.Address, error) {
	entity, ok := strings.CutPrefix(n, successorPrefix)
	if !ok {
		return h.name(n), nil
	}
	source := h.name(entity)
	for i := 0; i < h.engine.PopulationSize(); i++ {
		p, err := h.engine.Pair(i)
		if err != nil {
			return domain.Address{}, err
		}
		if p.Source == source {
			if p.Successor == domain.ZeroAddress {
				return domain.Address{}, fmt.Errorf("%s has no successor yet", entity)
			}
			return p.Successor, nil
		}
	}
	return domain.Address{}, fmt.Errorf("%s is not registered", entity)
}

// MigrationFailed implements engine.Observer.
func (h *Harness) MigrationFailed(rec domain.MigrationError) {
	h.notes = append(h.notes, fmt.Sprintf("! pass=%d index=%d %s %s->%s %s: %s",
		rec.Pass, rec.Index, rec.BalanceType,
		h.book.Name(rec.Source), h.book.Name(rec.Successor),
		domain.FormatAmount(rec.Amount), rec.Reason))
}

// StageAdvanced implements engine.Observer.
func (h *Harness) StageAdvanced(tr domain.Transition) {
	h.notes = append(h.notes, fmt.Sprintf("> %s -> %s", tr.From, tr.To))
}

// executeFlowStep runs one flow step, repeating it for until: done, and
// checks expect_error on every call.
func (h *Harness) executeFlowStep(ctx context.Context, i int, step Step, result *Result) {
	for n := 0; ; n++ {
		if n == maxRepeats {
			result.AddError(fmt.Sprintf("flow[%d] %s: not done after %d calls", i, step.Action, maxRepeats))
			return
		}

		out, err := h.apply(ctx, step)
		ev := TraceEvent{
			Step:    h.clock.Next(),
			Action:  step.Action,
			Detail:  h.detail(step),
			Outcome: out.text,
			Notes:   h.notes,
		}
		h.notes = nil
		if err != nil {
			ev.Outcome = "error " + errorLabel(err)
		}
		result.AddTrace(ev)

		if msg := checkExpectation(step, err); msg != "" {
			result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Action, msg))
		}
		h.logger.Debug("flow step completed",
			"step", ev.Step,
			"action", step.Action,
			"outcome", ev.Outcome,
		)

		if err != nil || step.Until == "" || out.done {
			return
		}
	}
}

// errorLabel is the error code of a call-aborting error, or
// ExpectInfrastructure for anything else.
func errorLabel(err error) string {
	if code := engine.CodeOf(err); code != "" {
		return string(code)
	}
	return ExpectInfrastructure
}

func checkExpectation(step Step, err error) string {
	switch {
	case err == nil && step.ExpectError != "":
		return fmt.Sprintf("expected error %s, got success", step.ExpectError)
	case err != nil && step.ExpectError == "":
		return fmt.Sprintf("unexpected error: %v", err)
	case err != nil && errorLabel(err) != step.ExpectError:
		return fmt.Sprintf("expected error %s, got %s (%v)", step.ExpectError, errorLabel(err), err)
	}
	return ""
}

// stepOutcome is the traced result of a successful step.
type stepOutcome struct {
	text string
	done bool
}

var okOutcome = stepOutcome{text: "ok", done: true}

// apply performs one step.
func (h *Harness) apply(ctx context.Context, step Step) (stepOutcome, error) {
	caller := h.name(AdminName)
	if step.Caller != "" {
		caller = h.name(step.Caller)
	}

	switch step.Action {
	case ActionRegister:
		ids := make([]domain.Address, len(step.Entities))
		for i, e := range step.Entities {
			ids[i] = h.name(e)
		}
		return okOutcome, h.engine.Register(ctx, caller, ids)

	case ActionEndRegistration:
		return okOutcome, h.engine.EndRegistration(ctx, caller)

	case ActionStart:
		return okOutcome, h.engine.StartMigration(ctx, caller)

	case ActionEnd:
		return okOutcome, h.engine.EndMigration(ctx, caller)

	case ActionDeploy:
		res, err := h.engine.DeploySuccessors(ctx, h.budget(step))
		if err != nil {
			return stepOutcome{}, err
		}
		h.nameSuccessors()
		return stepOutcome{
			text: fmt.Sprintf("deployed=%d total=%d/%d closed=%t", res.Deployed, res.Total, res.Target, res.Closed),
			done: res.Closed,
		}, nil

	case ActionPass:
		res, err := h.engine.RunMigrationPass(ctx, h.budget(step))
		if err != nil {
			return stepOutcome{}, err
		}
		return stepOutcome{
			text: fmt.Sprintf("pass=%d from=%d to=%d processed=%d transfers=%d failures=%d completed=%t",
				res.Pass, res.From, res.To, res.Processed, res.Transfers, res.Failures, res.Completed),
			done: res.Completed,
		}, nil

	case ActionFund:
		amount, err := domain.ParseAmount(step.Amount)
		if err != nil {
			return stepOutcome{}, err
		}
		h.ledgers[step.Ledger].Mint(h.name(step.Entity), amount)
		return okOutcome, nil

	case ActionApprove:
		l := h.ledgers[step.Ledger]
		if step.Amount == "" {
			l.ApproveUnlimited(h.name(step.Entity), h.name(MigratorName))
			return okOutcome, nil
		}
		amount, err := domain.ParseAmount(step.Amount)
		if err != nil {
			return stepOutcome{}, err
		}
		l.Approve(h.name(step.Entity), h.name(MigratorName), amount)
		return okOutcome, nil

	case ActionRevoke:
		h.ledgers[step.Ledger].Revoke(h.name(step.Entity), h.name(MigratorName))
		return okOutcome, nil

	case ActionRotateKey:
		h.keys.Rotate(h.name(step.Key))
		return okOutcome, nil

	case ActionFailProvision:
		h.factory.FailNext(errors.New(step.Reason))
		return okOutcome, nil

	case ActionFailReads:
		h.ledgers[step.Ledger].FailReads(errors.New(step.Reason))
		return okOutcome, nil

	case ActionHealReads:
		h.ledgers[step.Ledger].FailReads(nil)
		return okOutcome, nil
	}
	return stepOutcome{}, fmt.Errorf("unknown action %q", step.Action)
}

func (h *Harness) budget(step Step) engine.Budget {
	if step.Gas == nil {
		return engine.UnlimitedGas()
	}
	return engine.NewGasMeter(*step.Gas)
}

// nameSuccessors records "successor:<entity>" names for new successors.
func (h *Harness) nameSuccessors() {
	for i := 0; i < h.engine.SuccessorCount(); i++ {
		p, err := h.engine.Pair(i)
		if err != nil {
			return
		}
		h.book.Add(successorPrefix+h.book.Name(p.Source), p.Successor)
	}
}

// detail renders the arguments of a step for the trace.
func (h *Harness) detail(step Step) string {
	var parts []string
	if step.Caller != "" {
		parts = append(parts, "as="+step.Caller)
	}
	switch step.Action {
	case ActionRegister:
		parts = append(parts, "["+strings.Join(step.Entities, ",")+"]")
	case ActionDeploy, ActionPass:
		if step.Gas == nil {
			parts = append(parts, "gas=unlimited")
		} else {
			parts = append(parts, fmt.Sprintf("gas=%d", *step.Gas))
		}
	case ActionFund, ActionApprove:
		parts = append(parts, step.Ledger, step.Entity)
		if step.Amount != "" {
			parts = append(parts, step.Amount)
		}
	case ActionRevoke:
		parts = append(parts, step.Ledger, step.Entity)
	case ActionRotateKey:
		parts = append(parts, step.Key)
	case ActionFailProvision:
		parts = append(parts, fmt.Sprintf("%q", step.Reason))
	case ActionFailReads:
		parts = append(parts, step.Ledger, fmt.Sprintf("%q", step.Reason))
	case ActionHealReads:
		parts = append(parts, step.Ledger)
	}
	return strings.Join(parts, " ")
}
