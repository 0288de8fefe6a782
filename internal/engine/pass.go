package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/holiman/uint256"

	"github.com/roach88/relaymigrate/internal/domain"
)

// PassResult summarizes one RunMigrationPass call.
type PassResult struct {
	CallID    string `json:"call_id"`
	Pass      int    `json:"pass"`      // 1-based number of the pass this call worked on
	From      int    `json:"from"`      // cursor at entry
	To        int    `json:"to"`        // cursor at exit (0 once the pass completes)
	Processed int    `json:"processed"` // pairs handled by this call
	Transfers int    `json:"transfers"` // successful pulls
	Failures  int    `json:"failures"`  // migration errors emitted
	Completed bool   `json:"completed"` // the pass reached the end of the population
	GasUsed   uint64 `json:"gas_used"`
}

// pullOutcome is the captured result of a pull transfer. A failed pull
// never unwinds the pass.
type pullOutcome struct {
	ok  bool
	err error
}

// RunMigrationPass moves every tracked balance from each source to its
// successor, starting at the saved cursor.
//
// Open to any caller after StartMigration and until EndMigration. Before
// each pair the remaining budget is compared with the margin for the
// heaviest possible step; if it is lower the cursor is saved and the call
// returns with Completed false. A later call resumes at the same pair.
//
// Balances are read immediately before each pull and never cached, so a
// new pass picks up late authorizations and funds that arrived after an
// earlier pass. A failed pull is recorded as a MigrationError and the pass
// moves on; it is never retried within the same pass.
//
// Reaching the end of the population resets the cursor to 0, increments the
// pass counter and, the first time, marks the first pass done.
func (e *Engine) RunMigrationPass(ctx context.Context, budget Budget) (PassResult, error) {
	const op = "migrate"

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.progress.Stage.Reached(domain.StageMigrating) {
		return PassResult{}, newError(op, ErrMigrationNotStarted)
	}
	if e.progress.Stage.Reached(domain.StageClosed) {
		return PassResult{}, newError(op, ErrAlreadyClosed)
	}

	res := PassResult{
		CallID: e.callIDs.Generate(),
		Pass:   e.progress.PassesCompleted + 1,
		From:   e.progress.Cursor,
	}
	spend := func(n uint64) {
		budget.Consume(n)
		res.GasUsed += n
	}
	margin := e.costs.MigrationMargin(len(e.collab.Ledgers))

	for i := e.progress.Cursor; i < len(e.sources); i++ {
		if budget.Remaining() < margin {
			res.To = i
			slog.Info("migration pass suspended",
				"call_id", res.CallID,
				"pass", res.Pass,
				"cursor", i,
				"population", len(e.sources),
				"gas_used", res.GasUsed,
			)
			return res, nil
		}
		if err := ctx.Err(); err != nil {
			res.To = i
			return res, err
		}

		if err := e.migratePair(ctx, res.CallID, res.Pass, i, spend, &res); err != nil {
			res.To = i
			return res, fmt.Errorf("%s: pair %d: %w", op, i, err)
		}

		spend(e.costs.Bookkeeping)
		if err := e.saveCursor(ctx, i+1); err != nil {
			res.To = i
			return res, fmt.Errorf("%s: %w", op, err)
		}
		res.Processed++
	}

	if err := e.completePass(ctx, res.CallID); err != nil {
		res.To = e.progress.Cursor
		return res, fmt.Errorf("%s: %w", op, err)
	}
	res.To = 0
	res.Completed = true

	slog.Info("migration pass completed",
		"call_id", res.CallID,
		"pass", res.Pass,
		"processed", res.Processed,
		"transfers", res.Transfers,
		"failures", res.Failures,
		"gas_used", res.GasUsed,
	)
	return res, nil
}

// migratePair pulls every tracked balance of pair i.
//
// A failed pull is a per-entity outcome and is recorded. Errors returned
// from here are infrastructure failures (balance reads, the store or a
// cancelled context) and abort the call with the cursor still at i.
func (e *Engine) migratePair(ctx context.Context, callID string, pass, i int, spend func(uint64), res *PassResult) error {
	source := e.sources[i]
	successor := e.successors[i].Address

	for _, tl := range e.collab.Ledgers {
		spend(e.costs.BalanceRead)
		balance, err := tl.Ledger.BalanceOf(ctx, source)
		if err != nil {
			return fmt.Errorf("read %s balance of %s: %w", tl.Type, source.Hex(), err)
		}
		if balance == nil || balance.IsZero() {
			continue
		}

		spend(e.costs.PullTransfer)
		outcome := tryPull(ctx, tl.Ledger, source, successor, balance)
		if outcome.ok {
			res.Transfers++
			slog.Debug("balance migrated",
				"index", i,
				"balance_type", tl.Type.String(),
				"source", source.Hex(),
				"successor", successor.Hex(),
				"amount", balance.Dec(),
				"call_id", callID,
			)
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			// The pull failed because the call is being cancelled, not
			// because of the entity. Leave the pair for the next call.
			return ctxErr
		}

		rec := domain.MigrationError{
			Seq:         e.clock.Next(),
			CallID:      callID,
			Pass:        pass,
			Index:       i,
			BalanceType: tl.Type,
			Source:      source,
			Successor:   successor,
			Amount:      balance.Clone(),
			Reason:      outcome.err.Error(),
		}
		rec.ID = domain.MigrationErrorID(rec)

		inserted, err := e.store.WriteMigrationError(ctx, rec)
		if err != nil {
			return fmt.Errorf("record migration error: %w", err)
		}
		if !inserted {
			// Recorded by an earlier call of this pass that aborted later
			// in the same pair.
			slog.Debug("migration error already recorded",
				"index", i,
				"balance_type", tl.Type.String(),
				"pass", pass,
				"call_id", callID,
			)
			continue
		}
		slog.Warn("migration error",
			"index", i,
			"balance_type", tl.Type.String(),
			"source", source.Hex(),
			"successor", successor.Hex(),
			"amount", balance.Dec(),
			"reason", rec.Reason,
			"pass", pass,
			"call_id", callID,
		)
		res.Failures++
		for _, o := range e.observers {
			o.MigrationFailed(rec)
		}
	}
	return nil
}

// tryPull attempts a pull transfer and captures the outcome instead of
// returning an error.
func tryPull(ctx context.Context, l domain.Ledger, from, to domain.Address, amount *uint256.Int) pullOutcome {
	if err := l.PullTransfer(ctx, from, to, amount); err != nil {
		return pullOutcome{err: err}
	}
	return pullOutcome{ok: true}
}

// saveCursor persists the resume point of the current pass.
func (e *Engine) saveCursor(ctx context.Context, cursor int) error {
	p := e.progress
	p.Cursor = cursor
	if err := e.store.SaveProgress(ctx, p, nil); err != nil {
		return fmt.Errorf("save cursor %d: %w", cursor, err)
	}
	e.progress = p
	return nil
}

// completePass resets the cursor and counts the pass. The first completed
// pass also advances the stage.
func (e *Engine) completePass(ctx context.Context, callID string) error {
	p := e.progress
	p.Cursor = 0
	p.PassesCompleted++

	if e.progress.Stage == domain.StageMigrating {
		return e.advance(ctx, callID, domain.StageFirstPassDone, p)
	}
	if err := e.store.SaveProgress(ctx, p, nil); err != nil {
		return fmt.Errorf("complete pass %d: %w", p.PassesCompleted, err)
	}
	e.progress = p
	return nil
}
