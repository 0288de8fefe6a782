package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/relaymigrate/internal/domain"
)

// Register appends ids to the registry in the given order.
//
// Privileged. Fails with ErrRegistrationClosed after EndRegistration. Each
// id must be a non-zero contract account (ErrInvalidEntity) that is neither
// registered already nor repeated within ids (ErrDuplicateEntity). The call
// is all-or-nothing: on any failure no id from this call is admitted.
//
// An empty ids is accepted and changes nothing.
func (e *Engine) Register(ctx context.Context, caller domain.Address, ids []domain.Address) error {
	const op = "register"

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireAdmin(op, caller); err != nil {
		return err
	}
	if e.progress.Stage.Reached(domain.StageDeploying) {
		return newError(op, ErrRegistrationClosed)
	}
	if len(ids) == 0 {
		return nil
	}

	batch := make(map[domain.Address]struct{}, len(ids))
	for i, id := range ids {
		if id == domain.ZeroAddress {
			return entityError(op, ErrInvalidEntity, id, i)
		}
		ok, err := e.collab.Code.IsContract(ctx, id)
		if err != nil {
			return fmt.Errorf("%s: inspect %s: %w", op, id.Hex(), err)
		}
		if !ok {
			return entityError(op, ErrInvalidEntity, id, i)
		}
		if _, dup := e.registered[id]; dup {
			return entityError(op, ErrDuplicateEntity, id, i)
		}
		if _, dup := batch[id]; dup {
			return entityError(op, ErrDuplicateEntity, id, i)
		}
		batch[id] = struct{}{}
	}

	start := len(e.sources)
	if err := e.store.AppendSources(ctx, start, ids); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for _, id := range ids {
		e.sources = append(e.sources, id)
		e.registered[id] = struct{}{}
	}

	slog.Info("entities registered",
		"count", len(ids),
		"first_index", start,
		"population", len(e.sources),
	)
	return nil
}

// EndRegistration freezes the registry. Privileged.
// Fails with ErrPhaseAlreadyClosed if registration is already closed.
func (e *Engine) EndRegistration(ctx context.Context, caller domain.Address) error {
	const op = "end-registration"

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireAdmin(op, caller); err != nil {
		return err
	}
	if e.progress.Stage.Reached(domain.StageDeploying) {
		return newError(op, ErrPhaseAlreadyClosed)
	}
	return e.advance(ctx, e.callIDs.Generate(), domain.StageDeploying, e.progress)
}

// StartMigration opens the migration phase. Privileged.
//
// Fails with ErrDeploymentNotClosed until every successor exists and with
// ErrAlreadyStarted once migration has started. Whether the source entities
// have authorized the engine on the ledgers is not checked here; the pass
// discovers missing authorizations when a pull fails.
func (e *Engine) StartMigration(ctx context.Context, caller domain.Address) error {
	const op = "start-migration"

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireAdmin(op, caller); err != nil {
		return err
	}
	if !e.progress.Stage.Reached(domain.StageAwaitingApprovals) {
		return newError(op, ErrDeploymentNotClosed)
	}
	if e.progress.Stage.Reached(domain.StageMigrating) {
		return newError(op, ErrAlreadyStarted)
	}
	return e.advance(ctx, e.callIDs.Generate(), domain.StageMigrating, e.progress)
}

// EndMigration closes the migration and decommissions the engine. Privileged.
//
// Fails with ErrFirstPassIncomplete until one pass has run to the end and
// with ErrAlreadyClosed afterwards. Outstanding migration errors do not
// block closing.
func (e *Engine) EndMigration(ctx context.Context, caller domain.Address) error {
	const op = "end-migration"

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireAdmin(op, caller); err != nil {
		return err
	}
	if e.progress.Stage.Reached(domain.StageClosed) {
		return newError(op, ErrAlreadyClosed)
	}
	if !e.progress.Stage.Reached(domain.StageFirstPassDone) {
		return newError(op, ErrFirstPassIncomplete)
	}
	return e.advance(ctx, e.callIDs.Generate(), domain.StageClosed, e.progress)
}
