package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/relaymigrate/internal/domain"
)

// DeployResult summarizes one DeploySuccessors call.
type DeployResult struct {
	CallID   string         `json:"call_id"`
	Key      domain.Address `json:"key"`      // key snapshot used by this call
	Deployed int            `json:"deployed"` // successors provisioned by this call
	Total    int            `json:"total"`    // successors provisioned overall
	Target   int            `json:"target"`   // registered population
	Closed   bool           `json:"closed"`   // deployment phase closed by this call
	GasUsed  uint64         `json:"gas_used"`
}

// DeploySuccessors provisions successors for registered sources, in order,
// until every source has one or the budget runs low.
//
// Open to any caller between EndRegistration and the close of deployment.
// The authorization key is read once and used for every successor this call
// provisions; a later call reads it again. The length of the successor list
// is the resume point, so successor i is always provisioned for source i.
//
// When the last successor is provisioned the deployment phase closes. If
// the factory fails, every successor provisioned before the failure stays
// recorded and the error is returned.
func (e *Engine) DeploySuccessors(ctx context.Context, budget Budget) (DeployResult, error) {
	const op = "deploy"

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.progress.Stage.Reached(domain.StageDeploying) {
		return DeployResult{}, newError(op, ErrRegistrationOpen)
	}
	if e.progress.Stage.Reached(domain.StageAwaitingApprovals) {
		return DeployResult{}, newError(op, ErrDeploymentClosed)
	}

	res := DeployResult{
		CallID: e.callIDs.Generate(),
		Target: len(e.sources),
	}
	spend := func(n uint64) {
		budget.Consume(n)
		res.GasUsed += n
	}
	margin := e.costs.DeployMargin()

	if len(e.successors) < len(e.sources) && budget.Remaining() > margin {
		spend(e.costs.KeyRead)
		key, err := e.collab.Keys.CurrentKey(ctx)
		if err != nil {
			return res, fmt.Errorf("%s: read authorization key: %w", op, err)
		}
		res.Key = key

		for len(e.successors) < len(e.sources) && budget.Remaining() > margin {
			if err := ctx.Err(); err != nil {
				res.Total = len(e.successors)
				return res, err
			}
			if err := e.provisionNext(ctx, res.CallID, key, spend); err != nil {
				res.Total = len(e.successors)
				return res, fmt.Errorf("%s: %w", op, err)
			}
			res.Deployed++
		}
	}
	res.Total = len(e.successors)

	if len(e.successors) == len(e.sources) {
		if err := e.advance(ctx, res.CallID, domain.StageAwaitingApprovals, e.progress); err != nil {
			return res, fmt.Errorf("%s: %w", op, err)
		}
		res.Closed = true
	}

	slog.Info("deployment step finished",
		"call_id", res.CallID,
		"deployed", res.Deployed,
		"total", res.Total,
		"target", res.Target,
		"closed", res.Closed,
		"gas_used", res.GasUsed,
	)
	return res, nil
}

// provisionNext provisions the successor for the first source without one.
func (e *Engine) provisionNext(ctx context.Context, callID string, key domain.Address, spend func(uint64)) error {
	idx := len(e.successors)
	source := e.sources[idx]

	spend(e.costs.Provision)
	wallet, err := e.collab.Factory.Provision(ctx, key)
	if err != nil {
		return fmt.Errorf("provision successor %d for %s: %w", idx, source.Hex(), err)
	}
	if wallet == domain.ZeroAddress {
		return fmt.Errorf("provision successor %d for %s: %w", idx, source.Hex(), errZeroSuccessor)
	}

	spend(e.costs.Bookkeeping)
	succ := domain.Successor{
		Index:   idx,
		Address: wallet,
		Key:     key,
		Seq:     e.clock.Next(),
		CallID:  callID,
	}
	if err := e.store.AppendSuccessor(ctx, succ); err != nil {
		// The wallet exists but is not recorded. Log everything needed to
		// reconcile by hand before the next deploy call provisions again.
		slog.Error("successor provisioned but not recorded",
			"error", err,
			"index", idx,
			"source", source.Hex(),
			"successor", wallet.Hex(),
			"key", key.Hex(),
			"call_id", callID,
		)
		return fmt.Errorf("record successor %d: %w", idx, err)
	}
	e.successors = append(e.successors, succ)

	slog.Debug("successor provisioned",
		"index", idx,
		"source", source.Hex(),
		"successor", wallet.Hex(),
		"call_id", callID,
	)
	return nil
}

var errZeroSuccessor = errors.New("factory returned the zero address")
