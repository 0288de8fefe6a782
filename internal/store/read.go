package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/relaymigrate/internal/domain"
)

// LoadSnapshot reads the complete engine state.
// Returns ErrNotInitialized if Init was never called.
func (s *Store) LoadSnapshot(ctx context.Context) (domain.Snapshot, error) {
	var (
		snap   domain.Snapshot
		admin  string
		stage  int
		cursor int
		passes int
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT admin, stage, cursor, passes_completed FROM engine_state WHERE id = 1
	`).Scan(&admin, &stage, &cursor, &passes)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Snapshot{}, ErrNotInitialized
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("load state: %w", err)
	}

	snap.Admin = parseAddr(admin)
	snap.Progress = domain.Progress{
		Stage:           domain.Stage(stage),
		Cursor:          cursor,
		PassesCompleted: passes,
	}
	if !snap.Progress.Stage.Valid() {
		return domain.Snapshot{}, fmt.Errorf("load state: invalid stage %d", stage)
	}

	if snap.Sources, err = s.readSources(ctx); err != nil {
		return domain.Snapshot{}, err
	}
	if snap.Successors, err = s.readSuccessors(ctx); err != nil {
		return domain.Snapshot{}, err
	}
	if snap.LastSeq, err = s.lastSeq(ctx); err != nil {
		return domain.Snapshot{}, err
	}

	return snap, nil
}

func (s *Store) readSources(ctx context.Context) ([]domain.Address, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT address FROM source_entities ORDER BY idx ASC`)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	sources := []domain.Address{}
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, parseAddr(a))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return sources, nil
}

func (s *Store) readSuccessors(ctx context.Context) ([]domain.Successor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, address, auth_key, seq, call_id
		FROM successor_entities
		ORDER BY idx ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query successors: %w", err)
	}
	defer rows.Close()

	successors := []domain.Successor{}
	for rows.Next() {
		var (
			succ      domain.Successor
			addr, key string
		)
		if err := rows.Scan(&succ.Index, &addr, &key, &succ.Seq, &succ.CallID); err != nil {
			return nil, fmt.Errorf("scan successor: %w", err)
		}
		succ.Address = parseAddr(addr)
		succ.Key = parseAddr(key)
		successors = append(successors, succ)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate successors: %w", err)
	}
	return successors, nil
}

// lastSeq returns the highest logical seq recorded anywhere in the store.
func (s *Store) lastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(m) FROM (
			SELECT COALESCE(MAX(seq), 0) AS m FROM successor_entities
			UNION ALL
			SELECT COALESCE(MAX(seq), 0) FROM phase_transitions
			UNION ALL
			SELECT COALESCE(MAX(seq), 0) FROM migration_errors
		)
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("read last seq: %w", err)
	}
	return seq, nil
}

// MigrationErrors returns migration error records ordered by seq.
// A pass of 0 returns records from every pass.
//
// Returns an empty slice (not nil) if no records match.
func (s *Store) MigrationErrors(ctx context.Context, pass int) ([]domain.MigrationError, error) {
	query := `
		SELECT id, seq, call_id, pass, idx, balance_type, source, successor, amount, reason
		FROM migration_errors
	`
	var args []any
	if pass > 0 {
		query += ` WHERE pass = ?`
		args = append(args, pass)
	}
	query += ` ORDER BY seq ASC, id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query migration errors: %w", err)
	}
	defer rows.Close()

	records := []domain.MigrationError{}
	for rows.Next() {
		var (
			rec                       domain.MigrationError
			balanceType               string
			source, successor, amount string
		)
		if err := rows.Scan(&rec.ID, &rec.Seq, &rec.CallID, &rec.Pass, &rec.Index,
			&balanceType, &source, &successor, &amount, &rec.Reason); err != nil {
			return nil, fmt.Errorf("scan migration error: %w", err)
		}
		rec.BalanceType = domain.BalanceType(balanceType)
		rec.Source = parseAddr(source)
		rec.Successor = parseAddr(successor)
		if rec.Amount, err = domain.ParseAmount(amount); err != nil {
			return nil, fmt.Errorf("migration error %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate migration errors: %w", err)
	}
	return records, nil
}

// Transitions returns every recorded stage advance ordered by seq.
func (s *Store) Transitions(ctx context.Context) ([]domain.Transition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, call_id, from_stage, to_stage FROM phase_transitions ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	transitions := []domain.Transition{}
	for rows.Next() {
		var (
			tr       domain.Transition
			from, to int
		)
		if err := rows.Scan(&tr.Seq, &tr.CallID, &from, &to); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		tr.From = domain.Stage(from)
		tr.To = domain.Stage(to)
		transitions = append(transitions, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	return transitions, nil
}

func parseAddr(s string) domain.Address {
	return common.HexToAddress(s)
}
