package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/relaymigrate/internal/domain"
)

// ErrAdminMismatch is returned by Init when the database is already bound
// to a different administrator.
var ErrAdminMismatch = errors.New("database bound to a different administrator")

// ErrConflict is returned when a write observes state that another writer
// changed underneath it (registry length, successor count or stage).
var ErrConflict = errors.New("concurrent modification")

// Init binds the database to an administrator.
// Calling Init again with the same administrator is a no-op.
func (s *Store) Init(ctx context.Context, admin domain.Address) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO engine_state (id, admin) VALUES (1, ?)
		ON CONFLICT(id) DO NOTHING
	`, admin.Hex())
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}

	var existing string
	if err := s.db.QueryRowContext(ctx, `SELECT admin FROM engine_state WHERE id = 1`).Scan(&existing); err != nil {
		return fmt.Errorf("init: read admin: %w", err)
	}
	if parseAddr(existing) != admin {
		return fmt.Errorf("init: %w: have %s, got %s", ErrAdminMismatch, existing, admin.Hex())
	}
	return nil
}

// AppendSources appends addrs to the registry starting at index start.
// Either every address is admitted or none is.
//
// start must equal the current registry length; otherwise ErrConflict is
// returned and nothing is written.
func (s *Store) AppendSources(ctx context.Context, start int, addrs []domain.Address) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append sources: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := expectCount(ctx, tx, "source_entities", start); err != nil {
		return fmt.Errorf("append sources: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO source_entities (idx, address) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("append sources: prepare: %w", err)
	}
	defer stmt.Close()

	for i, a := range addrs {
		if _, err := stmt.ExecContext(ctx, start+i, a.Hex()); err != nil {
			return fmt.Errorf("append sources: insert %s: %w", a.Hex(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append sources: commit: %w", err)
	}
	return nil
}

// AppendSuccessor records the successor provisioned for succ.Index.
// succ.Index must equal the current successor count.
func (s *Store) AppendSuccessor(ctx context.Context, succ domain.Successor) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append successor: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := expectCount(ctx, tx, "successor_entities", succ.Index); err != nil {
		return fmt.Errorf("append successor: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO successor_entities (idx, address, auth_key, seq, call_id)
		VALUES (?, ?, ?, ?, ?)
	`, succ.Index, succ.Address.Hex(), succ.Key.Hex(), succ.Seq, succ.CallID)
	if err != nil {
		return fmt.Errorf("append successor %d: %w", succ.Index, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append successor: commit: %w", err)
	}
	return nil
}

// SaveProgress writes stage, cursor and pass counter.
//
// If tr is non-nil the write is a stage advance: it only applies while the
// stored stage equals tr.From, and the transition row is written in the
// same transaction. A stale tr.From yields ErrConflict.
func (s *Store) SaveProgress(ctx context.Context, p domain.Progress, tr *domain.Transition) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save progress: begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `UPDATE engine_state SET stage = ?, cursor = ?, passes_completed = ? WHERE id = 1`
	args := []any{int(p.Stage), p.Cursor, p.PassesCompleted}
	if tr != nil {
		query += ` AND stage = ?`
		args = append(args, int(tr.From))
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save progress: rows affected: %w", err)
	}
	if n != 1 {
		if tr != nil {
			return fmt.Errorf("save progress: %w: stage is not %s", ErrConflict, tr.From)
		}
		return fmt.Errorf("save progress: %w", ErrNotInitialized)
	}

	if tr != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO phase_transitions (seq, call_id, from_stage, to_stage)
			VALUES (?, ?, ?, ?)
		`, tr.Seq, tr.CallID, int(tr.From), int(tr.To))
		if err != nil {
			return fmt.Errorf("save progress: write transition: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save progress: commit: %w", err)
	}
	return nil
}

// WriteMigrationError appends a migration error record and reports whether
// a row was inserted. Uses ON CONFLICT(id) DO NOTHING - rewriting a record
// with an existing ID is a no-op that returns false.
func (s *Store) WriteMigrationError(ctx context.Context, rec domain.MigrationError) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO migration_errors
		(id, seq, call_id, pass, idx, balance_type, source, successor, amount, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.Seq,
		rec.CallID,
		rec.Pass,
		rec.Index,
		string(rec.BalanceType),
		rec.Source.Hex(),
		rec.Successor.Hex(),
		domain.FormatAmount(rec.Amount),
		rec.Reason,
	)
	if err != nil {
		return false, fmt.Errorf("write migration error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write migration error: %w", err)
	}
	return n > 0, nil
}

func expectCount(ctx context.Context, tx *sql.Tx, table string, want int) error {
	var n int
	if err := tx.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n); err != nil {
		return fmt.Errorf("count %s: %w", table, err)
	}
	if n != want {
		return fmt.Errorf("%w: %s has %d rows, expected %d", ErrConflict, table, n, want)
	}
	return nil
}
