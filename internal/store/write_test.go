package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relaymigrate/internal/domain"
)

func TestInit_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Init(ctx, testAdmin))
	require.NoError(t, s.Init(ctx, testAdmin))

	err := s.Init(ctx, addr(0x01))
	require.ErrorIs(t, err, ErrAdminMismatch)
}

func TestAppendSources_AllOrNothing(t *testing.T) {
	s := createInitializedStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendSources(ctx, 0, []domain.Address{addr(1), addr(2)}))

	// addr(2) violates UNIQUE(address); addr(3) must not be admitted either.
	err := s.AppendSources(ctx, 2, []domain.Address{addr(3), addr(2)})
	require.Error(t, err)

	snap, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.Address{addr(1), addr(2)}, snap.Sources)
}

func TestAppendSources_StaleStart(t *testing.T) {
	s := createInitializedStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendSources(ctx, 0, []domain.Address{addr(1)}))
	err := s.AppendSources(ctx, 0, []domain.Address{addr(2)})
	require.ErrorIs(t, err, ErrConflict)
}

func TestAppendSuccessor_InOrder(t *testing.T) {
	s := createInitializedStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendSources(ctx, 0, []domain.Address{addr(1), addr(2)}))

	// Index 1 before index 0 is rejected.
	err := s.AppendSuccessor(ctx, domain.Successor{Index: 1, Address: addr(0x12), Key: addr(0xee), Seq: 1, CallID: "c1"})
	require.ErrorIs(t, err, ErrConflict)

	require.NoError(t, s.AppendSuccessor(ctx, domain.Successor{Index: 0, Address: addr(0x11), Key: addr(0xee), Seq: 1, CallID: "c1"}))
	require.NoError(t, s.AppendSuccessor(ctx, domain.Successor{Index: 1, Address: addr(0x12), Key: addr(0xef), Seq: 2, CallID: "c2"}))

	snap, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Successors, 2)
	assert.Equal(t, addr(0x11), snap.Successors[0].Address)
	assert.Equal(t, addr(0xef), snap.Successors[1].Key)
	assert.Equal(t, "c2", snap.Successors[1].CallID)
	assert.Equal(t, int64(2), snap.LastSeq)
}

func TestAppendSuccessor_RequiresSource(t *testing.T) {
	s := createInitializedStore(t)

	err := s.AppendSuccessor(context.Background(), domain.Successor{Index: 0, Address: addr(0x11), Seq: 1, CallID: "c1"})
	require.Error(t, err)
}

func TestSaveProgress_StageAdvance(t *testing.T) {
	s := createInitializedStore(t)
	ctx := context.Background()

	tr := &domain.Transition{Seq: 5, CallID: "c1", From: domain.StageRegistering, To: domain.StageDeploying}
	require.NoError(t, s.SaveProgress(ctx, domain.Progress{Stage: domain.StageDeploying}, tr))

	// Replaying the same advance finds a stale From.
	err := s.SaveProgress(ctx, domain.Progress{Stage: domain.StageDeploying}, tr)
	require.ErrorIs(t, err, ErrConflict)

	transitions, err := s.Transitions(ctx)
	require.NoError(t, err)
	require.Len(t, transitions, 1)
	assert.Equal(t, domain.StageDeploying, transitions[0].To)
	assert.Equal(t, "c1", transitions[0].CallID)
}

func TestSaveProgress_CursorOnly(t *testing.T) {
	s := createInitializedStore(t)
	ctx := context.Background()

	p := domain.Progress{Stage: domain.StageRegistering, Cursor: 7, PassesCompleted: 2}
	require.NoError(t, s.SaveProgress(ctx, p, nil))

	snap, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, p, snap.Progress)
}

func TestSaveProgress_NotInitialized(t *testing.T) {
	s := createTestStore(t)

	err := s.SaveProgress(context.Background(), domain.Progress{}, nil)
	require.ErrorIs(t, err, ErrNotInitialized)
}

func TestWriteMigrationError_Idempotent(t *testing.T) {
	s := createInitializedStore(t)
	ctx := context.Background()
	require.NoError(t, s.AppendSources(ctx, 0, []domain.Address{addr(1)}))

	rec := domain.MigrationError{
		Seq:         9,
		CallID:      "c1",
		Pass:        1,
		Index:       0,
		BalanceType: "DAI",
		Source:      addr(1),
		Successor:   addr(0x11),
		Amount:      domain.NewAmount(500),
		Reason:      "allowance exceeded",
	}
	rec.ID = domain.MigrationErrorID(rec)

	inserted, err := s.WriteMigrationError(ctx, rec)
	require.NoError(t, err)
	assert.True(t, inserted)

	retry := rec
	retry.Seq = 12
	retry.CallID = "c2"
	inserted, err = s.WriteMigrationError(ctx, retry)
	require.NoError(t, err)
	assert.False(t, inserted, "same ID is not written twice")

	records, err := s.MigrationErrors(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, rec.ID, records[0].ID)
	assert.Equal(t, "500", records[0].Amount.Dec())
	assert.Equal(t, domain.BalanceType("DAI"), records[0].BalanceType)
	assert.Equal(t, int64(9), records[0].Seq, "first write wins")
	assert.Equal(t, "c1", records[0].CallID)
	assert.Equal(t, "allowance exceeded", records[0].Reason)
}
