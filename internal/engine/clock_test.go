package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relaymigrate/internal/domain"
)

func TestClock_Sequence(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current(), "Current does not advance")

	resumed := NewClockAt(41)
	assert.Equal(t, int64(42), resumed.Next())
}

// Audit records keep strictly increasing seqs across a reopen.
func TestClock_ResumesFromStore(t *testing.T) {
	w := newWorld(t)
	relays := w.relays(2)
	w.dai.Mint(relays[0], domain.NewAmount(1))
	e := migrationReady(t, w, relays)
	ctx := context.Background()

	_, err := e.RunMigrationPass(ctx, UnlimitedGas())
	require.NoError(t, err)

	snap, err := w.store.LoadSnapshot(ctx)
	require.NoError(t, err)
	before := snap.LastSeq
	require.Positive(t, before)

	reopened := w.open()
	assert.Equal(t, before, reopened.clock.Current())

	_, err = reopened.RunMigrationPass(ctx, UnlimitedGas())
	require.NoError(t, err)

	recs, err := w.store.MigrationErrors(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Less(t, recs[0].Seq, recs[1].Seq)
	assert.Greater(t, recs[1].Seq, before)
	assert.NotEqual(t, recs[0].ID, recs[1].ID)
}
