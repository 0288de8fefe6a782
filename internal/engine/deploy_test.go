package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relaymigrate/internal/domain"
	"github.com/roach88/relaymigrate/internal/sim"
)

func TestDeploySuccessors_PreservesOrder(t *testing.T) {
	w := newWorld(t)
	e := w.open()
	relays := w.relays(4)
	ctx := context.Background()

	require.NoError(t, e.Register(ctx, admin, relays))
	require.NoError(t, e.EndRegistration(ctx, admin))

	res, err := e.DeploySuccessors(ctx, UnlimitedGas())
	require.NoError(t, err)
	assert.Equal(t, 4, res.Deployed)
	assert.True(t, res.Closed)
	assert.Equal(t, 4, e.SuccessorCount())

	seen := map[domain.Address]bool{}
	for i := range relays {
		p, err := e.Pair(i)
		require.NoError(t, err)
		assert.Equal(t, relays[i], p.Source)
		assert.NotEqual(t, domain.ZeroAddress, p.Successor)
		assert.False(t, seen[p.Successor], "successors are distinct")
		seen[p.Successor] = true

		key, ok := w.factory.KeyOf(p.Successor)
		require.True(t, ok)
		assert.Equal(t, sim.AddressFor("key-1"), key)
	}
	assert.True(t, e.Flags().DeploymentClosed)
	assert.False(t, e.Flags().MigrationStarted)
}

// deployedPairs returns every pair of e in index order.
func deployedPairs(t *testing.T, e *Engine) []domain.Pair {
	t.Helper()
	out := make([]domain.Pair, e.SuccessorCount())
	for i := range out {
		p, err := e.Pair(i)
		require.NoError(t, err)
		out[i] = p
	}
	return out
}

func TestDeploySuccessors_BudgetBounded(t *testing.T) {
	ctx := context.Background()

	ref := newWorld(t)
	refEngine := ref.open()
	require.NoError(t, refEngine.Register(ctx, admin, ref.relays(5)))
	require.NoError(t, refEngine.EndRegistration(ctx, admin))
	single, err := refEngine.DeploySuccessors(ctx, UnlimitedGas())
	require.NoError(t, err)
	require.True(t, single.Closed)

	w := newWorld(t)
	e := w.open()
	relays := w.relays(5)

	require.NoError(t, e.Register(ctx, admin, relays))
	require.NoError(t, e.EndRegistration(ctx, admin))

	// 25 gas: key read (1) then two provisions (11 each) before the
	// remainder drops to the margin.
	var calls int
	for !e.Flags().DeploymentClosed {
		calls++
		require.Less(t, calls, 10, "deployment must make progress")
		res, err := e.DeploySuccessors(ctx, NewGasMeter(25))
		require.NoError(t, err)
		assert.LessOrEqual(t, res.Deployed, 2)
		assert.LessOrEqual(t, res.GasUsed, uint64(25))
	}
	assert.Equal(t, 3, calls)
	assert.Equal(t, 5, e.SuccessorCount())
	assert.Equal(t, 5, w.factory.Provisioned())

	pairs := deployedPairs(t, e)
	for i, p := range pairs {
		assert.Equal(t, relays[i], p.Source, "pair %d", i)
	}
	assert.Equal(t, deployedPairs(t, refEngine), pairs, "budgeted calls deploy what one unlimited call does")
}

func TestDeploySuccessors_NoProgressBelowMargin(t *testing.T) {
	w := newWorld(t)
	e := w.open()
	ctx := context.Background()

	require.NoError(t, e.Register(ctx, admin, w.relays(1)))
	require.NoError(t, e.EndRegistration(ctx, admin))

	res, err := e.DeploySuccessors(ctx, NewGasMeter(testCosts.DeployMargin()))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Deployed)
	assert.False(t, res.Closed)
	assert.Equal(t, uint64(0), res.GasUsed)
	assert.Equal(t, 0, w.keys.Reads(), "key is not read when nothing can be provisioned")
}

func TestDeploySuccessors_KeySnapshotPerCall(t *testing.T) {
	w := newWorld(t)
	e := w.open()
	relays := w.relays(4)
	ctx := context.Background()

	require.NoError(t, e.Register(ctx, admin, relays))
	require.NoError(t, e.EndRegistration(ctx, admin))

	first, err := e.DeploySuccessors(ctx, NewGasMeter(25))
	require.NoError(t, err)
	require.Equal(t, 2, first.Deployed)

	rotated := sim.AddressFor("key-2")
	w.keys.Rotate(rotated)

	second, err := e.DeploySuccessors(ctx, UnlimitedGas())
	require.NoError(t, err)
	require.True(t, second.Closed)

	assert.Equal(t, sim.AddressFor("key-1"), first.Key)
	assert.Equal(t, rotated, second.Key)
	assert.Equal(t, 2, w.keys.Reads(), "one key read per call")

	for i, want := range []domain.Address{first.Key, first.Key, rotated, rotated} {
		p, err := e.Pair(i)
		require.NoError(t, err)
		key, ok := w.factory.KeyOf(p.Successor)
		require.True(t, ok)
		assert.Equal(t, want, key, "successor %d", i)
	}
}

func TestDeploySuccessors_FactoryFailureKeepsProgress(t *testing.T) {
	w := newWorld(t)
	e := w.open()
	relays := w.relays(3)
	ctx := context.Background()

	require.NoError(t, e.Register(ctx, admin, relays))
	require.NoError(t, e.EndRegistration(ctx, admin))

	_, err := e.DeploySuccessors(ctx, NewGasMeter(14))
	require.NoError(t, err)
	require.Equal(t, 1, e.SuccessorCount())

	boom := errors.New("factory out of funds")
	w.factory.FailNext(boom)
	res, err := e.DeploySuccessors(ctx, UnlimitedGas())
	require.ErrorIs(t, err, boom)
	assert.False(t, IsCallError(err))
	assert.Equal(t, 0, res.Deployed)
	assert.Equal(t, 1, e.SuccessorCount())
	assert.False(t, e.Flags().DeploymentClosed)

	// The store agrees with memory, and the next call resumes at index 1.
	snap, err := w.store.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Successors, 1)

	res, err = e.DeploySuccessors(ctx, UnlimitedGas())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Deployed)
	assert.True(t, res.Closed)
}

func TestDeploySuccessors_ZeroKeyFails(t *testing.T) {
	w := newWorld(t)
	w.keys = sim.NewKeyDirectory(domain.ZeroAddress)
	e := w.open()
	ctx := context.Background()

	require.NoError(t, e.Register(ctx, admin, w.relays(1)))
	require.NoError(t, e.EndRegistration(ctx, admin))

	_, err := e.DeploySuccessors(ctx, UnlimitedGas())
	require.ErrorIs(t, err, sim.ErrZeroKey)
	assert.Equal(t, 0, e.SuccessorCount())
}

func TestDeploySuccessors_ResumesAfterReopen(t *testing.T) {
	w := newWorld(t)
	e := w.open()
	relays := w.relays(3)
	ctx := context.Background()

	require.NoError(t, e.Register(ctx, admin, relays))
	require.NoError(t, e.EndRegistration(ctx, admin))
	_, err := e.DeploySuccessors(ctx, NewGasMeter(14))
	require.NoError(t, err)
	p0, err := e.Pair(0)
	require.NoError(t, err)

	reopened := w.open()
	assert.Equal(t, domain.StageDeploying, reopened.Stage())
	assert.Equal(t, 1, reopened.SuccessorCount())
	got, err := reopened.Pair(0)
	require.NoError(t, err)
	assert.Equal(t, p0, got)

	res, err := reopened.DeploySuccessors(ctx, UnlimitedGas())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Deployed)
	assert.True(t, res.Closed)
}
