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

func TestRegister_AppendsInOrder(t *testing.T) {
	w := newWorld(t)
	e := w.open()
	relays := w.relays(3)
	ctx := context.Background()

	require.NoError(t, e.Register(ctx, admin, relays[:2]))
	require.NoError(t, e.Register(ctx, admin, relays[2:]))

	assert.Equal(t, 3, e.PopulationSize())
	for i, r := range relays {
		p, err := e.Pair(i)
		require.NoError(t, err)
		assert.Equal(t, r, p.Source)
		assert.Equal(t, domain.ZeroAddress, p.Successor)
	}
}

func TestRegister_RejectsDuplicates(t *testing.T) {
	w := newWorld(t)
	e := w.open()
	relays := w.relays(3)
	ctx := context.Background()

	require.NoError(t, e.Register(ctx, admin, relays[:1]))

	// Across calls.
	err := e.Register(ctx, admin, []domain.Address{relays[1], relays[0]})
	require.ErrorIs(t, err, ErrDuplicateEntity)
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, relays[0], ce.Entity)
	assert.Equal(t, 1, ce.Index)

	// Within one call.
	err = e.Register(ctx, admin, []domain.Address{relays[2], relays[2]})
	require.ErrorIs(t, err, ErrDuplicateEntity)

	// Neither failed call admitted anything.
	assert.Equal(t, 1, e.PopulationSize())
	snap, err := w.store.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, relays[:1], snap.Sources)
}

func TestRegister_RejectsInvalidEntities(t *testing.T) {
	w := newWorld(t)
	e := w.open()
	relays := w.relays(1)
	ctx := context.Background()

	eoa := sim.AddressFor("externally-owned")
	err := e.Register(ctx, admin, []domain.Address{relays[0], eoa})
	require.ErrorIs(t, err, ErrInvalidEntity)

	err = e.Register(ctx, admin, []domain.Address{domain.ZeroAddress})
	require.ErrorIs(t, err, ErrInvalidEntity)

	assert.Equal(t, 0, e.PopulationSize(), "all-or-nothing")
}

func TestRegister_EmptyIsNoop(t *testing.T) {
	w := newWorld(t)
	e := w.open()

	require.NoError(t, e.Register(context.Background(), admin, nil))
	assert.Equal(t, 0, e.PopulationSize())
}

func TestPrivilegedCalls_RejectStrangers(t *testing.T) {
	w := newWorld(t)
	e := w.open()
	ctx := context.Background()

	calls := map[string]func() error{
		"register":         func() error { return e.Register(ctx, stranger, w.relays(1)) },
		"end-registration": func() error { return e.EndRegistration(ctx, stranger) },
		"start-migration":  func() error { return e.StartMigration(ctx, stranger) },
		"end-migration":    func() error { return e.EndMigration(ctx, stranger) },
	}
	for name, call := range calls {
		err := call()
		assert.ErrorIs(t, err, ErrUnauthorized, name)
		assert.Equal(t, CodeUnauthorized, CodeOf(err), name)
	}
	assert.Equal(t, domain.StageRegistering, e.Stage())
	assert.Equal(t, admin, e.Admin())
}

func TestEndRegistration_Once(t *testing.T) {
	w := newWorld(t)
	e := w.open()
	ctx := context.Background()

	require.NoError(t, e.EndRegistration(ctx, admin))
	assert.True(t, e.Flags().RegistrationClosed)

	require.ErrorIs(t, e.EndRegistration(ctx, admin), ErrPhaseAlreadyClosed)
	require.ErrorIs(t, e.Register(ctx, admin, w.relays(1)), ErrRegistrationClosed)
}

func TestStartMigration_Gates(t *testing.T) {
	w := newWorld(t)
	e := w.open()
	relays := w.relays(2)
	ctx := context.Background()

	require.ErrorIs(t, e.StartMigration(ctx, admin), ErrDeploymentNotClosed)

	require.NoError(t, e.Register(ctx, admin, relays))
	require.NoError(t, e.EndRegistration(ctx, admin))
	require.ErrorIs(t, e.StartMigration(ctx, admin), ErrDeploymentNotClosed)

	_, err := e.DeploySuccessors(ctx, UnlimitedGas())
	require.NoError(t, err)
	require.NoError(t, e.StartMigration(ctx, admin))
	require.ErrorIs(t, e.StartMigration(ctx, admin), ErrAlreadyStarted)
}

func TestEndMigration_Gating(t *testing.T) {
	w := newWorld(t)
	relays := w.relays(2)
	w.fundAndApprove(w.dai, 10, relays[0])
	w.dai.Mint(relays[1], domain.NewAmount(10)) // never approved
	e := migrationReady(t, w, relays)
	ctx := context.Background()

	require.ErrorIs(t, e.EndMigration(ctx, admin), ErrFirstPassIncomplete)

	// A suspended pass is not a completed pass.
	res, err := e.RunMigrationPass(ctx, NewGasMeter(10))
	require.NoError(t, err)
	require.False(t, res.Completed)
	require.ErrorIs(t, e.EndMigration(ctx, admin), ErrFirstPassIncomplete)

	res, err = e.RunMigrationPass(ctx, UnlimitedGas())
	require.NoError(t, err)
	require.True(t, res.Completed)
	require.Equal(t, 1, res.Failures)

	// Outstanding migration errors do not block closing.
	require.NoError(t, e.EndMigration(ctx, admin))
	require.ErrorIs(t, e.EndMigration(ctx, admin), ErrAlreadyClosed)

	_, err = e.RunMigrationPass(ctx, UnlimitedGas())
	require.ErrorIs(t, err, ErrAlreadyClosed)

	// Views stay valid after decommissioning.
	p, err := e.Pair(1)
	require.NoError(t, err)
	assert.Equal(t, relays[1], p.Source)
	assert.True(t, e.Flags().MigrationClosed)
}

func TestPhaseMonotonicity_GatesFailOutOfOrder(t *testing.T) {
	w := newWorld(t)
	e := w.open()
	ctx := context.Background()

	_, err := e.DeploySuccessors(ctx, UnlimitedGas())
	require.ErrorIs(t, err, ErrRegistrationOpen)
	_, err = e.RunMigrationPass(ctx, UnlimitedGas())
	require.ErrorIs(t, err, ErrMigrationNotStarted)
	require.ErrorIs(t, e.EndMigration(ctx, admin), ErrFirstPassIncomplete)

	var seen []domain.Stage
	seen = append(seen, e.Stage())

	require.NoError(t, e.EndRegistration(ctx, admin))
	seen = append(seen, e.Stage())
	_, err = e.RunMigrationPass(ctx, UnlimitedGas())
	require.ErrorIs(t, err, ErrMigrationNotStarted)

	// Empty population: deployment closes without provisioning anything.
	res, err := e.DeploySuccessors(ctx, UnlimitedGas())
	require.NoError(t, err)
	assert.True(t, res.Closed)
	assert.Equal(t, 0, res.Deployed)
	seen = append(seen, e.Stage())

	_, err = e.DeploySuccessors(ctx, UnlimitedGas())
	require.ErrorIs(t, err, ErrDeploymentClosed)

	require.NoError(t, e.StartMigration(ctx, admin))
	seen = append(seen, e.Stage())

	res2, err := e.RunMigrationPass(ctx, UnlimitedGas())
	require.NoError(t, err)
	assert.True(t, res2.Completed)
	seen = append(seen, e.Stage())

	require.NoError(t, e.EndMigration(ctx, admin))
	seen = append(seen, e.Stage())

	assert.Equal(t, []domain.Stage{
		domain.StageRegistering,
		domain.StageDeploying,
		domain.StageAwaitingApprovals,
		domain.StageMigrating,
		domain.StageFirstPassDone,
		domain.StageClosed,
	}, seen)

	transitions := w.rec.Transitions()
	require.Len(t, transitions, 5)
	for i, tr := range transitions {
		assert.Equal(t, seen[i], tr.From)
		assert.Equal(t, seen[i+1], tr.To)
		if i > 0 {
			assert.Greater(t, tr.Seq, transitions[i-1].Seq)
		}
	}
}

func TestPair_OutOfRange(t *testing.T) {
	w := newWorld(t)
	e := w.open()
	require.NoError(t, e.Register(context.Background(), admin, w.relays(2)))

	for _, i := range []int{-1, 2, 100} {
		_, err := e.Pair(i)
		require.ErrorIs(t, err, ErrIndexOutOfRange)
		var ce *Error
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, i, ce.Index)
	}
}

func TestErrorMessage(t *testing.T) {
	err := entityError("register", ErrDuplicateEntity, sim.AddressFor("x"), 3)
	assert.Contains(t, err.Error(), "register: DUPLICATE_ENTITY")
	assert.Contains(t, err.Error(), "(index=3)")
	assert.True(t, IsCallError(err))
	assert.False(t, IsCallError(errors.New("io")))
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
}
