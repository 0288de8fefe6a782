package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/relaymigrate/internal/domain"
	"github.com/roach88/relaymigrate/internal/sim"
	"github.com/roach88/relaymigrate/internal/store"
)

// testCosts keeps budget arithmetic readable:
// DeployMargin = 11, MigrationMargin(2) = 9.
var testCosts = CostSchedule{Provision: 10, KeyRead: 1, BalanceRead: 1, PullTransfer: 3, Bookkeeping: 1}

var (
	admin    = sim.AddressFor("admin")
	migrator = sim.AddressFor("migrator")
	stranger = sim.AddressFor("stranger")
)

// world is a simulated chain plus an engine store.
type world struct {
	t       *testing.T
	path    string
	store   *store.Store
	chain   *sim.Chain
	factory *sim.Factory
	keys    *sim.KeyDirectory
	dai     *sim.Ledger
	mkr     *sim.Ledger
	rec     *Recorder
}

func newWorld(t *testing.T) *world {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Init(context.Background(), admin))

	chain := sim.NewChain()
	return &world{
		t:       t,
		path:    path,
		store:   st,
		chain:   chain,
		factory: sim.NewFactory(chain, sim.AddressFor("factory")),
		keys:    sim.NewKeyDirectory(sim.AddressFor("key-1")),
		dai:     sim.NewLedger("DAI"),
		mkr:     sim.NewLedger("MKR"),
		rec:     &Recorder{},
	}
}

func (w *world) collaborators() Collaborators {
	return Collaborators{
		Factory: w.factory,
		Keys:    w.keys,
		Code:    w.chain,
		Ledgers: []domain.TrackedLedger{w.dai.Tracked(migrator), w.mkr.Tracked(migrator)},
	}
}

// open loads an engine from the world's store.
func (w *world) open() *Engine {
	w.t.Helper()
	e, err := Open(context.Background(), w.store, w.collaborators(),
		WithCostSchedule(testCosts),
		WithCallIDGenerator(&seqGen{}),
		WithObserver(w.rec),
	)
	require.NoError(w.t, err)
	return e
}

// relays deploys n relay contracts named relay-0..relay-n-1.
func (w *world) relays(n int) []domain.Address {
	out := make([]domain.Address, n)
	for i := range out {
		out[i] = sim.AddressFor(fmt.Sprintf("relay-%d", i))
	}
	w.chain.Deploy(out...)
	return out
}

// fundAndApprove mints amount of l to each relay and approves the migrator.
func (w *world) fundAndApprove(l *sim.Ledger, amount uint64, relays ...domain.Address) {
	for _, r := range relays {
		l.Mint(r, domain.NewAmount(amount))
		l.ApproveUnlimited(r, migrator)
	}
}

// seqGen yields call-1, call-2, ... without running out.
type seqGen struct{ n int }

func (g *seqGen) Generate() string {
	g.n++
	return fmt.Sprintf("call-%d", g.n)
}

// migrationReady registers relays, deploys successors and starts migration.
func migrationReady(t *testing.T, w *world, relays []domain.Address) *Engine {
	t.Helper()
	ctx := context.Background()
	e := w.open()
	require.NoError(t, e.Register(ctx, admin, relays))
	require.NoError(t, e.EndRegistration(ctx, admin))
	res, err := e.DeploySuccessors(ctx, UnlimitedGas())
	require.NoError(t, err)
	require.True(t, res.Closed)
	require.NoError(t, e.StartMigration(ctx, admin))
	return e
}
