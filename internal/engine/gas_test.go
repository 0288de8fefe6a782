package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGasMeter_ConsumeAndRemaining(t *testing.T) {
	m := NewGasMeter(100)

	m.Consume(30)
	assert.Equal(t, uint64(70), m.Remaining())
	assert.Equal(t, uint64(30), m.Used())

	m.Consume(80)
	assert.Equal(t, uint64(0), m.Remaining(), "overspend saturates at zero")
	assert.Equal(t, uint64(110), m.Used())
	assert.Equal(t, uint64(100), m.Limit())
}

func TestGasMeter_Unlimited(t *testing.T) {
	m := UnlimitedGas()
	m.Consume(1 << 40)
	assert.Equal(t, uint64(math.MaxUint64-(1<<40)), m.Remaining())

	m.Consume(math.MaxUint64)
	assert.Equal(t, uint64(math.MaxUint64), m.Used(), "used counter saturates")
}

func TestCostSchedule_Margins(t *testing.T) {
	c := CostSchedule{Provision: 100, KeyRead: 1, BalanceRead: 5, PullTransfer: 20, Bookkeeping: 10}

	assert.Equal(t, uint64(110), c.DeployMargin())
	assert.Equal(t, uint64(2*(5+20)+10), c.MigrationMargin(2))
	assert.Equal(t, uint64(10), c.MigrationMargin(0))
}

func TestCostSchedule_Validate(t *testing.T) {
	require.NoError(t, DefaultCosts.Validate())

	c := DefaultCosts
	c.PullTransfer = 0
	assert.Error(t, c.Validate())

	c = DefaultCosts
	c.KeyRead = 0
	assert.NoError(t, c.Validate(), "a free key read cannot stall a loop")
}
