package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relaymigrate/internal/domain"
	"github.com/roach88/relaymigrate/internal/engine"
)

const minimal = `
admin:        "0x00000000000000000000000000000000000000aD"
factory:      "0x00000000000000000000000000000000000000f1"
keyDirectory: "0x00000000000000000000000000000000000000d1"
ledgers: [
	{symbol: "dai", token: "0x6B175474E89094C44Da98b954EedeAC495271d0F"},
	{symbol: "Mkr", token: "0x9f8F72aA9304c8B593d555F12eF6589cC3A579A2"},
]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultPath)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimal))
	require.NoError(t, err)

	assert.Equal(t, "relaymigrate.db", cfg.Database)
	assert.Nil(t, cfg.RPC)
	assert.Equal(t, uint64(30000000), cfg.Gas.DeployBudget)
	assert.Equal(t, uint64(30000000), cfg.Gas.PassBudget)
	assert.Equal(t, engine.DefaultCosts, cfg.CostSchedule())

	admin, err := cfg.AdminAddress()
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xad"), admin)
}

func TestLoad_CanonicalisesSymbolsInOrder(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimal))
	require.NoError(t, err)

	assert.Equal(t, []domain.BalanceType{"DAI", "MKR"}, cfg.BalanceTypes())
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimal+`
database: "/var/lib/relaymigrate/state.db"
rpc: {
	url:     "http://localhost:8545"
	chainId: 1
}
gas: {
	passBudget: 500000
	costs: pullTransfer: 80000
}
`))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/relaymigrate/state.db", cfg.Database)
	require.NotNil(t, cfg.RPC)
	assert.Equal(t, "http://localhost:8545", cfg.RPC.URL)
	assert.Equal(t, "RELAYMIGRATE_KEY", cfg.RPC.KeyEnv)
	assert.Equal(t, int64(1), cfg.RPC.ChainID)
	assert.Equal(t, uint64(500000), cfg.Gas.PassBudget)
	assert.Equal(t, uint64(80000), cfg.Gas.Costs.PullTransfer)
	assert.Equal(t, uint64(250000), cfg.Gas.Costs.Provision)
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown field", minimal + "\nbudget: 10\n"},
		{"malformed admin", `
admin:        "0x12"
factory:      "0x00000000000000000000000000000000000000f1"
keyDirectory: "0x00000000000000000000000000000000000000d1"
ledgers: [{symbol: "DAI", token: "0x6B175474E89094C44Da98b954EedeAC495271d0F"}]
`},
		{"no ledgers", `
admin:        "0x00000000000000000000000000000000000000aD"
factory:      "0x00000000000000000000000000000000000000f1"
keyDirectory: "0x00000000000000000000000000000000000000d1"
ledgers: []
`},
		{"duplicate symbol after upper-casing", `
admin:        "0x00000000000000000000000000000000000000aD"
factory:      "0x00000000000000000000000000000000000000f1"
keyDirectory: "0x00000000000000000000000000000000000000d1"
ledgers: [
	{symbol: "dai", token: "0x6B175474E89094C44Da98b954EedeAC495271d0F"},
	{symbol: "DAI", token: "0x9f8F72aA9304c8B593d555F12eF6589cC3A579A2"},
]
`},
		{"zero cost", minimal + "\ngas: costs: provision: 0\n"},
		{"missing factory", `
admin:        "0x00000000000000000000000000000000000000aD"
keyDirectory: "0x00000000000000000000000000000000000000d1"
ledgers: [{symbol: "DAI", token: "0x6B175474E89094C44Da98b954EedeAC495271d0F"}]
`},
		{"not cue", "admin: {{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.cue"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}
