// Package config loads the relaymigrate CUE configuration file.
//
// A configuration file is unified with the embedded #Config schema, so
// unknown fields, malformed addresses and missing ledgers are rejected
// before any Go code sees the values. Defaults for the database path and
// the gas section come from the schema.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/relaymigrate/internal/domain"
	"github.com/roach88/relaymigrate/internal/engine"
)

//go:embed schema.cue
var schemaCUE string

// DefaultPath is the configuration file looked up when none is given.
const DefaultPath = "relaymigrate.cue"

// Config is the decoded configuration.
type Config struct {
	Database     string   `json:"database"`
	Admin        string   `json:"admin"`
	Factory      string   `json:"factory"`
	KeyDirectory string   `json:"keyDirectory"`
	RPC          *RPC     `json:"rpc,omitempty"`
	Ledgers      []Ledger `json:"ledgers"`
	Gas          Gas      `json:"gas"`
}

// RPC locates the node and the signing key.
type RPC struct {
	URL     string `json:"url"`
	KeyEnv  string `json:"keyEnv"`
	ChainID int64  `json:"chainId,omitempty"`
}

// Ledger is one tracked token.
type Ledger struct {
	Symbol string `json:"symbol"`
	Token  string `json:"token"`
}

// Gas holds per-call budgets and the cost schedule.
type Gas struct {
	DeployBudget uint64 `json:"deployBudget"`
	PassBudget   uint64 `json:"passBudget"`
	Costs        Costs  `json:"costs"`
}

// Costs mirrors engine.CostSchedule.
type Costs struct {
	Provision    uint64 `json:"provision"`
	KeyRead      uint64 `json:"keyRead"`
	BalanceRead  uint64 `json:"balanceRead"`
	PullTransfer uint64 `json:"pullTransfer"`
	Bookkeeping  uint64 `json:"bookkeeping"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, data)
}

// Parse validates data against the schema and decodes it. filename is used
// in error positions only.
func Parse(filename string, data []byte) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	unified := def.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	var cfg Config
	if err := unified.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// normalize upper-cases ledger symbols and checks what the schema cannot.
func (c *Config) normalize() error {
	upper := cases.Upper(language.Und)
	seen := make(map[string]int, len(c.Ledgers))
	for i := range c.Ledgers {
		sym := upper.String(c.Ledgers[i].Symbol)
		if j, dup := seen[sym]; dup {
			return fmt.Errorf("ledgers[%d]: symbol %s already used by ledgers[%d]", i, sym, j)
		}
		seen[sym] = i
		c.Ledgers[i].Symbol = sym
	}
	if err := c.CostSchedule().Validate(); err != nil {
		return fmt.Errorf("gas.costs: %w", err)
	}
	return nil
}

// AdminAddress returns the parsed administrator address.
func (c *Config) AdminAddress() (domain.Address, error) {
	return domain.ParseAddress(c.Admin)
}

// CostSchedule converts the gas costs for the engine.
func (c *Config) CostSchedule() engine.CostSchedule {
	return engine.CostSchedule{
		Provision:    c.Gas.Costs.Provision,
		KeyRead:      c.Gas.Costs.KeyRead,
		BalanceRead:  c.Gas.Costs.BalanceRead,
		PullTransfer: c.Gas.Costs.PullTransfer,
		Bookkeeping:  c.Gas.Costs.Bookkeeping,
	}
}

// BalanceTypes returns the ledger symbols in configured order.
func (c *Config) BalanceTypes() []domain.BalanceType {
	out := make([]domain.BalanceType, len(c.Ledgers))
	for i, l := range c.Ledgers {
		out[i] = domain.BalanceType(l.Symbol)
	}
	return out
}
