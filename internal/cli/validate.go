package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/relaymigrate/internal/config"
)

// ConfigSummary is the output of validate-config.
type ConfigSummary struct {
	Path         string   `json:"path"`
	Database     string   `json:"database"`
	Admin        string   `json:"admin"`
	Ledgers      []string `json:"ledgers"`
	RPC          bool     `json:"rpc"`
	DeployBudget uint64   `json:"deploy_budget"`
	PassBudget   uint64   `json:"pass_budget"`
	DeployMargin uint64   `json:"deploy_margin"`
	PassMargin   uint64   `json:"pass_margin"`
}

// NewValidateConfigCommand creates the validate-config command.
func NewValidateConfigCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config [path]",
		Short: "Validate a configuration file",
		Long: `Validate a CUE configuration file against the built-in schema and print
the resolved values, including schema defaults and the gas margins each
call keeps in reserve.

Examples:
  relaymigrate validate-config
  relaymigrate validate-config ./prod.cue --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				rootOpts.ConfigPath = args[0]
			}
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}

			path := rootOpts.ConfigPath
			if path == "" {
				path = config.DefaultPath
			}
			costs := cfg.CostSchedule()
			types := cfg.BalanceTypes()
			ledgers := make([]string, len(types))
			for i, bt := range types {
				ledgers[i] = bt.String()
			}
			summary := ConfigSummary{
				Path:         path,
				Database:     cfg.Database,
				Admin:        cfg.Admin,
				Ledgers:      ledgers,
				RPC:          cfg.RPC != nil,
				DeployBudget: cfg.Gas.DeployBudget,
				PassBudget:   cfg.Gas.PassBudget,
				DeployMargin: costs.DeployMargin(),
				PassMargin:   costs.MigrationMargin(len(types)),
			}

			text := fmt.Sprintf("✓ %s is valid\n  database: %s\n  ledgers:  %s\n  deploy:   budget %d, margin %d\n  pass:     budget %d, margin %d",
				path, summary.Database, strings.Join(ledgers, ", "),
				summary.DeployBudget, summary.DeployMargin, summary.PassBudget, summary.PassMargin)
			return rootOpts.formatter(cmd).Success(summary, text)
		},
	}
}
