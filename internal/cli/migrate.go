package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// DeployOptions holds flags for the deploy command.
type DeployOptions struct {
	*RootOptions
	Gas uint64
}

// NewDeployCommand creates the deploy command.
func NewDeployCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeployOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Provision successors within a gas budget",
		Long: `Provision one successor per registered relay, in registration order,
until every relay has one or the gas budget runs low. The authorization key
is read once per call. Run deploy again to continue; deployment closes when
the last successor is provisioned.

Example:
  relaymigrate deploy --gas 5000000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts.RootOptions, cmd, func(ctx context.Context, s *session) error {
				res, err := s.engine.DeploySuccessors(ctx, budget(opts.Gas, s.cfg.Gas.DeployBudget))
				if err != nil {
					return classify("deploy failed", err)
				}
				opts.formatter(cmd).VerboseLog("call %s used %d gas", res.CallID, res.GasUsed)
				text := fmt.Sprintf("Deployed %d successor(s); %d/%d provisioned", res.Deployed, res.Total, res.Target)
				if res.Closed {
					text += "; deployment closed"
				}
				return opts.formatter(cmd).Success(res, text)
			})
		},
	}

	cmd.Flags().Uint64Var(&opts.Gas, "gas", 0, "gas budget for this call (default from config)")

	return cmd
}

// PassOptions holds flags for the pass command.
type PassOptions struct {
	*RootOptions
	Gas uint64
}

// NewPassCommand creates the pass command.
func NewPassCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PassOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "pass",
		Short: "Run or resume a migration pass within a gas budget",
		Long: `Move every tracked balance from each relay to its successor, resuming at
the persisted cursor. A transfer that fails is recorded as a migration error
and the pass moves on. The call stops when the gas budget runs low; run
pass again to continue. Passes may be repeated until the migration is closed.

Example:
  relaymigrate pass --gas 8000000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts.RootOptions, cmd, func(ctx context.Context, s *session) error {
				res, err := s.engine.RunMigrationPass(ctx, budget(opts.Gas, s.cfg.Gas.PassBudget))
				if err != nil {
					return classify("pass failed", err)
				}
				opts.formatter(cmd).VerboseLog("call %s used %d gas", res.CallID, res.GasUsed)
				text := fmt.Sprintf("Pass %d: processed %d pair(s) from index %d; %d transfer(s), %d failure(s)",
					res.Pass, res.Processed, res.From, res.Transfers, res.Failures)
				if res.Completed {
					text += "; pass complete"
				} else {
					text += fmt.Sprintf("; resume at index %d", res.To)
				}
				return opts.formatter(cmd).Success(res, text)
			})
		},
	}

	cmd.Flags().Uint64Var(&opts.Gas, "gas", 0, "gas budget for this call (default from config)")

	return cmd
}
