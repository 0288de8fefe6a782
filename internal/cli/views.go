package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/relaymigrate/internal/domain"
	"github.com/roach88/relaymigrate/internal/engine"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show phase flags and progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				st := s.engine.Status()
				return rootOpts.formatter(cmd).Success(st, formatStatus(st))
			})
		},
	}
}

func formatStatus(st engine.Status) string {
	ledgers := make([]string, len(st.Ledgers))
	for i, l := range st.Ledgers {
		ledgers[i] = l.String()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Stage:            %s\n", st.Stage)
	fmt.Fprintf(&b, "Admin:            %s\n", st.Admin)
	fmt.Fprintf(&b, "Population:       %d\n", st.Population)
	fmt.Fprintf(&b, "Successors:       %d\n", st.Successors)
	fmt.Fprintf(&b, "Cursor:           %d\n", st.Cursor)
	fmt.Fprintf(&b, "Passes completed: %d\n", st.PassesCompleted)
	fmt.Fprintf(&b, "Ledgers:          %s\n", strings.Join(ledgers, ", "))
	fmt.Fprintf(&b, "Flags:            registration_closed=%t deployment_closed=%t migration_started=%t first_pass_done=%t migration_closed=%t",
		st.Flags.RegistrationClosed, st.Flags.DeploymentClosed, st.Flags.MigrationStarted,
		st.Flags.MigrationFirstPassDone, st.Flags.MigrationClosed)
	return b.String()
}

// NewPairCommand creates the pair command.
func NewPairCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pair <index>",
		Short: "Show a relay and its successor",
		Long: `Show the relay registered at index and the successor provisioned for it.
The successor is the zero address until deployment reaches that index.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid index", err)
			}
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				p, err := s.engine.Pair(index)
				if err != nil {
					return classify("pair failed", err)
				}
				return rootOpts.formatter(cmd).Success(p,
					fmt.Sprintf("%d: %s -> %s", p.Index, p.Source.Hex(), p.Successor.Hex()))
			})
		},
	}
}

// ErrorsOptions holds flags for the errors command.
type ErrorsOptions struct {
	*RootOptions
	Pass int
}

// MigrationErrorView is the output form of a migration error record.
type MigrationErrorView struct {
	ID          string `json:"id"`
	Seq         int64  `json:"seq"`
	CallID      string `json:"call_id"`
	Pass        int    `json:"pass"`
	Index       int    `json:"index"`
	BalanceType string `json:"balance_type"`
	Source      string `json:"source"`
	Successor   string `json:"successor"`
	Amount      string `json:"amount"`
	Reason      string `json:"reason"`
}

func newMigrationErrorView(rec domain.MigrationError) MigrationErrorView {
	return MigrationErrorView{
		ID:          rec.ID,
		Seq:         rec.Seq,
		CallID:      rec.CallID,
		Pass:        rec.Pass,
		Index:       rec.Index,
		BalanceType: rec.BalanceType.String(),
		Source:      rec.Source.Hex(),
		Successor:   rec.Successor.Hex(),
		Amount:      domain.FormatAmount(rec.Amount),
		Reason:      rec.Reason,
	}
}

// NewErrorsCommand creates the errors command.
func NewErrorsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ErrorsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "errors",
		Short: "List recorded migration errors",
		Long: `List the transfers that failed during migration passes, oldest first.
Each record names the relay, the successor, the balance type, the amount
and the reason the ledger gave.

Example:
  relaymigrate errors --pass 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := st.Close(); closeErr != nil {
					slog.Error("error closing database", "error", closeErr)
				}
			}()

			records, err := st.MigrationErrors(commandContext(cmd), opts.Pass)
			if err != nil {
				e := WrapExitError(ExitCommandError, "failed to read migration errors", err)
				e.ErrCode = ErrCodeDatabase
				return e
			}

			views := make([]MigrationErrorView, len(records))
			lines := make([]string, 0, len(records)+1)
			for i, rec := range records {
				views[i] = newMigrationErrorView(rec)
				lines = append(lines, fmt.Sprintf("pass %d index %d %s %s -> %s %s: %s",
					rec.Pass, rec.Index, rec.BalanceType, rec.Source.Hex(), rec.Successor.Hex(),
					domain.FormatAmount(rec.Amount), rec.Reason))
			}
			lines = append(lines, fmt.Sprintf("%d migration error(s)", len(records)))
			return opts.formatter(cmd).Success(views, strings.Join(lines, "\n"))
		},
	}

	cmd.Flags().IntVar(&opts.Pass, "pass", 0, "only show errors from this pass (0 = all)")

	return cmd
}
