package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/relaymigrate/internal/domain"
	"github.com/roach88/relaymigrate/internal/engine"
)

// withSession opens a session for the duration of fn.
func withSession(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	ctx := commandContext(cmd)
	s, err := opts.openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}

// commandContext returns the command's context, or Background if unset.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Bind the database to the configured administrator",
		Long: `Create the SQLite database if needed and bind it to the administrator
named in the configuration. Running init again with the same administrator
is a no-op; a different administrator is rejected.

Example:
  relaymigrate init --config ./relaymigrate.cue`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			admin, err := cfg.AdminAddress()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid admin", err)
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

			if err := st.Init(commandContext(cmd), admin); err != nil {
				return classify("failed to initialize database", err)
			}
			slog.Info("database initialized", "path", cfg.Database, "admin", admin.Hex())

			data := map[string]string{"database": cfg.Database, "admin": admin.Hex()}
			return rootOpts.formatter(cmd).Success(data,
				fmt.Sprintf("Initialized %s (admin %s)", cfg.Database, admin.Hex()))
		},
	}
}

// NewRegisterCommand creates the register command.
func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "register <address>...",
		Short: "Register source relays for migration",
		Long: `Append relay contracts to the population, in argument order.

The batch is all-or-nothing: a duplicate or a non-contract address rejects
every address in the call.

Example:
  relaymigrate register 0xAbc... 0xDef...`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := domain.ParseAddresses(args)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid address", err)
			}
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				if err := s.engine.Register(ctx, s.backend.Caller, ids); err != nil {
					return classify("register failed", err)
				}
				data := map[string]int{"registered": len(ids), "population": s.engine.PopulationSize()}
				return rootOpts.formatter(cmd).Success(data,
					fmt.Sprintf("Registered %d relay(s); population %d", len(ids), s.engine.PopulationSize()))
			})
		},
	}
}

// newGateCommand builds a command that calls one argument-less gate.
func newGateCommand(rootOpts *RootOptions, use, short, long string, gate func(*engine.Engine) func(context.Context, domain.Address) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Long:  long,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				if err := gate(s.engine)(ctx, s.backend.Caller); err != nil {
					return classify(use+" failed", err)
				}
				st := s.engine.Status()
				return rootOpts.formatter(cmd).Success(st, "Stage: "+st.Stage)
			})
		},
	}
}

// NewEndRegistrationCommand creates the end-registration command.
func NewEndRegistrationCommand(rootOpts *RootOptions) *cobra.Command {
	return newGateCommand(rootOpts, "end-registration",
		"Close registration",
		`Close the registration phase. The population is frozen from here on
and successor deployment may begin.`,
		func(e *engine.Engine) func(context.Context, domain.Address) error { return e.EndRegistration })
}

// NewStartCommand creates the start command.
func NewStartCommand(rootOpts *RootOptions) *cobra.Command {
	return newGateCommand(rootOpts, "start",
		"Open the migration phase",
		`Open the migration phase. Every relay must have a successor, so
deployment has to be closed first.`,
		func(e *engine.Engine) func(context.Context, domain.Address) error { return e.StartMigration })
}

// NewEndCommand creates the end command.
func NewEndCommand(rootOpts *RootOptions) *cobra.Command {
	return newGateCommand(rootOpts, "end",
		"Close the migration",
		`Close the migration for good. At least one full pass must have
completed. Outstanding migration errors do not block closing.`,
		func(e *engine.Engine) func(context.Context, domain.Address) error { return e.EndMigration })
}
