package cli

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"

	"github.com/roach88/relaymigrate/internal/config"
	"github.com/roach88/relaymigrate/internal/engine"
	"github.com/roach88/relaymigrate/internal/store"
)

// session is an open engine with everything it depends on.
type session struct {
	cfg     *config.Config
	store   *store.Store
	backend *Backend
	engine  *engine.Engine
}

// loadConfig reads the configuration and applies flag overrides.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	path := o.ConfigPath
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		e := WrapExitError(ExitCommandError, "failed to load config", err)
		e.ErrCode = ErrCodeConfigInvalid
		if errors.Is(err, fs.ErrNotExist) {
			e.ErrCode = ErrCodeNotFound
		}
		return nil, e
	}
	if o.Database != "" {
		cfg.Database = o.Database
	}
	return cfg, nil
}

// openStore opens the configured database.
func openStore(cfg *config.Config) (*store.Store, error) {
	slog.Debug("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		e := WrapExitError(ExitCommandError, "failed to open database", err)
		e.ErrCode = ErrCodeDatabase
		return nil, e
	}
	return st, nil
}

// openSession loads configuration, opens the store, builds the backend and
// opens the engine. The caller must Close the session.
func (o *RootOptions) openSession(ctx context.Context) (*session, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, store: st}

	factory := o.Backends
	if factory == nil {
		factory = DialBackend
	}
	s.backend, err = factory(ctx, cfg)
	if err != nil {
		s.Close()
		e := WrapExitError(ExitCommandError, "failed to connect backend", err)
		e.ErrCode = ErrCodeBackend
		return nil, e
	}

	s.engine, err = engine.Open(ctx, st, s.backend.Collaborators,
		engine.WithCostSchedule(cfg.CostSchedule()))
	if err != nil {
		s.Close()
		return nil, classify("failed to open engine", err)
	}
	return s, nil
}

// Close releases the backend and the store.
func (s *session) Close() {
	if s.backend != nil && s.backend.Close != nil {
		s.backend.Close()
	}
	if err := s.store.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// budget returns a gas meter of gas units, or of fallback when gas is zero.
func budget(gas, fallback uint64) *engine.GasMeter {
	if gas == 0 {
		gas = fallback
	}
	return engine.NewGasMeter(gas)
}
