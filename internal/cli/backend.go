package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/relaymigrate/internal/config"
	"github.com/roach88/relaymigrate/internal/domain"
	"github.com/roach88/relaymigrate/internal/engine"
	"github.com/roach88/relaymigrate/internal/ethrpc"
)

// Backend is the set of live collaborators a command drives the engine with.
type Backend struct {
	Collaborators engine.Collaborators

	// Caller is the account privileged calls are made as.
	Caller domain.Address

	// Close releases the backend. May be nil.
	Close func()
}

// BackendFactory builds a Backend from configuration.
type BackendFactory func(ctx context.Context, cfg *config.Config) (*Backend, error)

// ErrNoRPC is returned by DialBackend when the configuration has no rpc section.
var ErrNoRPC = errors.New("configuration has no rpc section")

// DialBackend connects to the node named in cfg.RPC and binds every
// collaborator to it. The signing key is read from the environment variable
// named by cfg.RPC.KeyEnv; its address is both the caller and the migrator.
func DialBackend(ctx context.Context, cfg *config.Config) (*Backend, error) {
	if cfg.RPC == nil {
		return nil, ErrNoRPC
	}
	key, err := ethrpc.KeyFromEnv(cfg.RPC.KeyEnv)
	if err != nil {
		return nil, err
	}
	client, err := ethrpc.Dial(ctx, ethrpc.Options{
		URL:     cfg.RPC.URL,
		KeyHex:  key,
		ChainID: cfg.RPC.ChainID,
	})
	if err != nil {
		return nil, err
	}

	factory, err := domain.ParseAddress(cfg.Factory)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("factory: %w", err)
	}
	keys, err := domain.ParseAddress(cfg.KeyDirectory)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("keyDirectory: %w", err)
	}

	ledgers := make([]domain.TrackedLedger, 0, len(cfg.Ledgers))
	for _, l := range cfg.Ledgers {
		token, err := domain.ParseAddress(l.Token)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("ledger %s: %w", l.Symbol, err)
		}
		ledgers = append(ledgers, domain.TrackedLedger{
			Type:   domain.BalanceType(l.Symbol),
			Ledger: client.Ledger(token),
		})
	}

	return &Backend{
		Collaborators: engine.Collaborators{
			Factory: client.Factory(factory),
			Keys:    client.KeyDirectory(keys),
			Code:    client.Code(),
			Ledgers: ledgers,
		},
		Caller: client.Signer(),
		Close:  client.Close,
	}, nil
}
