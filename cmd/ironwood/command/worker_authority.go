package command

import (
	"context"
	"time"

	"github.com/ironwood-sim/ironwood/internal/account"
	"github.com/ironwood-sim/ironwood/internal/authority"
	"github.com/ironwood-sim/ironwood/internal/storage"
	"github.com/ironwood-sim/ironwood/internal/world"
)

// authorityWorker runs the single writable copy of the world: the durable
// stores, their caches, and the request handler every other role queries.
type authorityWorker struct {
	cfg *Config
}

func (w *authorityWorker) Start(ctx context.Context) error {
	bus, err := w.cfg.Bus.dial()
	if err != nil {
		return err
	}
	defer bus.Close()

	stores, err := w.cfg.Storage.BuildStores(ctx)
	if err != nil {
		return err
	}
	defer stores.Close()

	accounts := storage.NewCache(stores.Accounts,
		storage.WithIndex(func(a *world.Account) string {
			return account.CanonicalUsername(a.Username)
		}))
	actors := storage.NewCache(stores.Actors)
	states := storage.NewSingletonCache(stores.States, world.SimulationStateId,
		storage.WithSeed(func() *world.SimulationState {
			now := time.Now()
			return &world.SimulationState{
				Id:             world.SimulationStateId,
				SimulationTime: now,
				ServerTime:     now.UnixMilli(),
			}
		}))
	tokens := authority.NewTokenStore(stores.Tokens)

	svc := authority.NewService(bus, stores.Accounts, accounts, actors, states, tokens)
	return svc.Start(ctx)
}
