package command

import (
	"context"

	"github.com/ironwood-sim/ironwood/internal/account"
	"github.com/ironwood-sim/ironwood/internal/connection"
	"github.com/ironwood-sim/ironwood/internal/gateway"
	"github.com/ironwood-sim/ironwood/internal/messaging"
	"github.com/ironwood-sim/ironwood/internal/storage"
	"github.com/ironwood-sim/ironwood/internal/transport"
	"github.com/ironwood-sim/ironwood/internal/world"
	"github.com/pixil98/go-service"
)

// transportWorker terminates client connections: an HTTP gateway for account
// calls and websockets, backed by read-through caches kept current by bus
// events.
type transportWorker struct {
	cfg *Config
}

func (w *transportWorker) Start(ctx context.Context) error {
	bus, err := w.cfg.Bus.dial()
	if err != nil {
		return err
	}
	defer bus.Close()

	client := messaging.NewClient(bus)

	accounts := storage.NewCache(client.AccountStore(),
		storage.WithIndex(func(a *world.Account) string {
			return account.CanonicalUsername(a.Username)
		}))
	actors := storage.NewCache(client.ActorStore())
	states := storage.NewSingletonCache(client.StateStore(), world.SimulationStateId)

	svc := transport.NewService(bus, client, accounts, actors, states,
		connection.NewSocketCache(), connection.NewRegistry())

	port, err := w.cfg.Gateway.port()
	if err != nil {
		return err
	}
	gw := gateway.NewGateway(port, account.NewManager(client, accounts), client, svc)

	workers := service.WorkerList{
		"service": svc,
		"gateway": gw,
	}
	return (&workers).Start(ctx)
}
