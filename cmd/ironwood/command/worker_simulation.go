package command

import (
	"context"

	"github.com/ironwood-sim/ironwood/internal/engine"
	"github.com/ironwood-sim/ironwood/internal/messaging"
	"github.com/ironwood-sim/ironwood/internal/storage"
	"github.com/ironwood-sim/ironwood/internal/world"
)

// simulationWorker advances world time. Its caches read through the bus; the
// computed frames flow back to the authority for persistence.
type simulationWorker struct {
	cfg *Config
}

func (w *simulationWorker) Start(ctx context.Context) error {
	bus, err := w.cfg.Bus.dial()
	if err != nil {
		return err
	}
	defer bus.Close()

	client := messaging.NewClient(bus)

	states := storage.NewSingletonCache(client.StateStore(), world.SimulationStateId)
	if err := states.Load(ctx); err != nil {
		return err
	}

	actors := storage.NewCache(client.ActorStore())
	if err := actors.Load(ctx); err != nil {
		return err
	}

	opts, err := w.cfg.Simulation.opts()
	if err != nil {
		return err
	}

	sim := engine.NewSimulation(messaging.NewFramePublisher(bus), states, actors, opts...)
	return sim.Start(ctx)
}
