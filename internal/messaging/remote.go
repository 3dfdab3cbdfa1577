package messaging

import (
	"context"
	"reflect"

	"github.com/ironwood-sim/ironwood/internal/storage"
	"github.com/ironwood-sim/ironwood/internal/world"
)

// remoteStore adapts the synchronous channel into a read-only store accessor.
// Writes are local-only and never persisted here: durable writes always
// happen inside the authority process.
type remoteStore[T storage.Record] struct {
	all func(ctx context.Context) ([]T, error)
	get func(ctx context.Context, id string) (T, error)
}

func (s *remoteStore[T]) LoadAll(ctx context.Context) (map[string]T, error) {
	records, err := s.all(ctx)
	if err != nil {
		return nil, err
	}

	byId := make(map[string]T, len(records))
	for _, record := range records {
		// A nil entry means the remote side has no record yet.
		if v := reflect.ValueOf(record); !v.IsValid() || (v.Kind() == reflect.Ptr && v.IsNil()) {
			continue
		}
		byId[record.Key()] = record
	}
	return byId, nil
}

func (s *remoteStore[T]) Get(ctx context.Context, id string) (T, error) {
	return s.get(ctx, id)
}

func (s *remoteStore[T]) Upsert(context.Context, T) error {
	return nil
}

func (s *remoteStore[T]) Delete(context.Context, string) error {
	return nil
}

func (s *remoteStore[T]) Close() error {
	return nil
}

// AccountStore returns a store accessor backed by the synchronous channel.
func (c *Client) AccountStore() storage.Storer[*world.Account] {
	return &remoteStore[*world.Account]{
		all: c.AllAccounts,
		get: c.Account,
	}
}

// ActorStore returns a store accessor backed by the synchronous channel.
func (c *Client) ActorStore() storage.Storer[*world.Actor] {
	return &remoteStore[*world.Actor]{
		all: c.AllActors,
		get: func(ctx context.Context, id string) (*world.Actor, error) {
			actors, err := c.AllActors(ctx)
			if err != nil {
				return nil, err
			}
			for _, actor := range actors {
				if actor.Id == id {
					return actor, nil
				}
			}
			return nil, nil
		},
	}
}

// StateStore returns a store accessor backed by the synchronous channel.
func (c *Client) StateStore() storage.Storer[*world.SimulationState] {
	return &remoteStore[*world.SimulationState]{
		all: func(ctx context.Context) ([]*world.SimulationState, error) {
			state, err := c.SimulationState(ctx)
			if err != nil {
				return nil, err
			}
			return []*world.SimulationState{state}, nil
		},
		get: func(ctx context.Context, _ string) (*world.SimulationState, error) {
			return c.SimulationState(ctx)
		},
	}
}

// FramePublisher emits one frame event per simulation tick on the dedicated
// broadcast channel.
type FramePublisher struct {
	bus *Bus
}

func NewFramePublisher(bus *Bus) *FramePublisher {
	return &FramePublisher{bus: bus}
}

func (p *FramePublisher) PublishFrame(state *world.SimulationState, updated []*world.Actor) error {
	env, err := NewEnvelope(KindSimulation, FramePayload{State: state, UpdatedActors: updated})
	if err != nil {
		return err
	}
	return p.bus.Publish(SubjectSimulationFrames, env)
}
