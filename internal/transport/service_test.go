package transport

import (
	"context"
	"testing"

	"github.com/ironwood-sim/ironwood/internal/connection"
	"github.com/ironwood-sim/ironwood/internal/messaging"
	"github.com/ironwood-sim/ironwood/internal/storage"
	"github.com/ironwood-sim/ironwood/internal/world"
	"github.com/pixil98/go-testutil"
)

type fakeStore[T storage.Record] struct {
	records map[string]T
}

func newFakeStore[T storage.Record]() *fakeStore[T] {
	return &fakeStore[T]{records: map[string]T{}}
}

func (s *fakeStore[T]) LoadAll(ctx context.Context) (map[string]T, error) {
	return s.records, nil
}

func (s *fakeStore[T]) Get(ctx context.Context, id string) (T, error) {
	return s.records[id], nil
}

func (s *fakeStore[T]) Upsert(ctx context.Context, record T) error {
	return nil
}

func (s *fakeStore[T]) Delete(ctx context.Context, id string) error {
	return nil
}

func (s *fakeStore[T]) Close() error {
	return nil
}

type closableConn struct {
	closed bool
}

func (c *closableConn) Close() error {
	c.closed = true
	return nil
}

// newTestService wires a service without a bus connection; only the local
// event folding paths are exercised.
func newTestService(t *testing.T) *Service {
	t.Helper()
	ctx := context.Background()

	accounts := storage.NewCache[*world.Account](newFakeStore[*world.Account]())
	if err := accounts.Load(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	actors := storage.NewCache[*world.Actor](newFakeStore[*world.Actor]())
	if err := actors.Load(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stateStore := newFakeStore[*world.SimulationState]()
	stateStore.records[world.SimulationStateId] = &world.SimulationState{Id: world.SimulationStateId}
	states := storage.NewSingletonCache[*world.SimulationState](stateStore, world.SimulationStateId)
	if err := states.Load(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	return NewService(nil, nil, accounts, actors, states,
		connection.NewSocketCache(), connection.NewRegistry())
}

func event(t *testing.T, kind string, payload any) messaging.Envelope {
	t.Helper()
	env, err := messaging.NewEnvelope(kind, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return env
}

func TestHandleModelEvent_SocketConnect(t *testing.T) {
	svc := newTestService(t)

	svc.handleModelEvent(context.Background(), event(t, messaging.KindSocketConnect,
		messaging.SocketConnectPayload{AccountId: "acct-1", SocketId: "sock-1"}))

	testutil.AssertEqual(t, "socket", svc.Sockets().ForId("acct-1"), "sock-1")
}

func TestHandleModelEvent_SocketDisconnect(t *testing.T) {
	svc := newTestService(t)
	conn := &closableConn{}
	svc.Registry().Connect("sock-1", "acct-1", conn)
	svc.Sockets().Set("acct-1", "sock-1")

	svc.handleModelEvent(context.Background(), event(t, messaging.KindSocketDisconnect,
		messaging.SocketDisconnectPayload{SocketId: "sock-1"}))

	testutil.AssertEqual(t, "socket", svc.Sockets().ForId("acct-1"), "")
	testutil.AssertEqual(t, "conn closed", conn.closed, true)
}

func TestHandleFrame_FoldsAndNotifies(t *testing.T) {
	svc := newTestService(t)
	svc.Actors().Put(&world.Actor{Id: "actor-1"})

	var gotState *world.SimulationState
	var gotUpdated []*world.Actor
	svc.OnFrame(func(state *world.SimulationState, updated []*world.Actor) {
		gotState = state
		gotUpdated = updated
	})

	moved := &world.Actor{Id: "actor-1", Posture: world.Posture{X: 7}}
	svc.handleFrame(event(t, messaging.KindSimulation, messaging.FramePayload{
		State:         &world.SimulationState{Id: world.SimulationStateId, SimulationTimeVelocity: 0.06},
		UpdatedActors: []*world.Actor{moved},
	}))

	testutil.AssertEqual(t, "cached velocity", svc.States().State().SimulationTimeVelocity, 0.06)
	testutil.AssertEqual(t, "cached actor x", svc.Actors().ForId("actor-1").Posture.X, 7.0)
	testutil.AssertEqual(t, "handler state", gotState.SimulationTimeVelocity, 0.06)
	testutil.AssertEqual(t, "handler actors", len(gotUpdated), 1)
}

func TestHandleFrame_IgnoresUnknownKind(t *testing.T) {
	svc := newTestService(t)

	called := false
	svc.OnFrame(func(state *world.SimulationState, updated []*world.Actor) {
		called = true
	})

	svc.handleFrame(messaging.Envelope{Kind: "NOT:A:FRAME"})
	testutil.AssertEqual(t, "handler called", called, false)
}
