package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ironwood-sim/ironwood/internal/connection"
	"github.com/ironwood-sim/ironwood/internal/messaging"
	"github.com/ironwood-sim/ironwood/internal/storage"
	"github.com/ironwood-sim/ironwood/internal/world"
)

// FrameHandler receives each simulation frame after it has been folded into
// the local caches.
type FrameHandler func(state *world.SimulationState, updated []*world.Actor)

// Service is one transport worker's model-side wiring: remote-backed caches
// kept fresh from authority broadcasts, the replicated socket mapping, and
// the local connection registry. It never writes durable state directly.
type Service struct {
	bus    *messaging.Bus
	client *messaging.Client

	accounts *storage.Cache[*world.Account]
	actors   *storage.Cache[*world.Actor]
	states   *storage.SingletonCache[*world.SimulationState]

	sockets  *connection.SocketCache
	registry *connection.Registry

	mu            sync.Mutex
	frameHandlers []FrameHandler
}

func NewService(bus *messaging.Bus, client *messaging.Client, accounts *storage.Cache[*world.Account], actors *storage.Cache[*world.Actor], states *storage.SingletonCache[*world.SimulationState], sockets *connection.SocketCache, registry *connection.Registry) *Service {
	return &Service{
		bus:      bus,
		client:   client,
		accounts: accounts,
		actors:   actors,
		states:   states,
		sockets:  sockets,
		registry: registry,
	}
}

// OnFrame registers a handler invoked for every received simulation frame.
func (s *Service) OnFrame(handler FrameHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frameHandlers = append(s.frameHandlers, handler)
}

func (s *Service) Accounts() *storage.Cache[*world.Account] { return s.accounts }
func (s *Service) Actors() *storage.Cache[*world.Actor]     { return s.actors }
func (s *Service) Sockets() *connection.SocketCache         { return s.sockets }
func (s *Service) Registry() *connection.Registry           { return s.registry }

func (s *Service) States() *storage.SingletonCache[*world.SimulationState] {
	return s.states
}

func (s *Service) Start(ctx context.Context) error {
	if err := s.accounts.Load(ctx); err != nil {
		return fmt.Errorf("loading accounts: %w", err)
	}
	if err := s.actors.Load(ctx); err != nil {
		return fmt.Errorf("loading actors: %w", err)
	}
	if err := s.states.Load(ctx); err != nil {
		return fmt.Errorf("loading simulation state: %w", err)
	}

	unsubscribeModel, err := s.bus.Subscribe(messaging.SubjectModelEvents, func(env messaging.Envelope) {
		s.handleModelEvent(ctx, env)
	})
	if err != nil {
		return fmt.Errorf("subscribing to model events: %w", err)
	}
	defer unsubscribeModel()

	unsubscribeFrames, err := s.bus.Subscribe(messaging.SubjectSimulationFrames, s.handleFrame)
	if err != nil {
		return fmt.Errorf("subscribing to simulation frames: %w", err)
	}
	defer unsubscribeFrames()

	slog.InfoContext(ctx, "transport service started")

	<-ctx.Done()
	s.registry.CloseAll()
	return nil
}

// ConnectSocket records a new session locally and announces it so the
// authority replicates the mapping to every worker.
func (s *Service) ConnectSocket(socketId, accountId string) {
	s.publish(messaging.KindSocketConnect, messaging.SocketConnectPayload{AccountId: accountId, SocketId: socketId})
}

// DisconnectSocket tears the session down locally (if resident) and
// announces the disconnect so every other worker converges.
func (s *Service) DisconnectSocket(socketId string) {
	s.registry.Disconnect(socketId)
	s.publish(messaging.KindSocketDisconnect, messaging.SocketDisconnectPayload{SocketId: socketId})
}

// SaveView forwards an account's view window target to the authority.
func (s *Service) SaveView(accountId string, viewX, viewY int) {
	s.publish(messaging.KindViewSave, messaging.ViewSavePayload{AccountId: accountId, ViewX: viewX, ViewY: viewY})
}

func (s *Service) handleModelEvent(ctx context.Context, env messaging.Envelope) {
	switch env.Kind {
	case messaging.KindSocketConnect:
		var p messaging.SocketConnectPayload
		if err := env.Decode(&p); err != nil {
			slog.Warn("malformed socket connect notice", "error", err)
			return
		}
		s.sockets.Set(p.AccountId, p.SocketId)

	case messaging.KindSocketDisconnect:
		var p messaging.SocketDisconnectPayload
		if err := env.Decode(&p); err != nil {
			slog.Warn("malformed socket disconnect notice", "error", err)
			return
		}
		s.sockets.ClearBySocketId(p.SocketId)
		s.registry.Disconnect(p.SocketId)

	case messaging.KindAccountUpdate:
		var p messaging.AccountUpdatePayload
		if err := env.Decode(&p); err != nil {
			slog.Warn("malformed account update notice", "error", err)
			return
		}
		account, err := s.client.Account(ctx, p.Id)
		if err != nil {
			slog.Warn("fetching updated account", "account_id", p.Id, "error", err)
			return
		}
		if account != nil {
			s.accounts.Put(account)
		}

	default:
		slog.Warn("unknown model event kind", "kind", env.Kind)
	}
}

func (s *Service) handleFrame(env messaging.Envelope) {
	if env.Kind != messaging.KindSimulation {
		slog.Warn("unknown frame kind", "kind", env.Kind)
		return
	}

	var p messaging.FramePayload
	if err := env.Decode(&p); err != nil {
		slog.Warn("malformed simulation frame", "error", err)
		return
	}

	if p.State != nil {
		s.states.Update(p.State)
	}
	s.actors.Update(p.UpdatedActors...)

	s.mu.Lock()
	handlers := make([]FrameHandler, len(s.frameHandlers))
	copy(handlers, s.frameHandlers)
	s.mu.Unlock()

	for _, handler := range handlers {
		handler(p.State, p.UpdatedActors)
	}
}

func (s *Service) publish(kind string, payload any) {
	env, err := messaging.NewEnvelope(kind, payload)
	if err != nil {
		slog.Error("building worker event", "kind", kind, "error", err)
		return
	}
	if err := s.bus.Publish(messaging.SubjectWorkerEvents, env); err != nil {
		slog.Error("publishing worker event", "kind", kind, "error", err)
	}
}
