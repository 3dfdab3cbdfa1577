package authority

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pixil98/go-errors"

	"github.com/ironwood-sim/ironwood/internal/messaging"
	"github.com/ironwood-sim/ironwood/internal/storage"
	"github.com/ironwood-sim/ironwood/internal/world"
)

// DefaultFlushInterval is how often dirty cache entries are persisted.
const DefaultFlushInterval = 5 * time.Minute

// publisher is the slice of the bus the service needs for broadcasts.
type publisher interface {
	Publish(subject string, env messaging.Envelope) error
}

// requestHandler is the slice of the bus the service needs for the
// synchronous channel.
type requestHandler interface {
	HandleRequests(handler func(messaging.Envelope) messaging.Envelope) (func(), error)
}

type subscriber interface {
	Subscribe(subject string, handler func(messaging.Envelope)) (func(), error)
}

// Bus is the authority's view of the message bus.
type Bus interface {
	publisher
	requestHandler
	subscriber
}

// Service is the authority role: it owns the only writable stores, answers
// every synchronous query, and relays socket lifecycle notices between
// transport workers.
type Service struct {
	bus Bus

	accountStore storage.Storer[*world.Account]
	accounts     *storage.Cache[*world.Account]
	actors       *storage.Cache[*world.Actor]
	states       *storage.SingletonCache[*world.SimulationState]
	tokens       *TokenStore

	flushInterval time.Duration
}

type ServiceOpt func(*Service)

// WithFlushInterval overrides the periodic persistence interval
func WithFlushInterval(d time.Duration) ServiceOpt {
	return func(s *Service) {
		s.flushInterval = d
	}
}

func NewService(bus Bus, accountStore storage.Storer[*world.Account], accounts *storage.Cache[*world.Account], actors *storage.Cache[*world.Actor], states *storage.SingletonCache[*world.SimulationState], tokens *TokenStore, opts ...ServiceOpt) *Service {
	s := &Service{
		bus:           bus,
		accountStore:  accountStore,
		accounts:      accounts,
		actors:        actors,
		states:        states,
		tokens:        tokens,
		flushInterval: DefaultFlushInterval,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Service) Start(ctx context.Context) error {
	// State must be usable before answering anything; exhausted retries are
	// fatal to this process.
	if err := s.accounts.Load(ctx); err != nil {
		return fmt.Errorf("loading accounts: %w", err)
	}
	if err := s.actors.Load(ctx); err != nil {
		return fmt.Errorf("loading actors: %w", err)
	}
	if err := s.states.Load(ctx); err != nil {
		return fmt.Errorf("loading simulation state: %w", err)
	}

	unsubscribeAPI, err := s.bus.HandleRequests(s.handleRequest)
	if err != nil {
		return fmt.Errorf("binding synchronous channel: %w", err)
	}
	defer unsubscribeAPI()

	unsubscribeWorkers, err := s.bus.Subscribe(messaging.SubjectWorkerEvents, s.handleWorkerEvent)
	if err != nil {
		return fmt.Errorf("subscribing to worker events: %w", err)
	}
	defer unsubscribeWorkers()

	unsubscribeFrames, err := s.bus.Subscribe(messaging.SubjectSimulationFrames, s.handleFrame)
	if err != nil {
		return fmt.Errorf("subscribing to simulation frames: %w", err)
	}
	defer unsubscribeFrames()

	slog.InfoContext(ctx, "authority service started")

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return s.drain()
		case <-ticker.C:
			s.flush(ctx)
		}
	}
}

// flush persists dirty entries; failures keep everything dirty and retry at
// the next interval.
func (s *Service) flush(ctx context.Context) {
	if err := s.actors.Flush(ctx); err != nil {
		slog.ErrorContext(ctx, "flushing actors", "error", err)
	}
	if err := s.states.Flush(ctx); err != nil {
		slog.ErrorContext(ctx, "flushing simulation state", "error", err)
	}
	if err := s.accounts.Flush(ctx); err != nil {
		slog.ErrorContext(ctx, "flushing accounts", "error", err)
	}
}

// drain completes a final flush of every cache before closing the underlying
// stores, so no write is lost to the shutdown.
func (s *Service) drain() error {
	slog.Info("authority service draining")

	ctx := context.Background()
	el := errors.NewErrorList()
	el.Add(s.actors.Flush(ctx))
	el.Add(s.states.Flush(ctx))
	el.Add(s.accounts.Flush(ctx))

	el.Add(s.actors.Close())
	el.Add(s.states.Close())
	el.Add(s.accounts.Close())
	el.Add(s.tokens.Close())

	return el.Err()
}
