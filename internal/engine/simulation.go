package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/ironwood-sim/ironwood/internal/storage"
	"github.com/ironwood-sim/ironwood/internal/world"
)

const (
	// DefaultFrameDuration is the target real time per tick.
	DefaultFrameDuration = 500 * time.Millisecond

	// notLoadedBackoff delays ticks until prerequisite caches are loaded,
	// without advancing simulated time.
	notLoadedBackoff = time.Second

	// secondsPerVelocityUnit scales the configured velocity into simulated
	// seconds per frame.
	secondsPerVelocityUnit = 30

	idleSeconds = 60

	minMoveDistance = 5
	maxMoveDistance = 25

	// Walk speeds in world units per simulated second (3.0 to 4.0 mph).
	minWalkSpeed = 1.34112
	maxWalkSpeed = 1.78816

	worldMin = 0
	worldMax = 1000
)

// FramePublisher delivers one computed frame per tick.
type FramePublisher interface {
	PublishFrame(state *world.SimulationState, updated []*world.Actor) error
}

// Simulation advances world time on a fixed tick and generates actor actions.
// Simulated time advances by the same fixed delta every tick regardless of
// actual wall elapsed: a slow tick makes simulated progress fall behind real
// time instead of corrupting the delta.
type Simulation struct {
	publisher FramePublisher
	states    *storage.SingletonCache[*world.SimulationState]
	actors    *storage.Cache[*world.Actor]

	velocity      float64
	frameDuration time.Duration
	clock         Clock
	rng           *rand.Rand
}

type SimulationOpt func(*Simulation)

// WithVelocity sets the configured simulation velocity multiplier
func WithVelocity(velocity float64) SimulationOpt {
	return func(s *Simulation) {
		s.velocity = velocity
	}
}

// WithFrameDuration sets the target real duration of one tick
func WithFrameDuration(d time.Duration) SimulationOpt {
	return func(s *Simulation) {
		s.frameDuration = d
	}
}

func WithClock(clock Clock) SimulationOpt {
	return func(s *Simulation) {
		s.clock = clock
	}
}

func WithRand(rng *rand.Rand) SimulationOpt {
	return func(s *Simulation) {
		s.rng = rng
	}
}

func NewSimulation(publisher FramePublisher, states *storage.SingletonCache[*world.SimulationState], actors *storage.Cache[*world.Actor], opts ...SimulationOpt) *Simulation {
	s := &Simulation{
		publisher:     publisher,
		states:        states,
		actors:        actors,
		velocity:      1,
		frameDuration: DefaultFrameDuration,
		clock:         NewClock(),
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start runs the tick loop until the context is canceled. Tick errors
// propagate and terminate the process; the orchestrator relaunches the role.
func (s *Simulation) Start(ctx context.Context) error {
	slog.InfoContext(ctx, "simulation engine started",
		"velocity", s.velocity, "frame_duration", s.frameDuration)

	for {
		if ctx.Err() != nil {
			slog.InfoContext(ctx, "simulation engine stopped")
			return nil
		}

		if !s.states.Loaded() || !s.actors.Loaded() {
			if err := s.clock.Sleep(ctx, notLoadedBackoff); err != nil {
				return nil
			}
			continue
		}

		start := s.clock.Now()
		state, updated := s.Simulate(start)

		if err := s.publisher.PublishFrame(state, updated); err != nil {
			return fmt.Errorf("publishing frame: %w", err)
		}

		// No catch-up: a tick over budget starts the next one immediately.
		elapsed := s.clock.Now().Sub(start)
		if wait := s.tickDelay(elapsed); wait > 0 {
			if err := s.clock.Sleep(ctx, wait); err != nil {
				return nil
			}
		}
	}
}

func (s *Simulation) tickDelay(elapsed time.Duration) time.Duration {
	return max(0, s.frameDuration-elapsed)
}

// Simulate advances simulated time by one fixed frame, resolves finished
// actions, and draws a new action for every actor left without one. The
// updated world state is written to the local cache; durable persistence is
// the authority role's concern.
func (s *Simulation) Simulate(serverTime time.Time) (*world.SimulationState, []*world.Actor) {
	simulationSeconds := s.velocity * secondsPerVelocityUnit

	state := s.states.State()
	state.SimulationTime = state.SimulationTime.Add(time.Duration(simulationSeconds * float64(time.Second)))
	state.SimulationTimeVelocity = simulationSeconds / float64(s.frameDuration.Milliseconds())
	state.ServerTime = serverTime.UnixMilli()

	now := state.SimulationSeconds()

	var updated []*world.Actor
	for _, actor := range s.actors.All() {
		actor.CleanupActions(now)

		if len(actor.Actions) == 0 {
			actor.Actions = append(actor.Actions, s.nextAction(actor, now))
			updated = append(updated, actor)
		}
	}

	s.states.Update(state)

	return state, updated
}

// nextAction draws one uniform random choice: 25% rotate, 25% move, 50% idle.
func (s *Simulation) nextAction(actor *world.Actor, now float64) *world.Action {
	choice := s.rng.Float64()

	switch {
	case choice < 0.25:
		toBearing := s.rng.Float64() * 2 * math.Pi

		// Signed angular distance. Mod keeps the dividend's sign, so a
		// negative raw difference yields a delta below -pi rather than the
		// short way around; the magnitude stays under a full turn.
		delta := math.Mod(toBearing-actor.Posture.Bearing+math.Pi, 2*math.Pi) - math.Pi
		duration := math.Ceil(math.Abs(delta)/(math.Pi/2)) * 5

		return &world.Action{
			Id:       uuid.New().String(),
			Type:     world.ActionRotate,
			StartAt:  now,
			FinishAt: now + duration,
			Rotate: &world.RotateParams{
				FromBearing: actor.Posture.Bearing,
				ToBearing:   toBearing,
				Delta:       delta,
			},
		}

	case choice < 0.50:
		speed := s.between(minWalkSpeed, maxWalkSpeed)
		distance := s.between(minMoveDistance, maxMoveDistance)

		// Forward is +sin(bearing) in x, -cos(bearing) in y
		x := clamp(actor.Posture.X+math.Sin(actor.Posture.Bearing)*distance, worldMin, worldMax)
		y := clamp(actor.Posture.Y-math.Cos(actor.Posture.Bearing)*distance, worldMin, worldMax)

		duration := math.Ceil(math.Hypot(x-actor.Posture.X, y-actor.Posture.Y) / speed)

		return &world.Action{
			Id:       uuid.New().String(),
			Type:     world.ActionMove,
			StartAt:  now,
			FinishAt: now + duration,
			Move: &world.MoveParams{
				FromX: actor.Posture.X,
				FromY: actor.Posture.Y,
				ToX:   x,
				ToY:   y,
			},
		}

	default:
		return &world.Action{
			Id:       uuid.New().String(),
			Type:     world.ActionIdle,
			StartAt:  now,
			FinishAt: now + idleSeconds,
		}
	}
}

func (s *Simulation) between(min, max float64) float64 {
	return min + s.rng.Float64()*(max-min)
}

func clamp(v, min, max float64) float64 {
	return math.Max(min, math.Min(max, v))
}
