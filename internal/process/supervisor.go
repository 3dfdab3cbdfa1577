package process

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"
)

// Roles the supervisor launches as child processes.
const (
	RoleSimulation = "simulation"
	RoleAuthority  = "authority"
	RoleTransport  = "transport"
)

// Child is one supervised role process.
type Child interface {
	// Wait blocks until the process exits.
	Wait() error

	// Signal delivers a graceful-shutdown request; the child's own handler
	// is responsible for winding down and exiting.
	Signal(sig os.Signal) error
}

// Spawner launches one child process for a role. index distinguishes the
// transport workers.
type Spawner func(role string, index int) (Child, error)

// DefaultTransportCount leaves one CPU each for the simulation and authority
// roles.
func DefaultTransportCount() int {
	return max(1, runtime.NumCPU()-2)
}

// Supervisor keeps the simulation role, the authority role, and the
// transport workers alive. A child crash while running is not fatal to the
// system: the same role is relaunched, retrying until a spawn succeeds. On
// shutdown it stops
// accepting restarts and polls until every child has exited.
type Supervisor struct {
	spawn          Spawner
	transportCount int
	pollInterval   time.Duration

	mu      sync.Mutex
	running bool
	alive   map[string]Child
}

type SupervisorOpt func(*Supervisor)

// WithTransportCount overrides the number of transport workers
func WithTransportCount(n int) SupervisorOpt {
	return func(s *Supervisor) {
		s.transportCount = n
	}
}

// WithPollInterval overrides the shutdown polling interval
func WithPollInterval(d time.Duration) SupervisorOpt {
	return func(s *Supervisor) {
		s.pollInterval = d
	}
}

func NewSupervisor(spawn Spawner, opts ...SupervisorOpt) *Supervisor {
	s := &Supervisor{
		spawn:          spawn,
		transportCount: DefaultTransportCount(),
		pollInterval:   time.Second,
		alive:          map[string]Child{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	// A role that cannot launch at boot is fatal; later crashes are not.
	if err := s.launch(ctx, RoleSimulation, 0); err != nil {
		return err
	}
	if err := s.launch(ctx, RoleAuthority, 0); err != nil {
		return err
	}
	for i := 0; i < s.transportCount; i++ {
		if err := s.launch(ctx, RoleTransport, i); err != nil {
			return err
		}
	}

	slog.InfoContext(ctx, "supervisor started",
		"simulation", 1, "authority", 1, "transport", s.transportCount)

	<-ctx.Done()
	return s.stop()
}

// stop transitions to draining: no restarts, a graceful-shutdown signal to
// every child, then polling until all of them have exited.
func (s *Supervisor) stop() error {
	s.mu.Lock()
	s.running = false
	for key, child := range s.alive {
		if err := child.Signal(os.Interrupt); err != nil {
			slog.Warn("signaling child", "role", key, "error", err)
		}
	}
	s.mu.Unlock()

	for {
		s.mu.Lock()
		remaining := len(s.alive)
		s.mu.Unlock()

		if remaining == 0 {
			slog.Info("all child processes stopped")
			return nil
		}

		slog.Info("waiting for child processes to end", "remaining", remaining)
		time.Sleep(s.pollInterval)
	}
}

func (s *Supervisor) launch(ctx context.Context, role string, index int) error {
	child, err := s.spawn(role, index)
	if err != nil {
		return fmt.Errorf("spawning %s worker %d: %w", role, index, err)
	}

	key := fmt.Sprintf("%s-%d", role, index)

	s.mu.Lock()
	if !s.running {
		// Lost the race with shutdown; this child was never signaled.
		s.mu.Unlock()
		_ = child.Signal(os.Interrupt)
		go func() { _ = child.Wait() }()
		return nil
	}
	s.alive[key] = child
	s.mu.Unlock()

	go s.watch(ctx, key, role, index, child)
	return nil
}

// watch observes one child's exit and decides whether to relaunch it.
func (s *Supervisor) watch(ctx context.Context, key, role string, index int, child Child) {
	err := child.Wait()

	s.mu.Lock()
	delete(s.alive, key)
	running := s.running
	s.mu.Unlock()

	if !running {
		slog.Info("child process ended", "role", key)
		return
	}

	slog.Warn("child process exited, restarting", "role", key, "error", err)
	for {
		err := s.launch(ctx, role, index)
		if err == nil {
			return
		}
		slog.Error("restarting child process", "role", key, "error", err)

		time.Sleep(s.pollInterval)

		s.mu.Lock()
		running := s.running
		s.mu.Unlock()
		if !running {
			return
		}
	}
}
