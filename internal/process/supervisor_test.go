package process

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/pixil98/go-testutil"
)

type fakeChild struct {
	exit chan error
}

func newFakeChild() *fakeChild {
	return &fakeChild{exit: make(chan error, 1)}
}

func (c *fakeChild) Wait() error {
	return <-c.exit
}

func (c *fakeChild) Signal(sig os.Signal) error {
	c.exit <- nil
	return nil
}

type fakeSpawner struct {
	mu       sync.Mutex
	spawns   []string
	children map[string]*fakeChild
	failures map[string]int
}

func newFakeSpawner() *fakeSpawner {
	return &fakeSpawner{
		children: map[string]*fakeChild{},
		failures: map[string]int{},
	}
}

func (s *fakeSpawner) spawn(role string, index int) (Child, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := fmt.Sprintf("%s-%d", role, index)
	s.spawns = append(s.spawns, key)
	if s.failures[key] > 0 {
		s.failures[key]--
		return nil, fmt.Errorf("fork failed")
	}
	child := newFakeChild()
	s.children[key] = child
	return child, nil
}

// failNext makes the next n spawns of key return an error.
func (s *fakeSpawner) failNext(key string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[key] = n
}

func (s *fakeSpawner) spawnCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, k := range s.spawns {
		if k == key {
			count++
		}
	}
	return count
}

func (s *fakeSpawner) child(key string) *fakeChild {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.children[key]
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSupervisorRestartsCrashedChild(t *testing.T) {
	spawner := newFakeSpawner()
	sup := NewSupervisor(spawner.spawn,
		WithTransportCount(2),
		WithPollInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- sup.Start(ctx) }()

	waitFor(t, "initial spawns", func() bool {
		return spawner.spawnCount(RoleSimulation+"-0") == 1 &&
			spawner.spawnCount(RoleAuthority+"-0") == 1 &&
			spawner.spawnCount(RoleTransport+"-0") == 1 &&
			spawner.spawnCount(RoleTransport+"-1") == 1
	})

	// Crash the authority child and expect it to come back.
	spawner.child(RoleAuthority + "-0").exit <- fmt.Errorf("crashed")
	waitFor(t, "authority restart", func() bool {
		return spawner.spawnCount(RoleAuthority+"-0") == 2
	})

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not stop")
	}

	// Exits during the drain are final, so nothing was respawned.
	testutil.AssertEqual(t, "authority spawns", spawner.spawnCount(RoleAuthority+"-0"), 2)
	testutil.AssertEqual(t, "simulation spawns", spawner.spawnCount(RoleSimulation+"-0"), 1)
}

func TestSupervisorRetriesFailedRespawn(t *testing.T) {
	spawner := newFakeSpawner()
	sup := NewSupervisor(spawner.spawn,
		WithTransportCount(1),
		WithPollInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- sup.Start(ctx) }()

	waitFor(t, "initial spawns", func() bool {
		return spawner.spawnCount(RoleAuthority+"-0") == 1
	})

	// Crash the authority child while its replacement cannot be forked; the
	// role is not abandoned and comes back once a spawn succeeds.
	spawner.failNext(RoleAuthority+"-0", 2)
	spawner.child(RoleAuthority + "-0").exit <- fmt.Errorf("crashed")
	waitFor(t, "authority restart after spawn failures", func() bool {
		return spawner.spawnCount(RoleAuthority+"-0") == 4 &&
			spawner.child(RoleAuthority+"-0") != nil
	})

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not stop")
	}
}

func TestSupervisorStopWaitsForChildren(t *testing.T) {
	spawner := newFakeSpawner()
	sup := NewSupervisor(spawner.spawn,
		WithTransportCount(1),
		WithPollInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- sup.Start(ctx) }()

	waitFor(t, "initial spawns", func() bool {
		return spawner.spawnCount(RoleTransport+"-0") == 1
	})

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not stop")
	}
}

func TestSupervisorFailsWhenBootSpawnFails(t *testing.T) {
	spawn := func(role string, index int) (Child, error) {
		return nil, fmt.Errorf("no such binary")
	}

	sup := NewSupervisor(spawn, WithTransportCount(1))
	err := sup.Start(context.Background())
	testutil.AssertErrorContains(t, err, "spawning simulation worker")
}

func TestDefaultTransportCount(t *testing.T) {
	if DefaultTransportCount() < 1 {
		t.Error("expected at least one transport worker")
	}
}
