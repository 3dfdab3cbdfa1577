package storage

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
)

func isNil[T any](v T) bool {
	rv := reflect.ValueOf(v)
	return !rv.IsValid() || (rv.Kind() == reflect.Ptr && rv.IsNil())
}

// SingletonCache mirrors an entity family that holds exactly one logical
// record under a fixed well-known id.
type SingletonCache[T Record] struct {
	store   Storer[T]
	id      string
	seed    func() T
	mu      sync.RWMutex
	loaded  bool
	dirty   bool
	current T
}

type SingletonCacheOpt[T Record] func(*SingletonCache[T])

// WithSeed creates the record on first boot when the store has no row yet.
// The seeded value is marked dirty so the next flush persists it.
func WithSeed[T Record](seed func() T) SingletonCacheOpt[T] {
	return func(c *SingletonCache[T]) {
		c.seed = seed
	}
}

func NewSingletonCache[T Record](store Storer[T], id string, opts ...SingletonCacheOpt[T]) *SingletonCache[T] {
	c := &SingletonCache[T]{
		store: store,
		id:    id,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *SingletonCache[T]) Load(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= loadAttempts; attempt++ {
		record, err := c.store.Get(ctx, c.id)
		if err != nil {
			lastErr = err
			slog.WarnContext(ctx, "singleton cache load failed", "id", c.id, "attempt", attempt, "error", err)
			continue
		}

		c.mu.Lock()
		if isNil(record) {
			if c.seed == nil {
				c.mu.Unlock()
				return fmt.Errorf("record %q does not exist and no seed is configured", c.id)
			}
			c.current = c.seed()
			c.dirty = true
		} else {
			c.current = record
		}
		c.loaded = true
		c.mu.Unlock()
		return nil
	}

	return fmt.Errorf("loading record %q after %d attempts: %w", c.id, loadAttempts, lastErr)
}

func (c *SingletonCache[T]) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

func (c *SingletonCache[T]) State() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

func (c *SingletonCache[T]) Update(record T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = record
	c.dirty = true
}

func (c *SingletonCache[T]) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty {
		return nil
	}

	if err := c.store.Upsert(ctx, c.current); err != nil {
		return fmt.Errorf("persisting %q: %w", c.id, err)
	}

	c.dirty = false
	return nil
}

func (c *SingletonCache[T]) Close() error {
	return c.store.Close()
}
