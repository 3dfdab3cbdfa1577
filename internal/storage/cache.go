package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pixil98/go-errors"
)

// loadAttempts bounds bootstrap retries; exhaustion is fatal to the owning
// process.
const loadAttempts = 10

// Cache is an authoritative in-memory mirror of one entity family's durable
// records, with dirty tracking and flush. Mutations never write through
// synchronously; Flush persists every dirty record and is safe to retry.
type Cache[T Record] struct {
	store Storer[T]
	index func(T) string

	mu        sync.RWMutex
	loaded    bool
	byId      map[string]T
	idByIndex map[string]string
	dirty     map[string]struct{}
}

type CacheOpt[T Record] func(*Cache[T])

// WithIndex maintains a unique secondary index (e.g. username to id)
// alongside the primary map.
func WithIndex[T Record](index func(T) string) CacheOpt[T] {
	return func(c *Cache[T]) {
		c.index = index
	}
}

func NewCache[T Record](store Storer[T], opts ...CacheOpt[T]) *Cache[T] {
	c := &Cache[T]{
		store:     store,
		byId:      map[string]T{},
		idByIndex: map[string]string{},
		dirty:     map[string]struct{}{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Load populates the cache from the store, retrying up to the attempt bound.
func (c *Cache[T]) Load(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= loadAttempts; attempt++ {
		records, err := c.store.LoadAll(ctx)
		if err != nil {
			lastErr = err
			slog.WarnContext(ctx, "cache load failed", "attempt", attempt, "error", err)
			continue
		}

		c.mu.Lock()
		for id, record := range records {
			c.byId[id] = record
			if c.index != nil {
				c.idByIndex[c.index(record)] = id
			}
		}
		c.loaded = true
		c.mu.Unlock()
		return nil
	}

	return fmt.Errorf("loading cache after %d attempts: %w", loadAttempts, lastErr)
}

func (c *Cache[T]) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

func (c *Cache[T]) All() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	records := make([]T, 0, len(c.byId))
	for _, record := range c.byId {
		records = append(records, record)
	}
	return records
}

func (c *Cache[T]) ForId(id string) T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byId[id]
}

// ForIndex resolves a record through the secondary index.
func (c *Cache[T]) ForIndex(key string) T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var zero T
	id, ok := c.idByIndex[key]
	if !ok {
		return zero
	}
	return c.byId[id]
}

// Update overwrites the in-memory entries and marks their ids dirty. It does
// not write through to the store.
func (c *Cache[T]) Update(records ...T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, record := range records {
		c.put(record)
		c.dirty[record.Key()] = struct{}{}
	}
}

// Put overwrites in-memory entries without marking them dirty, for records
// already known to be durable (e.g. loaded back from the authority).
func (c *Cache[T]) Put(records ...T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, record := range records {
		c.put(record)
	}
}

func (c *Cache[T]) put(record T) {
	id := record.Key()
	if c.index != nil {
		if old, ok := c.byId[id]; ok {
			delete(c.idByIndex, c.index(old))
		}
		c.idByIndex[c.index(record)] = id
	}
	c.byId[id] = record
}

// Flush persists every dirty record's current value. The dirty set is only
// cleared once all writes succeed; a partial failure leaves every id dirty so
// the next flush retries (overwrites are idempotent).
func (c *Cache[T]) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.dirty) == 0 {
		return nil
	}

	el := errors.NewErrorList()
	for id := range c.dirty {
		record, ok := c.byId[id]
		if !ok {
			// Dirty ids always correspond to a key in the primary map
			el.Add(fmt.Errorf("dirty id %q missing from cache", id))
			continue
		}
		if err := c.store.Upsert(ctx, record); err != nil {
			el.Add(fmt.Errorf("persisting %q: %w", id, err))
		}
	}
	if err := el.Err(); err != nil {
		return err
	}

	c.dirty = map[string]struct{}{}
	return nil
}

func (c *Cache[T]) Close() error {
	return c.store.Close()
}
