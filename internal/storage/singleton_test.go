package storage

import (
	"context"
	"testing"

	"github.com/pixil98/go-testutil"
)

func TestSingletonCacheLoad(t *testing.T) {
	store := newMockStorer(&mockRecord{Id: "world", Name: "existing"})
	cache := NewSingletonCache[*mockRecord](store, "world")

	err := cache.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testutil.AssertEqual(t, "loaded", cache.Loaded(), true)
	testutil.AssertEqual(t, "name", cache.State().Name, "existing")

	// The loaded record is clean, so flushing writes nothing.
	err = cache.Flush(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "upserts", len(store.upserts), 0)
}

func TestSingletonCacheLoad_SeedsMissingRecord(t *testing.T) {
	store := newMockStorer()
	cache := NewSingletonCache[*mockRecord](store, "world",
		WithSeed(func() *mockRecord {
			return &mockRecord{Id: "world", Name: "seeded"}
		}))

	err := cache.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "name", cache.State().Name, "seeded")

	// The seed is dirty until flushed.
	err = cache.Flush(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "upserts", len(store.upserts), 1)
	testutil.AssertEqual(t, "persisted", store.records["world"].Name, "seeded")
}

func TestSingletonCacheLoad_MissingWithoutSeed(t *testing.T) {
	store := newMockStorer()
	cache := NewSingletonCache[*mockRecord](store, "world")

	err := cache.Load(context.Background())
	testutil.AssertErrorContains(t, err, "does not exist")
}

func TestSingletonCacheLoad_RetriesUntilSuccess(t *testing.T) {
	store := newMockStorer(&mockRecord{Id: "world", Name: "existing"})
	store.loadFails = loadAttempts - 1

	cache := NewSingletonCache[*mockRecord](store, "world")
	err := cache.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "loaded", cache.Loaded(), true)
}

func TestSingletonCacheUpdateAndFlush(t *testing.T) {
	store := newMockStorer(&mockRecord{Id: "world", Name: "existing"})
	cache := NewSingletonCache[*mockRecord](store, "world")

	err := cache.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cache.Update(&mockRecord{Id: "world", Name: "advanced"})

	err = cache.Flush(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "persisted", store.records["world"].Name, "advanced")

	err = cache.Flush(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "upserts", len(store.upserts), 1)
}
