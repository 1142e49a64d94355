package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hlstats/daemon/internal/models"
)

type mockPlayerStore struct {
	byUniqueID   map[string]int64
	createCalls  int
	nextID       int64
	failFirstCreate bool
}

func newMockPlayerStore() *mockPlayerStore {
	return &mockPlayerStore{byUniqueID: make(map[string]int64), nextID: 1}
}

func (m *mockPlayerStore) FindPlayerUniqueID(_ context.Context, uniqueID, _ string) (int64, error) {
	if id, ok := m.byUniqueID[uniqueID]; ok {
		return id, nil
	}
	return 0, ErrNotFound
}

func (m *mockPlayerStore) CreatePlayerWithUniqueID(_ context.Context, uniqueID, _, _ string) (int64, error) {
	m.createCalls++
	if m.failFirstCreate && m.createCalls == 1 {
		return 0, ErrUniqueConflict
	}
	id := m.nextID
	m.nextID++
	m.byUniqueID[uniqueID] = id
	return id, nil
}

func TestResolver_CreatesOnFirstSight(t *testing.T) {
	store := newMockPlayerStore()
	r := New(store, nil)

	id, err := r.Resolve(context.Background(), models.PlayerMeta{Name: "Alice", SteamID: "STEAM_1:0:111"}, "cstrike")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 1 {
		t.Errorf("id = %d, want 1", id)
	}
	if store.createCalls != 1 {
		t.Errorf("expected one create call, got %d", store.createCalls)
	}
}

func TestResolver_ReturnsExistingOnSecondSight(t *testing.T) {
	store := newMockPlayerStore()
	r := New(store, nil)
	meta := models.PlayerMeta{Name: "Alice", SteamID: "STEAM_1:0:111"}

	first, err := r.Resolve(context.Background(), meta, "cstrike")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := r.Resolve(context.Background(), meta, "cstrike")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Errorf("expected stable id across sightings, got %d then %d", first, second)
	}
	if store.createCalls != 1 {
		t.Errorf("expected exactly one create call, got %d", store.createCalls)
	}
}

func TestResolver_RecoversFromUniqueConflict(t *testing.T) {
	store := newMockPlayerStore()
	store.failFirstCreate = true
	store.byUniqueID["76561197960265950"] = 42 // winner of the race already committed
	r := New(store, nil)

	id, err := r.Resolve(context.Background(), models.PlayerMeta{Name: "Alice", SteamID: "STEAM_1:0:111"}, "cstrike")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 42 {
		t.Errorf("id = %d, want 42 (winner of the create race)", id)
	}
}

func TestResolver_PropagatesLookupError(t *testing.T) {
	store := &erroringStore{err: errors.New("connection reset")}
	r := New(store, nil)

	_, err := r.Resolve(context.Background(), models.PlayerMeta{Name: "Alice", SteamID: "STEAM_1:0:111"}, "cstrike")
	if err == nil {
		t.Fatal("expected error to propagate")
	}
}

func TestResolver_SharedCacheAvoidsLookup(t *testing.T) {
	store := newMockPlayerStore()
	cache := newMockCache()
	r := New(store, cache)
	meta := models.PlayerMeta{Name: "Alice", SteamID: "STEAM_1:0:111"}

	first, err := r.Resolve(context.Background(), meta, "cstrike")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	store.byUniqueID = map[string]int64{} // simulate the row vanishing from the backing store
	second, err := r.Resolve(context.Background(), meta, "cstrike")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Errorf("expected cached id %d, got %d", first, second)
	}
}

type mockCache struct{ values map[string]string }

func newMockCache() *mockCache { return &mockCache{values: make(map[string]string)} }

func (c *mockCache) Get(_ context.Context, key string) (string, error) {
	if v, ok := c.values[key]; ok {
		return v, nil
	}
	return "", errors.New("cache miss")
}

func (c *mockCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.values[key] = value
	return nil
}

func (c *mockCache) Del(_ context.Context, key string) error {
	delete(c.values, key)
	return nil
}

type erroringStore struct{ err error }

func (e *erroringStore) FindPlayerUniqueID(context.Context, string, string) (int64, error) {
	return 0, e.err
}

func (e *erroringStore) CreatePlayerWithUniqueID(context.Context, string, string, string) (int64, error) {
	return 0, e.err
}
