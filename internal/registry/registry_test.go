package registry

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/hlstats/daemon/internal/models"
	"github.com/hlstats/daemon/internal/storage"
)

type mockServerStore struct {
	servers     map[string]*models.Server
	nextID      int64
	findCalls   int
	createCalls int
}

func newMockServerStore() *mockServerStore {
	return &mockServerStore{servers: make(map[string]*models.Server), nextID: 1}
}

func key(address string, port int) string { return cacheKey(address, port) }

func (m *mockServerStore) FindServerByAddress(_ context.Context, address string, port int) (*models.Server, error) {
	m.findCalls++
	if s, ok := m.servers[key(address, port)]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, storage.ErrNotFound
}

func (m *mockServerStore) GetServer(_ context.Context, serverID int64) (*models.Server, error) {
	for _, s := range m.servers {
		if s.ServerID == serverID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *mockServerStore) CreateServer(_ context.Context, address string, port int, game string) (*models.Server, error) {
	m.createCalls++
	s := &models.Server{ServerID: m.nextID, Address: address, Port: port, Game: game}
	m.nextID++
	m.servers[key(address, port)] = s
	cp := *s
	return &cp, nil
}

func (m *mockServerStore) UpdateServer(_ context.Context, srv *models.Server) error {
	cp := *srv
	m.servers[key(srv.Address, srv.Port)] = &cp
	return nil
}

func TestResolve_ProdFirstPacketAuthenticatesOnly(t *testing.T) {
	store := newMockServerStore()
	store.servers[key("10.0.0.1", 27015)] = &models.Server{ServerID: 7, Address: "10.0.0.1", Port: 27015, Game: "cstrike"}
	r := New(store, nil, false, zap.NewNop().Sugar())

	id, game, forward, err := r.Resolve(context.Background(), "10.0.0.1", 27015)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if forward {
		t.Error("first packet in prod mode must not forward")
	}
	if id != 7 || game != "cstrike" {
		t.Errorf("resolved (%d, %q), want (7, cstrike)", id, game)
	}

	_, _, forward, err = r.Resolve(context.Background(), "10.0.0.1", 27015)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !forward {
		t.Error("second packet must forward")
	}
	if store.findCalls != 1 {
		t.Errorf("storage lookups = %d, want 1 (second hit served from cache)", store.findCalls)
	}
}

func TestResolve_ProdUnknownServerDrops(t *testing.T) {
	store := newMockServerStore()
	r := New(store, nil, false, zap.NewNop().Sugar())

	id, _, forward, err := r.Resolve(context.Background(), "10.0.0.2", 27015)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if forward || id != 0 {
		t.Errorf("unknown server resolved to (%d, forward=%v), want (0, false)", id, forward)
	}
}

func TestResolve_DevModeAutoRegistersAndForwards(t *testing.T) {
	store := newMockServerStore()
	r := New(store, nil, true, zap.NewNop().Sugar())

	id, game, forward, err := r.Resolve(context.Background(), "10.0.0.3", 27015)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !forward {
		t.Error("dev mode must forward the first packet")
	}
	if id == 0 || game != "cstrike" {
		t.Errorf("auto-registered (%d, %q), want non-zero id and cstrike", id, game)
	}
	if store.createCalls != 1 {
		t.Errorf("create calls = %d, want 1", store.createCalls)
	}

	again, _, _, err := r.Resolve(context.Background(), "10.0.0.3", 27015)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again != id {
		t.Errorf("second resolution = %d, want stable id %d", again, id)
	}
	if store.createCalls != 1 {
		t.Errorf("create calls after re-resolve = %d, want 1", store.createCalls)
	}
}
