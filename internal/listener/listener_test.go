package listener

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hlstats/daemon/internal/engine"
	"github.com/hlstats/daemon/internal/identity"
	"github.com/hlstats/daemon/internal/models"
	"github.com/hlstats/daemon/internal/ratelimit"
	"github.com/hlstats/daemon/internal/registry"
	"github.com/hlstats/daemon/internal/storage"
)

const connectLine = `L 07/15/2024 - 22:33:10: "P<1><STEAM_1:0:111><>" connected, address "10.0.0.1:27005"`

// memStore is a minimal in-memory store backing the full pipeline for
// listener tests.
type memStore struct {
	mu           sync.Mutex
	nextPlayerID int64
	players      map[int64]*models.Player
	uniqueIDs    map[string]int64
	servers      map[int64]*models.Server
}

func newMemStore() *memStore {
	return &memStore{
		nextPlayerID: 1,
		players:      make(map[int64]*models.Player),
		uniqueIDs:    make(map[string]int64),
		servers:      make(map[int64]*models.Server),
	}
}

func (m *memStore) FindPlayerUniqueID(_ context.Context, uniqueID, game string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.uniqueIDs[game+"/"+uniqueID]; ok {
		return id, nil
	}
	return 0, identity.ErrNotFound
}

func (m *memStore) CreatePlayerWithUniqueID(_ context.Context, uniqueID, game, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextPlayerID
	m.nextPlayerID++
	m.players[id] = &models.Player{PlayerID: id, Game: game, LastName: name, Skill: 1000}
	m.uniqueIDs[game+"/"+uniqueID] = id
	return id, nil
}

func (m *memStore) GetPlayer(_ context.Context, playerID int64) (*models.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[playerID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) UpdatePlayer(_ context.Context, p *models.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.players[p.PlayerID] = &cp
	return nil
}

func (m *memStore) FindServerByAddress(_ context.Context, address string, port int) (*models.Server, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.servers {
		if s.Address == address && s.Port == port {
			cp := *s
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *memStore) GetServer(_ context.Context, serverID int64) (*models.Server, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.servers[serverID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) CreateServer(_ context.Context, address string, port int, game string) (*models.Server, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := int64(len(m.servers) + 1)
	s := &models.Server{ServerID: id, Address: address, Port: port, Game: game}
	m.servers[id] = s
	cp := *s
	return &cp, nil
}

func (m *memStore) UpdateServer(_ context.Context, srv *models.Server) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *srv
	m.servers[srv.ServerID] = &cp
	return nil
}

func (m *memStore) UpsertWeapon(context.Context, models.Weapon) error { return nil }
func (m *memStore) UpsertAction(context.Context, models.Action) error { return nil }
func (m *memStore) RecordPlayerHistory(context.Context, []models.PlayerHistory) error {
	return nil
}
func (m *memStore) UpsertMapCount(context.Context, models.MapCount) error { return nil }

// nopEvents discards every event row; recordingEvents counts connects on top
// of it.
type nopEvents struct{}

func (nopEvents) WriteConnect(context.Context, models.ConnectRow) error       { return nil }
func (nopEvents) WriteDisconnect(context.Context, models.DisconnectRow) error { return nil }
func (nopEvents) WriteEntry(context.Context, models.EntryRow) error           { return nil }
func (nopEvents) WriteChangeTeam(context.Context, models.ChangeTeamRow) error { return nil }
func (nopEvents) WriteChangeRole(context.Context, models.ChangeRoleRow) error { return nil }
func (nopEvents) WriteChangeName(context.Context, models.ChangeNameRow) error { return nil }
func (nopEvents) WriteFrag(context.Context, models.FragRow) error             { return nil }
func (nopEvents) WriteSuicide(context.Context, models.SuicideRow) error       { return nil }
func (nopEvents) WriteTeamkill(context.Context, models.TeamkillRow) error     { return nil }
func (nopEvents) WriteChat(context.Context, models.ChatRow) error             { return nil }
func (nopEvents) WritePlayerAction(context.Context, models.PlayerActionRow) error {
	return nil
}
func (nopEvents) WritePlayerPlayerAction(context.Context, models.PlayerPlayerActionRow) error {
	return nil
}
func (nopEvents) WriteTeamAction(context.Context, models.TeamActionRow) error   { return nil }
func (nopEvents) WriteWorldAction(context.Context, models.WorldActionRow) error { return nil }
func (nopEvents) Flush(context.Context) error                                   { return nil }

type recordingEvents struct {
	nopEvents
	mu       sync.Mutex
	connects int
}

func (r *recordingEvents) WriteConnect(context.Context, models.ConnectRow) error {
	r.mu.Lock()
	r.connects++
	r.mu.Unlock()
	return nil
}

func (r *recordingEvents) connectCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connects
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, []byte) error { return nil }

func newTestListener(t *testing.T, store *memStore, skipAuth bool, maxLen int) (*Listener, *recordingEvents, *engine.ShardPool) {
	t.Helper()
	log := zap.NewNop().Sugar()
	events := &recordingEvents{}

	resolver := identity.New(store, nil)
	reg := registry.New(store, nil, skipAuth, log)

	player := engine.NewPlayerHandler(store, log)
	weapon := engine.NewWeaponHandler(store)
	action := engine.NewActionHandler(store, events)
	ranking := engine.NewRankingHandler(store)
	match := engine.NewMatchHandler(store, store, ranking, log)
	serverStats := engine.NewServerStatsHandler(store, nopPublisher{}, log)
	eng := engine.New(resolver, events, player, weapon, action, match, serverStats, log)

	pool := engine.NewShardPool(2, 64, log)
	pool.Start(context.Background())

	limiter := ratelimit.New(2000, 200)
	l := New("127.0.0.1", 0, maxLen, true, limiter, reg, pool, eng, log)
	return l, events, pool
}

func TestListener_ProdFirstPacketAuthenticatesOnly(t *testing.T) {
	store := newMemStore()
	store.servers[1] = &models.Server{ServerID: 1, Address: "127.0.0.1", Port: 27015, Game: "cstrike"}

	l, events, pool := newTestListener(t, store, false, 8192)
	src := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 27015}

	l.handlePacket(src, []byte(connectLine))
	l.handlePacket(src, []byte(connectLine))
	pool.Stop(context.Background())

	if got := events.connectCount(); got != 1 {
		t.Errorf("connect rows = %d, want 1: the first packet must only authenticate", got)
	}
}

func TestListener_DevModeProcessesFirstPacket(t *testing.T) {
	store := newMemStore()
	l, events, pool := newTestListener(t, store, true, 8192)
	src := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 27015}

	l.handlePacket(src, []byte(connectLine))
	pool.Stop(context.Background())

	if got := events.connectCount(); got != 1 {
		t.Errorf("connect rows = %d, want 1: dev mode processes the first packet", got)
	}
	if len(store.servers) != 1 {
		t.Errorf("servers = %d, want 1 auto-registered", len(store.servers))
	}
}

func TestListener_OversizedPacketDropped(t *testing.T) {
	store := newMemStore()
	l, events, _ := newTestListener(t, store, true, 128)

	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("start listener: %v", err)
	}
	defer l.Stop(context.Background())

	conn, err := net.Dial("udp", l.conn.LocalAddr().String())
	if err != nil {
		t.Fatalf("dial listener: %v", err)
	}
	defer conn.Close()

	oversized := make([]byte, 512)
	for i := range oversized {
		oversized[i] = 'x'
	}
	if _, err := conn.Write(oversized); err != nil {
		t.Fatalf("send oversized: %v", err)
	}
	if _, err := conn.Write([]byte(connectLine)); err != nil {
		t.Fatalf("send connect: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for events.connectCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if got := events.connectCount(); got != 1 {
		t.Errorf("connect rows = %d, want 1: the oversized datagram must be dropped", got)
	}
}
