// Package storage defines the narrow persistence contracts the ingest
// pipeline depends on: small, hand-mockable interfaces rather than one wide
// repository type. Concrete adapters live in the postgres, clickhouse, and
// redis subpackages.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hlstats/daemon/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned by lookups that find no matching row.
var ErrNotFound = errors.New("storage: not found")

// PgPool is the subset of pgxpool.Pool the Postgres adapters need.
type PgPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ServerRegistry resolves and registers game servers by network address.
type ServerRegistry interface {
	FindServerByAddress(ctx context.Context, address string, port int) (*models.Server, error)
	GetServer(ctx context.Context, serverID int64) (*models.Server, error)
	CreateServer(ctx context.Context, address string, port int, game string) (*models.Server, error)
	UpdateServer(ctx context.Context, server *models.Server) error
}

// PlayerRepository persists player identity and rollup counters.
type PlayerRepository interface {
	FindPlayerUniqueID(ctx context.Context, uniqueID, game string) (int64, error)
	CreatePlayerWithUniqueID(ctx context.Context, uniqueID, game, name string) (int64, error)
	GetPlayer(ctx context.Context, playerID int64) (*models.Player, error)
	UpdatePlayer(ctx context.Context, player *models.Player) error
}

// WeaponRepository upserts per-game weapon aggregates.
type WeaponRepository interface {
	UpsertWeapon(ctx context.Context, weapon models.Weapon) error
}

// ActionRepository upserts the action catalog and its trigger counts.
type ActionRepository interface {
	UpsertAction(ctx context.Context, action models.Action) error
}

// EventWriter is the batch sink for persisted event rows. Each method
// buffers a row of the named kind; Flush sends all pending batches.
type EventWriter interface {
	WriteConnect(ctx context.Context, row models.ConnectRow) error
	WriteDisconnect(ctx context.Context, row models.DisconnectRow) error
	WriteEntry(ctx context.Context, row models.EntryRow) error
	WriteChangeTeam(ctx context.Context, row models.ChangeTeamRow) error
	WriteChangeRole(ctx context.Context, row models.ChangeRoleRow) error
	WriteChangeName(ctx context.Context, row models.ChangeNameRow) error
	WriteFrag(ctx context.Context, row models.FragRow) error
	WriteSuicide(ctx context.Context, row models.SuicideRow) error
	WriteTeamkill(ctx context.Context, row models.TeamkillRow) error
	WriteChat(ctx context.Context, row models.ChatRow) error
	WritePlayerAction(ctx context.Context, row models.PlayerActionRow) error
	WritePlayerPlayerAction(ctx context.Context, row models.PlayerPlayerActionRow) error
	WriteTeamAction(ctx context.Context, row models.TeamActionRow) error
	WriteWorldAction(ctx context.Context, row models.WorldActionRow) error
	Flush(ctx context.Context) error
}

// MatchReportWriter persists the per-map finalization rows: per-player
// history snapshots and the map popularity rollup.
type MatchReportWriter interface {
	RecordPlayerHistory(ctx context.Context, rows []models.PlayerHistory) error
	UpsertMapCount(ctx context.Context, count models.MapCount) error
}

// Cache is the narrow Redis surface used for the identity and
// server-registry caches.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// Publisher fans SERVER_STATS_UPDATE snapshots out to subscribers.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}
