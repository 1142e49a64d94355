// Package httpapi exposes the daemon's observability and registration
// surface: health/readiness probes, a Prometheus scrape endpoint, and the
// server-registration endpoint used by operators to pre-register servers
// outside dev-mode auto-registration.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hlstats/daemon/internal/models"
	"github.com/hlstats/daemon/internal/registry"
)

// Pinger is satisfied by the storage backends the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PlayerReporter serves the ranking report queries.
type PlayerReporter interface {
	TopPlayers(ctx context.Context, game string, limit int) ([]models.Player, error)
}

// WeaponReporter serves the weapon aggregation report queries.
type WeaponReporter interface {
	TopWeapons(ctx context.Context, limit int) ([]models.WeaponUsage, error)
	PlayerWeaponKills(ctx context.Context, playerID int64) ([]models.WeaponUsage, error)
}

// Config bundles the handler's dependencies.
type Config struct {
	Registry   *registry.Registry
	Postgres   Pinger
	ClickHouse Pinger
	Redis      Pinger
	Players    PlayerReporter
	Weapons    WeaponReporter
	Logger     *zap.SugaredLogger
}

// Handler serves the daemon's HTTP surface.
type Handler struct {
	registry   *registry.Registry
	postgres   Pinger
	clickhouse Pinger
	redis      Pinger
	players    PlayerReporter
	weapons    WeaponReporter
	logger     *zap.SugaredLogger
}

// New constructs a Handler from cfg.
func New(cfg Config) *Handler {
	return &Handler{
		registry:   cfg.Registry,
		postgres:   cfg.Postgres,
		clickhouse: cfg.ClickHouse,
		redis:      cfg.Redis,
		players:    cfg.Players,
		weapons:    cfg.Weapons,
		logger:     cfg.Logger,
	}
}

// Router builds the chi router exposing this daemon's HTTP surface.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
	}))

	r.Get("/healthz", h.Health)
	r.Get("/readyz", h.Ready)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/servers", h.RegisterServer)
	r.Get("/players/top", h.TopPlayers)
	r.Get("/players/{playerID}/weapons", h.PlayerWeapons)
	r.Get("/weapons/top", h.TopWeapons)
	return r
}

func (h *Handler) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) errorResponse(w http.ResponseWriter, status int, message string) {
	h.jsonResponse(w, status, map[string]string{"error": message})
}

// Health reports liveness unconditionally; it never checks dependencies.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

// Ready reports storage reachability as a boolean plus a per-backend
// detail map, and an overall status: "unhealthy" when Postgres or
// ClickHouse is unreachable, "degraded" when only Redis (the live-stats
// publisher) is, "healthy" otherwise. Any failed check answers 503.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	checks := map[string]bool{
		"postgres":   h.postgres.Ping(ctx) == nil,
		"clickhouse": h.clickhouse.Ping(ctx) == nil,
		"redis":      h.redis.Ping(ctx) == nil,
	}

	allHealthy := true
	for _, ok := range checks {
		if !ok {
			allHealthy = false
			break
		}
	}

	health := "healthy"
	switch {
	case !checks["postgres"] || !checks["clickhouse"]:
		health = "unhealthy"
	case !checks["redis"]:
		health = "degraded"
	}

	status := http.StatusOK
	if !allHealthy {
		status = http.StatusServiceUnavailable
	}
	h.jsonResponse(w, status, map[string]any{
		"ready":  allHealthy,
		"status": health,
		"checks": checks,
	})
}

// RegisterServerRequest is the body of POST /servers.
type RegisterServerRequest struct {
	Address string `json:"address"`
	Port    int    `json:"port"`
	Game    string `json:"game"`
}

// RegisterServerResponse echoes the resolved identity.
type RegisterServerResponse struct {
	ServerID int64  `json:"serverId"`
	Game     string `json:"game"`
}

// RegisterServer pre-registers a server for prod-mode deployments, where an
// unauthenticated server's first packet is otherwise dropped.
func (h *Handler) RegisterServer(w http.ResponseWriter, r *http.Request) {
	var req RegisterServerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Address == "" || req.Port == 0 || req.Game == "" {
		h.errorResponse(w, http.StatusBadRequest, "address, port, and game are required")
		return
	}

	serverID, err := h.registry.Register(r.Context(), req.Address, req.Port, req.Game)
	if err != nil {
		h.logger.Errorw("server registration failed", "address", req.Address, "port", req.Port, "err", err)
		h.errorResponse(w, http.StatusInternalServerError, "failed to register server")
		return
	}

	h.jsonResponse(w, http.StatusOK, RegisterServerResponse{ServerID: serverID, Game: req.Game})
}

func limitParam(r *http.Request, fallback, max int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	if n > max {
		return max
	}
	return n
}

// TopPlayers serves the skill ranking report for one game.
func (h *Handler) TopPlayers(w http.ResponseWriter, r *http.Request) {
	game := r.URL.Query().Get("game")
	if game == "" {
		game = "cstrike"
	}
	players, err := h.players.TopPlayers(r.Context(), game, limitParam(r, 25, 100))
	if err != nil {
		h.logger.Errorw("top players query failed", "game", game, "err", err)
		h.errorResponse(w, http.StatusInternalServerError, "failed to load rankings")
		return
	}
	h.jsonResponse(w, http.StatusOK, players)
}

// PlayerWeapons serves one player's per-weapon kill aggregation.
func (h *Handler) PlayerWeapons(w http.ResponseWriter, r *http.Request) {
	playerID, err := strconv.ParseInt(chi.URLParam(r, "playerID"), 10, 64)
	if err != nil {
		h.errorResponse(w, http.StatusBadRequest, "invalid player id")
		return
	}
	usage, err := h.weapons.PlayerWeaponKills(r.Context(), playerID)
	if err != nil {
		h.logger.Errorw("player weapons query failed", "playerId", playerID, "err", err)
		h.errorResponse(w, http.StatusInternalServerError, "failed to load weapon stats")
		return
	}
	h.jsonResponse(w, http.StatusOK, usage)
}

// TopWeapons serves the most-used weapons across all servers.
func (h *Handler) TopWeapons(w http.ResponseWriter, r *http.Request) {
	usage, err := h.weapons.TopWeapons(r.Context(), limitParam(r, 25, 100))
	if err != nil {
		h.logger.Errorw("top weapons query failed", "err", err)
		h.errorResponse(w, http.StatusInternalServerError, "failed to load weapon stats")
		return
	}
	h.jsonResponse(w, http.StatusOK, usage)
}
