package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/rrrane/connect-four/internal/game"
	"github.com/rrrane/connect-four/internal/kafka"
	"github.com/rrrane/connect-four/internal/matchmaker"
	"github.com/rrrane/connect-four/internal/storage"
)

// Store is the persistence used by the API. *storage.PostgresStore
// implements it.
type Store interface {
	GetLeaderboard(ctx context.Context, limit int) ([]storage.LeaderboardEntry, error)
	ClearAll(ctx context.Context) error
	GetPlayerStats(ctx context.Context, username string) (*storage.PlayerStats, error)
	GetAnalytics(ctx context.Context) (*storage.GameAnalytics, error)
	GetSolution(ctx context.Context, moves string, depth int) (*storage.Solution, bool, error)
	SaveSolution(ctx context.Context, sol *storage.Solution) error
}

// Options bound the work a single request may ask for.
type Options struct {
	SearchTimeout time.Duration
	MaxDepth      int

	// ConnectedClients reports live websocket connections for /status.
	ConnectedClients func() int
}

// Handlers holds API handler dependencies
type Handlers struct {
	store      Store
	matchmaker *matchmaker.Matchmaker
	producer   *kafka.Producer
	consumer   *kafka.Consumer
	opts       Options
}

// NewHandlers creates a new API handlers instance. store, producer and
// consumer may be nil when the backing service is unavailable.
func NewHandlers(store Store, mm *matchmaker.Matchmaker, producer *kafka.Producer, consumer *kafka.Consumer, opts Options) *Handlers {
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = 20 * time.Second
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 12
	}
	return &Handlers{
		store:      store,
		matchmaker: mm,
		producer:   producer,
		consumer:   consumer,
		opts:       opts,
	}
}

// RegisterRoutes registers API routes
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Post("/solve", h.Solve)
	r.Post("/best-move", h.BestMove)
	r.Get("/perft", h.Perft)
	r.Get("/leaderboard", h.GetLeaderboard)
	r.Delete("/leaderboard", h.ClearLeaderboard)
	r.Get("/stats/{username}", h.GetPlayerStats)
	r.Get("/analytics", h.GetAnalytics)
	r.Get("/status", h.GetStatus)
}

func (h *Handlers) requireStore(w http.ResponseWriter) bool {
	if h.store == nil {
		http.Error(w, "Database not available", http.StatusServiceUnavailable)
		return false
	}
	return true
}

// GetLeaderboard returns the top players
func (h *Handlers) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}

	entries, err := h.store.GetLeaderboard(r.Context(), 20)
	if err != nil {
		log.Error().Err(err).Msg("get leaderboard")
		http.Error(w, "Failed to get leaderboard", http.StatusInternalServerError)
		return
	}

	respondJSON(w, entries)
}

// ClearLeaderboard deletes all games and cached solutions
func (h *Handlers) ClearLeaderboard(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}

	if err := h.store.ClearAll(r.Context()); err != nil {
		log.Error().Err(err).Msg("clear leaderboard")
		http.Error(w, "Failed to clear leaderboard", http.StatusInternalServerError)
		return
	}

	respondJSON(w, map[string]string{"message": "Leaderboard cleared successfully"})
}

// GetPlayerStats returns statistics for a specific player
func (h *Handlers) GetPlayerStats(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if username == "" {
		http.Error(w, "Username required", http.StatusBadRequest)
		return
	}
	if !h.requireStore(w) {
		return
	}

	stats, err := h.store.GetPlayerStats(r.Context(), username)
	if errors.Is(err, game.ErrPlayerNotFound) {
		http.Error(w, "Player not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("player", username).Msg("get player stats")
		http.Error(w, "Failed to get player stats", http.StatusInternalServerError)
		return
	}

	respondJSON(w, stats)
}

// GetAnalytics returns stored, live and streamed analytics
func (h *Handlers) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"realtime": h.realtime(),
	}

	if h.store != nil {
		dbAnalytics, err := h.store.GetAnalytics(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("get analytics")
			http.Error(w, "Failed to get analytics", http.StatusInternalServerError)
			return
		}
		response["database"] = dbAnalytics
	}

	if h.consumer != nil {
		metrics := h.consumer.Metrics()
		response["kafka"] = map[string]any{
			"avgGameDuration":    metrics.AverageGameDuration(),
			"mostFrequentWinner": metrics.MostFrequentWinner(),
			"gamesPerHour":       metrics.GamesPerHourSince(time.Now()),
			"metrics":            h.consumer.GetMetrics(),
		}
	}

	respondJSON(w, response)
}

// GetStatus returns server status
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	status := h.realtime()
	status["status"] = "ok"
	status["databaseEnabled"] = h.store != nil
	respondJSON(w, status)
}

func (h *Handlers) realtime() map[string]any {
	out := map[string]any{
		"kafkaEnabled": h.producer.IsEnabled(),
	}
	if h.matchmaker != nil {
		out["activeGames"] = h.matchmaker.GetActiveGameCount()
		out["playersWaiting"] = h.matchmaker.GetWaitingCount()
	}
	if h.opts.ConnectedClients != nil {
		out["connectedClients"] = h.opts.ConnectedClients()
	}
	return out
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn().Err(err).Msg("write response")
	}
}
