package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/rrrane/connect-four/internal/game"
	"github.com/rrrane/connect-four/internal/kafka"
	"github.com/rrrane/connect-four/internal/search"
	"github.com/rrrane/connect-four/internal/storage"
)

// maxPerftDepth caps leaf counting, which cannot prune.
const maxPerftDepth = 9

// PositionRequest names a position by the columns played from the empty
// board and a search depth.
type PositionRequest struct {
	Moves []int `json:"moves"`
	Depth int   `json:"depth"`
}

// SolveResponse is the answer to a forced-win query.
type SolveResponse struct {
	Moves     string `json:"moves"`
	Depth     int    `json:"depth"`
	Outcome   string `json:"outcome"`
	Text      string `json:"text"`
	Move      int    `json:"move"`
	Value     int    `json:"value"`
	Nodes     uint64 `json:"nodes"`
	ElapsedMS int64  `json:"elapsedMs"`
	Cached    bool   `json:"cached"`
}

// BestMoveResponse is the search result for the side to move.
type BestMoveResponse struct {
	Moves     string `json:"moves"`
	Depth     int    `json:"depth"`
	Player    int    `json:"player"`
	Move      int    `json:"move"`
	Value     int    `json:"value"`
	Nodes     uint64 `json:"nodes"`
	Cutoffs   uint64 `json:"cutoffs"`
	ElapsedMS int64  `json:"elapsedMs"`
}

// PerftResponse is a leaf count.
type PerftResponse struct {
	Moves     string `json:"moves"`
	Depth     int    `json:"depth"`
	Nodes     uint64 `json:"nodes"`
	ElapsedMS int64  `json:"elapsedMs"`
}

func (h *Handlers) decodePosition(w http.ResponseWriter, r *http.Request) (*game.Board, PositionRequest, bool) {
	var req PositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return nil, req, false
	}
	if req.Depth < 1 || req.Depth > h.opts.MaxDepth {
		http.Error(w, fmt.Sprintf("depth must be between 1 and %d", h.opts.MaxDepth), http.StatusBadRequest)
		return nil, req, false
	}
	b, err := game.Replay(req.Moves)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, req, false
	}
	return b, req, true
}

func (h *Handlers) searchContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.opts.SearchTimeout)
}

func searchFailed(w http.ResponseWriter, err error) {
	if errors.Is(err, search.ErrAborted) {
		http.Error(w, "Search timed out", http.StatusServiceUnavailable)
		return
	}
	http.Error(w, "Search failed", http.StatusInternalServerError)
}

// Solve answers whether the side to move has a forced win within depth
// plies. Verdicts are cached in the store when one is configured.
func (h *Handlers) Solve(w http.ResponseWriter, r *http.Request) {
	b, req, ok := h.decodePosition(w, r)
	if !ok {
		return
	}
	key := game.FormatMoves(req.Moves)
	requestID := middleware.GetReqID(r.Context())
	if requestID == "" {
		requestID = uuid.New().String()
	}

	if h.store != nil {
		sol, hit, err := h.store.GetSolution(r.Context(), key, req.Depth)
		if err != nil {
			log.Warn().Err(err).Str("moves", key).Msg("solution cache lookup")
		}
		if hit {
			resp := solutionResponse(sol)
			h.emitSolve(requestID, resp)
			respondJSON(w, resp)
			return
		}
	}

	ctx, cancel := h.searchContext(r)
	defer cancel()

	s := search.NewSearcher(ctx)
	verdict, err := s.Solve(b, req.Depth)
	if err != nil {
		log.Warn().Err(err).Str("moves", key).Int("depth", req.Depth).Msg("solve")
		searchFailed(w, err)
		return
	}
	stats := s.Stats()

	resp := SolveResponse{
		Moves:     key,
		Depth:     req.Depth,
		Outcome:   verdict.Outcome.String(),
		Text:      verdict.String(),
		Move:      verdict.Move,
		Value:     verdict.Value,
		Nodes:     stats.Nodes,
		ElapsedMS: stats.Elapsed.Milliseconds(),
	}
	log.Info().
		Str("moves", key).
		Int("depth", req.Depth).
		Str("verdict", resp.Text).
		Uint64("nodes", stats.Nodes).
		Dur("elapsed", stats.Elapsed).
		Msg("solved position")

	if h.store != nil {
		err := h.store.SaveSolution(r.Context(), &storage.Solution{
			Moves:   key,
			Depth:   req.Depth,
			Outcome: resp.Outcome,
			Move:    resp.Move,
			Value:   resp.Value,
			Nodes:   resp.Nodes,
		})
		if err != nil {
			log.Warn().Err(err).Str("moves", key).Msg("cache solution")
		}
	}
	h.emitSolve(requestID, resp)
	respondJSON(w, resp)
}

func solutionResponse(sol *storage.Solution) SolveResponse {
	v := search.Verdict{Move: sol.Move, Value: sol.Value, Depth: sol.Depth}
	switch sol.Outcome {
	case search.ForcedWin.String():
		v.Outcome = search.ForcedWin
	case search.AllMovesLose.String():
		v.Outcome = search.AllMovesLose
	}
	return SolveResponse{
		Moves:   sol.Moves,
		Depth:   sol.Depth,
		Outcome: v.Outcome.String(),
		Text:    v.String(),
		Move:    sol.Move,
		Value:   sol.Value,
		Nodes:   sol.Nodes,
		Cached:  true,
	}
}

func (h *Handlers) emitSolve(requestID string, resp SolveResponse) {
	h.producer.EmitSolve(requestID, kafka.SolveData{
		Moves:     resp.Moves,
		Depth:     resp.Depth,
		Outcome:   resp.Outcome,
		Move:      resp.Move,
		Value:     resp.Value,
		Nodes:     resp.Nodes,
		ElapsedMS: resp.ElapsedMS,
		Cached:    resp.Cached,
	})
}

// BestMove returns the search's choice for the side to move.
func (h *Handlers) BestMove(w http.ResponseWriter, r *http.Request) {
	b, req, ok := h.decodePosition(w, r)
	if !ok {
		return
	}

	ctx, cancel := h.searchContext(r)
	defer cancel()

	result, err := search.NewSearcher(ctx).BestMove(b, req.Depth)
	if err != nil {
		searchFailed(w, err)
		return
	}

	respondJSON(w, BestMoveResponse{
		Moves:     game.FormatMoves(req.Moves),
		Depth:     req.Depth,
		Player:    int(b.CurrentPlayer()) + 1,
		Move:      result.Move,
		Value:     result.Value,
		Nodes:     result.Stats.Nodes,
		Cutoffs:   result.Stats.Cutoffs,
		ElapsedMS: result.Stats.Elapsed.Milliseconds(),
	})
}

// Perft counts the leaves below a position: GET /perft?moves=0,2,0&depth=5.
func (h *Handlers) Perft(w http.ResponseWriter, r *http.Request) {
	moves, err := game.ParseMoves(r.URL.Query().Get("moves"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	depth, err := strconv.Atoi(r.URL.Query().Get("depth"))
	if err != nil || depth < 0 || depth > maxPerftDepth {
		http.Error(w, fmt.Sprintf("depth must be between 0 and %d", maxPerftDepth), http.StatusBadRequest)
		return
	}
	b, err := game.Replay(moves)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := h.searchContext(r)
	defer cancel()

	start := time.Now()
	n, err := search.PerftContext(ctx, b, depth)
	if err != nil {
		searchFailed(w, err)
		return
	}

	respondJSON(w, PerftResponse{
		Moves:     game.FormatMoves(moves),
		Depth:     depth,
		Nodes:     n,
		ElapsedMS: time.Since(start).Milliseconds(),
	})
}
