package player

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/rrrane/connect-four/internal/game"
	"github.com/rrrane/connect-four/internal/search"
)

// DefaultDepth is the search depth of a bot created without one.
const DefaultDepth = 3

// Searcher is the computer opponent: it plays the move chosen by a
// fixed-depth alpha-beta search from the current position.
type Searcher struct {
	depth int
}

// NewSearcher creates a bot that searches depth plies. Non-positive depths
// fall back to DefaultDepth.
func NewSearcher(depth int) *Searcher {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &Searcher{depth: depth}
}

func (s *Searcher) Name() string {
	return fmt.Sprintf("ALPHA-BETA SEARCHER (DEPTH %d)", s.depth)
}

// Depth returns the configured search depth.
func (s *Searcher) Depth() int {
	return s.depth
}

func (s *Searcher) NextMove(ctx context.Context, b *game.Board) (int, error) {
	if finished(b) {
		return search.NoMove, ErrNoMoves
	}

	r, err := search.NewSearcher(ctx).BestMove(b, s.depth)
	if err != nil {
		return search.NoMove, err
	}

	log.Debug().
		Int("depth", s.depth).
		Int("move", r.Move).
		Int("value", r.Value).
		Uint64("nodes", r.Stats.Nodes).
		Uint64("cutoffs", r.Stats.Cutoffs).
		Dur("elapsed", r.Stats.Elapsed).
		Msg("search finished")
	return r.Move, nil
}
