// Package search implements fixed-depth minimax with alpha-beta pruning on
// top of game.Board. The search mutates a single board in place, applying
// and undoing moves, and never copies it.
package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rrrane/connect-four/internal/game"
)

const (
	// NoMove is returned in place of a column when a node has no move to
	// report: terminal positions and exhausted depth.
	NoMove = -1

	Loss = -1
	Draw = 0
	Win  = 1

	infinity = math.MaxInt32

	// checkInterval is the node mask between context checks.
	checkInterval = 1<<10 - 1
)

// ErrAborted is returned when the search context is done before the search
// finishes. The board is fully restored when it is returned.
var ErrAborted = errors.New("search aborted")

// Stats describes the work done by one search call.
type Stats struct {
	Nodes   uint64        `json:"nodes"`
	Leaves  uint64        `json:"leaves"`
	Cutoffs uint64        `json:"cutoffs"`
	Elapsed time.Duration `json:"elapsed"`
}

// Result is the outcome of a root search.
type Result struct {
	Move  int   `json:"move"`
	Value int   `json:"value"`
	Stats Stats `json:"stats"`
}

// Searcher runs searches bound to a context. The zero value is not usable;
// use NewSearcher.
type Searcher struct {
	ctx     context.Context
	prune   bool
	aborted bool
	stats   Stats
}

// NewSearcher returns a pruning searcher that stops when ctx is done.
func NewSearcher(ctx context.Context) *Searcher {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Searcher{ctx: ctx, prune: true}
}

// Stats returns the statistics of the last search.
func (s *Searcher) Stats() Stats {
	return s.stats
}

// ValueFor scores the position from perspective's point of view within the
// window (alpha, beta), searching at most depth plies, and returns the score
// together with the move that achieves it.
func (s *Searcher) ValueFor(b *game.Board, perspective game.Player, alpha, beta, depth int) (value, move int, err error) {
	s.stats = Stats{}
	s.aborted = false
	if err := s.ctx.Err(); err != nil {
		return Draw, NoMove, fmt.Errorf("%w: %v", ErrAborted, err)
	}

	start := time.Now()
	value, move = s.value(b, perspective, alpha, beta, depth)
	s.stats.Elapsed = time.Since(start)
	if s.aborted {
		return Draw, NoMove, fmt.Errorf("%w: %v", ErrAborted, s.ctx.Err())
	}
	return value, move, nil
}

// BestMove searches for the side to move with a full window.
func (s *Searcher) BestMove(b *game.Board, depth int) (Result, error) {
	value, move, err := s.ValueFor(b, b.CurrentPlayer(), -infinity, infinity, depth)
	if err != nil {
		return Result{Move: NoMove}, err
	}
	return Result{Move: move, Value: value, Stats: s.stats}, nil
}

func (s *Searcher) value(b *game.Board, perspective game.Player, alpha, beta, depth int) (int, int) {
	s.stats.Nodes++
	if s.stats.Nodes&checkInterval == 0 && s.ctx.Err() != nil {
		s.aborted = true
	}
	if s.aborted {
		return Draw, NoMove
	}

	moves := b.LegalMoves()
	if b.LastMoveWon() || len(moves) == 0 {
		s.stats.Leaves++
		return terminalValue(b, perspective), NoMove
	}
	if depth <= 0 {
		s.stats.Leaves++
		return Draw, NoMove
	}

	maximizing := b.CurrentPlayer() == perspective
	v := infinity
	if maximizing {
		v = -infinity
	}
	best := NoMove

	for _, col := range CenterOut(moves) {
		mustApply(b, col)
		child, _ := s.value(b, perspective, alpha, beta, depth-1)
		b.UndoLastMove()
		if s.aborted {
			return Draw, NoMove
		}

		if maximizing {
			if child > v {
				v, best = child, col
			}
			if !s.prune {
				continue
			}
			if v >= beta {
				s.stats.Cutoffs++
				return v, best
			}
			alpha = max(alpha, v)
		} else {
			if child < v {
				v, best = child, col
			}
			if !s.prune {
				continue
			}
			if v <= alpha {
				s.stats.Cutoffs++
				return v, best
			}
			beta = min(beta, v)
		}
	}
	return v, best
}

// terminalValue scores a position where the game is over. A win just
// happened against the side to move, or the board is full.
func terminalValue(b *game.Board, perspective game.Player) int {
	if !b.LastMoveWon() {
		return Draw
	}
	if b.CurrentPlayer() == perspective {
		return Loss
	}
	return Win
}

// mustApply applies a move taken from LegalMoves. A failure means the board
// contract is broken and the search cannot continue.
func mustApply(b *game.Board, col int) {
	if err := b.ApplyMove(col); err != nil {
		panic(fmt.Sprintf("search: %v", err))
	}
}

// ValueFor is Searcher.ValueFor without cancellation.
func ValueFor(b *game.Board, perspective game.Player, alpha, beta, depth int) (value, move int) {
	s := NewSearcher(context.Background())
	return s.value(b, perspective, alpha, beta, depth)
}

// BestMove returns the best move for the side to move and its value in
// {Loss, Draw, Win}. Ties go to the first move in center-out order.
func BestMove(b *game.Board, depth int) (move, value int) {
	value, move = ValueFor(b, b.CurrentPlayer(), -infinity, infinity, depth)
	return move, value
}

// Minimax is the unpruned reference search. It visits every node up to
// depth and breaks ties exactly like the pruning search.
func Minimax(b *game.Board, perspective game.Player, depth int) (value, move int) {
	s := &Searcher{ctx: context.Background()}
	return s.value(b, perspective, -infinity, infinity, depth)
}
