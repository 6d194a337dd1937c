package search

import (
	"context"
	"fmt"

	"github.com/rrrane/connect-four/internal/game"
)

// Outcome classifies a forced-win search.
type Outcome int

const (
	// NoForcedWin covers both a proven draw and "unknown within depth":
	// the depth limit scores like a draw.
	NoForcedWin Outcome = iota
	ForcedWin
	AllMovesLose
)

func (o Outcome) String() string {
	switch o {
	case ForcedWin:
		return "forced_win"
	case AllMovesLose:
		return "all_moves_lose"
	default:
		return "no_forced_win"
	}
}

// Verdict is the answer to "does the side to move have a forced win within
// depth plies".
type Verdict struct {
	Outcome Outcome `json:"outcome"`
	Move    int     `json:"move"`
	Value   int     `json:"value"`
	Depth   int     `json:"depth"`
}

func (v Verdict) String() string {
	switch v.Outcome {
	case ForcedWin:
		return fmt.Sprintf("WIN BY PLAYING %d", v.Move)
	case AllMovesLose:
		return "ALL MOVES LOSE"
	default:
		return fmt.Sprintf("NO FORCED WIN IN %d MOVES", v.Depth)
	}
}

func verdictFor(r Result, depth int) Verdict {
	v := Verdict{Move: r.Move, Value: r.Value, Depth: depth}
	switch r.Value {
	case Win:
		v.Outcome = ForcedWin
	case Loss:
		v.Outcome = AllMovesLose
	default:
		v.Outcome = NoForcedWin
	}
	return v
}

// Solve runs a bounded forced-win search for the side to move.
func (s *Searcher) Solve(b *game.Board, depth int) (Verdict, error) {
	r, err := s.BestMove(b, depth)
	if err != nil {
		return Verdict{}, err
	}
	return verdictFor(r, depth), nil
}

// Solve is Searcher.Solve without cancellation.
func Solve(b *game.Board, depth int) Verdict {
	move, value := BestMove(b, depth)
	return verdictFor(Result{Move: move, Value: value}, depth)
}

// FindWin reports the forced-win verdict as text: "WIN BY PLAYING <col>",
// "ALL MOVES LOSE" or "NO FORCED WIN IN <depth> MOVES".
func FindWin(b *game.Board, depth int) string {
	return Solve(b, depth).String()
}

// Perft counts the leaves of the game tree below b up to depth plies. A
// finished game counts as one leaf; at depth 1 every legal move is a leaf.
func Perft(b *game.Board, depth int) uint64 {
	moves := b.LegalMoves()
	if b.LastMoveWon() || len(moves) == 0 || depth <= 0 {
		return 1
	}
	if depth == 1 {
		return uint64(len(moves))
	}

	var count uint64
	for _, col := range moves {
		mustApply(b, col)
		count += Perft(b, depth-1)
		b.UndoLastMove()
	}
	return count
}

// PerftContext is Perft with cancellation checked between root moves.
func PerftContext(ctx context.Context, b *game.Board, depth int) (uint64, error) {
	moves := b.LegalMoves()
	if b.LastMoveWon() || len(moves) == 0 || depth <= 1 {
		return Perft(b, depth), nil
	}

	var count uint64
	for _, col := range moves {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrAborted, err)
		}
		mustApply(b, col)
		count += Perft(b, depth-1)
		b.UndoLastMove()
	}
	return count, nil
}
