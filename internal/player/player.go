// Package player provides move sources that drive a game.Board from the
// outside: a random mover, the alpha-beta bot and a human at a terminal.
package player

import (
	"context"
	"errors"

	"github.com/rrrane/connect-four/internal/game"
)

var (
	// ErrNoMoves is returned when asked to move in a finished game.
	ErrNoMoves = errors.New("no legal moves")
	// ErrQuit is returned when a human ends the session.
	ErrQuit = errors.New("player quit")
)

// Player picks the next column for the side to move. Implementations may
// apply and undo moves on b while thinking but must leave it as they found
// it; the caller applies the returned move.
type Player interface {
	Name() string
	NextMove(ctx context.Context, b *game.Board) (int, error)
}

func finished(b *game.Board) bool {
	return b.LastMoveWon() || len(b.LegalMoves()) == 0
}
