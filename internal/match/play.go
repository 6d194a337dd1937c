package match

import (
	"context"
	"errors"
	"fmt"

	"github.com/rrrane/connect-four/internal/game"
	"github.com/rrrane/connect-four/internal/player"
)

// Hooks are optional callbacks fired while a match is played.
type Hooks struct {
	OnStart func(m *Match)
	OnMove  func(m *Match, mv Move)
	OnEnd   func(m *Match)
}

func (h Hooks) start(m *Match) {
	if h.OnStart != nil {
		h.OnStart(m)
	}
}

func (h Hooks) move(m *Match, mv Move) {
	if h.OnMove != nil {
		h.OnMove(m, mv)
	}
}

func (h Hooks) end(m *Match) {
	if h.OnEnd != nil {
		h.OnEnd(m)
	}
}

// Play alternates the two players on the match board until one of them
// connects four, the board fills up or a player quits. The match must not
// be driven by anything else while Play runs: players think on the live
// board without holding the match lock.
func Play(ctx context.Context, m *Match, players [2]player.Player, hooks Hooks) (Result, error) {
	hooks.start(m)

	for m.GetState().Status == StatusPlaying {
		p := m.Board.CurrentPlayer()
		column, err := players[p].NextMove(ctx, m.Board)
		if errors.Is(err, player.ErrQuit) {
			m.Forfeit(p)
			break
		}
		if err != nil {
			return "", fmt.Errorf("%s: %w", players[p].Name(), err)
		}

		if _, err := m.MakeMove(p, column); err != nil {
			return "", fmt.Errorf("%s played column %d: %w", players[p].Name(), column, err)
		}
		hooks.move(m, m.LastMove())
	}

	hooks.end(m)
	return Result(m.GetState().Result), nil
}

// LastMove returns the most recent move, or the zero Move before any.
func (m *Match) LastMove() Move {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.Moves) == 0 {
		return Move{}
	}
	return m.Moves[len(m.Moves)-1]
}

// WinnerSide returns the side that won, if any.
func (m *Match) WinnerSide() (game.Player, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Winner == nil {
		return 0, false
	}
	for i, s := range m.Seats {
		if s == m.Winner {
			return game.Player(i), true
		}
	}
	return 0, false
}
