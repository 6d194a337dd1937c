package player

import (
	"context"
	"math/rand"

	"github.com/rrrane/connect-four/internal/game"
	"github.com/rrrane/connect-four/internal/search"
)

// Random plays a uniformly random legal column.
type Random struct {
	rng *rand.Rand
}

// NewRandom creates a random player with its own seeded source.
func NewRandom(seed int64) *Random {
	return &Random{rng: rand.New(rand.NewSource(seed))}
}

func (r *Random) Name() string {
	return "RANDOM PLAYER"
}

func (r *Random) NextMove(_ context.Context, b *game.Board) (int, error) {
	if finished(b) {
		return search.NoMove, ErrNoMoves
	}
	moves := b.LegalMoves()
	return moves[r.rng.Intn(len(moves))], nil
}
