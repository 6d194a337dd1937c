package player

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rrrane/connect-four/internal/game"
	"github.com/rrrane/connect-four/internal/search"
)

// Human reads columns typed at a terminal. Invalid input is reported and
// asked for again; "q" or end of input ends the game with ErrQuit.
type Human struct {
	name    string
	scanner *bufio.Scanner
	out     io.Writer
}

// NewHuman creates a human player reading from in and prompting on out.
func NewHuman(name string, in io.Reader, out io.Writer) *Human {
	if name == "" {
		name = "HUMAN"
	}
	return &Human{name: name, scanner: bufio.NewScanner(in), out: out}
}

func (h *Human) Name() string {
	return h.name
}

func (h *Human) NextMove(ctx context.Context, b *game.Board) (int, error) {
	if finished(b) {
		return search.NoMove, ErrNoMoves
	}

	for {
		if err := ctx.Err(); err != nil {
			return search.NoMove, err
		}

		fmt.Fprint(h.out, b)
		fmt.Fprintf(h.out, "%s, choose a column %v: ", h.name, b.LegalMoves())
		if !h.scanner.Scan() {
			if err := h.scanner.Err(); err != nil {
				return search.NoMove, err
			}
			return search.NoMove, ErrQuit
		}

		line := strings.TrimSpace(h.scanner.Text())
		if strings.EqualFold(line, "q") {
			return search.NoMove, ErrQuit
		}
		col, err := strconv.Atoi(line)
		if err != nil || !b.IsLegal(col) {
			fmt.Fprintf(h.out, "%q is not a playable column\n", line)
			continue
		}
		return col, nil
	}
}
