package game

import (
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	Rows    = 6
	Columns = 7
)

// Player identifies a side. Player1 always moves first.
type Player int

const (
	Player1 Player = 0
	Player2 Player = 1
)

// Opponent returns the other side.
func (p Player) Opponent() Player {
	return p ^ 1
}

// Disc returns the cell value occupied by p.
func (p Player) Disc() Cell {
	return Cell(p + 1)
}

func (p Player) String() string {
	return fmt.Sprintf("player %d", int(p)+1)
}

// Cell is the occupancy of one grid square.
type Cell int8

const (
	Empty Cell = iota
	Player1Disc
	Player2Disc
)

// Board is an incrementally maintained Connect Four position. Moves are
// applied and undone in place; each player's win graph is updated with the
// new disc only, so the whole grid is never rescanned.
//
// A Board is not safe for concurrent use.
type Board struct {
	heights     [Columns]int
	cells       [Rows][Columns]Cell
	player      Player
	moveCount   [2]int
	lastMoveWon bool
	graphs      [2]*winGraph
}

// NewBoard creates an empty board with Player1 to move.
func NewBoard() *Board {
	return &Board{
		graphs: [2]*winGraph{newWinGraph(), newWinGraph()},
	}
}

// Replay builds a board by applying moves in order from the empty position.
// Moves after a line of four are rejected.
func Replay(moves []int) (*Board, error) {
	b := NewBoard()
	for i, col := range moves {
		if b.LastMoveWon() {
			return nil, fmt.Errorf("move %d: %w: game already won", i+1, ErrInvalidMove)
		}
		if err := b.ApplyMove(col); err != nil {
			return nil, fmt.Errorf("move %d: %w", i+1, err)
		}
	}
	return b, nil
}

// LegalMoves returns every column that can still take a disc, in ascending
// order. A fresh slice is returned on every call.
func (b *Board) LegalMoves() []int {
	moves := make([]int, 0, Columns)
	for col := 0; col < Columns; col++ {
		if b.heights[col] < Rows {
			moves = append(moves, col)
		}
	}
	return moves
}

// IsLegal reports whether col can take a disc.
func (b *Board) IsLegal(col int) bool {
	return col >= 0 && col < Columns && b.heights[col] < Rows
}

// ApplyMove drops the current player's disc into col, records whether it
// completed a line and passes the turn. It fails with ErrInvalidMove when
// col is out of range or full; the board is unchanged in that case.
func (b *Board) ApplyMove(col int) error {
	if col < 0 || col >= Columns {
		return fmt.Errorf("%w: column %d out of range", ErrInvalidMove, col)
	}
	if b.heights[col] >= Rows {
		return fmt.Errorf("%w: column %d is full", ErrInvalidMove, col)
	}

	p := b.player
	row := b.heights[col]
	b.heights[col]++
	b.cells[row][col] = p.Disc()
	b.moveCount[p]++
	b.lastMoveWon = b.graphs[p].register(b.moveCount[p], row, col)
	b.player = p.Opponent()
	return nil
}

// UndoLastMove reverts the most recent ApplyMove. It returns false and
// leaves the board untouched when there is nothing to undo.
func (b *Board) UndoLastMove() bool {
	p := b.player.Opponent()
	if b.moveCount[p] == 0 {
		return false
	}

	row, col, ok := b.graphs[p].pop()
	if !ok {
		panic("game: move counter and win graph disagree")
	}
	b.player = p
	b.heights[col]--
	b.cells[row][col] = Empty
	b.moveCount[p]--

	// The move now on top of the game belongs to the opponent of p.
	b.lastMoveWon = b.graphs[p.Opponent()].lastWon()
	return true
}

// Undo is UndoLastMove for callers that want an error value.
func (b *Board) Undo() error {
	if !b.UndoLastMove() {
		return ErrEmptyUndo
	}
	return nil
}

// LastMoveWon reports whether the most recently applied move completed a
// line of four for its owner.
func (b *Board) LastMoveWon() bool {
	return b.lastMoveWon
}

// CurrentPlayer returns the side to move.
func (b *Board) CurrentPlayer() Player {
	return b.player
}

// IsFirstMove reports whether the side to move has not moved yet.
func (b *Board) IsFirstMove() bool {
	return b.moveCount[b.player] == 0
}

// MoveCount returns the number of discs on the board.
func (b *Board) MoveCount() int {
	return b.moveCount[0] + b.moveCount[1]
}

// IsFull reports whether every column is full.
func (b *Board) IsFull() bool {
	return b.MoveCount() == Rows*Columns
}

// ColumnHeight returns the next free row in col.
func (b *Board) ColumnHeight(col int) int {
	return b.heights[col]
}

// Cell returns the occupancy of (row, col), row 0 being the bottom.
func (b *Board) Cell(row, col int) Cell {
	return b.cells[row][col]
}

// LastMove returns the square of the most recent disc.
func (b *Board) LastMove() (row, col int, ok bool) {
	return b.graphs[b.player.Opponent()].top()
}

// Cells returns the grid as rows of ints, top row first, for JSON payloads.
func (b *Board) Cells() [][]int {
	out := make([][]int, Rows)
	for i := range out {
		row := Rows - 1 - i
		out[i] = make([]int, Columns)
		for col := 0; col < Columns; col++ {
			out[i][col] = int(b.cells[row][col])
		}
	}
	return out
}

// String renders the grid top row first, 'o' for Player1 and 'x' for Player2.
func (b *Board) String() string {
	var sb strings.Builder
	for row := Rows - 1; row >= 0; row-- {
		for col := 0; col < Columns; col++ {
			sb.WriteByte('\t')
			switch b.cells[row][col] {
			case Player1Disc:
				sb.WriteByte('o')
			case Player2Disc:
				sb.WriteByte('x')
			default:
				sb.WriteByte('-')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// MarshalBinary encodes the complete board state, win graphs included, in a
// canonical form: two boards encode equally iff they are in the same state.
func (b *Board) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, 512)
	for _, h := range b.heights {
		buf = append(buf, byte(h))
	}
	for row := range b.cells {
		for _, c := range b.cells[row] {
			buf = append(buf, byte(c))
		}
	}
	buf = append(buf, byte(b.player), byte(b.moveCount[0]), byte(b.moveCount[1]))
	if b.lastMoveWon {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}

	for _, g := range b.graphs {
		buf = binary.AppendUvarint(buf, uint64(g.size()))
		for id := 1; id <= g.size(); id++ {
			p := g.moves[id]
			buf = append(buf, byte(p.row), byte(p.col))
			if g.won[id] {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
			for d := Direction(0); d < numDirections; d++ {
				ns := g.neighbors(d, id)
				buf = binary.AppendUvarint(buf, uint64(len(ns)))
				for _, n := range ns {
					buf = binary.AppendUvarint(buf, uint64(n))
				}
			}
		}
	}
	return buf, nil
}
