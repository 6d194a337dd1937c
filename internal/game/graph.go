package game

// Direction is one of the four line directions a run of discs can follow.
type Direction int

const (
	Horizontal Direction = iota
	Vertical
	DiagonalUp   // ↗: row and column change with the same sign
	DiagonalDown // ↘: row and column change with opposite signs
	numDirections
)

func (d Direction) String() string {
	switch d {
	case Horizontal:
		return "horizontal"
	case Vertical:
		return "vertical"
	case DiagonalUp:
		return "diagonal-up"
	case DiagonalDown:
		return "diagonal-down"
	}
	return "unknown"
}

// WinLength is the number of connected discs that wins the game.
const WinLength = 4

type position struct {
	row, col int
}

// winGraph tracks one player's discs as four adjacency arenas, one per
// direction, indexed by the player's own 1-based move id. Slot 0 of every
// arena is an unused sentinel so that ids index directly.
//
// Nodes are only ever appended and removed from the tail, so the arenas
// follow a strict stack discipline.
type winGraph struct {
	moves []position
	won   []bool
	adj   [numDirections][][]int

	// BFS scratch, reused across registrations.
	queue   []int
	visited []bool
}

func newWinGraph() *winGraph {
	g := &winGraph{
		moves:   make([]position, 1, Rows*Columns/2+1),
		won:     make([]bool, 1, Rows*Columns/2+1),
		queue:   make([]int, 0, Rows*Columns/2),
		visited: make([]bool, Rows*Columns/2+1),
	}
	for d := range g.adj {
		g.adj[d] = make([][]int, 1, Rows*Columns/2+1)
	}
	return g
}

// size is the number of registered moves.
func (g *winGraph) size() int {
	return len(g.moves) - 1
}

// relation classifies the coordinate delta between two discs. ok is false
// when the discs are not exactly one cell apart along some direction.
func relation(a, b position) (Direction, bool) {
	dr := a.row - b.row
	dc := a.col - b.col
	switch {
	case dc == 0 && (dr == 1 || dr == -1):
		return Vertical, true
	case dr == 0 && (dc == 1 || dc == -1):
		return Horizontal, true
	case (dr == 1 && dc == 1) || (dr == -1 && dc == -1):
		return DiagonalUp, true
	case (dr == 1 && dc == -1) || (dr == -1 && dc == 1):
		return DiagonalDown, true
	}
	return 0, false
}

// register adds the disc placed at (row, col) as move id, links it to every
// adjacent disc of the same player and reports whether it completes a run of
// WinLength or more in any direction.
func (g *winGraph) register(id, row, col int) bool {
	if id != len(g.moves) {
		panic("game: win graph move id out of sequence")
	}

	p := position{row, col}
	g.moves = append(g.moves, p)
	for d := range g.adj {
		g.adj[d] = append(g.adj[d], nil)
	}

	for i := 1; i < id; i++ {
		d, ok := relation(g.moves[i], p)
		if !ok {
			continue
		}
		g.adj[d][i] = append(g.adj[d][i], id)
		g.adj[d][id] = append(g.adj[d][id], i)
	}

	won := false
	for d := range g.adj {
		if g.componentSize(Direction(d), id) >= WinLength {
			won = true
			break
		}
	}
	g.won = append(g.won, won)
	return won
}

// componentSize counts the discs reachable from start in one direction graph.
func (g *winGraph) componentSize(d Direction, start int) int {
	if len(g.visited) < len(g.moves) {
		g.visited = make([]bool, len(g.moves))
	}
	visited := g.visited[:len(g.moves)]
	for i := range visited {
		visited[i] = false
	}

	adj := g.adj[d]
	queue := append(g.queue[:0], start)
	visited[start] = true
	count := 0
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		count++
		for _, k := range adj[n] {
			if !visited[k] {
				visited[k] = true
				queue = append(queue, k)
			}
		}
	}
	g.queue = queue[:0]
	return count
}

// pop removes the most recently registered move from every direction graph
// and returns its coordinates. ok is false when the graph is empty.
func (g *winGraph) pop() (row, col int, ok bool) {
	n := g.size()
	if n == 0 {
		return -1, -1, false
	}

	for d := range g.adj {
		for _, j := range g.adj[d][n] {
			g.adj[d][j] = removeID(g.adj[d][j], n)
		}
		g.adj[d][n] = nil
		g.adj[d] = g.adj[d][:n]
	}

	p := g.moves[n]
	g.moves = g.moves[:n]
	g.won = g.won[:n]
	return p.row, p.col, true
}

// lastWon reports what register returned for the move now on top of the
// stack, or false when no moves remain.
func (g *winGraph) lastWon() bool {
	return g.won[len(g.won)-1]
}

// top returns the coordinates of the most recent move.
func (g *winGraph) top() (row, col int, ok bool) {
	n := g.size()
	if n == 0 {
		return -1, -1, false
	}
	p := g.moves[n]
	return p.row, p.col, true
}

// neighbors returns the ids adjacent to id in direction d.
func (g *winGraph) neighbors(d Direction, id int) []int {
	return g.adj[d][id]
}

func removeID(ids []int, id int) []int {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
