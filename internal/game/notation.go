package game

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseMoves reads a comma separated column list such as "0,2,0". Blank
// input is the empty game. Columns are range checked but not replayed.
func ParseMoves(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []int{}, nil
	}

	fields := strings.Split(s, ",")
	moves := make([]int, 0, len(fields))
	for i, f := range fields {
		col, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("move %d: %q: %w", i+1, f, ErrInvalidMove)
		}
		if col < 0 || col >= Columns {
			return nil, fmt.Errorf("move %d: column %d out of range: %w", i+1, col, ErrInvalidMove)
		}
		moves = append(moves, col)
	}
	return moves, nil
}

// FormatMoves is the inverse of ParseMoves.
func FormatMoves(moves []int) string {
	parts := make([]string, len(moves))
	for i, col := range moves {
		parts[i] = strconv.Itoa(col)
	}
	return strings.Join(parts, ",")
}
