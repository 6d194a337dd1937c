package search

// CenterOut reorders moves, given in ascending column order, so that the
// middle entries come first and the rest alternate outward: lower middle,
// upper middle, next lower, next upper and so on. Central columns take part
// in more lines, so trying them first gives earlier cutoffs.
func CenterOut(moves []int) []int {
	n := len(moves)
	out := make([]int, 0, n)
	if n == 0 {
		return out
	}
	lo := (n - 1) / 2
	hi := lo + 1
	for lo >= 0 || hi < n {
		if lo >= 0 {
			out = append(out, moves[lo])
			lo--
		}
		if hi < n {
			out = append(out, moves[hi])
			hi++
		}
	}
	return out
}
