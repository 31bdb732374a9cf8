package bracket

import "fmt"

func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// SeedOrder returns the bracket slot order for n rank-ordered entries (rank 0
// is the best). Every placed seed s at size m is replaced by the pair
// s, 2m-1-s until n slots are filled, so each pair at every level sums to
// the level size minus one.
func SeedOrder(n int) ([]int, error) {
	if n < 2 || !IsPowerOfTwo(n) {
		return nil, fmt.Errorf("%w: bracket size %d is not a power of two", ErrValidation, n)
	}

	order := []int{0}
	for len(order) < n {
		size := len(order) * 2
		next := make([]int, 0, size)
		for _, seed := range order {
			next = append(next, seed, size-1-seed)
		}
		order = next
	}
	return order, nil
}

// SeedPairs reads round-one pairings off SeedOrder, top half of the draw first.
func SeedPairs(n int) ([][2]int, error) {
	order, err := SeedOrder(n)
	if err != nil {
		return nil, err
	}

	pairs := make([][2]int, 0, n/2)
	for i := 0; i < n; i += 2 {
		pairs = append(pairs, [2]int{order[i], order[i+1]})
	}
	return pairs, nil
}

// Rounds is the number of elimination rounds for a bracket of size n.
func Rounds(n int) int {
	rounds := 0
	for size := 1; size < n; size *= 2 {
		rounds++
	}
	return rounds
}
