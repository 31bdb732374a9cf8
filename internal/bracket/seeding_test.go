package bracket

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedPairs(t *testing.T) {
	testCases := []struct {
		name     string
		size     int
		expected [][2]int
	}{
		{name: "2 teams", size: 2, expected: [][2]int{{0, 1}}},
		{name: "4 teams", size: 4, expected: [][2]int{{0, 3}, {1, 2}}},
		{name: "8 teams", size: 8, expected: [][2]int{{0, 7}, {3, 4}, {1, 6}, {2, 5}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			pairs, err := SeedPairs(tc.size)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, pairs)
		})
	}
}

func TestSeedOrderCanonicalEight(t *testing.T) {
	order, err := SeedOrder(8)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 7, 3, 4, 1, 6, 2, 5}, order)
}

func TestSeedOrderIsBalancedPermutation(t *testing.T) {
	for n := 2; n <= 128; n *= 2 {
		order, err := SeedOrder(n)
		require.NoError(t, err)

		sorted := slices.Clone(order)
		slices.Sort(sorted)
		for i := range sorted {
			require.Equal(t, i, sorted[i], "n=%d is not a permutation", n)
		}

		// The favourites of the two halves of any block meet in that block's
		// final, and their seeds always sum to the number of blocks at that
		// level times two minus one (best meets worst).
		for block := 2; block <= n; block *= 2 {
			for start := 0; start < n; start += block {
				left := slices.Min(order[start : start+block/2])
				right := slices.Min(order[start+block/2 : start+block])
				assert.Equal(t, 2*n/block-1, left+right, "n=%d block=%d start=%d", n, block, start)
			}
		}
	}
}

func TestSeedOrderRejectsInvalidSizes(t *testing.T) {
	for _, n := range []int{-4, 0, 1, 3, 6, 12} {
		_, err := SeedOrder(n)
		assert.ErrorIs(t, err, ErrValidation, "n=%d", n)
	}
}

func TestRounds(t *testing.T) {
	assert.Equal(t, 1, Rounds(2))
	assert.Equal(t, 2, Rounds(4))
	assert.Equal(t, 3, Rounds(8))
	assert.Equal(t, 6, Rounds(64))
}
