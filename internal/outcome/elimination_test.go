package outcome

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/roomwager/internal/cards"
	"github.com/lox/roomwager/internal/randutil"
)

func TestLowestIndicesIgnoresSuit(t *testing.T) {
	t.Parallel()
	hands := hand("9h", "3s", "3d", "Ac", "3h")
	assert.Equal(t, []int{1, 2, 4}, LowestIndices(hands))
	assert.Equal(t, []int{0}, LowestIndices(hand("2c", "Ac")))
	assert.Nil(t, LowestIndices(nil))
}

func TestEliminateSingleLowest(t *testing.T) {
	t.Parallel()
	idx, tied, err := Eliminate(randutil.New(1), hand("Kh", "4s", "Qd"))
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	assert.Equal(t, []int{1}, tied)
}

func TestEliminateForfeitAlwaysLowest(t *testing.T) {
	t.Parallel()
	hands := []cards.Card{cards.MustParse("2c"), cards.ForfeitCard, cards.MustParse("2d")}
	idx, _, err := Eliminate(randutil.New(1), hands)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
}

func TestEliminateNoHands(t *testing.T) {
	t.Parallel()
	_, _, err := Eliminate(randutil.New(1), nil)
	assert.ErrorIs(t, err, ErrNoHands)
}

func TestEliminateTieBreakIsUniform(t *testing.T) {
	t.Parallel()
	rng := randutil.New(2024)
	hands := hand("5h", "2s", "2d", "9c", "2h")

	const trials = 3000
	counts := make(map[int]int)
	for i := 0; i < trials; i++ {
		idx, tied, err := Eliminate(rng, hands)
		require.NoError(t, err)
		require.Equal(t, []int{1, 2, 4}, tied)
		counts[idx]++
	}

	require.Len(t, counts, 3, "only tied hands may be eliminated")
	for _, idx := range []int{1, 2, 4} {
		// expected 1000 each; the bounds are more than 5 standard deviations wide
		assert.InDelta(t, trials/3, counts[idx], 150, "index %d chosen %d times", idx, counts[idx])
	}
}
