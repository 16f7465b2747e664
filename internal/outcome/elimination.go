package outcome

import (
	"errors"
	rand "math/rand/v2"

	"github.com/lox/roomwager/internal/cards"
	"github.com/lox/roomwager/internal/randutil"
)

// ErrNoHands is returned when a round is resolved with no active participants
var ErrNoHands = errors.New("no hands to resolve")

// LowestIndices returns the indices of every hand holding the minimum rank,
// in input order.
func LowestIndices(hands []cards.Card) []int {
	if len(hands) == 0 {
		return nil
	}
	low := hands[0].Rank
	for _, c := range hands[1:] {
		if c.Rank < low {
			low = c.Rank
		}
	}
	var out []int
	for i, c := range hands {
		if c.Rank == low {
			out = append(out, i)
		}
	}
	return out
}

// Eliminate picks the eliminated hand. Ties at the minimum are broken
// uniformly at random and by nothing else. It returns the chosen index and
// the full tied set.
func Eliminate(rng *rand.Rand, hands []cards.Card) (int, []int, error) {
	tied := LowestIndices(hands)
	if len(tied) == 0 {
		return -1, nil, ErrNoHands
	}
	return tied[randutil.Pick(rng, len(tied))], tied, nil
}
