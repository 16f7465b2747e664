package cards

import (
	rand "math/rand/v2"
)

// Deck is a finite multiset of cards. It is shuffled once when created and
// consumed by popping from the end; it is never reshuffled.
type Deck struct {
	cards []Card
}

// NewDeck creates a standard 52-card deck shuffled with rng
func NewDeck(rng *rand.Rand) *Deck {
	d := &Deck{cards: Standard()}
	d.shuffle(rng)
	return d
}

// Standard returns the 52 cards of a standard deck in suit-major order
func Standard() []Card {
	out := make([]Card, 0, 52)
	for suit := Spades; suit <= Clubs; suit++ {
		for rank := Two; rank <= Ace; rank++ {
			out = append(out, New(rank, suit))
		}
	}
	return out
}

// Stacked returns an unshuffled deck whose Draw calls yield draws in order.
func Stacked(draws ...Card) *Deck {
	d := &Deck{cards: make([]Card, len(draws))}
	for i, c := range draws {
		d.cards[len(draws)-1-i] = c
	}
	return d
}

// shuffle applies a Fisher-Yates permutation
func (d *Deck) shuffle(rng *rand.Rand) {
	for i := len(d.cards) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Draw pops the last card. ok is false when the deck is exhausted.
func (d *Deck) Draw() (Card, bool) {
	if len(d.cards) == 0 {
		return Card{}, false
	}
	c := d.cards[len(d.cards)-1]
	d.cards = d.cards[:len(d.cards)-1]
	return c, true
}

// Remaining returns the number of cards left
func (d *Deck) Remaining() int {
	return len(d.cards)
}
