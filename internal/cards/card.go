package cards

import (
	"fmt"
	"strings"
)

// Suit represents a card suit. Suits never affect ranking in either game.
type Suit uint8

const (
	Spades Suit = iota
	Hearts
	Diamonds
	Clubs
)

// String returns the suit symbol
func (s Suit) String() string {
	switch s {
	case Spades:
		return "♠"
	case Hearts:
		return "♥"
	case Diamonds:
		return "♦"
	case Clubs:
		return "♣"
	default:
		return "?"
	}
}

// Letter returns the single-letter suit code used in media references
func (s Suit) Letter() string {
	switch s {
	case Spades:
		return "S"
	case Hearts:
		return "H"
	case Diamonds:
		return "D"
	case Clubs:
		return "C"
	default:
		return "X"
	}
}

// Rank represents a card rank. Ranks are ordered Two (lowest) to Ace (highest);
// Forfeit sits below every real rank.
type Rank uint8

const (
	Forfeit Rank = 0

	Two Rank = iota + 1
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

// String returns the rank code
func (r Rank) String() string {
	switch {
	case r == Forfeit:
		return "-"
	case r >= Two && r <= Nine:
		return fmt.Sprintf("%d", int(r))
	case r == Ten:
		return "T"
	case r == Jack:
		return "J"
	case r == Queen:
		return "Q"
	case r == King:
		return "K"
	case r == Ace:
		return "A"
	default:
		return "?"
	}
}

// Card is an immutable playing card value.
type Card struct {
	Rank Rank
	Suit Suit
}

// ForfeitCard is assigned to participants that can no longer draw. It ranks
// below every card in a real deck.
var ForfeitCard = Card{Rank: Forfeit}

// New creates a card
func New(rank Rank, suit Suit) Card {
	return Card{Rank: rank, Suit: suit}
}

// IsForfeit reports whether c is the forfeit placeholder
func (c Card) IsForfeit() bool {
	return c.Rank == Forfeit
}

// String returns a display form such as "Q♥" or "forfeit"
func (c Card) String() string {
	if c.IsForfeit() {
		return "forfeit"
	}
	return c.Rank.String() + c.Suit.String()
}

// Code returns an ASCII code such as "QH", used for media file names
func (c Card) Code() string {
	if c.IsForfeit() {
		return "XX"
	}
	return c.Rank.String() + c.Suit.Letter()
}

// Media returns the inline image reference for the card
func (c Card) Media() string {
	return "cards/" + c.Code() + ".png"
}

// Parse parses a card code like "As", "TD" or "10h"
func Parse(s string) (Card, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) < 2 {
		return Card{}, fmt.Errorf("invalid card %q", s)
	}
	rankPart, suitPart := s[:len(s)-1], s[len(s)-1:]

	var rank Rank
	switch rankPart {
	case "A":
		rank = Ace
	case "K":
		rank = King
	case "Q":
		rank = Queen
	case "J":
		rank = Jack
	case "T", "10":
		rank = Ten
	default:
		if len(rankPart) != 1 || rankPart[0] < '2' || rankPart[0] > '9' {
			return Card{}, fmt.Errorf("invalid rank in card %q", s)
		}
		rank = Rank(rankPart[0] - '0')
	}

	var suit Suit
	switch suitPart {
	case "S":
		suit = Spades
	case "H":
		suit = Hearts
	case "D":
		suit = Diamonds
	case "C":
		suit = Clubs
	default:
		return Card{}, fmt.Errorf("invalid suit in card %q", s)
	}
	return New(rank, suit), nil
}

// MustParse is Parse for tests and fixed tables
func MustParse(s string) Card {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}
