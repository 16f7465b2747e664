package outcome

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lox/roomwager/internal/cards"
)

// ErrDeckExhausted is returned when the deck runs out mid-deal
var ErrDeckExhausted = errors.New("deck exhausted")

// Category is a bet category in the comparison game
type Category string

const (
	Player Category = "player"
	Banker Category = "banker"
	Tie    Category = "tie"
)

// Categories lists the closed set of bet categories in display order
var Categories = []Category{Player, Banker, Tie}

// ParseCategory resolves user input to a category. It accepts the short
// forms p, b and t.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "player", "p":
		return Player, nil
	case "banker", "b", "bank":
		return Banker, nil
	case "tie", "t", "draw":
		return Tie, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Points returns the comparison value of a single card: A=1, 2-9 face value,
// ten and court cards 0.
func Points(c cards.Card) int {
	switch {
	case c.Rank == cards.Ace:
		return 1
	case c.Rank >= cards.Two && c.Rank <= cards.Nine:
		return int(c.Rank)
	default:
		return 0
	}
}

// HandValue is the sum of card points modulo 10
func HandValue(hand []cards.Card) int {
	total := 0
	for _, c := range hand {
		total += Points(c)
	}
	return total % 10
}

// IsNatural reports whether a two-card value ends the deal
func IsNatural(value int) bool {
	return value >= 8
}

// PlayerDraws reports whether the player hand takes a third card
func PlayerDraws(playerValue int) bool {
	return playerValue <= 5
}

// BankerDraws applies the banker third-card table. playerThird is nil when
// the player stood on two cards.
func BankerDraws(bankerValue int, playerThird *cards.Card) bool {
	if playerThird == nil {
		return bankerValue <= 5
	}
	third := Points(*playerThird)
	switch {
	case bankerValue <= 2:
		return true
	case bankerValue == 3:
		return third != 8
	case bankerValue == 4:
		return third >= 2 && third <= 7
	case bankerValue == 5:
		return third >= 4 && third <= 7
	case bankerValue == 6:
		return third == 6 || third == 7
	default:
		return false
	}
}

// Coup is the complete result of one comparison deal
type Coup struct {
	Player      []cards.Card
	Banker      []cards.Card
	PlayerValue int
	BankerValue int
	Natural     bool
	Winner      Category
}

// DealComparison deals player, banker, player, banker and then applies the
// natural check and the third-card rules.
func DealComparison(deck *cards.Deck) (Coup, error) {
	var coup Coup
	draw := func() (cards.Card, error) {
		c, ok := deck.Draw()
		if !ok {
			return cards.Card{}, ErrDeckExhausted
		}
		return c, nil
	}

	for i := 0; i < 2; i++ {
		p, err := draw()
		if err != nil {
			return Coup{}, err
		}
		b, err := draw()
		if err != nil {
			return Coup{}, err
		}
		coup.Player = append(coup.Player, p)
		coup.Banker = append(coup.Banker, b)
	}

	playerValue, bankerValue := HandValue(coup.Player), HandValue(coup.Banker)
	if IsNatural(playerValue) || IsNatural(bankerValue) {
		coup.Natural = true
		return coup.finish(), nil
	}

	var playerThird *cards.Card
	if PlayerDraws(playerValue) {
		c, err := draw()
		if err != nil {
			return Coup{}, err
		}
		coup.Player = append(coup.Player, c)
		playerThird = &c
	}
	if BankerDraws(bankerValue, playerThird) {
		c, err := draw()
		if err != nil {
			return Coup{}, err
		}
		coup.Banker = append(coup.Banker, c)
	}
	return coup.finish(), nil
}

func (c Coup) finish() Coup {
	c.PlayerValue = HandValue(c.Player)
	c.BankerValue = HandValue(c.Banker)
	switch {
	case c.PlayerValue > c.BankerValue:
		c.Winner = Player
	case c.BankerValue > c.PlayerValue:
		c.Winner = Banker
	default:
		c.Winner = Tie
	}
	return c
}
