// Package outcome implements the pure game-resolution rules of both room
// games. Nothing here holds state or touches the ledger; callers pass in the
// deck and the random source and receive a result value.
//
// # Elimination (lowcard)
//
// Every active participant holds one card per round. Cards are ordered by
// rank only (Two lowest, Ace highest, suits are cosmetic). The participant
// holding the lowest card is eliminated; when several share the lowest rank
// exactly one of them is chosen uniformly at random:
//
//	idx, tied := outcome.Eliminate(rng, hands)
//
// # Comparison (baccarat)
//
// DealComparison deals a punto banco coup from a deck: two cards each to
// the player and banker hands, a natural check, the player third-card rule
// and the banker third-card table. The winning Category is the hand with the
// strictly higher value, or Tie when the values are equal.
package outcome
