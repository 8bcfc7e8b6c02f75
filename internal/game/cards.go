package game

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// DefaultPairs is the number of pairs in the reference deck.
const DefaultPairs = 4

// Card is a single face-down card on the board.
type Card struct {
	ID      int  `json:"id"`
	PairID  int  `json:"pairId"`
	Matched bool `json:"matched"`
}

// String returns a compact representation such as "3:2*" (id 3, pair 2, matched)
func (c Card) String() string {
	if c.Matched {
		return fmt.Sprintf("%d:%d*", c.ID, c.PairID)
	}
	return fmt.Sprintf("%d:%d", c.ID, c.PairID)
}

// Deck is the ordered set of cards for an engine.
type Deck []Card

// DefaultPattern returns the fixed pairing pattern [1,1,2,2,...,pairs,pairs].
// A non-positive count yields an empty pattern.
func DefaultPattern(pairs int) []int {
	if pairs <= 0 {
		return []int{}
	}
	pattern := make([]int, 0, pairs*2)
	for p := 1; p <= pairs; p++ {
		pattern = append(pattern, p, p)
	}
	return pattern
}

// ValidatePattern checks that the pattern is non-empty and every pair value
// appears exactly twice.
func ValidatePattern(pattern []int) error {
	if len(pattern) == 0 {
		return fmt.Errorf("pattern must not be empty")
	}
	if len(pattern)%2 != 0 {
		return fmt.Errorf("pattern length must be even, got %d", len(pattern))
	}

	counts := make(map[int]int, len(pattern)/2)
	for _, p := range pattern {
		counts[p]++
	}
	for p, n := range counts {
		if n != 2 {
			return fmt.Errorf("pair %d appears %d times, want 2", p, n)
		}
	}
	return nil
}

// NewDeck builds an unmatched deck from a pairing pattern. Card IDs are the
// pattern indices.
func NewDeck(pattern []int) (Deck, error) {
	if err := ValidatePattern(pattern); err != nil {
		return nil, err
	}

	d := make(Deck, len(pattern))
	for i, p := range pattern {
		d[i] = Card{ID: i, PairID: p}
	}
	return d, nil
}

// Shuffle rearranges pair IDs across positions in place. Card IDs stay
// anchored to their positions so indices remain stable.
func (d Deck) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(d), func(i, j int) {
		d[i].PairID, d[j].PairID = d[j].PairID, d[i].PairID
	})
}

// Reset clears every matched flag.
func (d Deck) Reset() {
	for i := range d {
		d[i].Matched = false
	}
}

// Clone returns a copy safe to hand to callers.
func (d Deck) Clone() Deck {
	out := make(Deck, len(d))
	copy(out, d)
	return out
}

// Pairs returns the number of pairs in the deck.
func (d Deck) Pairs() int {
	return len(d) / 2
}

// Valid reports whether idx addresses a card in the deck.
func (d Deck) Valid(idx int) bool {
	return idx >= 0 && idx < len(d)
}

// Unmatched returns the IDs of cards still in play.
func (d Deck) Unmatched() []int {
	var ids []int
	for _, c := range d {
		if !c.Matched {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

func (d Deck) String() string {
	parts := make([]string, len(d))
	for i, c := range d {
		parts[i] = c.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}
