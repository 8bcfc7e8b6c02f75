package bot

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/lox/memoryforbots/internal/game"
)

// Strategy picks the next two cards to try. ok is false when no guess is
// possible.
type Strategy interface {
	Choose(cards []game.Card) (card1, card2 int, ok bool)
}

// New returns the named strategy. Valid names are "perfect", "random" and
// "sloppy".
func New(name string, rng *rand.Rand) (Strategy, error) {
	switch name {
	case "perfect":
		return NewPerfectBot(rng), nil
	case "random":
		return NewRandBot(rng), nil
	case "sloppy":
		return NewSloppyBot(rng, 0.3), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}

// PerfectBot always chooses a true pair, picking among the remaining pairs
// at random so concurrent bots rarely collide.
type PerfectBot struct {
	rng *rand.Rand
}

func NewPerfectBot(rng *rand.Rand) *PerfectBot {
	return &PerfectBot{rng: rng}
}

func (p *PerfectBot) Choose(cards []game.Card) (int, int, bool) {
	pairs := openPairs(cards)
	if len(pairs) == 0 {
		return 0, 0, false
	}
	pair := pairs[p.rng.IntN(len(pairs))]
	return pair[0], pair[1], true
}

// RandBot guesses two distinct unmatched cards uniformly at random
type RandBot struct {
	rng *rand.Rand
}

func NewRandBot(rng *rand.Rand) *RandBot {
	return &RandBot{rng: rng}
}

func (r *RandBot) Choose(cards []game.Card) (int, int, bool) {
	open := unmatched(cards)
	if len(open) < 2 {
		return 0, 0, false
	}
	i := r.rng.IntN(len(open))
	j := r.rng.IntN(len(open) - 1)
	if j >= i {
		j++
	}
	return open[i], open[j], true
}

// SloppyBot plays like PerfectBot but makes a random guess with probability
// mistakeRate.
type SloppyBot struct {
	rng         *rand.Rand
	mistakeRate float64
	perfect     *PerfectBot
	random      *RandBot
}

func NewSloppyBot(rng *rand.Rand, mistakeRate float64) *SloppyBot {
	return &SloppyBot{
		rng:         rng,
		mistakeRate: mistakeRate,
		perfect:     NewPerfectBot(rng),
		random:      NewRandBot(rng),
	}
}

func (s *SloppyBot) Choose(cards []game.Card) (int, int, bool) {
	if s.rng.Float64() < s.mistakeRate {
		return s.random.Choose(cards)
	}
	return s.perfect.Choose(cards)
}

func unmatched(cards []game.Card) []int {
	var open []int
	for _, c := range cards {
		if !c.Matched {
			open = append(open, c.ID)
		}
	}
	return open
}

// openPairs groups unmatched cards by pair ID, ordered by pair ID
func openPairs(cards []game.Card) [][2]int {
	byPair := make(map[int][]int)
	for _, c := range cards {
		if !c.Matched {
			byPair[c.PairID] = append(byPair[c.PairID], c.ID)
		}
	}

	ids := make([]int, 0, len(byPair))
	for id, members := range byPair {
		if len(members) == 2 {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)

	pairs := make([][2]int, 0, len(ids))
	for _, id := range ids {
		pairs = append(pairs, [2]int{byPair[id][0], byPair[id][1]})
	}
	return pairs
}
