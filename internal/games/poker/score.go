package poker

import (
	"sort"

	"cardroom/internal/cards"
)

// Category is a five-card draw hand rank. Ordering follows payout
// strength; Nothing pays zero.
type Category int

const (
	Nothing Category = iota
	JacksOrBetter
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
	RoyalFlush
)

var categoryNames = map[Category]string{
	Nothing:       "nothing",
	JacksOrBetter: "jacks or better",
	TwoPair:       "two pair",
	ThreeOfAKind:  "three of a kind",
	Straight:      "straight",
	Flush:         "flush",
	FullHouse:     "full house",
	FourOfAKind:   "four of a kind",
	StraightFlush: "straight flush",
	RoyalFlush:    "royal flush",
}

func (c Category) String() string { return categoryNames[c] }

// Multiplier is the fixed payout table: the wager is multiplied by
// this value on a win. Zero denotes a loss.
func (c Category) Multiplier() int {
	switch c {
	case JacksOrBetter:
		return 1
	case TwoPair:
		return 2
	case ThreeOfAKind:
		return 3
	case Straight:
		return 4
	case Flush:
		return 6
	case FullHouse:
		return 9
	case FourOfAKind:
		return 25
	case StraightFlush:
		return 50
	case RoyalFlush:
		return 250
	default:
		return 0
	}
}

// Classify scores a five-card hand against the payout table.
func Classify(hand []cards.Card) Category {
	if len(hand) != 5 {
		return Nothing
	}
	counts := map[cards.Rank]int{}
	suits := map[cards.Suit]int{}
	for _, c := range hand {
		counts[c.Rank]++
		suits[c.Suit]++
	}
	flush := len(suits) == 1
	straight, high := straightHigh(counts)

	switch {
	case flush && straight && high == cards.Ace:
		return RoyalFlush
	case flush && straight:
		return StraightFlush
	}

	pairs, trips, quads := 0, 0, 0
	var pairRank cards.Rank
	for r, n := range counts {
		switch n {
		case 2:
			pairs++
			if r > pairRank {
				pairRank = r
			}
		case 3:
			trips++
		case 4:
			quads++
		}
	}

	switch {
	case quads == 1:
		return FourOfAKind
	case trips == 1 && pairs == 1:
		return FullHouse
	case flush:
		return Flush
	case straight:
		return Straight
	case trips == 1:
		return ThreeOfAKind
	case pairs == 2:
		return TwoPair
	case pairs == 1 && pairRank >= cards.Jack:
		return JacksOrBetter
	default:
		return Nothing
	}
}

// straightHigh reports whether the five distinct ranks form a run,
// and the high card of that run. The ace plays low in A-2-3-4-5.
func straightHigh(counts map[cards.Rank]int) (bool, cards.Rank) {
	if len(counts) != 5 {
		return false, 0
	}
	ranks := make([]int, 0, 5)
	for r := range counts {
		ranks = append(ranks, int(r))
	}
	sort.Ints(ranks)
	// Wheel: A 2 3 4 5.
	if ranks[4] == int(cards.Ace) && ranks[0] == int(cards.Two) &&
		ranks[1] == int(cards.Three) && ranks[2] == int(cards.Four) && ranks[3] == int(cards.Five) {
		return true, cards.Five
	}
	for i := 1; i < 5; i++ {
		if ranks[i] != ranks[i-1]+1 {
			return false, 0
		}
	}
	return true, cards.Rank(ranks[4])
}
