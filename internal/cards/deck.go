package cards

import (
	"math/rand"
	"time"
)

// Dealer deals cards. Deck is the production implementation; Stacked
// deals a predetermined sequence.
type Dealer interface {
	Draw() Card
	DrawExcluding(exclude []Card) Card
	DrawHand(n int) []Card
}

// Deck deals cards uniformly at random from an effectively infinite
// shoe: draws are independent unless an exclusion set is supplied, so
// the same card can appear across hands but never twice within one.
type Deck struct {
	rnd *rand.Rand
}

// NewDeck returns a deck seeded from the current time.
func NewDeck() *Deck {
	return NewDeckSeeded(time.Now().UnixNano())
}

// NewDeckSeeded returns a deck with a fixed seed, for deterministic
// dealing in tests.
func NewDeckSeeded(seed int64) *Deck {
	return &Deck{rnd: rand.New(rand.NewSource(seed))}
}

// Draw deals one card.
func (d *Deck) Draw() Card {
	rank := Ranks[d.rnd.Intn(len(Ranks))]
	suit := Suits[d.rnd.Intn(len(Suits))]
	return Card{Rank: rank, Suit: suit}
}

// DrawExcluding deals one card that is not in the exclusion set.
func (d *Deck) DrawExcluding(exclude []Card) Card {
	for {
		c := d.Draw()
		if !Contains(exclude, c) {
			return c
		}
	}
}

// DrawHand deals n distinct cards.
func (d *Deck) DrawHand(n int) []Card {
	hand := make([]Card, 0, n)
	for len(hand) < n {
		hand = append(hand, d.DrawExcluding(hand))
	}
	return hand
}

// Stacked deals a fixed sequence of cards in order, then falls back
// to a seeded Deck once the sequence runs out. It lets a hand play
// out exactly as arranged.
type Stacked struct {
	sequence []Card
	next     int
	fallback *Deck
}

// NewStacked arranges the given cards to be dealt first, in order.
func NewStacked(sequence ...Card) *Stacked {
	return &Stacked{sequence: sequence, fallback: NewDeckSeeded(1)}
}

func (s *Stacked) Draw() Card {
	if s.next < len(s.sequence) {
		c := s.sequence[s.next]
		s.next++
		return c
	}
	return s.fallback.Draw()
}

func (s *Stacked) DrawExcluding(exclude []Card) Card {
	for {
		c := s.Draw()
		if !Contains(exclude, c) {
			return c
		}
	}
}

func (s *Stacked) DrawHand(n int) []Card {
	hand := make([]Card, 0, n)
	for len(hand) < n {
		hand = append(hand, s.DrawExcluding(hand))
	}
	return hand
}
