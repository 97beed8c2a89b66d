// Package poker implements single-round five-card draw against a fixed
// payout table. One deal, one draw, then settlement: there is no
// opposing hand, the payout table is the house.
package poker

import (
	"fmt"
	"regexp"
	"strings"

	"cardroom/internal/cards"
)

// Outcome is the settled result of a round. None means the draw is
// still pending.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeWin
	OutcomeLose
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWin:
		return "win"
	case OutcomeLose:
		return "lose"
	default:
		return "none"
	}
}

// HandSize is the number of cards dealt and held throughout a round.
const HandSize = 5

// MaskRe matches a hold/discard mask: one letter per card, x to hold,
// o to discard. Matched case-insensitively against player replies.
var MaskRe = regexp.MustCompile(`(?i)((x|o){5})`)

// State is a full round of five-card draw. Everything needed to
// resume or settle the round is here; nothing is kept elsewhere.
type State struct {
	Hand     []cards.Card
	PlayerID string
	Bet      int
	Outcome  Outcome
	Payout   int
}

// Terminal reports whether the round has been settled.
func (s State) Terminal() bool { return s.Outcome != OutcomeNone }

// Engine deals and settles rounds using a shared deck.
type Engine struct {
	deck cards.Dealer
}

func NewEngine(deck cards.Dealer) *Engine {
	if deck == nil {
		deck = cards.NewDeck()
	}
	return &Engine{deck: deck}
}

// Deal starts a round: five distinct cards, wager debited by the
// caller before the deal.
func (e *Engine) Deal(playerID string, bet int) State {
	return State{
		Hand:     e.deck.DrawHand(HandSize),
		PlayerID: playerID,
		Bet:      bet,
	}
}

// Draw applies a hold/discard mask to a pending round and settles it.
// Discarded positions are replaced with cards not already seen this
// round. The mask must be five letters of x (hold) and o (discard).
func (e *Engine) Draw(s State, mask string) (State, error) {
	if s.Terminal() {
		return s, nil
	}
	mask = strings.ToLower(mask)
	if len(mask) != HandSize || !MaskRe.MatchString(mask) {
		return s, fmt.Errorf("poker: bad mask %q", mask)
	}
	seen := make([]cards.Card, 0, 2*HandSize)
	seen = append(seen, s.Hand...)
	hand := make([]cards.Card, HandSize)
	copy(hand, s.Hand)
	for i := 0; i < HandSize; i++ {
		if mask[i] != 'o' {
			continue
		}
		c := e.deck.DrawExcluding(seen)
		seen = append(seen, c)
		hand[i] = c
	}
	s.Hand = hand
	mult := Classify(hand).Multiplier()
	if mult > 0 {
		s.Outcome = OutcomeWin
		s.Payout = s.Bet * mult
	} else {
		s.Outcome = OutcomeLose
	}
	return s, nil
}
