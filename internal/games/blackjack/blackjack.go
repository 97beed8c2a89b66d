// Package blackjack implements the blackjack turn engine and the text
// codec that embeds full game state into rendered replies. A session
// has no private storage: every turn is reconstructed by decoding the
// most recent reply body.
package blackjack

import "cardroom/internal/cards"

// Outcome is the result of a finished game. OutcomeNone means the
// game is still in progress.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeWin
	OutcomeLose
	OutcomePush
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWin:
		return "win"
	case OutcomeLose:
		return "lose"
	case OutcomePush:
		return "push"
	default:
		return "in_progress"
	}
}

// NoBet is the sentinel bet for no-stakes games.
const NoBet = -1

// State is the complete state of one blackjack session. It is
// serialized into reply text by Encode and recovered by Decode.
type State struct {
	Dealer   []cards.Card
	Player   []cards.Card
	PlayerID string // empty in no-stakes mode
	Bet      int    // NoBet in no-stakes mode
	Outcome  Outcome
}

// Terminal reports whether the session has ended. Terminal states
// accept no further turns.
func (s State) Terminal() bool { return s.Outcome != OutcomeNone }

// Stakes reports whether the session is played for credits.
func (s State) Stakes() bool { return s.PlayerID != "" && s.Bet != NoBet }

// Value returns the best hand total: the highest way of counting aces
// (1 or 11) that does not bust, or the lowest total if every counting
// busts.
func Value(hand []cards.Card) int {
	total := 0
	aces := 0
	for _, c := range hand {
		switch {
		case c.Rank == cards.Ace:
			aces++
			total++
		case c.Rank >= cards.Jack:
			total += 10
		default:
			total += int(c.Rank)
		}
	}
	// Promote aces from 1 to 11 while it does not bust.
	for ; aces > 0 && total+10 <= 21; aces-- {
		total += 10
	}
	return total
}

// Busted reports whether every counting of the hand exceeds 21.
func Busted(hand []cards.Card) bool { return Value(hand) > 21 }

// IsNatural reports a two-card 21 on the opening deal.
func IsNatural(hand []cards.Card) bool { return len(hand) == 2 && Value(hand) == 21 }

// Engine evaluates blackjack turns. Dealing draws from an unbounded
// shoe, so cards may repeat across draws.
type Engine struct {
	deck cards.Dealer
}

func NewEngine(deck cards.Dealer) *Engine {
	if deck == nil {
		deck = cards.NewDeck()
	}
	return &Engine{deck: deck}
}

// Deal opens a session: one dealer card, two player cards. A natural
// two-card 21 wins immediately.
func (e *Engine) Deal(playerID string, bet int) State {
	s := State{
		Dealer:   []cards.Card{e.deck.Draw()},
		Player:   []cards.Card{e.deck.Draw(), e.deck.Draw()},
		PlayerID: playerID,
		Bet:      bet,
	}
	if IsNatural(s.Player) {
		s.Outcome = OutcomeWin
	}
	return s
}

// Hit adds one card to the player's hand. Busting ends the session
// with a loss. Terminal states are returned unchanged.
func (e *Engine) Hit(s State) State {
	if s.Terminal() {
		return s
	}
	s.Player = append(append([]cards.Card(nil), s.Player...), e.deck.Draw())
	if Busted(s.Player) {
		s.Outcome = OutcomeLose
	}
	return s
}

// Stand reveals the dealer's hole card and plays the dealer out:
// draw while the best total is below 17, stand on all 17s. The
// returned slice holds the state after the reveal and after each
// subsequent dealer draw; the last element is terminal. Terminal
// input states are returned as a single-element slice unchanged.
func (e *Engine) Stand(s State) []State {
	if s.Terminal() {
		return []State{s}
	}
	s.Dealer = append(append([]cards.Card(nil), s.Dealer...), e.deck.Draw())
	steps := []State{s}
	for !Busted(s.Dealer) && Value(s.Dealer) < 17 {
		s.Dealer = append(append([]cards.Card(nil), s.Dealer...), e.deck.Draw())
		steps = append(steps, s)
	}
	switch {
	case Busted(s.Dealer):
		s.Outcome = OutcomeWin
	case Value(s.Player) > Value(s.Dealer):
		s.Outcome = OutcomeWin
	case Value(s.Player) < Value(s.Dealer):
		s.Outcome = OutcomeLose
	default:
		s.Outcome = OutcomePush
	}
	steps[len(steps)-1] = s
	return steps
}

// Payout returns the credits returned to the player when the session
// ends: 2x the bet on a win, the bet back on a push, nothing on a
// loss (the bet was debited when the session started).
func Payout(s State) int {
	if !s.Stakes() {
		return 0
	}
	switch s.Outcome {
	case OutcomeWin:
		return 2 * s.Bet
	case OutcomePush:
		return s.Bet
	default:
		return 0
	}
}
