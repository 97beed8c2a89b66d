package blackjack

import (
	"strconv"
	"strings"

	"cardroom/internal/cards"
	"cardroom/internal/games/gametext"
)

// Encode serializes the full session state into reply text. The
// dealer's first card is obscured while the hand has exactly one
// visible card (pre-reveal); the stake line is emitted only for
// staked sessions; a terminal marker with the verdict ends the text
// once the session is over. Decode inverts this exactly.
func Encode(s State) string {
	var b strings.Builder
	b.WriteString(gametext.Line(gametext.DealerLabel + " " + renderDealer(s.Dealer)))
	b.WriteString(gametext.Line(gametext.PlayerLabel + " " + renderHand(s.Player)))
	if s.Stakes() {
		b.WriteString("  \n")
		b.WriteString(gametext.StakeLine(s.PlayerID, s.Bet))
	}
	if s.Terminal() {
		b.WriteString(gametext.Line("..."))
		b.WriteString(gametext.Line(gametext.GameOverMarker + " " + verdict(s.Outcome)))
	}
	return b.String()
}

func renderDealer(hand []cards.Card) string {
	if len(hand) == 1 {
		return gametext.CardBack + " " + renderHand(hand)
	}
	return renderHand(hand)
}

func renderHand(hand []cards.Card) string {
	return cards.Format(hand) + " (" + strconv.Itoa(Value(hand)) + ")"
}

func verdict(o Outcome) string {
	switch o {
	case OutcomeWin:
		return gametext.VerdictWin
	case OutcomeLose:
		return gametext.VerdictLose
	default:
		return gametext.VerdictPush
	}
}

// Decode reconstructs session state from rendered reply text. It
// fails closed: text without both hand labels, or with unparseable
// card tokens, is reported as "not a game" rather than an error.
func Decode(text string) (State, bool) {
	dealerTokens, ok := gametext.CardTokens(text, gametext.DealerLabel)
	if !ok {
		return State{}, false
	}
	playerTokens, ok := gametext.CardTokens(text, gametext.PlayerLabel)
	if !ok {
		return State{}, false
	}
	dealer, err := cards.ParseAll(dealerTokens)
	if err != nil {
		return State{}, false
	}
	player, err := cards.ParseAll(playerTokens)
	if err != nil {
		return State{}, false
	}
	s := State{Dealer: dealer, Player: player, Bet: NoBet}
	if id, bet, ok := gametext.ParseStake(text); ok {
		s.PlayerID = id
		s.Bet = bet
	}
	if v, over := gametext.Verdict(text); over {
		switch v {
		case gametext.VerdictWin:
			s.Outcome = OutcomeWin
		case gametext.VerdictPush:
			s.Outcome = OutcomePush
		default:
			s.Outcome = OutcomeLose
		}
	}
	return s, true
}
