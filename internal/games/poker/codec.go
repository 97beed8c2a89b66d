package poker

import (
	"regexp"
	"strconv"
	"strings"

	"cardroom/internal/cards"
	"cardroom/internal/games/gametext"
)

var payoutRe = regexp.MustCompile(`Payout (\d+) credit`)

// Encode serializes a round into reply text: the hand line, a stake
// line, and on settlement a terminal marker carrying the verdict,
// with the payout on its own line for wins. Decode inverts this
// exactly.
func Encode(s State) string {
	var b strings.Builder
	b.WriteString(gametext.Line(gametext.PlayerLabel + " " + cards.Format(s.Hand)))
	b.WriteString("  \n")
	b.WriteString(gametext.StakeLine(s.PlayerID, s.Bet))
	if s.Terminal() {
		b.WriteString(gametext.Line("..."))
		if s.Outcome == OutcomeWin {
			b.WriteString(gametext.Line(gametext.GameOverMarker + " " + gametext.VerdictWin))
			b.WriteString(gametext.Line("Payout " + strconv.Itoa(s.Payout) + " credit(s)"))
		} else {
			b.WriteString(gametext.Line(gametext.GameOverMarker + " " + gametext.VerdictLose))
		}
	}
	return b.String()
}

// Decode reconstructs a round from rendered reply text. It fails
// closed: text without a parseable hand line or stake line is
// reported as "not a game" rather than an error.
func Decode(text string) (State, bool) {
	tokens, ok := gametext.CardTokens(text, gametext.PlayerLabel)
	if !ok {
		return State{}, false
	}
	hand, err := cards.ParseAll(tokens)
	if err != nil || len(hand) != HandSize {
		return State{}, false
	}
	id, bet, ok := gametext.ParseStake(text)
	if !ok {
		return State{}, false
	}
	s := State{Hand: hand, PlayerID: id, Bet: bet}
	if v, over := gametext.Verdict(text); over {
		if v == gametext.VerdictWin {
			s.Outcome = OutcomeWin
			if m := payoutRe.FindStringSubmatch(text); m != nil {
				s.Payout, _ = strconv.Atoi(m[1])
			}
		} else {
			s.Outcome = OutcomeLose
		}
	}
	return s, true
}
