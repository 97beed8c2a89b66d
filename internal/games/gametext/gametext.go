// Package gametext holds the fixed text protocol shared by the game
// codecs: line labels, the stake line, the hidden-card placeholder and
// the terminal marker. Session reconstruction depends on these exact
// shapes, so they must never drift between encode and decode.
package gametext

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	DealerLabel = "Dealer hand:"
	PlayerLabel = "Player hand:"

	// CardBack obscures the dealer's hole card before the reveal.
	CardBack = "██"

	GameOverMarker = "Game over."

	VerdictWin  = "You win!"
	VerdictLose = "You lose."
	VerdictPush = "Push."
)

// Placeholder glyphs accepted when decoding an obscured card. Encode
// always writes CardBack; older renderings used the others.
var placeholders = []string{CardBack, "▩▩", "??"}

var stakeRe = regexp.MustCompile(`Player: (\S+) bet: (\d+) credit`)

// Line renders one board line: four-space indent plus the two
// trailing spaces markdown needs for a hard break.
func Line(s string) string { return "    " + s + "  \n" }

// StakeLine renders the machine-parseable stake line.
func StakeLine(player string, bet int) string {
	return "    Player: " + player + " bet: " + strconv.Itoa(bet) + " credit(s)\n"
}

// ParseStake extracts the player id and bet from rendered text.
func ParseStake(text string) (player string, bet int, ok bool) {
	m := stakeRe.FindStringSubmatch(text)
	if m == nil {
		return "", 0, false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, false
	}
	return m[1], n, true
}

// CardTokens locates the line carrying the given label and returns
// the card tokens after it: whitespace-separated, cut before any
// parenthetical value annotation, with a leading placeholder glyph
// stripped so only truly dealt cards remain.
func CardTokens(text, label string) ([]string, bool) {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, label) {
			continue
		}
		rest := strings.TrimSpace(strings.TrimPrefix(trimmed, label))
		if i := strings.Index(rest, " ("); i >= 0 {
			rest = rest[:i]
		}
		tokens := strings.Fields(rest)
		if len(tokens) > 0 && isPlaceholder(tokens[0]) {
			tokens = tokens[1:]
		}
		return tokens, true
	}
	return nil, false
}

func isPlaceholder(token string) bool {
	for _, p := range placeholders {
		if token == p {
			return true
		}
	}
	return false
}

// Verdict returns the canonical verdict phrase found after the
// terminal marker, if the text marks a finished game.
func Verdict(text string) (string, bool) {
	if !strings.Contains(text, GameOverMarker) {
		return "", false
	}
	for _, v := range []string{VerdictWin, VerdictLose, VerdictPush} {
		if strings.Contains(text, v) {
			return v, true
		}
	}
	return "", true
}
