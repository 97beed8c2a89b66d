// Package cards provides playing card primitives shared by the game
// engines: canonical rank/suit representation, parsing of rendered
// card tokens, and a deck that deals uniformly at random with
// per-hand exclusion sets.
package cards

import (
	"fmt"
	"strconv"
	"strings"
)

// Suit is one of the four card suits, identified by its display glyph.
type Suit rune

const (
	Clubs    Suit = '♣'
	Diamonds Suit = '♦'
	Hearts   Suit = '♥'
	Spades   Suit = '♠'
)

// Suits lists all suits in canonical order.
var Suits = [4]Suit{Clubs, Diamonds, Hearts, Spades}

func (s Suit) String() string { return string(rune(s)) }

// Rank is a card rank from Two (2) through Ace (14).
type Rank int

const (
	Two   Rank = 2
	Three Rank = 3
	Four  Rank = 4
	Five  Rank = 5
	Six   Rank = 6
	Seven Rank = 7
	Eight Rank = 8
	Nine  Rank = 9
	Ten   Rank = 10
	Jack  Rank = 11
	Queen Rank = 12
	King  Rank = 13
	Ace   Rank = 14
)

// Ranks lists all ranks in ascending order.
var Ranks = [13]Rank{Two, Three, Four, Five, Six, Seven, Eight, Nine, Ten, Jack, Queen, King, Ace}

func (r Rank) String() string {
	switch r {
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	case Ace:
		return "A"
	default:
		return strconv.Itoa(int(r))
	}
}

// Card is a single playing card. The zero value is not a valid card.
type Card struct {
	Rank Rank
	Suit Suit
}

// String renders the card the way the reply codec embeds it, e.g.
// "10♣" or "A♠".
func (c Card) String() string { return c.Rank.String() + c.Suit.String() }

// Parse decodes a rendered card token such as "J♦" back into a Card.
func Parse(token string) (Card, error) {
	runes := []rune(strings.TrimSpace(token))
	if len(runes) < 2 {
		return Card{}, fmt.Errorf("card token %q too short", token)
	}
	suit := Suit(runes[len(runes)-1])
	switch suit {
	case Clubs, Diamonds, Hearts, Spades:
	default:
		return Card{}, fmt.Errorf("card token %q has unknown suit", token)
	}
	var rank Rank
	switch name := string(runes[:len(runes)-1]); name {
	case "J":
		rank = Jack
	case "Q":
		rank = Queen
	case "K":
		rank = King
	case "A":
		rank = Ace
	default:
		n, err := strconv.Atoi(name)
		if err != nil || n < 2 || n > 10 {
			return Card{}, fmt.Errorf("card token %q has invalid rank", token)
		}
		rank = Rank(n)
	}
	return Card{Rank: rank, Suit: suit}, nil
}

// ParseAll decodes a slice of rendered card tokens.
func ParseAll(tokens []string) ([]Card, error) {
	out := make([]Card, 0, len(tokens))
	for _, tok := range tokens {
		c, err := Parse(tok)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Format renders a hand as space-separated card tokens.
func Format(hand []Card) string {
	tokens := make([]string, len(hand))
	for i, c := range hand {
		tokens[i] = c.String()
	}
	return strings.Join(tokens, " ")
}

// Contains reports whether the hand holds the given card.
func Contains(hand []Card, c Card) bool {
	for _, h := range hand {
		if h == c {
			return true
		}
	}
	return false
}
