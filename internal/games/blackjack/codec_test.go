package blackjack_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"cardroom/internal/cards"
	"cardroom/internal/games/blackjack"
)

// Every state the engine can reach must survive a render/parse cycle
// unchanged: the rendered reply is the only storage a session has.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	deck := cards.NewDeckSeeded(42)
	eng := blackjack.NewEngine(deck)
	var states []blackjack.State
	for i := 0; i < 200; i++ {
		s := eng.Deal("player-7", 15)
		states = append(states, s)
		if !s.Terminal() {
			hit := eng.Hit(s)
			states = append(states, hit)
			states = append(states, eng.Stand(s)...)
		}
	}
	// No-stakes sessions render without the stake line.
	free := eng.Deal("", blackjack.NoBet)
	states = append(states, free)
	if !free.Terminal() {
		states = append(states, eng.Stand(free)...)
	}
	for _, want := range states {
		text := blackjack.Encode(want)
		got, ok := blackjack.Decode(text)
		if !ok {
			t.Fatalf("decode rejected own encoding:\n%s", text)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("round trip mismatch\nencoded:\n%s\ngot:  %+v\nwant: %+v", text, got, want)
		}
	}
}

func TestDecodeRejectsNonGameText(t *testing.T) {
	for _, text := range []string{
		"",
		"nice weather today",
		"    Dealer hand: K♥ (10)  \n", // player line missing
		"    Dealer hand: banana  \n    Player hand: 10♣ 7♦ (17)  \n",
	} {
		if _, ok := blackjack.Decode(text); ok {
			t.Errorf("decoded non-game text %q", text)
		}
	}
}

func TestDecodeAcceptsLegacyPlaceholders(t *testing.T) {
	for _, back := range []string{"██", "▩▩", "??"} {
		text := "    Dealer hand: " + back + " K♥ (10)  \n    Player hand: 10♣ 7♦ (17)  \n"
		s, ok := blackjack.Decode(text)
		if !ok {
			t.Fatalf("placeholder %q rejected", back)
		}
		if len(s.Dealer) != 1 || s.Dealer[0] != (cards.Card{Rank: cards.King, Suit: cards.Hearts}) {
			t.Fatalf("placeholder %q: dealer hand = %s", back, cards.Format(s.Dealer))
		}
	}
}

func TestDecodeUnknownVerdictReadsAsLoss(t *testing.T) {
	text := "    Dealer hand: 9♠ K♥ (19)  \n" +
		"    Player hand: 10♣ 7♦ (17)  \n" +
		"    ...  \n" +
		"    Game over. Something unexpected.  \n"
	s, ok := blackjack.Decode(text)
	if !ok {
		t.Fatal("decode rejected terminal text")
	}
	if s.Outcome != blackjack.OutcomeLose {
		t.Fatalf("outcome = %v, want lose", s.Outcome)
	}
}

func TestEncodeGolden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	dealer := []cards.Card{{Rank: cards.Nine, Suit: cards.Spades}}
	player := []cards.Card{
		{Rank: cards.Ten, Suit: cards.Clubs},
		{Rank: cards.Seven, Suit: cards.Diamonds},
	}
	cases := []struct {
		name  string
		state blackjack.State
	}{
		{"opening_staked", blackjack.State{
			Dealer: dealer, Player: player, PlayerID: "alice", Bet: 20,
		}},
		{"opening_free", blackjack.State{
			Dealer: dealer, Player: player, Bet: blackjack.NoBet,
		}},
		{"stand_loss", blackjack.State{
			Dealer:   []cards.Card{{Rank: cards.Nine, Suit: cards.Spades}, {Rank: cards.King, Suit: cards.Hearts}},
			Player:   player,
			PlayerID: "alice", Bet: 20,
			Outcome: blackjack.OutcomeLose,
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			text := blackjack.Encode(tc.state)
			for i, line := range strings.SplitAfter(text, "\n") {
				if line != "" && !strings.HasSuffix(line, "\n") {
					t.Errorf("line %d lacks newline terminator", i)
				}
			}
			g.Assert(t, tc.name, []byte(text))
		})
	}
}
