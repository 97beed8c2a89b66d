package blackjack_test

import (
	"testing"

	"cardroom/internal/cards"
	"cardroom/internal/games/blackjack"
)

func card(r cards.Rank, s cards.Suit) cards.Card { return cards.Card{Rank: r, Suit: s} }

func TestValueAceCounting(t *testing.T) {
	cases := []struct {
		hand []cards.Card
		want int
	}{
		{[]cards.Card{card(cards.Ace, cards.Spades)}, 11},
		{[]cards.Card{card(cards.Ace, cards.Spades), card(cards.Ace, cards.Hearts)}, 12},
		{[]cards.Card{card(cards.Ace, cards.Spades), card(cards.King, cards.Hearts)}, 21},
		{[]cards.Card{card(cards.Ace, cards.Spades), card(cards.Nine, cards.Clubs), card(cards.Five, cards.Diamonds)}, 15},
		{[]cards.Card{card(cards.Ace, cards.Spades), card(cards.Ace, cards.Hearts), card(cards.Nine, cards.Clubs)}, 21},
		{[]cards.Card{card(cards.Ten, cards.Clubs), card(cards.Seven, cards.Diamonds)}, 17},
		{[]cards.Card{card(cards.King, cards.Hearts), card(cards.Queen, cards.Spades), card(cards.Two, cards.Clubs)}, 22},
	}
	for _, tc := range cases {
		if got := blackjack.Value(tc.hand); got != tc.want {
			t.Errorf("Value(%s) = %d, want %d", cards.Format(tc.hand), got, tc.want)
		}
	}
}

func TestDealNaturalWinsImmediately(t *testing.T) {
	deck := cards.NewStacked(
		card(cards.Nine, cards.Spades), // dealer
		card(cards.Ace, cards.Spades),  // player
		card(cards.King, cards.Hearts), // player
	)
	s := blackjack.NewEngine(deck).Deal("alice", 20)
	if !s.Terminal() || s.Outcome != blackjack.OutcomeWin {
		t.Fatalf("natural deal: outcome = %v, want win", s.Outcome)
	}
	if len(s.Dealer) != 1 || len(s.Player) != 2 {
		t.Fatalf("deal shape: dealer %d cards, player %d cards", len(s.Dealer), len(s.Player))
	}
}

func TestHitBustLoses(t *testing.T) {
	deck := cards.NewStacked(
		card(cards.Nine, cards.Spades),
		card(cards.Ten, cards.Clubs),
		card(cards.Seven, cards.Diamonds),
		card(cards.King, cards.Hearts), // hit: 27, bust
	)
	eng := blackjack.NewEngine(deck)
	s := eng.Deal("alice", 20)
	s = eng.Hit(s)
	if s.Outcome != blackjack.OutcomeLose {
		t.Fatalf("bust outcome = %v, want lose", s.Outcome)
	}
	if got := eng.Hit(s); got.Outcome != blackjack.OutcomeLose || len(got.Player) != 3 {
		t.Fatalf("hit on terminal state must be a no-op")
	}
}

func TestStandDealerStandsOnSeventeen(t *testing.T) {
	// Player holds 17, dealer shows 9 and reveals a K for 19: the
	// dealer stands at or above 17 and the player loses.
	deck := cards.NewStacked(
		card(cards.Nine, cards.Spades),
		card(cards.Ten, cards.Clubs),
		card(cards.Seven, cards.Diamonds),
		card(cards.King, cards.Hearts), // reveal
	)
	eng := blackjack.NewEngine(deck)
	steps := eng.Stand(eng.Deal("alice", 20))
	final := steps[len(steps)-1]
	if len(steps) != 1 {
		t.Fatalf("dealer drew past 19: %d steps", len(steps))
	}
	if final.Outcome != blackjack.OutcomeLose {
		t.Fatalf("outcome = %v, want lose", final.Outcome)
	}
	if got := blackjack.Value(final.Dealer); got != 19 {
		t.Fatalf("dealer total = %d, want 19", got)
	}
}

func TestStandDealerDrawsBelowSeventeenAndBusts(t *testing.T) {
	deck := cards.NewStacked(
		card(cards.Ten, cards.Spades),
		card(cards.Ten, cards.Clubs),
		card(cards.Eight, cards.Diamonds),
		card(cards.Six, cards.Diamonds), // reveal: 16, must draw
		card(cards.King, cards.Clubs),   // 26, bust
	)
	eng := blackjack.NewEngine(deck)
	steps := eng.Stand(eng.Deal("alice", 10))
	if len(steps) != 2 {
		t.Fatalf("want one reveal step and one draw step, got %d", len(steps))
	}
	if steps[0].Terminal() {
		t.Fatalf("intermediate step must not be terminal")
	}
	final := steps[len(steps)-1]
	if final.Outcome != blackjack.OutcomeWin {
		t.Fatalf("dealer bust outcome = %v, want win", final.Outcome)
	}
}

func TestStandPush(t *testing.T) {
	deck := cards.NewStacked(
		card(cards.Ten, cards.Spades),
		card(cards.Ten, cards.Clubs),
		card(cards.Eight, cards.Diamonds),
		card(cards.Eight, cards.Hearts), // reveal: 18 = player
	)
	eng := blackjack.NewEngine(deck)
	steps := eng.Stand(eng.Deal("alice", 10))
	if final := steps[len(steps)-1]; final.Outcome != blackjack.OutcomePush {
		t.Fatalf("outcome = %v, want push", final.Outcome)
	}
}

func TestPayout(t *testing.T) {
	base := blackjack.State{PlayerID: "alice", Bet: 20}
	cases := []struct {
		outcome blackjack.Outcome
		want    int
	}{
		{blackjack.OutcomeWin, 40},
		{blackjack.OutcomePush, 20},
		{blackjack.OutcomeLose, 0},
	}
	for _, tc := range cases {
		s := base
		s.Outcome = tc.outcome
		if got := blackjack.Payout(s); got != tc.want {
			t.Errorf("Payout(%v) = %d, want %d", tc.outcome, got, tc.want)
		}
	}
	free := blackjack.State{Bet: blackjack.NoBet, Outcome: blackjack.OutcomeWin}
	if got := blackjack.Payout(free); got != 0 {
		t.Errorf("no-stakes payout = %d, want 0", got)
	}
}
