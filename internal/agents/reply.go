package agents

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"cardroom/internal/store"
)

func insufficientFunds(player string, balance, bet int) string {
	if balance == store.NoBalance {
		return fmt.Sprintf("Sorry %s, you have no credits on record. Ask the banker for credits first.\n", player)
	}
	return fmt.Sprintf("Sorry %s, you only have %d credit(s) and bet %d.\n", player, balance, bet)
}

func unknownCommand(body string) string {
	body = strings.TrimSpace(body)
	if len(body) > 40 {
		body = body[:40] + "..."
	}
	return fmt.Sprintf("Sorry, I don't understand %q.\n\n", body)
}

// leadersTable renders the leaderboard as a markdown table.
func leadersTable(accounts []store.Account) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Player", "Credits"})
	for i, a := range accounts {
		t.AppendRow(table.Row{i + 1, a.Player, a.Balance})
	}
	return t.RenderMarkdown() + "\n"
}
