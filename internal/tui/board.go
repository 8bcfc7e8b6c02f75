package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lox/memoryforbots/internal/game"
)

// RenderBoard draws cards in rows of perRow. Unmatched cards show their
// index; matched cards show the pair they belong to.
func RenderBoard(cards []game.Card, perRow int) string {
	if len(cards) == 0 {
		return InfoStyle.Render("(no cards)")
	}
	if perRow < 1 {
		perRow = 1
	}

	var rows []string
	for start := 0; start < len(cards); start += perRow {
		end := min(start+perRow, len(cards))
		cells := make([]string, 0, end-start)
		for _, card := range cards[start:end] {
			cells = append(cells, renderCard(card))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func renderCard(card game.Card) string {
	if card.Matched {
		return MatchedCardStyle.Render(fmt.Sprintf("%2d=%-2d", card.ID, card.PairID)) + " "
	}
	return HiddenCardStyle.Render(fmt.Sprintf("%2d ? ", card.ID)) + " "
}

// RenderScores draws the leaderboard, marking the local caller.
func RenderScores(scores []game.ScoreEntry, caller string) string {
	var b strings.Builder
	b.WriteString(HeaderStyle.Render(" Scores "))
	b.WriteString("\n")
	if len(scores) == 0 {
		b.WriteString(InfoStyle.Render("no pairs yet"))
		return b.String()
	}
	for _, entry := range scores {
		line := fmt.Sprintf("%-12s %3d", entry.Caller, entry.Score)
		if entry.Caller == caller {
			line = SuccessStyle.Render(line + " *")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// DescribeEvent renders a signal as a log line.
func DescribeEvent(event game.GameEvent) string {
	ts := event.Timestamp().Format("15:04:05")
	switch ev := event.(type) {
	case game.GameStartedEvent:
		return fmt.Sprintf("%s %s started game %s", ts, ev.Caller, ev.GameID)
	case game.CardMatchedEvent:
		return fmt.Sprintf("%s %s matched %d and %d (pair %d)", ts, ev.Caller, ev.Card1, ev.Card2, ev.PairID)
	case game.GameEndedEvent:
		return fmt.Sprintf("%s %s finished game %s with %d", ts, ev.Caller, ev.GameID, ev.Score)
	default:
		return fmt.Sprintf("%s %s", ts, event.EventType())
	}
}
