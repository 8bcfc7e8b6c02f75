package tui

import (
	"io"
	"os"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/memoryforbots/internal/game"
	"github.com/lox/memoryforbots/internal/local"
)

func TestMain(m *testing.M) {
	lipgloss.SetColorProfile(termenv.Ascii)
	os.Exit(m.Run())
}

func newModel(t *testing.T, opts ...game.Option) (*TUIModel, *game.Engine) {
	t.Helper()
	base := []game.Option{
		game.WithClock(quartz.NewMock(t)),
		game.WithIDGenerator(func() string { return "g1" }),
	}
	engine, err := game.NewEngine(append(base, opts...)...)
	require.NoError(t, err)

	logger := log.NewWithOptions(io.Discard, log.Options{})
	m := NewTUIModel(local.New(engine, "alice"), "alice", 0, logger)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m, engine
}

// submit types a command, runs the resulting command and feeds its message
// back into the model.
func submit(t *testing.T, m *TUIModel, input string) {
	t.Helper()
	m.actionInput.SetValue(input)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		return
	}
	msg := cmd()
	if _, ok := msg.(tea.QuitMsg); ok {
		return
	}
	m.Update(msg)
}

func lastLog(m *TUIModel) string {
	lines := m.Log()
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}

func TestPlayThroughCommands(t *testing.T) {
	m, engine := newModel(t, game.WithPairs(2))

	submit(t, m, "start")
	assert.Equal(t, "started game g1", lastLog(m))
	assert.True(t, m.state.Active)

	submit(t, m, "0 2")
	assert.Equal(t, "0 and 2 do not match", lastLog(m))

	submit(t, m, "match 0 1")
	assert.Equal(t, "matched pair 1, score 1", lastLog(m))
	assert.True(t, m.cards[0].Matched)

	submit(t, m, "m 2 3")
	assert.Equal(t, "matched pair 2 and finished the game, score 2", lastLog(m))
	assert.False(t, m.state.Active)
	assert.Equal(t, []game.ScoreEntry{{Caller: "alice", Score: 2}}, m.scores)
	assert.Equal(t, 2, engine.Score("alice"))
}

func TestCommandErrors(t *testing.T) {
	m, _ := newModel(t)

	submit(t, m, "match 0 1")
	assert.Contains(t, lastLog(m), "game not active")

	submit(t, m, "start")
	submit(t, m, "start")
	assert.Contains(t, lastLog(m), "already active")

	submit(t, m, "match 1")
	assert.Equal(t, "usage: match <card> <card>", lastLog(m))

	submit(t, m, "match a b")
	assert.Equal(t, "cards must be numbers", lastLog(m))

	submit(t, m, "0 0")
	assert.Contains(t, lastLog(m), "with itself")

	submit(t, m, "fly")
	assert.Contains(t, lastLog(m), `unknown command "fly"`)
}

func TestSignalRefreshesBoard(t *testing.T) {
	m, engine := newModel(t)
	_, err := engine.Start("bob")
	require.NoError(t, err)

	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	_, cmd := m.Update(SignalMsg{Event: game.NewGameStartedEvent("bob", "g1", ts)})
	assert.Equal(t, "03:04:05 bob started game g1", lastLog(m))

	require.NotNil(t, cmd)
	m.Update(cmd())
	assert.True(t, m.state.Active)
}

func TestQuit(t *testing.T) {
	m, _ := newModel(t)

	m.actionInput.SetValue("quit")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, m.View())
}

func TestView(t *testing.T) {
	m, _ := newModel(t, game.WithPairs(2))
	submit(t, m, "")
	view := m.View()
	assert.Contains(t, view, "memory: alice")
	assert.Contains(t, view, "no game running")
	assert.Contains(t, view, " 0 ? ")

	submit(t, m, "start")
	submit(t, m, "0 1")
	view = m.View()
	assert.Contains(t, view, "game g1: 1/2 pairs")
	assert.Contains(t, view, " 0=1 ")
	assert.Contains(t, view, "alice")
}

func TestRenderBoardRows(t *testing.T) {
	cards := []game.Card{{ID: 0, PairID: 1}, {ID: 1, PairID: 1, Matched: true}, {ID: 2, PairID: 2}}
	out := RenderBoard(cards, 2)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], " 0 ? ")
	assert.Contains(t, lines[0], " 1=1 ")
	assert.Contains(t, lines[1], " 2 ? ")

	assert.Contains(t, RenderBoard(nil, 4), "no cards")
}

func TestRenderScores(t *testing.T) {
	out := RenderScores([]game.ScoreEntry{{Caller: "bob", Score: 3}, {Caller: "alice", Score: 1}}, "alice")
	assert.Contains(t, out, "bob")
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "*")
	assert.Contains(t, RenderScores(nil, "alice"), "no pairs yet")
}
