package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/lox/memoryforbots/internal/game"
)

// Backend is the request set the TUI drives. Both the network client and a
// local session satisfy it.
type Backend interface {
	StartGame(ctx context.Context) (string, error)
	AttemptMatch(ctx context.Context, card1, card2 int) (game.MatchResult, error)
	ListCards(ctx context.Context) ([]game.Card, error)
	State(ctx context.Context) (game.State, error)
	Scores(ctx context.Context) ([]game.ScoreEntry, error)
}

const requestTimeout = 5 * time.Second

// SignalMsg delivers an engine signal observed outside the TUI.
type SignalMsg struct {
	Event game.GameEvent
}

// boardMsg carries a fresh snapshot of the game
type boardMsg struct {
	cards  []game.Card
	state  game.State
	scores []game.ScoreEntry
	err    error
}

// actionMsg reports the outcome of a command together with the board after it
type actionMsg struct {
	line  string
	err   error
	board boardMsg
}

type tickMsg time.Time

// TUIModel is the Bubble Tea model for an interactive memory game
type TUIModel struct {
	backend Backend
	caller  string
	logger  *log.Logger

	// UI components
	logViewport viewport.Model
	actionInput textinput.Model

	// State
	gameLog  []string
	cards    []game.Card
	state    game.State
	scores   []game.ScoreEntry
	quitting bool
	refresh  time.Duration

	// Dimensions
	width  int
	height int
}

// NewTUIModel creates a model playing as caller against backend. A positive
// refresh polls the board so moves by other players show up without signals.
func NewTUIModel(backend Backend, caller string, refresh time.Duration, logger *log.Logger) *TUIModel {
	vp := viewport.New(10, 5)
	vp.SetContent("")

	ti := textinput.New()
	ti.Placeholder = "match 0 1, start, scores, help, quit"
	ti.Focus()
	ti.CharLimit = 64
	ti.Width = 64
	ti.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	ti.TextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA"))
	ti.Prompt = "> "

	return &TUIModel{
		backend:     backend,
		caller:      caller,
		logger:      logger.WithPrefix("tui"),
		logViewport: vp,
		actionInput: ti,
		refresh:     refresh,
	}
}

// Init initializes the TUI model
func (m *TUIModel) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.fetchBoard}
	if m.refresh > 0 {
		cmds = append(cmds, m.tick())
	}
	return tea.Batch(cmds...)
}

func (m *TUIModel) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update handles messages in the TUI
func (m *TUIModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			input := strings.TrimSpace(m.actionInput.Value())
			m.actionInput.SetValue("")
			return m, m.processAction(input)
		case tea.KeyUp:
			m.logViewport.ScrollUp(1)
			return m, nil
		case tea.KeyDown:
			m.logViewport.ScrollDown(1)
			return m, nil
		}

	case boardMsg:
		m.applyBoard(msg)
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.AddLogEntry(ErrorStyle.Render(msg.err.Error()))
		} else if msg.line != "" {
			m.AddLogEntry(msg.line)
		}
		m.applyBoard(msg.board)
		return m, nil

	case SignalMsg:
		m.AddLogEntry(InfoStyle.Render(DescribeEvent(msg.Event)))
		return m, m.fetchBoard

	case tickMsg:
		return m, tea.Batch(m.fetchBoard, m.tick())
	}

	var cmd tea.Cmd
	m.actionInput, cmd = m.actionInput.Update(msg)
	return m, cmd
}

func (m *TUIModel) applyBoard(b boardMsg) {
	if b.err != nil {
		m.logger.Warn("Failed to refresh board", "error", b.err)
		return
	}
	m.cards = b.cards
	m.state = b.state
	m.scores = b.scores
}

// processAction turns a command line into a backend call
func (m *TUIModel) processAction(input string) tea.Cmd {
	parts := strings.Fields(strings.ToLower(input))
	if len(parts) == 0 {
		return m.fetchBoard
	}

	// "3 5" is shorthand for "match 3 5"
	if _, err := strconv.Atoi(parts[0]); err == nil {
		parts = append([]string{"match"}, parts...)
	}

	switch parts[0] {
	case "quit", "q", "exit":
		m.quitting = true
		return tea.Quit

	case "help", "h", "?":
		m.AddLogEntry(InfoStyle.Render("commands: start | match <a> <b> | <a> <b> | scores | refresh | quit"))
		return nil

	case "refresh", "r", "scores":
		return m.fetchBoard

	case "start", "s":
		return m.run(func(ctx context.Context) (string, error) {
			id, err := m.backend.StartGame(ctx)
			if err != nil {
				return "", err
			}
			return SuccessStyle.Render("started game " + id), nil
		})

	case "match", "m":
		if len(parts) != 3 {
			m.AddLogEntry(ErrorStyle.Render("usage: match <card> <card>"))
			return nil
		}
		card1, err1 := strconv.Atoi(parts[1])
		card2, err2 := strconv.Atoi(parts[2])
		if err := errors.Join(err1, err2); err != nil {
			m.AddLogEntry(ErrorStyle.Render("cards must be numbers"))
			return nil
		}
		return m.run(func(ctx context.Context) (string, error) {
			res, err := m.backend.AttemptMatch(ctx, card1, card2)
			if err != nil {
				return "", err
			}
			switch {
			case res.GameOver:
				return SuccessStyle.Render(fmt.Sprintf("matched pair %d and finished the game, score %d", res.PairID, res.Score)), nil
			case res.Matched:
				return SuccessStyle.Render(fmt.Sprintf("matched pair %d, score %d", res.PairID, res.Score)), nil
			default:
				return WarningStyle.Render(fmt.Sprintf("%d and %d do not match", card1, card2)), nil
			}
		})

	default:
		m.AddLogEntry(ErrorStyle.Render(fmt.Sprintf("unknown command %q, try help", parts[0])))
		return nil
	}
}

// run executes fn against the backend and refreshes the board afterwards
func (m *TUIModel) run(fn func(ctx context.Context) (string, error)) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		line, err := fn(ctx)
		return actionMsg{line: line, err: err, board: m.loadBoard(ctx)}
	}
}

func (m *TUIModel) fetchBoard() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	return m.loadBoard(ctx)
}

func (m *TUIModel) loadBoard(ctx context.Context) boardMsg {
	var b boardMsg
	var err error
	if b.cards, err = m.backend.ListCards(ctx); err != nil {
		return boardMsg{err: err}
	}
	if b.state, err = m.backend.State(ctx); err != nil {
		return boardMsg{err: err}
	}
	if b.scores, err = m.backend.Scores(ctx); err != nil {
		return boardMsg{err: err}
	}
	return b
}

// View renders the TUI
func (m *TUIModel) View() string {
	if m.quitting {
		return ""
	}

	perRow := 8
	if m.width > 0 {
		perRow = max(1, (m.width-30)/8)
	}

	status := "no game running, type start"
	if m.state.Active {
		status = fmt.Sprintf("game %s: %d/%d pairs", m.state.GameID, m.state.RevealedPairs, m.state.TotalPairs)
	} else if m.state.GamesStarted > 0 {
		status = fmt.Sprintf("game over (%d played), type start", m.state.GamesStarted)
	}

	header := HeaderStyle.Render(fmt.Sprintf(" memory: %s ", m.caller)) + " " + WarningStyle.Render(status)
	board := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		Render(RenderBoard(m.cards, perRow))
	sidebar := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		Render(RenderScores(m.scores, m.caller))
	top := lipgloss.JoinHorizontal(lipgloss.Top, board, sidebar)

	logHeight := 8
	if m.height > 0 {
		logHeight = max(3, m.height-lipgloss.Height(top)-6)
	}
	m.logViewport.Width = max(10, lipgloss.Width(top)-2)
	m.logViewport.Height = logHeight

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		top,
		GameLogStyle.Render(m.logViewport.View()),
		m.actionInput.View(),
	)
}

// AddLogEntry adds an entry to the game log and scrolls to it
func (m *TUIModel) AddLogEntry(entry string) {
	m.gameLog = append(m.gameLog, entry)
	m.logViewport.SetContent(strings.Join(m.gameLog, "\n"))
	if m.logViewport.Height > 0 && m.logViewport.Width > 0 {
		m.logViewport.GotoBottom()
	}
}

// Log returns a copy of the log lines
func (m *TUIModel) Log() []string {
	return append([]string(nil), m.gameLog...)
}
