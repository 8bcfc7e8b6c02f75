package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/memoryforbots/internal/auth"
	"github.com/lox/memoryforbots/internal/game"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type testServer struct {
	engine *game.Engine
	server *Server
	http   *httptest.Server
}

func startTestServer(t *testing.T, validator auth.Validator, opts ...game.Option) *testServer {
	t.Helper()

	logger := log.NewWithOptions(io.Discard, log.Options{})
	ids := 0
	base := []game.Option{
		game.WithClock(quartz.NewMock(t)),
		game.WithIDGenerator(func() string {
			ids++
			return fmt.Sprintf("g%d", ids)
		}),
	}
	engine, err := game.NewEngine(append(base, opts...)...)
	require.NoError(t, err)

	srv := NewServer(engine, validator, logger)
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.closeAll()
		hs.Close()
	})

	return &testServer{engine: engine, server: srv, http: hs}
}

type testClient struct {
	t    *testing.T
	conn *websocket.Conn
	seq  int
}

func (ts *testServer) dial(t *testing.T) *testClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &testClient{t: t, conn: conn}
}

func (c *testClient) send(typ MessageType, data any) string {
	c.t.Helper()
	msg, err := NewMessage(typ, data)
	require.NoError(c.t, err)
	c.seq++
	msg.RequestID = fmt.Sprintf("r%d", c.seq)
	require.NoError(c.t, c.conn.WriteJSON(msg))
	return msg.RequestID
}

func (c *testClient) next() *Message {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(c.t, c.conn.ReadJSON(&msg))
	return &msg
}

// reply skips broadcasts until the reply to requestID arrives
func (c *testClient) reply(requestID string) *Message {
	c.t.Helper()
	for {
		msg := c.next()
		if msg.RequestID == requestID {
			return msg
		}
	}
}

// await skips messages until one of type typ arrives
func (c *testClient) await(typ MessageType) *Message {
	c.t.Helper()
	for {
		msg := c.next()
		if msg.Type == typ {
			return msg
		}
	}
}

func (c *testClient) call(typ MessageType, data any) *Message {
	c.t.Helper()
	return c.reply(c.send(typ, data))
}

func (c *testClient) hello(name string) {
	c.t.Helper()
	msg := c.call(MessageTypeHello, HelloData{Name: name})
	require.Equal(c.t, MessageTypeWelcome, msg.Type)
}

func decode[T any](t *testing.T, msg *Message) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(msg.Data, &v))
	return v
}

func TestHealth(t *testing.T) {
	ts := startTestServer(t, nil)

	resp, err := http.Get(ts.http.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}

func TestRequiresHello(t *testing.T) {
	ts := startTestServer(t, nil)
	c := ts.dial(t)

	msg := c.call(MessageTypeStartGame, nil)
	require.Equal(t, MessageTypeError, msg.Type)
	assert.Equal(t, ErrorCodeUnauthenticated, decode[ErrorData](t, msg).Code)
	assert.False(t, ts.engine.Active())
}

func TestHelloValidation(t *testing.T) {
	ts := startTestServer(t, nil)
	c := ts.dial(t)

	msg := c.call(MessageTypeHello, HelloData{})
	require.Equal(t, MessageTypeError, msg.Type)
	assert.Equal(t, ErrorCodeInvalidMessage, decode[ErrorData](t, msg).Code)

	c.hello("alice")
	msg = c.call(MessageTypeHello, HelloData{Name: "mallory"})
	assert.Equal(t, ErrorCodeAlreadyConnected, decode[ErrorData](t, msg).Code)
}

func TestFullGameOverWebSocket(t *testing.T) {
	ts := startTestServer(t, nil)
	alice := ts.dial(t)
	bob := ts.dial(t)
	alice.hello("alice")
	bob.hello("bob")

	msg := alice.call(MessageTypeStartGame, nil)
	require.Equal(t, MessageTypeStartResult, msg.Type)
	assert.Equal(t, "g1", decode[StartResultData](t, msg).GameID)

	started := bob.await(MessageTypeGameStarted)
	assert.Equal(t, GameStartedData{Caller: "alice", GameID: "g1"}, decode[GameStartedData](t, started))

	msg = bob.call(MessageTypeStartGame, nil)
	require.Equal(t, MessageTypeError, msg.Type)
	assert.Equal(t, game.CodeAlreadyActive, decode[ErrorData](t, msg).Code)

	msg = alice.call(MessageTypeAttemptMatch, AttemptMatchData{Card1: 0, Card2: 2})
	require.Equal(t, MessageTypeMatchResult, msg.Type)
	assert.False(t, decode[MatchResultData](t, msg).Matched)

	msg = alice.call(MessageTypeAttemptMatch, AttemptMatchData{Card1: 0, Card2: 1})
	res := decode[MatchResultData](t, msg)
	assert.True(t, res.Matched)
	assert.Equal(t, 1, res.Score)

	matched := bob.await(MessageTypeCardMatched)
	assert.Equal(t, CardMatchedData{Caller: "alice", GameID: "g1", Card1: 0, Card2: 1, PairID: 1}, decode[CardMatchedData](t, matched))

	for _, tt := range []struct {
		card1, card2 int
		code         string
	}{
		{0, 1, game.CodeAlreadyMatched},
		{8, 1, game.CodeInvalidCard},
		{3, 3, game.CodeSameCard},
	} {
		msg = bob.call(MessageTypeAttemptMatch, AttemptMatchData{Card1: tt.card1, Card2: tt.card2})
		require.Equal(t, MessageTypeError, msg.Type)
		assert.Equal(t, tt.code, decode[ErrorData](t, msg).Code)
	}

	for _, pair := range [][2]int{{2, 3}, {4, 5}} {
		msg = bob.call(MessageTypeAttemptMatch, AttemptMatchData{Card1: pair[0], Card2: pair[1]})
		assert.True(t, decode[MatchResultData](t, msg).Matched)
	}
	msg = alice.call(MessageTypeAttemptMatch, AttemptMatchData{Card1: 6, Card2: 7})
	res = decode[MatchResultData](t, msg)
	assert.True(t, res.GameOver)
	assert.Equal(t, 2, res.Score)

	ended := bob.await(MessageTypeGameEnded)
	assert.Equal(t, GameEndedData{Caller: "alice", GameID: "g1", Score: 2}, decode[GameEndedData](t, ended))

	msg = alice.call(MessageTypeAttemptMatch, AttemptMatchData{Card1: 0, Card2: 1})
	assert.Equal(t, game.CodeGameNotActive, decode[ErrorData](t, msg).Code)

	msg = alice.call(MessageTypeGetState, nil)
	state := decode[game.State](t, msg)
	assert.False(t, state.Active)
	assert.Equal(t, 4, state.RevealedPairs)

	msg = alice.call(MessageTypeGetScores, nil)
	assert.Equal(t, []game.ScoreEntry{{Caller: "alice", Score: 2}, {Caller: "bob", Score: 2}}, decode[ScoresData](t, msg).Scores)

	stats := ts.server.Stats().Snapshot()
	assert.Equal(t, 1, stats.GamesFinished)
	require.Len(t, stats.Callers, 2)
	assert.Equal(t, 1, stats.Callers[0].Misses)
	assert.Equal(t, 1, stats.Callers[0].Finished)
	assert.Equal(t, map[string]int{
		game.CodeAlreadyMatched: 1,
		game.CodeInvalidCard:    1,
		game.CodeSameCard:       1,
	}, stats.Callers[1].Rejected)

	msg = alice.call(MessageTypeListCards, nil)
	cards := decode[CardsData](t, msg).Cards
	require.Len(t, cards, 8)
	for _, card := range cards {
		assert.True(t, card.Matched)
	}
}

func TestUnknownAndMalformedMessages(t *testing.T) {
	ts := startTestServer(t, nil)
	c := ts.dial(t)
	c.hello("alice")

	msg := c.call(MessageType("dance"), nil)
	assert.Equal(t, ErrorCodeUnknownMessage, decode[ErrorData](t, msg).Code)

	raw := &Message{Type: MessageTypeAttemptMatch, Data: json.RawMessage(`{"card1":"zero"}`), RequestID: "bad"}
	require.NoError(t, c.conn.WriteJSON(raw))
	msg = c.reply("bad")
	assert.Equal(t, ErrorCodeInvalidMessage, decode[ErrorData](t, msg).Code)
}

func TestHelloWithJWT(t *testing.T) {
	validator := auth.NewJWTValidator([]byte("secret"))
	ts := startTestServer(t, validator)
	c := ts.dial(t)

	msg := c.call(MessageTypeHello, HelloData{Name: "alice", Token: "forged"})
	assert.Equal(t, ErrorCodeUnauthenticated, decode[ErrorData](t, msg).Code)

	token, err := validator.Issue("caller-42", "Alice", time.Hour)
	require.NoError(t, err)

	msg = c.call(MessageTypeHello, HelloData{Name: "ignored", Token: token})
	require.Equal(t, MessageTypeWelcome, msg.Type)
	assert.Equal(t, WelcomeData{Caller: "caller-42", Name: "Alice"}, decode[WelcomeData](t, msg))

	c.call(MessageTypeStartGame, nil)
	c.call(MessageTypeAttemptMatch, AttemptMatchData{Card1: 0, Card2: 1})
	assert.Equal(t, 1, ts.engine.Score("caller-42"))
	assert.Equal(t, 0, ts.engine.Score("ignored"))
}

type unavailableValidator struct{}

func (unavailableValidator) Validate(ctx context.Context, token string) (*auth.Identity, error) {
	return nil, fmt.Errorf("%w: down", auth.ErrUnavailable)
}

func TestHelloAuthUnavailable(t *testing.T) {
	ts := startTestServer(t, unavailableValidator{})
	c := ts.dial(t)

	msg := c.call(MessageTypeHello, HelloData{Name: "alice", Token: "t"})
	assert.Equal(t, ErrorCodeAuthUnavailable, decode[ErrorData](t, msg).Code)
}

func TestRESTEndpoints(t *testing.T) {
	ts := startTestServer(t, nil)
	_, err := ts.engine.Start("alice")
	require.NoError(t, err)
	_, err = ts.engine.AttemptMatch("alice", 2, 3)
	require.NoError(t, err)

	get := func(path string, v any) {
		t.Helper()
		resp, err := http.Get(ts.http.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}

	var cards CardsData
	get("/api/cards", &cards)
	require.Len(t, cards.Cards, 8)
	assert.True(t, cards.Cards[2].Matched)
	assert.False(t, cards.Cards[0].Matched)

	var state game.State
	get("/api/state", &state)
	assert.True(t, state.Active)
	assert.Equal(t, 1, state.RevealedPairs)

	var scores ScoresData
	get("/api/scores", &scores)
	assert.Equal(t, []game.ScoreEntry{{Caller: "alice", Score: 1}}, scores.Scores)

	var stats StatsSnapshot
	get("/api/stats", &stats)
	assert.Equal(t, 1, stats.GamesStarted)
	assert.Empty(t, stats.Callers, "attempts made outside a connection are not counted")
}

func TestBroadcastSkipsUnauthenticated(t *testing.T) {
	ts := startTestServer(t, nil)
	anon := ts.dial(t)
	alice := ts.dial(t)
	alice.hello("alice")

	require.Eventually(t, func() bool { return ts.server.ConnectionCount() == 2 }, time.Second, 10*time.Millisecond)

	alice.call(MessageTypeStartGame, nil)

	// anon's first message must be the reply to its own request, not the broadcast
	id := anon.send(MessageTypeGetState, nil)
	msg := anon.next()
	assert.Equal(t, MessageTypeError, msg.Type)
	assert.Equal(t, id, msg.RequestID)
}

func TestDisconnectUnregisters(t *testing.T) {
	ts := startTestServer(t, nil)
	c := ts.dial(t)
	c.hello("alice")
	require.Equal(t, 1, ts.server.ConnectionCount())

	require.NoError(t, c.conn.Close())
	assert.Eventually(t, func() bool { return ts.server.ConnectionCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServeStopsOnCancel(t *testing.T) {
	engine, err := game.NewEngine()
	require.NoError(t, err)
	srv := NewServer(engine, nil, log.NewWithOptions(io.Discard, log.Options{}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
