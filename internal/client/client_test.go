package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/memoryforbots/internal/game"
	"github.com/lox/memoryforbots/internal/server"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func startServer(t *testing.T, opts ...game.Option) (*game.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	base := []game.Option{
		game.WithClock(quartz.NewMock(t)),
		game.WithIDGenerator(func() string { return "g1" }),
	}
	engine, err := game.NewEngine(append(base, opts...)...)
	require.NoError(t, err)

	srv := server.NewServer(engine, nil, testLogger())
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)
	return engine, hs.URL
}

func connect(t *testing.T, url, name string) *Client {
	t.Helper()
	c := NewClient(url, testLogger())
	c.SetRequestTimeout(2 * time.Second)
	require.NoError(t, c.Connect(context.Background()))
	t.Cleanup(func() { _ = c.Close() })

	if name != "" {
		welcome, err := c.Hello(context.Background(), name, "")
		require.NoError(t, err)
		assert.Equal(t, name, welcome.Caller)
		assert.Equal(t, name, c.Caller())
	}
	return c
}

func TestWebSocketURL(t *testing.T) {
	for _, tt := range []struct {
		in, want string
		wantErr  bool
	}{
		{in: "http://localhost:8080", want: "ws://localhost:8080/ws"},
		{in: "https://example.com", want: "wss://example.com/ws"},
		{in: "ws://localhost:8080/ignored", want: "ws://localhost:8080/ws"},
		{in: "ftp://example.com", wantErr: true},
	} {
		t.Run(tt.in, func(t *testing.T) {
			got, err := WebSocketURL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClientPlaysGame(t *testing.T) {
	engine, url := startServer(t)
	c := connect(t, url, "alice")
	ctx := context.Background()

	var (
		mu      sync.Mutex
		signals []server.MessageType
	)
	record := func(msg *server.Message) {
		mu.Lock()
		defer mu.Unlock()
		signals = append(signals, msg.Type)
	}
	c.AddEventHandler(server.MessageTypeGameStarted, record)
	c.AddEventHandler(server.MessageTypeCardMatched, record)
	c.AddEventHandler(server.MessageTypeGameEnded, record)

	gameID, err := c.StartGame(ctx)
	require.NoError(t, err)
	assert.Equal(t, "g1", gameID)

	cards, err := c.ListCards(ctx)
	require.NoError(t, err)
	require.Len(t, cards, 8)

	res, err := c.AttemptMatch(ctx, 0, 2)
	require.NoError(t, err)
	assert.False(t, res.Matched)

	var last game.MatchResult
	for i := 0; i < len(cards); i += 2 {
		last, err = c.AttemptMatch(ctx, i, i+1)
		require.NoError(t, err)
		assert.True(t, last.Matched)
	}
	assert.True(t, last.GameOver)
	assert.Equal(t, 4, last.Score)

	state, err := c.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, engine.State(), state)

	scores, err := c.Scores(ctx)
	require.NoError(t, err)
	assert.Equal(t, []game.ScoreEntry{{Caller: "alice", Score: 4}}, scores)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(signals) == 6
	}, 2*time.Second, 10*time.Millisecond)
	mu.Lock()
	assert.Equal(t, server.MessageTypeGameStarted, signals[0])
	assert.Equal(t, server.MessageTypeGameEnded, signals[5])
	mu.Unlock()
}

func TestRemoteErrorsUnwrapToSentinels(t *testing.T) {
	_, url := startServer(t)
	c := connect(t, url, "alice")
	ctx := context.Background()

	_, err := c.AttemptMatch(ctx, 0, 1)
	assert.ErrorIs(t, err, game.ErrGameNotActive)

	_, err = c.StartGame(ctx)
	require.NoError(t, err)
	_, err = c.StartGame(ctx)
	assert.ErrorIs(t, err, game.ErrAlreadyActive)

	_, err = c.AttemptMatch(ctx, 0, 99)
	assert.ErrorIs(t, err, game.ErrInvalidCard)

	_, err = c.AttemptMatch(ctx, 3, 3)
	assert.ErrorIs(t, err, game.ErrSameCard)

	_, err = c.AttemptMatch(ctx, 0, 1)
	require.NoError(t, err)
	_, err = c.AttemptMatch(ctx, 1, 0)
	assert.ErrorIs(t, err, game.ErrAlreadyMatched)

	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, game.CodeAlreadyMatched, remote.Code)
}

func TestRequestBeforeHello(t *testing.T) {
	_, url := startServer(t)
	c := connect(t, url, "")

	_, err := c.StartGame(context.Background())
	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, server.ErrorCodeUnauthenticated, remote.Code)
	assert.Nil(t, errors.Unwrap(err))
}

func TestConcurrentRequests(t *testing.T) {
	_, url := startServer(t, game.WithPairs(16))
	c := connect(t, url, "alice")
	ctx := context.Background()

	_, err := c.StartGame(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(pair int) {
			defer wg.Done()
			res, err := c.AttemptMatch(ctx, pair*2, pair*2+1)
			if err == nil && !res.Matched {
				err = fmt.Errorf("pair %d did not match", pair)
			}
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	scores, err := c.Scores(ctx)
	require.NoError(t, err)
	assert.Equal(t, []game.ScoreEntry{{Caller: "alice", Score: 16}}, scores)
}

func TestRequestAfterClose(t *testing.T) {
	_, url := startServer(t)
	c := connect(t, url, "alice")
	require.NoError(t, c.Close())

	_, err := c.State(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRequestContextCancelled(t *testing.T) {
	_, url := startServer(t)
	c := connect(t, url, "alice")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.State(ctx)
	assert.Error(t, err)
}
