package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/memoryforbots/internal/game"
	"github.com/lox/memoryforbots/internal/server" // Reuse message types
)

// DefaultRequestTimeout bounds how long a request waits for its reply.
const DefaultRequestTimeout = 10 * time.Second

// ErrClosed is returned by requests issued on, or interrupted by, a closed
// connection.
var ErrClosed = errors.New("client: connection closed")

// Client is a WebSocket client for a memory game server. Requests are
// correlated with replies by request ID so they may be issued concurrently.
type Client struct {
	serverURL      string
	conn           *websocket.Conn
	send           chan *server.Message
	receive        chan *server.Message
	logger         *log.Logger
	ctx            context.Context
	cancel         context.CancelFunc
	mu             sync.RWMutex
	pending        map[string]chan *server.Message
	nextID         atomic.Uint64
	caller         string
	closeOnce      sync.Once
	requestTimeout time.Duration

	// Event handlers
	eventHandlers map[server.MessageType][]EventHandler
}

// EventHandler handles a broadcast signal from the server
type EventHandler func(*server.Message)

// NewClient creates a new WebSocket client
func NewClient(serverURL string, logger *log.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		serverURL:      serverURL,
		send:           make(chan *server.Message, 256),
		receive:        make(chan *server.Message, 256),
		logger:         logger.WithPrefix("client"),
		ctx:            ctx,
		cancel:         cancel,
		pending:        make(map[string]chan *server.Message),
		requestTimeout: DefaultRequestTimeout,
		eventHandlers:  make(map[server.MessageType][]EventHandler),
	}
}

// SetRequestTimeout changes how long requests wait for a reply.
func (c *Client) SetRequestTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestTimeout = d
}

// WebSocketURL converts an http(s) or ws(s) server URL to its /ws endpoint.
func WebSocketURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid server URL scheme: %q", u.Scheme)
	}

	u.Path = "/ws"
	return u.String(), nil
}

// Connect establishes a WebSocket connection to the server
func (c *Client) Connect(ctx context.Context) error {
	wsURL, err := WebSocketURL(c.serverURL)
	if err != nil {
		return err
	}
	c.logger.Info("Connecting to server", "url", wsURL)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.readPump()
	go c.writePump()
	go c.eventProcessor()

	c.logger.Info("Connected to server")
	return nil
}

// Close closes the WebSocket connection. Outstanding requests fail with
// ErrClosed.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()

		c.mu.Lock()
		defer c.mu.Unlock()

		if c.conn != nil {
			_ = c.conn.Close() // Ignore close errors during shutdown
		}
		c.logger.Debug("Disconnected from server")
	})
	return nil
}

// Done is closed once the connection has shut down.
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Caller returns the identity assigned by the server, or "" before Hello.
func (c *Client) Caller() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.caller
}

// AddEventHandler registers a handler for a broadcast message type. Handlers
// run sequentially on a single goroutine in arrival order and may issue
// requests.
func (c *Client) AddEventHandler(messageType server.MessageType, handler EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.eventHandlers[messageType] = append(c.eventHandlers[messageType], handler)
}

// readPump handles incoming messages from the server
func (c *Client) readPump() {
	defer func() { _ = c.Close() }()

	for {
		var msg server.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			select {
			case <-c.ctx.Done():
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
					c.logger.Error("WebSocket error", "error", err)
				}
			}
			return
		}

		c.logger.Debug("Received message", "type", msg.Type, "request_id", msg.RequestID)

		if msg.RequestID != "" {
			c.deliver(&msg)
			continue
		}

		select {
		case c.receive <- &msg:
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) deliver(msg *server.Message) {
	c.mu.Lock()
	ch, ok := c.pending[msg.RequestID]
	delete(c.pending, msg.RequestID)
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("Dropping reply for unknown request", "request_id", msg.RequestID)
		return
	}
	ch <- msg
}

// writePump handles outgoing messages to the server
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second) // Ping interval
	defer ticker.Stop()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				_ = c.Close()
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// eventProcessor dispatches broadcasts to registered handlers
func (c *Client) eventProcessor() {
	for {
		select {
		case msg := <-c.receive:
			c.handleEvent(msg)
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) handleEvent(msg *server.Message) {
	c.mu.RLock()
	handlers := append([]EventHandler(nil), c.eventHandlers[msg.Type]...)
	c.mu.RUnlock()

	if len(handlers) == 0 {
		c.logger.Debug("No handler for message type", "type", msg.Type)
		return
	}
	for _, handler := range handlers {
		handler(msg)
	}
}

// request sends a message and waits for the reply carrying the same request
// ID. Error replies are returned as *RemoteError.
func (c *Client) request(ctx context.Context, typ server.MessageType, data any) (*server.Message, error) {
	msg, err := server.NewMessage(typ, data)
	if err != nil {
		return nil, err
	}
	msg.RequestID = strconv.FormatUint(c.nextID.Add(1), 10)

	reply := make(chan *server.Message, 1)
	c.mu.Lock()
	c.pending[msg.RequestID] = reply
	timeout := c.requestTimeout
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, msg.RequestID)
		c.mu.Unlock()
	}()

	select {
	case c.send <- msg:
	case <-c.ctx.Done():
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-reply:
		if resp.Type == server.MessageTypeError {
			return nil, remoteErrorFrom(resp)
		}
		return resp, nil
	case <-timer.C:
		return nil, fmt.Errorf("timeout waiting for reply to %s", typ)
	case <-c.ctx.Done():
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func call[T any](ctx context.Context, c *Client, typ, want server.MessageType, data any) (T, error) {
	var out T
	resp, err := c.request(ctx, typ, data)
	if err != nil {
		return out, err
	}
	if resp.Type != want {
		return out, fmt.Errorf("unexpected reply %s to %s", resp.Type, typ)
	}
	if err := resp.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

// Hello identifies the caller. With token-based auth name may be empty.
func (c *Client) Hello(ctx context.Context, name, token string) (server.WelcomeData, error) {
	welcome, err := call[server.WelcomeData](ctx, c, server.MessageTypeHello, server.MessageTypeWelcome,
		server.HelloData{Name: name, Token: token})
	if err != nil {
		return welcome, err
	}

	c.mu.Lock()
	c.caller = welcome.Caller
	c.mu.Unlock()
	return welcome, nil
}

// StartGame begins a new game and returns its ID.
func (c *Client) StartGame(ctx context.Context) (string, error) {
	res, err := call[server.StartResultData](ctx, c, server.MessageTypeStartGame, server.MessageTypeStartResult, nil)
	return res.GameID, err
}

// AttemptMatch tries to reveal card1 and card2 as a pair.
func (c *Client) AttemptMatch(ctx context.Context, card1, card2 int) (game.MatchResult, error) {
	res, err := call[server.MatchResultData](ctx, c, server.MessageTypeAttemptMatch, server.MessageTypeMatchResult,
		server.AttemptMatchData{Card1: card1, Card2: card2})
	return game.MatchResult{
		Matched:  res.Matched,
		Card1:    res.Card1,
		Card2:    res.Card2,
		PairID:   res.PairID,
		Score:    res.Score,
		GameOver: res.GameOver,
	}, err
}

// ListCards returns the current board.
func (c *Client) ListCards(ctx context.Context) ([]game.Card, error) {
	res, err := call[server.CardsData](ctx, c, server.MessageTypeListCards, server.MessageTypeCards, nil)
	return res.Cards, err
}

// State returns the engine's progress summary.
func (c *Client) State(ctx context.Context) (game.State, error) {
	return call[game.State](ctx, c, server.MessageTypeGetState, server.MessageTypeState, nil)
}

// Scores returns the leaderboard.
func (c *Client) Scores(ctx context.Context) ([]game.ScoreEntry, error) {
	res, err := call[server.ScoresData](ctx, c, server.MessageTypeGetScores, server.MessageTypeScores, nil)
	return res.Scores, err
}
