package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/memoryforbots/internal/auth"
	"github.com/lox/memoryforbots/internal/game"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	// Outbound queue depth per connection
	sendBuffer = 256
)

// ErrConnectionClosed is returned when sending on a closed connection.
var ErrConnectionClosed = errors.New("connection closed")

// Connection represents a WebSocket connection to a client
type Connection struct {
	conn      *websocket.Conn
	server    *Server
	send      chan *Message
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	caller    string
	name      string
	closeOnce sync.Once
}

// NewConnection creates a new connection wrapper
func NewConnection(conn *websocket.Conn, server *Server, logger *log.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())

	return &Connection{
		conn:   conn,
		server: server,
		send:   make(chan *Message, sendBuffer),
		logger: logger.WithPrefix("conn"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Done is closed once the connection shuts down.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

// Caller returns the resolved caller identity, or "" before hello.
func (c *Connection) Caller() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.caller
}

func (c *Connection) setIdentity(caller, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.caller = caller
	c.name = name
}

// SendMessage queues a message for the client without blocking. A client
// whose queue is full is disconnected.
func (c *Connection) SendMessage(msg *Message) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		c.logger.Warn("Connection send buffer full, closing connection", "caller", c.Caller())
		_ = c.Close()
		return ErrConnectionClosed
	}
}

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return
		}

		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// handleMessage processes incoming messages from the client
func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("Received message", "type", msg.Type, "caller", c.Caller())

	if msg.Type == MessageTypeHello {
		c.handleHello(msg)
		return
	}

	caller := c.Caller()
	if caller == "" {
		c.sendError(msg, ErrorCodeUnauthenticated, "send hello before other messages")
		return
	}

	engine := c.server.engine

	switch msg.Type {
	case MessageTypeStartGame:
		event, err := engine.Start(caller)
		if err != nil {
			c.sendEngineError(msg, err)
			return
		}
		c.reply(msg, MessageTypeStartResult, StartResultData{GameID: event.GameID})

	case MessageTypeAttemptMatch:
		var data AttemptMatchData
		if err := msg.Decode(&data); err != nil {
			c.sendError(msg, ErrorCodeInvalidMessage, "Failed to parse attempt_match data")
			return
		}
		res, err := engine.AttemptMatch(caller, data.Card1, data.Card2)
		c.server.stats.RecordAttempt(caller, res, err)
		if err != nil {
			c.sendEngineError(msg, err)
			return
		}
		c.reply(msg, MessageTypeMatchResult, MatchResultData{
			Matched:  res.Matched,
			Card1:    res.Card1,
			Card2:    res.Card2,
			PairID:   res.PairID,
			Score:    res.Score,
			GameOver: res.GameOver,
		})

	case MessageTypeListCards:
		c.reply(msg, MessageTypeCards, CardsData{Cards: engine.Cards()})

	case MessageTypeGetState:
		c.reply(msg, MessageTypeState, engine.State())

	case MessageTypeGetScores:
		c.reply(msg, MessageTypeScores, ScoresData{Scores: engine.Leaderboard()})

	default:
		c.sendError(msg, ErrorCodeUnknownMessage, fmt.Sprintf("unknown message type: %s", msg.Type))
	}
}

func (c *Connection) handleHello(msg *Message) {
	if c.Caller() != "" {
		c.sendError(msg, ErrorCodeAlreadyConnected, "hello already received")
		return
	}

	var data HelloData
	if err := msg.Decode(&data); err != nil {
		c.sendError(msg, ErrorCodeInvalidMessage, "Failed to parse hello data")
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, 2*time.Second)
	defer cancel()

	identity, err := c.server.validator.Validate(ctx, data.Token)
	switch {
	case errors.Is(err, auth.ErrUnavailable):
		c.logger.Warn("Auth service unavailable", "error", err)
		c.sendError(msg, ErrorCodeAuthUnavailable, "authentication service unavailable")
		return
	case err != nil:
		c.sendError(msg, ErrorCodeUnauthenticated, "invalid token")
		return
	}

	caller, name := data.Name, data.Name
	if identity != nil {
		caller, name = identity.CallerID, identity.Name
	}
	if caller == "" {
		c.sendError(msg, ErrorCodeInvalidMessage, "name is required")
		return
	}

	c.setIdentity(caller, name)
	c.logger.Info("Caller authenticated", "caller", caller, "name", name)
	c.reply(msg, MessageTypeWelcome, WelcomeData{Caller: caller, Name: name})
}

func (c *Connection) reply(req *Message, typ MessageType, data any) {
	msg, err := NewMessage(typ, data)
	if err != nil {
		c.logger.Error("Failed to create reply", "type", typ, "error", err)
		return
	}
	msg.RequestID = req.RequestID
	if err := c.SendMessage(msg); err != nil {
		c.logger.Debug("Failed to send reply", "type", typ, "error", err)
	}
}

func (c *Connection) sendEngineError(req *Message, err error) {
	code := game.ErrorCode(err)
	c.logger.Debug("Operation rejected", "type", req.Type, "caller", c.Caller(), "code", code, "error", err)
	c.sendError(req, code, err.Error())
}

func (c *Connection) sendError(req *Message, code, message string) {
	c.reply(req, MessageTypeError, ErrorData{Code: code, Message: message})
}
