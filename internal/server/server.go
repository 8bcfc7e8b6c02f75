package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/lox/memoryforbots/internal/auth"
	"github.com/lox/memoryforbots/internal/game"
)

// Server exposes a game engine over WebSocket and a read-only HTTP API.
type Server struct {
	engine      *game.Engine
	validator   auth.Validator
	stats       *StatsCollector
	upgrader    websocket.Upgrader
	router      *gin.Engine
	logger      *log.Logger
	mu          sync.RWMutex
	connections map[*Connection]struct{}
}

// NewServer creates a server for engine and subscribes it to the engine's
// signals so they are broadcast to every connected client.
func NewServer(engine *game.Engine, validator auth.Validator, logger *log.Logger) *Server {
	if validator == nil {
		validator = auth.NewNoopValidator()
	}

	s := &Server{
		engine:    engine,
		validator: validator,
		stats:     NewStatsCollector(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:      logger.WithPrefix("server"),
		connections: make(map[*Connection]struct{}),
	}
	s.router = s.routes()
	engine.EventBus().Subscribe(s.stats)
	engine.EventBus().Subscribe(s)

	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/ws", s.handleWebSocket)
	r.GET("/health", s.handleHealth)

	api := r.Group("/api")
	api.GET("/cards", s.handleCards)
	api.GET("/state", s.handleState)
	api.GET("/scores", s.handleScores)
	api.GET("/stats", s.handleStats)

	return r
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.closeAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// OnEvent implements game.EventSubscriber by broadcasting the signal.
func (s *Server) OnEvent(event game.GameEvent) {
	msg, err := MessageFromEvent(event)
	if err != nil {
		s.logger.Error("Failed to encode event", "type", event.EventType(), "error", err)
		return
	}
	s.Broadcast(msg)
}

// Broadcast sends a message to every authenticated connection.
func (s *Server) Broadcast(msg *Message) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for conn := range s.connections {
		if conn.Caller() == "" {
			continue
		}
		if err := conn.SendMessage(msg); err != nil {
			s.logger.Warn("Failed to send broadcast", "error", err, "caller", conn.Caller())
			continue
		}
		count++
	}

	s.logger.Debug("Broadcast message", "type", msg.Type, "recipients", count)
}

// ConnectionCount returns the number of open connections.
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections)
}

func (s *Server) register(conn *Connection) {
	s.mu.Lock()
	s.connections[conn] = struct{}{}
	total := len(s.connections)
	s.mu.Unlock()
	s.logger.Info("Client connected", "total", total)
}

func (s *Server) unregister(conn *Connection) {
	s.mu.Lock()
	_, ok := s.connections[conn]
	delete(s.connections, conn)
	total := len(s.connections)
	s.mu.Unlock()

	if ok {
		s.logger.Info("Client disconnected", "caller", conn.Caller(), "total", total)
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	conns := make([]*Connection, 0, len(s.connections))
	for conn := range s.connections {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
}

func (s *Server) handleWebSocket(c *gin.Context) {
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	conn := NewConnection(ws, s, s.logger)
	s.register(conn)
	conn.Start()

	go func() {
		<-conn.Done()
		s.unregister(conn)
	}()
}

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

func (s *Server) handleCards(c *gin.Context) {
	c.JSON(http.StatusOK, CardsData{Cards: s.engine.Cards()})
}

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.State())
}

func (s *Server) handleScores(c *gin.Context) {
	c.JSON(http.StatusOK, ScoresData{Scores: s.engine.Leaderboard()})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.stats.Snapshot())
}

// Stats returns the server's request statistics.
func (s *Server) Stats() *StatsCollector {
	return s.stats
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
