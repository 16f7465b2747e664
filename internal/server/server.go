package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lox/roomwager/internal/auth"
	"github.com/lox/roomwager/internal/engine"
	"github.com/lox/roomwager/internal/protocol"
)

// Time allowed for a command to be handled before its caller gives up
const handleTimeout = 10 * time.Second

// Server exposes rooms over websockets and a small admin API
type Server struct {
	logger   zerolog.Logger
	engine   *engine.Engine
	hub      *Hub
	router   *gin.Engine
	http     *http.Server
	upgrader websocket.Upgrader

	adminUser     string
	adminPassword string
	validator     auth.Validator
}

// Option configures a Server
type Option func(*Server)

// WithAdmin protects the admin API and privileged websocket roles with
// basic auth
func WithAdmin(user, password string) Option {
	return func(s *Server) {
		s.adminUser = user
		s.adminPassword = password
	}
}

// WithValidator resolves websocket identities from a token instead of
// trusting the query string
func WithValidator(v auth.Validator) Option {
	return func(s *Server) {
		s.validator = v
	}
}

// New creates a server. hub must be the Transport eng was built with.
func New(logger zerolog.Logger, eng *engine.Engine, hub *Hub, opts ...Option) *Server {
	s := &Server{
		logger: logger.With().Str("component", "server").Logger(),
		engine: eng,
		hub:    hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router = s.routes()
	s.http = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve accepts connections on ln until Shutdown is called
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Server listening")
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and closes every websocket
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.CloseAll()
	return s.http.Shutdown(ctx)
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())

	r.GET("/health", s.handleHealth)
	r.GET("/ws", s.handleWebSocket)

	api := r.Group("/api")
	if s.adminUser != "" {
		api.Use(gin.BasicAuth(gin.Accounts{s.adminUser: s.adminPassword}))
	}
	api.GET("/sessions", s.handleSessions)
	api.GET("/rooms", s.handleRooms)
	api.POST("/rooms/:room/enable", s.handleEnable)
	api.POST("/rooms/:room/disable", s.handleDisable)
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()
		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("dur", time.Since(start)).
			Msg("http")
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":       true,
		"sessions": s.engine.Registry().Len(),
		"time":     time.Now().UTC(),
	})
}

func (s *Server) handleSessions(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Sessions())
}

func (s *Server) handleRooms(c *gin.Context) {
	rooms := s.hub.Rooms()
	out := make([]gin.H, 0, len(rooms))
	for _, info := range rooms {
		out = append(out, gin.H{
			"room":    info.Room,
			"members": info.Members,
			"enabled": s.engine.Enabled(info.Room),
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleEnable(c *gin.Context) {
	room := c.Param("room")
	s.engine.Enable(room)
	c.JSON(http.StatusOK, gin.H{"room": room, "enabled": true})
}

func (s *Server) handleDisable(c *gin.Context) {
	room := c.Param("room")
	ctx, cancel := context.WithTimeout(c.Request.Context(), handleTimeout)
	defer cancel()
	if err := s.engine.Disable(ctx, room); err != nil {
		s.logger.Error().Err(err).Str("room", room).Msg("Failed to disable room")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": room, "enabled": false})
}

// authorized reports whether the request carries the admin credentials. With
// no admin configured every request is trusted.
func (s *Server) authorized(r *http.Request) bool {
	if s.adminUser == "" {
		return true
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.adminUser)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(s.adminPassword)) == 1
	return userOK && passOK
}

// identify resolves who is connecting. It writes the error response itself
// and returns ok=false when the connection must be refused.
func (s *Server) identify(c *gin.Context) (u engine.User, ok bool) {
	if s.validator != nil {
		token := c.Query("token")
		if bearer, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); found {
			token = bearer
		}
		id, err := s.validator.Validate(c.Request.Context(), token)
		switch {
		case errors.Is(err, auth.ErrInvalidToken):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return engine.User{}, false
		case err != nil:
			s.logger.Warn().Err(err).Msg("Auth service unavailable")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "auth unavailable"})
			return engine.User{}, false
		case id != nil:
			u = engine.User{ID: id.UserID, Name: id.Name, Role: engine.ParseRole(id.Role)}
			if u.Name == "" {
				u.Name = u.ID
			}
			return u, true
		}
	}

	u = engine.User{
		ID:   strings.TrimSpace(c.Query("user")),
		Name: strings.TrimSpace(c.Query("name")),
		Role: engine.ParseRole(c.Query("role")),
	}
	if u.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user is required"})
		return engine.User{}, false
	}
	if u.Name == "" {
		u.Name = u.ID
	}
	if u.Role.Privileged() && !s.authorized(c.Request) {
		c.Header("WWW-Authenticate", `Basic realm="roomwager"`)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "admin credentials required for role " + string(u.Role)})
		return engine.User{}, false
	}
	return u, true
}

func (s *Server) handleWebSocket(c *gin.Context) {
	room := strings.TrimSpace(c.Query("room"))
	if room == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room is required"})
		return
	}
	u, ok := s.identify(c)
	if !ok {
		return
	}

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	conn := newConnection(uuid.NewString(), ws, room, u, s.logger)
	if s.hub.register(conn) {
		s.hub.Presence(room, u.Name, true)
	}
	conn.logger.Info().Str("role", string(u.Role)).Msg("Client connected")

	go conn.writePump()
	go func() {
		conn.readPump(func(say protocol.Say) {
			s.say(conn, say.Text)
		})
		s.hangUp(conn)
	}()
}

// say relays a typed line to the room and hands it to the engine
func (s *Server) say(conn *Connection, text string) {
	s.hub.Chat(conn.room, conn.name, text)

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()
	u := conn.User()
	err := s.engine.Handle(ctx, engine.Command{
		Room:   conn.room,
		UserID: u.ID,
		Name:   u.Name,
		Role:   u.Role,
		Text:   text,
	})
	var rej *engine.Rejection
	if err != nil && !errors.As(err, &rej) {
		conn.logger.Warn().Err(err).Str("text", text).Msg("Command failed")
	}
}

// hangUp unregisters conn and tells the engine when the user has left the
// room entirely
func (s *Server) hangUp(conn *Connection) {
	if !s.hub.unregister(conn) {
		conn.logger.Info().Msg("Client disconnected")
		return
	}
	conn.logger.Info().Msg("Client left room")
	s.hub.Presence(conn.room, conn.name, false)

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()
	if err := s.engine.Disconnect(ctx, conn.room, conn.userID); err != nil {
		conn.logger.Warn().Err(err).Msg("Failed to report disconnect")
	}
}
