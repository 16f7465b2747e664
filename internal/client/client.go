package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/roomwager/internal/protocol"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 54 * time.Second
)

// ErrClosed is returned when sending on a closed client
var ErrClosed = errors.New("client closed")

// Config describes who the client connects as
type Config struct {
	ServerURL string
	Room      string
	UserID    string
	Name      string
	Role      string

	// Token is sent when the server resolves identities through an auth service
	Token string

	// Admin credentials, required by the server for privileged roles
	AdminUser     string
	AdminPassword string
}

// Client is a websocket connection to one room
type Client struct {
	cfg    Config
	logger *log.Logger

	conn      *websocket.Conn
	send      chan []byte
	events    chan protocol.Event
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a client; call Connect to open the socket
func New(cfg Config, logger *log.Logger) *Client {
	return &Client{
		cfg:    cfg,
		logger: logger.WithPrefix("client"),
		send:   make(chan []byte, 64),
		events: make(chan protocol.Event, 256),
		done:   make(chan struct{}),
	}
}

// endpoint builds the websocket URL from the configured server URL
func (c *Client) endpoint() (string, error) {
	u, err := url.Parse(c.cfg.ServerURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http", "":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"

	q := url.Values{}
	q.Set("room", c.cfg.Room)
	if c.cfg.UserID != "" {
		q.Set("user", c.cfg.UserID)
	}
	if c.cfg.Name != "" {
		q.Set("name", c.cfg.Name)
	}
	if c.cfg.Role != "" {
		q.Set("role", c.cfg.Role)
	}
	if c.cfg.Token != "" {
		q.Set("token", c.cfg.Token)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect dials the server and starts the pumps
func (c *Client) Connect(ctx context.Context) error {
	if c.cfg.Room == "" {
		return errors.New("room is required")
	}
	if c.cfg.UserID == "" && c.cfg.Token == "" {
		return errors.New("user or token is required")
	}
	endpoint, err := c.endpoint()
	if err != nil {
		return err
	}
	c.logger.Info("Connecting to server", "url", c.cfg.ServerURL, "room", c.cfg.Room)

	header := http.Header{}
	if c.cfg.AdminUser != "" {
		creds := c.cfg.AdminUser + ":" + c.cfg.AdminPassword
		header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(creds)))
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("failed to connect: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("failed to connect: %w", err)
	}
	c.conn = conn

	go c.readPump()
	go c.writePump()

	c.logger.Info("Connected", "room", c.cfg.Room, "user", c.cfg.UserID)
	return nil
}

// Events returns room traffic. The channel is closed when the connection ends.
func (c *Client) Events() <-chan protocol.Event {
	return c.events
}

// Say sends a line of text to the room
func (c *Client) Say(text string) error {
	data, err := json.Marshal(protocol.Say{Text: text})
	if err != nil {
		return err
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// Close disconnects from the server
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			err = c.conn.Close()
		}
		c.logger.Debug("Disconnected from server")
	})
	return err
}

func (c *Client) readPump() {
	defer func() {
		close(c.events)
		_ = c.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return
		}

		var ev protocol.Event
		if err := protocol.Unmarshal(data, &ev); err != nil {
			c.logger.Warn("Ignoring malformed event", "error", err)
			continue
		}

		select {
		case c.events <- ev:
		case <-c.done:
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				_ = c.Close()
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}
