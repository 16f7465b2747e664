package server

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lox/roomwager/internal/engine"
	"github.com/lox/roomwager/internal/protocol"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Outbound frames buffered per connection before it is dropped
	sendBuffer = 256
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendBufferFull   = errors.New("send buffer full")
)

// Connection is one websocket client joined to one room
type Connection struct {
	id     string
	room   string
	userID string
	name   string
	role   engine.Role

	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	logger    zerolog.Logger
}

func newConnection(id string, conn *websocket.Conn, room string, u engine.User, logger zerolog.Logger) *Connection {
	return &Connection{
		id:     id,
		room:   room,
		userID: u.ID,
		name:   u.Name,
		role:   u.Role,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		logger: logger.With().
			Str("conn_id", id).
			Str("room", room).
			Str("user_id", u.ID).
			Logger(),
	}
}

// User returns the identity the connection speaks as
func (c *Connection) User() engine.User {
	return engine.User{ID: c.userID, Name: c.name, Role: c.role}
}

// Close stops both pumps and closes the socket
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		_ = c.conn.Close()
	})
}

// enqueue queues an encoded frame without blocking. A client that cannot
// keep up is disconnected.
func (c *Connection) enqueue(data []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	default:
		c.logger.Warn().Msg("Connection send buffer full, closing connection")
		c.Close()
		return ErrSendBufferFull
	}
}

// readPump delivers each line the client types to onSay until the socket
// fails or the connection is closed
func (c *Connection) readPump(onSay func(protocol.Say)) {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		say, err := protocol.DecodeSay(data)
		if err != nil {
			if !errors.Is(err, protocol.ErrEmptyText) {
				c.logger.Debug().Err(err).Msg("Ignoring malformed frame")
			}
			continue
		}
		onSay(say)
	}
}

// writePump writes queued frames and keeps the connection alive with pings
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug().Err(err).Msg("Failed to write message")
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
