package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dgnsrekt/pageread/internal/reader"
)

const (
	maxMessageSize = 512 * 1024
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	writeWait      = 10 * time.Second
	sendBuffer     = 256
)

// Client is one websocket connection.
type Client struct {
	id     string
	conn   *websocket.Conn
	server *Server
	send   chan []byte

	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool
}

func newClient(conn *websocket.Conn, s *Server) *Client {
	return &Client{
		id:     uuid.NewString(),
		conn:   conn,
		server: s,
		send:   make(chan []byte, sendBuffer),
	}
}

// ID returns the client's identifier.
func (c *Client) ID() string { return c.id }

func (c *Client) run(ctx context.Context) {
	go c.writePump()
	c.readPump(ctx)
}

func (c *Client) readPump(ctx context.Context) {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.logger.Warn("Websocket read error", "client", c.id, "err", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		c.handleFrame(ctx, data)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleFrame(ctx context.Context, data []byte) {
	var req requestFrame
	if err := json.Unmarshal(data, &req); err != nil {
		c.respond("", reader.Response{Message: "malformed request: " + err.Error()})
		return
	}

	c.server.logger.Debug("Request", "client", c.id, "id", req.ID, "action", req.Action)
	c.respond(req.ID, c.server.handler.Handle(ctx, req.Request))
}

func (c *Client) respond(id string, resp reader.Response) {
	data, err := json.Marshal(newResponseFrame(id, resp))
	if err != nil {
		c.server.logger.Error("Failed to encode response", "err", err)
		return
	}
	c.enqueue(data)
}

// enqueue queues data for the write pump, dropping it when the client is
// too slow or gone.
func (c *Client) enqueue(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.server.logger.Warn("Client send buffer full, dropping message", "client", c.id)
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
	})
}
