package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// outboundBacklog bounds how many undelivered envelopes a stalled client
	// may hold before the registry presumes it dead.
	outboundBacklog = 32

	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 54 * time.Second
	maxFrameSize = 512
)

// Client is one live socket connection of an authenticated user. The network
// goroutines own the websocket connection; the registry only ever touches the
// outbound channel.
type Client struct {
	userID   int64
	logger   *zap.SugaredLogger
	conn     *websocket.Conn
	outbound chan Envelope

	closeOnce sync.Once
	done      chan struct{}
}

func NewClient(logger *zap.SugaredLogger, conn *websocket.Conn, userID int64) *Client {
	return &Client{
		userID:   userID,
		logger:   logger,
		conn:     conn,
		outbound: make(chan Envelope, outboundBacklog),
		done:     make(chan struct{}),
	}
}

// UserID returns the authenticated user this connection belongs to
func (c *Client) UserID() int64 {
	return c.userID
}

// Outbound exposes the delivery channel for consumers that need to observe
// what reached this connection
func (c *Client) Outbound() <-chan Envelope {
	return c.outbound
}

// Close signals both pumps to stop. Safe to call multiple times and from any
// goroutine; the write pump closes the underlying connection on its way out.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// enqueue attempts a non-blocking delivery. It reports false when the client
// is closing or its backlog is full, in which case the registry evicts it.
func (c *Client) enqueue(env Envelope) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.outbound <- env:
		return true
	default:
		return false
	}
}

// ReadPump consumes inbound frames until the connection dies. Inbound payloads
// carry no business logic; reading serves keepalive and close detection only.
// It blocks, so the caller runs it on the connection's own goroutine and
// unregisters afterwards.
func (c *Client) ReadPump() {
	defer c.Close()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debugf("socket read for user %d: %v", c.userID, err)
			}
			return
		}
	}
}

// WritePump writes queued envelopes and periodic pings until the client is
// closed or a write fails. It owns closing the underlying connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case env := <-c.outbound:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(env); err != nil {
				c.logger.Debugf("socket write for user %d: %v", c.userID, err)
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
