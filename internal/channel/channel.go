// Package channel owns the one persistent websocket connection to the
// server. Inbound frames are decoded and handed to a single handler in
// arrival order; malformed frames are logged and dropped. An unexpected
// close arms exactly one reconnect timer; an explicit Disconnect suppresses
// it.
package channel

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/osilveira/courier/internal/status"
	"github.com/osilveira/courier/internal/wire"
)

// Handler receives every well-formed inbound frame, one at a time, in
// arrival order. The channel owns exactly one handler (the event router);
// there is no subscriber fan-out.
type Handler func(wire.Frame)

// Channel is the transport channel.
type Channel struct {
	socketURL      string
	token          string
	handler        Handler
	machine        *status.Machine
	logger         *zap.Logger
	reconnectDelay time.Duration

	mu             sync.Mutex
	conn           *websocket.Conn
	reconnectTimer *time.Timer
	closed         bool
}

// New creates a channel. The handler is invoked synchronously from the read
// loop, so frame dispatch is FIFO with respect to arrival order.
func New(socketURL, token string, handler Handler, machine *status.Machine, reconnectDelay time.Duration, logger *zap.Logger) *Channel {
	if reconnectDelay <= 0 {
		reconnectDelay = 3 * time.Second
	}
	return &Channel{
		socketURL:      socketURL,
		token:          token,
		handler:        handler,
		machine:        machine,
		logger:         logger,
		reconnectDelay: reconnectDelay,
	}
}

// Connect opens the connection if none is open; connecting while open is a
// no-op. A pending reconnect timer is canceled; an explicit connect
// supersedes the scheduled attempt.
func (c *Channel) Connect() error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		c.logger.Warn("connect ignored, channel already open")
		return nil
	}
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.closed = false
	c.mu.Unlock()

	_ = c.machine.Transition(status.Connecting)

	u, err := url.Parse(c.socketURL)
	if err != nil {
		return fmt.Errorf("parse socket url: %w", err)
	}
	q := u.Query()
	q.Set("token", c.token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		c.logger.Warn("dial failed", zap.Error(err))
		c.scheduleReconnect()
		return fmt.Errorf("dial: %w", err)
	}

	c.mu.Lock()
	if c.closed || c.conn != nil {
		// A Disconnect or a competing Connect won the race while this
		// dial was in flight; at most one connection may stay open.
		c.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	c.conn = conn
	c.mu.Unlock()

	_ = c.machine.Transition(status.Connected)
	c.logger.Info("channel connected", zap.String("url", c.socketURL))

	go c.readLoop(conn)
	return nil
}

// Disconnect closes the connection and suppresses auto-reconnect.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.closed = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	_ = c.machine.Transition(status.Closed)
	c.logger.Info("channel disconnected")
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.onClose(conn, err)
			return
		}

		frame, err := wire.Decode(data)
		if err != nil {
			// Malformed frames never surface to the handler.
			c.logger.Warn("malformed frame dropped", zap.Error(err))
			continue
		}
		c.handler(frame)
	}
}

func (c *Channel) onClose(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	closed := c.closed
	c.mu.Unlock()

	_ = conn.Close()
	if closed {
		return
	}
	c.logger.Warn("channel closed unexpectedly", zap.Error(err))
	c.scheduleReconnect()
}

// scheduleReconnect arms the single reconnect timer. A close event arriving
// while a timer is already armed must not schedule a duplicate.
func (c *Channel) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.reconnectTimer != nil {
		return
	}
	_ = c.machine.Transition(status.Reconnecting)
	c.logger.Info("reconnect scheduled", zap.Duration("delay", c.reconnectDelay))
	c.reconnectTimer = time.AfterFunc(c.reconnectDelay, func() {
		c.mu.Lock()
		c.reconnectTimer = nil
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}
		if err := c.Connect(); err != nil {
			c.logger.Warn("reconnect attempt failed", zap.Error(err))
		}
	})
}
