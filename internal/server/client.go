// Package server manages individual WebSocket clients, handling read/write
// pumps, rate limiting, and lifecycle control for each connection.
package server

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Tyrowin/paintrelay/internal/config"
	"github.com/Tyrowin/paintrelay/internal/metrics"
	"github.com/Tyrowin/paintrelay/internal/relay"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var (
	// ErrClientClosed is returned by Send after the client has been unregistered.
	ErrClientClosed = errors.New("client closed")
	// ErrSendBufferFull is returned by Send when the client is not draining
	// its queue fast enough.
	ErrSendBufferFull = errors.New("send buffer full")
)

// Client is one WebSocket session. It implements relay.Conn: the hub
// registers it, the relay sends to it, and its read pump feeds the hub.
type Client struct {
	id          string
	connectedAt time.Time
	conn        *websocket.Conn
	hub         *Hub
	addr        string
	log         zerolog.Logger
	metrics     *metrics.Collector
	cfg         *config.Config
	rateLimiter *rateLimiter

	mu     sync.Mutex
	send   chan *relay.Message
	closed bool
}

// NewClient creates a Client for an upgraded connection with a fresh
// identifier. The send queue is bounded by cfg.SendBuffer.
func NewClient(conn *websocket.Conn, hub *Hub, addr string, cfg *config.Config) *Client {
	return newClient(uuid.NewString(), conn, hub, addr, cfg)
}

func newClient(id string, conn *websocket.Conn, hub *Hub, addr string, cfg *config.Config) *Client {
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	c := &Client{
		id:          id,
		connectedAt: time.Now(),
		conn:        conn,
		hub:         hub,
		addr:        addr,
		cfg:         cfg,
		rateLimiter: newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		send:        make(chan *relay.Message, cfg.SendBuffer),
		log:         zerolog.Nop(),
	}
	if hub != nil {
		c.log = hub.log
		c.metrics = hub.metrics
	}
	c.log = c.log.With().Str("connection", id).Str("addr", addr).Logger()
	return c
}

// ID returns the connection identifier.
func (c *Client) ID() string {
	return c.id
}

// ConnectedAt returns when the handshake completed.
func (c *Client) ConnectedAt() time.Time {
	return c.connectedAt
}

// Send queues msg for the write pump without blocking. When the queue is
// full the message is dropped for this client; under the disconnect policy
// the socket is also closed, which ends the session through the normal
// disconnect path.
func (c *Client) Send(msg *relay.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}

	select {
	case c.send <- msg:
		return nil
	default:
	}

	if c.cfg.SlowPeerPolicy == config.SlowPeerDisconnect && c.conn != nil {
		c.log.Warn().Int("buffer", cap(c.send)).Msg("closing slow client")
		_ = c.conn.Close()
	}
	return ErrSendBufferFull
}

// closeSend marks the client closed and stops the write pump. Safe to call
// more than once.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn().Err(err).Msg("error setting initial read deadline")
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.log.Warn().Err(err).Msg("error setting read deadline in pong handler")
		}
		return nil
	})
}

// handleReadError logs why the read loop ended. Every read error ends the
// session.
func (c *Client) handleReadError(err error) {
	if errors.Is(err, websocket.ErrReadLimit) {
		c.log.Warn().Int64("limit", c.cfg.MaxMessageSize).Msg("message exceeded maximum size")
		return
	}

	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived) {
		c.log.Debug().Err(err).Msg("client closed connection")
		return
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || isExpectedCloseError(err) {
		c.log.Debug().Err(err).Msg("connection closed")
		return
	}

	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig) {
		c.log.Warn().Err(err).Msg("unexpected websocket close")
		return
	}

	c.log.Warn().Err(err).Msg("websocket read error")
}

// checkRateLimit reports whether the next inbound event may be processed.
func (c *Client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.allow() {
		c.log.Debug().
			Int("burst", c.cfg.RateLimit.Burst).
			Dur("interval", c.cfg.RateLimit.RefillInterval).
			Msg("rate limit exceeded; discarding event")
		c.metrics.EventDropped(metrics.ReasonRateLimited)
		return false
	}
	return true
}

// processMessage decodes one frame and queues it for fan-out. It returns
// false when the frame was dropped.
func (c *Client) processMessage(frame []byte) bool {
	msg, err := relay.DecodeMessage(frame)
	if err != nil {
		c.log.Debug().Err(err).Msg("invalid frame")
		c.metrics.EventDropped(metrics.ReasonMalformed)
		return false
	}

	if !c.cfg.AllowsEvent(msg.Event) {
		c.log.Debug().Str("event", msg.Event).Msg("event is not relayed")
		c.metrics.EventDropped(metrics.ReasonUnknownEvent)
		return false
	}

	return c.hub.dispatch(c, msg)
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.closeConnection()
	}()

	c.setupReadConnection()

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}

		if !c.checkRateLimit() {
			continue
		}

		c.processMessage(frame)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case msg, ok := <-c.send:
		return c.handleMessage(msg, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

// closeConnection safely closes the WebSocket connection with proper error handling
func (c *Client) closeConnection() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.log.Warn().Err(err).Msg("error closing connection")
	}
}

// handleMessage processes outgoing messages and returns false if the connection should be closed
func (c *Client) handleMessage(msg *relay.Message, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Debug().Err(err).Msg("error setting write deadline")
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	return c.writeTextMessage(msg)
}

// writeCloseMessage sends a close message to the client
func (c *Client) writeCloseMessage() bool {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
		c.log.Debug().Err(err).Msg("error writing close message")
	}
	return false
}

// writeTextMessage writes msg and every message already queued behind it
// into one frame, separated by newlines.
func (c *Client) writeTextMessage(msg *relay.Message) bool {
	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		c.log.Debug().Err(err).Msg("error creating writer")
		return false
	}

	if !c.writeMessageContent(w, msg) {
		return false
	}

	if !c.writeQueuedMessages(w) {
		return false
	}

	return c.closeWriter(w)
}

// writeMessageContent writes one encoded message
func (c *Client) writeMessageContent(w io.WriteCloser, msg *relay.Message) bool {
	data, err := msg.Encode()
	if err != nil {
		// Unencodable payloads are skipped rather than ending the session.
		c.log.Warn().Err(err).Str("event", msg.Event).Msg("error encoding message")
		return true
	}
	if _, err := w.Write(data); err != nil {
		c.log.Debug().Err(err).Msg("error writing message")
		return false
	}
	return true
}

// writeQueuedMessages writes any additional queued messages
func (c *Client) writeQueuedMessages(w io.WriteCloser) bool {
	n := len(c.send)
	for i := 0; i < n; i++ {
		if !c.writeQueuedMessage(w) {
			return false
		}
	}
	return true
}

// writeQueuedMessage writes a single queued message with newline separator
func (c *Client) writeQueuedMessage(w io.WriteCloser) bool {
	msg, ok := <-c.send
	if !ok {
		return false
	}
	if _, err := w.Write([]byte{'\n'}); err != nil {
		c.log.Debug().Err(err).Msg("error writing newline")
		return false
	}
	return c.writeMessageContent(w, msg)
}

// closeWriter flushes the frame
func (c *Client) closeWriter(w io.WriteCloser) bool {
	if err := w.Close(); err != nil {
		c.log.Debug().Err(err).Msg("error closing writer")
		return false
	}
	return true
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Debug().Err(err).Msg("error setting write deadline for ping")
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.log.Debug().Err(err).Msg("error writing ping message")
		return false
	}
	return true
}
