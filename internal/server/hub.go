// Package server coordinates client registration, event fan-out, and
// connection cleanup for the paint relay via the Hub type.
package server

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Tyrowin/paintrelay/internal/metrics"
	"github.com/Tyrowin/paintrelay/internal/relay"
)

// inboundEvent is one decoded event waiting for fan-out.
type inboundEvent struct {
	source *Client
	msg    *relay.Message
}

// Hub is the transport side of the relay. Clients reach it through three
// channels (register, unregister, inbound) and a single goroutine applies
// them in order to the registry and the relay, so that every event from a
// client is relayed before that client's disconnect.
type Hub struct {
	relay      *relay.Relay
	registry   *relay.Registry
	log        zerolog.Logger
	metrics    *metrics.Collector
	register   chan *Client
	unregister chan *Client
	inbound    chan inboundEvent
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates a Hub that relays through r. The returned Hub does nothing
// until Run is called.
func NewHub(r *relay.Relay, log zerolog.Logger, m *metrics.Collector) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		relay:      r,
		registry:   r.Registry(),
		log:        log,
		metrics:    m,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundEvent),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Registry returns the registry the hub maintains.
func (h *Hub) Registry() *relay.Registry {
	return h.registry
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Register hands a freshly upgraded client to the hub. It reports false if
// the hub has already stopped, in which case the caller owns the socket.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// Unregister is the disconnect callback. It never blocks once the hub has
// stopped, because shutdown unregisters every client itself.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// dispatch queues an event for fan-out in arrival order. It reports false
// when the hub has stopped.
func (h *Hub) dispatch(client *Client, msg *relay.Message) bool {
	select {
	case h.inbound <- inboundEvent{source: client, msg: msg}:
		return true
	case <-h.done:
		return false
	}
}

// Run starts the hub's main event loop. It blocks until Shutdown is called
// and should be run in its own goroutine.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.log.Warn().Msg("received nil client registration; skipping")
				continue
			}
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)

		case ev := <-h.inbound:
			h.relay.OnEvent(ev.source.ID(), ev.msg.Event, ev.msg.Payload)
		}
	}
}

func (h *Hub) handleRegister(client *Client) {
	if err := h.registry.Register(client); err != nil {
		// The transport assigns identifiers, so this is a bug, not a client error.
		h.log.Error().Err(err).
			Str("connection", client.ID()).
			Str("addr", client.addr).
			Msg("connection registry invariant violated; closing connection")
		client.closeSend()
		client.closeConnection()
		return
	}

	size := h.registry.Size()
	h.metrics.ConnectionOpened(size)
	h.log.Info().
		Str("connection", client.ID()).
		Str("addr", client.addr).
		Int("clients", size).
		Msg("client connected")

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

func (h *Hub) handleUnregister(client *Client) {
	if !h.registry.Unregister(client) {
		return
	}
	client.closeSend()

	size := h.registry.Size()
	h.metrics.ConnectionClosed(size)
	h.log.Info().
		Str("connection", client.ID()).
		Str("addr", client.addr).
		Dur("session", time.Since(client.ConnectedAt())).
		Int("clients", size).
		Msg("client disconnected")
}

// shutdownClients unregisters and closes every live client.
func (h *Hub) shutdownClients() {
	h.log.Info().Msg("shutting down all client connections")

	var clients []*Client
	for conn := range h.registry.AllExcept("") {
		if client, ok := conn.(*Client); ok {
			clients = append(clients, client)
		}
	}

	for _, client := range clients {
		h.handleUnregister(client)
		client.closeConnection()
	}

	h.log.Info().Int("closed", len(clients)).Msg("closed client connections")
}

// Shutdown stops the event loop and waits for all client goroutines to
// finish. Run must have been started. It returns context.DeadlineExceeded if
// the pumps are still running after timeout.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info().Msg("initiating hub shutdown")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info().Msg("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.Warn().Dur("timeout", timeout).Msg("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
