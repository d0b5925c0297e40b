package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Tyrowin/paintrelay/internal/metrics"
)

var errSendPanicked = errors.New("send panicked")

// Relay forwards an event from one connection to every other registered
// connection. It does not inspect, validate, or buffer payloads.
type Relay struct {
	registry *Registry
	log      zerolog.Logger
	metrics  *metrics.Collector
}

// Option configures a Relay.
type Option func(*Relay)

// WithLogger sets the logger used for drops and delivery failures.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Relay) {
		r.log = log
	}
}

// WithMetrics records fan-out outcomes on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(r *Relay) {
		r.metrics = c
	}
}

// New creates a Relay that looks up peers in registry.
func New(registry *Registry, opts ...Option) *Relay {
	r := &Relay{
		registry: registry,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registry returns the registry the relay fans out over.
func (r *Relay) Registry() *Registry {
	return r.registry
}

// OnEvent delivers (event, payload) to every connection except sourceID and
// returns how many peers accepted it. Events from a source that is no longer
// registered are dropped. A peer that fails to accept the message is
// skipped; the failure never reaches the source.
func (r *Relay) OnEvent(sourceID, event string, payload json.RawMessage) int {
	if _, ok := r.registry.Lookup(sourceID); !ok {
		r.log.Debug().Str("source", sourceID).Str("event", event).Msg("dropping event from unregistered source")
		r.metrics.EventDropped(metrics.ReasonUnregisteredSource)
		return 0
	}
	r.metrics.EventReceived(event)

	return r.fanout(sourceID, NewMessage(event, payload))
}

func (r *Relay) fanout(sourceID string, msg *Message) int {
	start := time.Now()
	delivered, failed := 0, 0

	for peer := range r.registry.AllExcept(sourceID) {
		if err := r.deliver(peer, msg); err != nil {
			failed++
			// Full buffers are routine under load and already counted;
			// only a panicking transport is worth a warning.
			event := r.log.Debug()
			if errors.Is(err, errSendPanicked) {
				event = r.log.Warn()
			}
			event.Err(err).
				Str("source", sourceID).
				Str("peer", peer.ID()).
				Str("event", msg.Event).
				Msg("delivery failed")
			continue
		}
		delivered++
	}

	r.metrics.Fanout(delivered, failed, time.Since(start))
	return delivered
}

// deliver isolates one peer's send so that a panicking transport cannot
// abort the rest of the fan-out.
func (r *Relay) deliver(peer Conn, msg *Message) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", errSendPanicked, rec)
		}
	}()
	return peer.Send(msg)
}
