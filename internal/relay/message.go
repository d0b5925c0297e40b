package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// EventPaint is the only event the co-create canvas emits.
const EventPaint = "paint"

var (
	// ErrEmptyEvent is returned when a frame carries no event name.
	ErrEmptyEvent = errors.New("event name is empty")
	// ErrMalformedFrame is returned when a frame is not a JSON event envelope.
	ErrMalformedFrame = errors.New("malformed frame")
)

// PaintEvent is the payload of a paint event: a pointer position as a
// fraction of the sender's canvas size. The relay never decodes it; it is
// the schema producers and consumers agree on.
type PaintEvent struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// envelope is the wire form of a Message.
type envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message is a named event with an opaque JSON payload. A Message is
// immutable once built and may be shared by every peer in a fan-out; its
// wire encoding is computed once.
type Message struct {
	Event   string
	Payload json.RawMessage

	once    sync.Once
	encoded []byte
	err     error
}

// NewMessage builds a message for the given event and payload.
func NewMessage(event string, payload json.RawMessage) *Message {
	return &Message{Event: event, Payload: payload}
}

// NewPaintMessage is a convenience for producers that emit positions.
func NewPaintMessage(p PaintEvent) (*Message, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode paint payload: %w", err)
	}
	return NewMessage(EventPaint, payload), nil
}

// Encode returns the wire encoding, {"event":..,"payload":..}.
func (m *Message) Encode() ([]byte, error) {
	m.once.Do(func() {
		m.encoded, m.err = json.Marshal(envelope{Event: m.Event, Payload: m.Payload})
	})
	return m.encoded, m.err
}

// DecodeMessage parses one inbound frame. The payload is kept raw so that
// unknown fields survive the trip through the relay.
func DecodeMessage(frame []byte) (*Message, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if env.Event == "" {
		return nil, ErrEmptyEvent
	}
	return NewMessage(env.Event, env.Payload), nil
}

// Paint decodes the payload as a PaintEvent.
func (m *Message) Paint() (PaintEvent, error) {
	var p PaintEvent
	if m.Event != EventPaint {
		return p, fmt.Errorf("event %q is not %q", m.Event, EventPaint)
	}
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		return p, fmt.Errorf("decode paint payload: %w", err)
	}
	return p, nil
}
