package main

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Tyrowin/paintrelay/internal/relay"
)

func dial(ctx context.Context, url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.DialContext(ctx, url, headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return conn, nil
}

// strokePoint returns the i-th point of a painter's stroke as a position
// normalized to the unit square, the way the touchpad reports it.
func strokePoint(painter, i, total int) relay.PaintEvent {
	t := 2 * math.Pi * float64(i) / float64(max(total, 1))
	phase := float64(painter) * math.Pi / 4
	return relay.PaintEvent{
		X: 0.5 + 0.4*math.Sin(3*t+phase),
		Y: 0.5 + 0.4*math.Sin(2*t),
	}
}

// painter draws one stroke, sending a paint event per interval.
type painter struct {
	id       int
	conn     *websocket.Conn
	events   int
	delay    time.Duration
	interval time.Duration
	log      zerolog.Logger
	sent     *atomic.Int64
}

func (p *painter) run(ctx context.Context) error {
	defer func() { _ = p.conn.Close() }()

	// Peers' strokes arrive here too; reading keeps ping handling alive.
	go func() {
		for {
			if _, _, err := p.conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case <-time.After(p.delay):
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for i := 0; i < p.events; i++ {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		msg, err := relay.NewPaintMessage(strokePoint(p.id, i, p.events))
		if err != nil {
			return err
		}
		data, err := msg.Encode()
		if err != nil {
			return err
		}
		if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return fmt.Errorf("painter %d: %w", p.id, err)
		}
		p.sent.Add(1)
	}

	p.log.Debug().Int("painter", p.id).Int("events", p.events).Msg("stroke finished")
	return nil
}

// viewer counts paint events, like the canvas page does before drawing them.
type viewer struct {
	id       int
	conn     *websocket.Conn
	log      zerolog.Logger
	received *atomic.Int64
}

func (v *viewer) run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = v.conn.Close()
	}()

	for {
		_, frame, err := v.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("viewer %d: %w", v.id, err)
		}

		for _, line := range bytes.Split(frame, []byte{'\n'}) {
			msg, err := relay.DecodeMessage(line)
			if err != nil {
				v.log.Warn().Err(err).Int("viewer", v.id).Msg("unreadable event")
				continue
			}
			if _, err := msg.Paint(); err != nil {
				v.log.Debug().Err(err).Int("viewer", v.id).Msg("ignoring event")
				continue
			}
			v.received.Add(1)
		}
	}
}
