package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/paintrelay/internal/config"
	"github.com/Tyrowin/paintrelay/internal/server"
)

func TestStrokePointStaysOnCanvas(t *testing.T) {
	for painter := range 4 {
		for i := range 100 {
			p := strokePoint(painter, i, 100)
			assert.True(t, p.X >= 0 && p.X <= 1, "x out of range: %v", p.X)
			assert.True(t, p.Y >= 0 && p.Y <= 1, "y out of range: %v", p.Y)
		}
	}
	assert.NotEqual(t, strokePoint(0, 5, 100), strokePoint(1, 5, 100), "painters draw different strokes")
}

func TestRunAgainstRelay(t *testing.T) {
	cfg := config.Default()
	cfg.ShutdownTimeout = 2 * time.Second
	s := server.New(cfg)
	s.Start()
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(func() {
		_ = s.Shutdown()
		ts.Close()
	})

	res, err := run(context.Background(), zerolog.Nop(), options{
		url:      "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws",
		origin:   "http://localhost:5000",
		painters: 2,
		viewers:  2,
		events:   20,
		delay:    200 * time.Millisecond,
		interval: time.Millisecond,
		drain:    500 * time.Millisecond,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(40), res.sent)
	assert.Equal(t, int64(80), res.received, "each viewer sees every painter's stroke")
}

func TestRunFailsWhenRelayIsDown(t *testing.T) {
	_, err := run(context.Background(), zerolog.Nop(), options{
		url:      "ws://127.0.0.1:1/ws",
		painters: 1,
		viewers:  1,
		events:   1,
		interval: time.Millisecond,
	})
	assert.Error(t, err)
}

func TestRunClosesStartedClientsWhenLaterDialFails(t *testing.T) {
	var accepted atomic.Int32
	closed := make(chan struct{})
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	// Accepts the first connection only, then refuses every other handshake.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if accepted.Add(1) > 1 {
			http.Error(w, "full", http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		go func() {
			defer close(closed)
			defer func() { _ = conn.Close() }()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}))
	defer ts.Close()

	done := make(chan error, 1)
	go func() {
		_, err := run(context.Background(), zerolog.Nop(), options{
			url:      "ws" + strings.TrimPrefix(ts.URL, "http"),
			painters: 1,
			viewers:  1,
			events:   1,
			interval: time.Millisecond,
			drain:    time.Minute,
		})
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, websocket.ErrBadHandshake)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after the painter dial failed")
	}

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("the viewer connection was left open")
	}
}
