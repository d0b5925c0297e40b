package server_test

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/paintrelay/internal/config"
	"github.com/Tyrowin/paintrelay/internal/relay"
	"github.com/Tyrowin/paintrelay/internal/server"
	"github.com/Tyrowin/paintrelay/internal/testutil/wstest"
)

const (
	readTimeout  = 2 * time.Second
	quietTimeout = 200 * time.Millisecond
)

// startServer runs s behind an httptest listener and returns its ws:// URL.
func startServer(t *testing.T, s *server.Server) string {
	t.Helper()
	s.Start()
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(func() {
		_ = s.Shutdown()
		ts.Close()
	})
	return wstest.URL(ts.URL)
}

func TestWebSocketFanOutSkipsSender(t *testing.T) {
	s := newServer(t)
	url := startServer(t, s)

	conns := wstest.DialN(t, url, 3)
	wstest.WaitForConnections(t, s.Registry().Size, 3)

	wstest.SendPaint(t, conns[0], 10, 20)

	for _, peer := range conns[1:] {
		events := wstest.ReadEvents(t, peer, 1, readTimeout)
		require.Len(t, events, 1)
		assert.Equal(t, relay.EventPaint, events[0].Event)
		assert.Equal(t, relay.PaintEvent{X: 10, Y: 20}, events[0].Paint(t))
	}
	wstest.ExpectNoEvent(t, conns[0], quietTimeout)
}

func TestWebSocketPreservesOrderPerSource(t *testing.T) {
	s := newServer(t)
	url := startServer(t, s)

	conns := wstest.DialN(t, url, 2)
	wstest.WaitForConnections(t, s.Registry().Size, 2)

	const n = 50
	for i := range n {
		wstest.SendPaint(t, conns[0], float64(i), float64(-i))
	}

	events := wstest.ReadEvents(t, conns[1], n, readTimeout)
	require.Len(t, events, n)
	for i, ev := range events {
		assert.Equal(t, relay.PaintEvent{X: float64(i), Y: float64(-i)}, ev.Paint(t))
	}
}

func TestWebSocketScenarioWithDisconnect(t *testing.T) {
	s := newServer(t)
	url := startServer(t, s)

	a := wstest.Dial(t, url)
	b := wstest.Dial(t, url)
	c := wstest.Dial(t, url)
	wstest.WaitForConnections(t, s.Registry().Size, 3)

	wstest.SendPaint(t, a, 1, 1)
	for _, peer := range []*websocket.Conn{b, c} {
		events := wstest.ReadEvents(t, peer, 1, readTimeout)
		require.Len(t, events, 1)
		assert.Equal(t, relay.PaintEvent{X: 1, Y: 1}, events[0].Paint(t))
	}

	require.NoError(t, wstest.Close(b))
	wstest.WaitForConnections(t, s.Registry().Size, 2)

	wstest.SendPaint(t, c, 2, 2)
	events := wstest.ReadEvents(t, a, 1, readTimeout)
	require.Len(t, events, 1)
	assert.Equal(t, relay.PaintEvent{X: 2, Y: 2}, events[0].Paint(t))
	wstest.ExpectNoEvent(t, c, quietTimeout)
}

func TestWebSocketForwardsUnknownPayloadFields(t *testing.T) {
	s := newServer(t)
	url := startServer(t, s)

	conns := wstest.DialN(t, url, 2)
	wstest.WaitForConnections(t, s.Registry().Size, 2)

	wstest.SendRaw(t, conns[0], `{"event":"paint","payload":{"x":3,"y":4,"color":"#ff0000"}}`)

	events := wstest.ReadEvents(t, conns[1], 1, readTimeout)
	require.Len(t, events, 1)
	assert.JSONEq(t, `{"x":3,"y":4,"color":"#ff0000"}`, string(events[0].Payload))
}

func TestWebSocketDropsInvalidFrames(t *testing.T) {
	s := newServer(t)
	url := startServer(t, s)

	conns := wstest.DialN(t, url, 2)
	wstest.WaitForConnections(t, s.Registry().Size, 2)

	wstest.SendRaw(t, conns[0], "not json")
	wstest.SendRaw(t, conns[0], `{"payload":{"x":1,"y":1}}`)
	wstest.SendRaw(t, conns[0], `{"event":"chat","payload":{"text":"hi"}}`)
	wstest.SendPaint(t, conns[0], 5, 6)

	// Events from one source arrive in order, so the paint being first
	// means every earlier frame was dropped.
	events := wstest.ReadEvents(t, conns[1], 1, readTimeout)
	require.Len(t, events, 1)
	assert.Equal(t, relay.PaintEvent{X: 5, Y: 6}, events[0].Paint(t))
	assert.Equal(t, 2, s.Registry().Size(), "invalid frames do not end the session")
}

func TestWebSocketRelaysConfiguredEvents(t *testing.T) {
	s := newServer(t, func(c *config.Config) {
		c.RelayEvents = []string{relay.EventPaint, "clear"}
	})
	url := startServer(t, s)

	conns := wstest.DialN(t, url, 2)
	wstest.WaitForConnections(t, s.Registry().Size, 2)

	wstest.SendRaw(t, conns[0], `{"event":"clear"}`)

	events := wstest.ReadEvents(t, conns[1], 1, readTimeout)
	require.Len(t, events, 1)
	assert.Equal(t, "clear", events[0].Event)
}

func TestWebSocketRateLimit(t *testing.T) {
	s := newServer(t, func(c *config.Config) {
		c.RateLimit.Burst = 3
		c.RateLimit.RefillInterval = time.Hour
	})
	url := startServer(t, s)

	conns := wstest.DialN(t, url, 2)
	wstest.WaitForConnections(t, s.Registry().Size, 2)

	for i := range 10 {
		wstest.SendPaint(t, conns[0], float64(i), 0)
	}

	events := wstest.ReadEvents(t, conns[1], 10, 500*time.Millisecond)
	assert.Len(t, events, 3)
}

func TestWebSocketOversizedFrameClosesSession(t *testing.T) {
	s := newServer(t, func(c *config.Config) {
		c.MaxMessageSize = 64
	})
	url := startServer(t, s)

	conns := wstest.DialN(t, url, 2)
	wstest.WaitForConnections(t, s.Registry().Size, 2)

	wstest.SendRaw(t, conns[0], `{"event":"paint","payload":{"x":1,"y":1,"pad":"`+strings.Repeat("a", 128)+`"}}`)

	wstest.WaitForConnections(t, s.Registry().Size, 1)
	wstest.ExpectNoEvent(t, conns[1], quietTimeout)
}

func TestWebSocketOriginPolicy(t *testing.T) {
	s := newServer(t, func(c *config.Config) {
		c.AllowedOrigins = []string{"https://canvas.example"}
	})
	url := startServer(t, s)

	conn, _, err := wstest.Connect(url, "https://canvas.example")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	_, resp, err := wstest.Connect(url, "https://evil.example")
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, _, err = wstest.Connect(url, "")
	require.ErrorIs(t, err, websocket.ErrBadHandshake)

	wstest.WaitForConnections(t, s.Registry().Size, 1)
}

func TestWebSocketStatsCountsConnections(t *testing.T) {
	s := newServer(t)
	s.Start()
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(func() {
		_ = s.Shutdown()
		ts.Close()
	})

	wstest.DialN(t, wstest.URL(ts.URL), 4)
	wstest.WaitForConnections(t, s.Registry().Size, 4)

	resp, err := http.Get(ts.URL + "/stats")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var body bytes.Buffer
	_, err = body.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, body.String(), `"connections":4`)
}

func TestShutdownClosesClients(t *testing.T) {
	s := newServer(t)
	s.Start()
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	conns := wstest.DialN(t, wstest.URL(ts.URL), 3)
	wstest.WaitForConnections(t, s.Registry().Size, 3)

	require.NoError(t, s.Shutdown())
	assert.Equal(t, 0, s.Registry().Size())

	select {
	case <-s.Hub().Done():
	default:
		t.Fatal("hub still running after shutdown")
	}

	for _, conn := range conns {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))
		_, _, err := conn.ReadMessage()
		assert.Error(t, err, "client should observe the close")
	}
}

func TestConnectAfterShutdownIsRejected(t *testing.T) {
	s := newServer(t)
	s.Start()
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	require.NoError(t, s.Shutdown())

	conn, _, err := wstest.Connect(wstest.URL(ts.URL), wstest.DefaultOrigin)
	if err == nil {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))
		_, _, err = conn.ReadMessage()
		assert.Error(t, err)
		_ = conn.Close()
	}
	assert.Equal(t, 0, s.Registry().Size())
}

func TestServerRunStopsOnContextCancel(t *testing.T) {
	s := newServer(t, func(c *config.Config) {
		c.Port = "127.0.0.1:0"
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	select {
	case <-s.Hub().Done():
	default:
		t.Fatal("hub still running after Run returned")
	}
}

func TestServerRunFailsWhenAddressInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	s := newServer(t, func(c *config.Config) {
		c.Port = ln.Addr().String()
	})

	err = s.Run(context.Background())
	assert.Error(t, err)
}

func TestWebSocketConcurrentSources(t *testing.T) {
	s := newServer(t)
	url := startServer(t, s)

	const clients, perClient = 8, 5
	conns := wstest.DialN(t, url, clients)
	wstest.WaitForConnections(t, s.Registry().Size, clients)

	var wg sync.WaitGroup
	for i, conn := range conns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range perClient {
				msg, err := relay.NewPaintMessage(relay.PaintEvent{X: float64(i), Y: float64(j)})
				if !assert.NoError(t, err) {
					return
				}
				data, _ := msg.Encode()
				assert.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
			}
		}()
	}
	wg.Wait()

	want := (clients - 1) * perClient
	for i, conn := range conns {
		events := wstest.ReadEvents(t, conn, want, readTimeout)
		require.Len(t, events, want)

		next := make(map[float64]float64)
		for _, ev := range events {
			p := ev.Paint(t)
			assert.NotEqual(t, float64(i), p.X, "client %d received its own event", i)
			assert.Equal(t, next[p.X], p.Y, "events from source %v out of order", p.X)
			next[p.X] = p.Y + 1
		}
	}
}

func TestConcurrentShutdown(t *testing.T) {
	s := newServer(t)
	s.Start()

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Shutdown())
		}()
	}
	wg.Wait()
}
