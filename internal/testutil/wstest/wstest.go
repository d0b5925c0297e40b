// Package wstest provides helpers for tests that talk to the relay over real
// WebSocket connections: dialing, sending events, and reading the
// newline-separated frames the write pump produces.
package wstest

import (
	"bytes"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/paintrelay/internal/relay"
)

// DefaultOrigin is the Origin header sent by Dial.
const DefaultOrigin = "http://localhost:5000"

// Event is a decoded inbound frame entry.
type Event struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Paint decodes the payload as a paint position.
func (e Event) Paint(t *testing.T) relay.PaintEvent {
	t.Helper()
	var p relay.PaintEvent
	require.NoError(t, json.Unmarshal(e.Payload, &p))
	return p
}

// URL converts an httptest server URL to its WebSocket endpoint.
func URL(serverURL string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
}

// Connect opens a WebSocket connection with the given Origin header; an
// empty origin sends none.
func Connect(url, origin string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, resp, err
}

// Dial connects to url and registers cleanup of the connection.
func Dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := Connect(url, DefaultOrigin)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// DialN connects n clients.
func DialN(t *testing.T, url string, n int) []*websocket.Conn {
	t.Helper()
	conns := make([]*websocket.Conn, n)
	for i := range conns {
		conns[i] = Dial(t, url)
	}
	return conns
}

// WaitForConnections polls size until it reports want or the timeout passes.
func WaitForConnections(t *testing.T, size func() int, want int) {
	t.Helper()
	require.Eventually(t, func() bool { return size() == want }, 2*time.Second, 5*time.Millisecond,
		"expected %d registered connections", want)
}

// SendPaint sends a paint event.
func SendPaint(t *testing.T, conn *websocket.Conn, x, y float64) {
	t.Helper()
	msg, err := relay.NewPaintMessage(relay.PaintEvent{X: x, Y: y})
	require.NoError(t, err)
	data, err := msg.Encode()
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

// SendRaw sends a raw text frame.
func SendRaw(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

// ReadEvents reads frames until want events have arrived or timeout passes.
func ReadEvents(t *testing.T, conn *websocket.Conn, want int, timeout time.Duration) []Event {
	t.Helper()
	deadline := time.Now().Add(timeout)
	var events []Event

	for len(events) < want && time.Now().Before(deadline) {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if isTimeout(err) {
				break
			}
			require.NoError(t, err)
		}
		events = append(events, splitFrame(t, frame)...)
	}
	return events
}

// ExpectNoEvent fails if any frame arrives within d.
func ExpectNoEvent(t *testing.T, conn *websocket.Conn, d time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(d)))
	_, frame, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("expected no event, got %q", frame)
	}
	require.True(t, isTimeout(err), "expected read timeout, got %v", err)
}

// Close performs a clean close handshake.
func Close(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}

func splitFrame(t *testing.T, frame []byte) []Event {
	t.Helper()
	var events []Event
	for _, line := range bytes.Split(frame, []byte{'\n'}) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var ev Event
		require.NoError(t, json.Unmarshal(line, &ev), "frame line %q", line)
		events = append(events, ev)
	}
	return events
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
