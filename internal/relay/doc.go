// Package relay implements the broadcast core of the collaborative canvas:
// a registry of live connections and a relay that fans every received event
// out to all connections except its sender.
//
// The package is transport-agnostic. A transport adapter registers a Conn
// when a session opens, unregisters it when the session closes for any
// reason, and hands each inbound event to Relay.OnEvent. Delivery is
// best-effort: per-source order is preserved as long as the transport keeps
// per-connection FIFO, and nothing is acknowledged back to the sender.
//
// On the wire each event is one JSON object, {"event":..,"payload":..}. The
// WebSocket transport may pack several queued events into a single text
// frame separated by '\n', so clients must split every frame on newlines
// and decode each line on its own.
package relay
