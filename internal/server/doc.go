// Package server implements the WebSocket transport and HTTP surface of the
// paint relay.
//
// The implementation is organized into specialized files for the hub event
// loop, per-connection clients, origin checks, rate limiting, routing, and
// HTTP handlers. The broadcast logic itself lives in package relay; this
// package only adapts WebSocket sessions to it.
package server
