// Package server normalizes and validates HTTP origins for WebSocket requests
// to enforce configured access control.
package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

const wildcardOrigin = "*"

var errInvalidOrigin = errors.New("invalid origin")

// originPolicy decides which browser origins may open a socket. The
// wildcard also admits clients that send no Origin header at all, which is
// how non-browser painters connect.
type originPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
	log      zerolog.Logger
}

func newOriginPolicy(origins []string, log zerolog.Logger) *originPolicy {
	p := &originPolicy{
		allowed: make(map[string]struct{}, len(origins)),
		log:     log,
	}

	for _, raw := range origins {
		raw = strings.TrimSpace(raw)
		switch raw {
		case "":
			continue
		case wildcardOrigin:
			p.allowAll = true
			continue
		}

		origin, err := canonicalOrigin(raw)
		if err != nil {
			log.Warn().Err(err).Msg("ignoring configured origin")
			continue
		}
		p.allowed[origin] = struct{}{}
	}
	return p
}

// canonicalOrigin reduces raw to scheme://host[:port] in lower case, dropping
// any path and the scheme's default port.
func canonicalOrigin(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q", errInvalidOrigin, raw)
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host += ":" + port
	}
	return scheme + "://" + host, nil
}

func (p *originPolicy) allows(origin string) bool {
	if p.allowAll {
		return true
	}
	if origin == "" {
		return false
	}
	canonical, err := canonicalOrigin(origin)
	if err != nil {
		return false
	}
	_, ok := p.allowed[canonical]
	return ok
}

// checkOrigin is the websocket.Upgrader CheckOrigin hook.
func (p *originPolicy) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if p.allows(origin) {
		return true
	}
	p.log.Warn().Str("origin", origin).Str("addr", r.RemoteAddr).Msg("rejected websocket from disallowed origin")
	return false
}
