package server

import (
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalOrigin(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"HTTPS://Canvas.Example", "https://canvas.example"},
		{"http://localhost:5000/path", "http://localhost:5000"},
		{"http://canvas.example:80", "http://canvas.example"},
		{"https://canvas.example:443", "https://canvas.example"},
		{"https://canvas.example:8443", "https://canvas.example:8443"},
	}
	for _, tt := range tests {
		got, err := canonicalOrigin(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	for _, bad := range []string{"not a url", "canvas.example", "://x"} {
		_, err := canonicalOrigin(bad)
		assert.ErrorIs(t, err, errInvalidOrigin, bad)
	}
}

func TestNewOriginPolicySkipsInvalidEntries(t *testing.T) {
	p := newOriginPolicy([]string{" HTTPS://Canvas.Example ", "", "not a url", "http://localhost:5000/path"}, zerolog.Nop())

	assert.False(t, p.allowAll)
	assert.Len(t, p.allowed, 2)
	assert.Contains(t, p.allowed, "https://canvas.example")
	assert.Contains(t, p.allowed, "http://localhost:5000")

	assert.True(t, newOriginPolicy([]string{"*"}, zerolog.Nop()).allowAll)
}

func TestOriginPolicy(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"wildcard allows anything", []string{"*"}, "https://elsewhere.example", true},
		{"wildcard allows missing origin", []string{"*"}, "", true},
		{"listed origin", []string{"https://canvas.example"}, "https://canvas.example", true},
		{"case insensitive", []string{"https://canvas.example"}, "HTTPS://CANVAS.EXAMPLE", true},
		{"default port", []string{"https://canvas.example"}, "https://canvas.example:443", true},
		{"other port", []string{"https://canvas.example"}, "https://canvas.example:8443", false},
		{"unlisted origin", []string{"https://canvas.example"}, "https://evil.example", false},
		{"missing origin", []string{"https://canvas.example"}, "", false},
		{"malformed origin", []string{"https://canvas.example"}, "canvas.example", false},
		{"empty allow list", nil, "https://canvas.example", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newOriginPolicy(tt.allowed, zerolog.Nop())
			req := httptest.NewRequest("GET", "/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, p.checkOrigin(req))
		})
	}
}
