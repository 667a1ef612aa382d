package client

import (
	"net/http"
	"sync"
)

// TokenHeader is the request/response header carrying the anonymous session
// token. The backend rotates the value to bucket rate limits per browser
// without cookies; the client adopts whatever the server last returned.
const TokenHeader = "X-Session-Token"

// TokenManager holds the single opaque session credential. It is purely
// reactive: no expiry, no refresh scheduling, last-observed-wins.
type TokenManager struct {
	mu       sync.RWMutex
	token    string
	onChange func(token string)
}

// NewTokenManager creates a token manager, optionally seeded with a token
// rehydrated from persistence.
func NewTokenManager(initial string) *TokenManager {
	return &TokenManager{token: initial}
}

// Token returns the current token, or "" if none has been observed yet.
func (m *TokenManager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// Attach adds the current token to outgoing request headers if one is held.
func (m *TokenManager) Attach(h http.Header) {
	m.mu.RLock()
	token := m.token
	m.mu.RUnlock()

	if token != "" {
		h.Set(TokenHeader, token)
	}
}

// Observe reads the token header from a response and, if present, replaces
// the held token unconditionally. Arrival order is the only freshness
// signal.
func (m *TokenManager) Observe(h http.Header) {
	token := h.Get(TokenHeader)
	if token == "" {
		return
	}

	m.mu.Lock()
	changed := token != m.token
	m.token = token
	onChange := m.onChange
	m.mu.Unlock()

	if changed && onChange != nil {
		onChange(token)
	}
}

// OnChange registers a callback invoked whenever a new token is adopted,
// used to mirror the token into persistent storage.
func (m *TokenManager) OnChange(fn func(token string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}
