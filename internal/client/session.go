package client

import (
	"sync"
	"time"
)

// SessionContext holds the token of one logged-in client. It is the only
// place the token lives, and Clear is the only teardown path.
type SessionContext struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
	reason    string
	onClear   []func(reason string)
}

// NewSessionContext returns an empty, logged-out context.
func NewSessionContext() *SessionContext {
	return &SessionContext{}
}

// Set stores a freshly issued token and resets any previous logout reason.
func (s *SessionContext) Set(token string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.expiresAt = expiresAt
	s.reason = ""
}

// Token returns the current token, or "" when logged out.
func (s *SessionContext) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Authenticated reports whether a token is held.
func (s *SessionContext) Authenticated() bool {
	return s.Token() != ""
}

// ExpiresAt returns the expiry reported at login.
func (s *SessionContext) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiresAt
}

// LogoutReason returns why the last session ended, if it was cleared.
func (s *SessionContext) LogoutReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// OnClear registers fn to run after the token is dropped.
func (s *SessionContext) OnClear(fn func(reason string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClear = append(s.onClear, fn)
}

// Clear drops the token and records reason. It returns false, and runs no
// callbacks, when there was no token to drop.
func (s *SessionContext) Clear(reason string) bool {
	s.mu.Lock()
	if s.token == "" {
		s.mu.Unlock()
		return false
	}
	s.token = ""
	s.expiresAt = time.Time{}
	s.reason = reason
	callbacks := append([]func(string){}, s.onClear...)
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn(reason)
	}
	return true
}
