package models

import "time"

// LogoutReason records why a session stopped being active.
type LogoutReason string

const (
	LogoutNone             LogoutReason = "none"
	LogoutUser             LogoutReason = "user_logout"
	LogoutIPChanged        LogoutReason = "ip_changed"
	LogoutDeviceSuperseded LogoutReason = "device_superseded"
	LogoutAdmin            LogoutReason = "admin_logout"
	LogoutExpired          LogoutReason = "expired"
)

// Session is a row of user_sessions. ID is the opaque bearer token.
type Session struct {
	ID                string       `db:"id" json:"-"`
	UserID            string       `db:"user_id" json:"user_id"`
	DeviceFingerprint string       `db:"device_fingerprint" json:"device_fingerprint"`
	IPAddress         string       `db:"ip_address" json:"ip_address"`
	UserAgent         string       `db:"user_agent" json:"user_agent"`
	CreatedAt         time.Time    `db:"created_at" json:"created_at"`
	LastAccessed      time.Time    `db:"last_accessed" json:"last_accessed"`
	ExpiresAt         time.Time    `db:"expires_at" json:"expires_at"`
	IsActive          bool         `db:"is_active" json:"is_active"`
	LogoutReason      LogoutReason `db:"logout_reason" json:"logout_reason"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionInfo is the caller-facing view of the current session.
type SessionInfo struct {
	UserID            string    `json:"user_id"`
	DeviceFingerprint string    `json:"device_fingerprint"`
	IPAddress         string    `json:"ip_address"`
	CreatedAt         time.Time `json:"created_at"`
	LastAccessed      time.Time `json:"last_accessed"`
	ExpiresAt         time.Time `json:"expires_at"`
}

// NewSessionInfo projects s without exposing the token.
func NewSessionInfo(s *Session) SessionInfo {
	return SessionInfo{
		UserID:            s.UserID,
		DeviceFingerprint: s.DeviceFingerprint,
		IPAddress:         s.IPAddress,
		CreatedAt:         s.CreatedAt,
		LastAccessed:      s.LastAccessed,
		ExpiresAt:         s.ExpiresAt,
	}
}
