package events

import (
	"context"
	"time"
)

// Session lifecycle event types.
const (
	TypeSessionIssued     = "session.issued"
	TypeSessionSuperseded = "session.superseded"
	TypeSessionRevoked    = "session.revoked"
	TypeLoginRejected     = "session.login_rejected"
	TypeDeviceBlocked     = "device.blocked"
	TypeDeviceUnblocked   = "device.unblocked"
)

// Event describes a change in a user's session state. It never carries the
// session token itself.
type Event struct {
	ID                string    `json:"id"`
	Type              string    `json:"type"`
	UserID            string    `json:"user_id"`
	DeviceFingerprint string    `json:"device_fingerprint,omitempty"`
	IPAddress         string    `json:"ip_address,omitempty"`
	Reason            string    `json:"reason,omitempty"`
	Count             int64     `json:"count,omitempty"`
	ActorID           string    `json:"actor_id,omitempty"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// Publisher delivers events to downstream collaborators such as the
// notification integration.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NoopPublisher discards events.
type NoopPublisher struct{}

// Publish implements Publisher.
func (NoopPublisher) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (NoopPublisher) Close() error { return nil }
