package models

import "time"

// Device is a row of user_devices. Rows are never deleted.
type Device struct {
	ID                string    `db:"id" json:"id"`
	UserID            string    `db:"user_id" json:"user_id"`
	DeviceFingerprint string    `db:"device_fingerprint" json:"device_fingerprint"`
	DeviceName        string    `db:"device_name" json:"device_name"`
	BrowserInfo       string    `db:"browser_info" json:"browser_info"`
	OSInfo            string    `db:"os_info" json:"os_info"`
	ScreenResolution  string    `db:"screen_resolution" json:"screen_resolution"`
	Timezone          string    `db:"timezone" json:"timezone"`
	Language          string    `db:"language" json:"language"`
	FirstSeen         time.Time `db:"first_seen" json:"first_seen"`
	LastSeen          time.Time `db:"last_seen" json:"last_seen"`
	IsTrusted         bool      `db:"is_trusted" json:"is_trusted"`
	IsBlocked         bool      `db:"is_blocked" json:"is_blocked"`
	TotalLogins       int       `db:"total_logins" json:"total_logins"`
}

// DeviceSummary is a device joined with its live session state.
type DeviceSummary struct {
	Device
	ActiveSessions int     `db:"active_sessions" json:"active_sessions"`
	CurrentIP      *string `db:"current_ip" json:"current_ip,omitempty"`
	IsCurrent      bool    `db:"-" json:"is_current"`
}

// IPHistory is a row of user_ip_history.
type IPHistory struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	IPAddress string    `db:"ip_address" json:"ip_address"`
	FirstSeen time.Time `db:"first_seen" json:"first_seen"`
	LastSeen  time.Time `db:"last_seen" json:"last_seen"`
	IsCurrent bool      `db:"is_current" json:"is_current"`
}

// DeviceOverview is the device-management view for one user.
type DeviceOverview struct {
	Devices    []DeviceSummary `json:"devices"`
	CurrentIPs []string        `json:"current_ips"`
	IPHistory  []IPHistory     `json:"ip_history"`
}

// DeviceCount reports unique live addresses for a user.
type DeviceCount struct {
	UserID         string `json:"user_id"`
	UniqueIPs      int    `json:"unique_ips"`
	ActiveDevices  int    `json:"active_devices"`
	ActiveSessions int    `json:"active_sessions"`
}

// Admin device actions.
const (
	AdminActionBlockDevice   = "block_device"
	AdminActionUnblockDevice = "unblock_device"
	AdminActionForceLogout   = "logout_user_all_devices"
)

// AdminDeviceActionRequest is the body of POST /admin/user-devices.
type AdminDeviceActionRequest struct {
	Action            string `json:"action" validate:"required,oneof=block_device unblock_device logout_user_all_devices"`
	UserID            string `json:"user_id" validate:"required"`
	DeviceFingerprint string `json:"device_fingerprint" validate:"required_unless=Action logout_user_all_devices"`
}

// AdminActionResult reports what an admin action changed.
type AdminActionResult struct {
	Action         string `json:"action"`
	UserID         string `json:"user_id"`
	SessionsClosed int64  `json:"sessions_closed"`
	DeviceUpdated  bool   `json:"device_updated"`
}

// RevocationResult reports how many sessions a revocation closed.
type RevocationResult struct {
	SessionsClosed int64 `json:"sessions_closed"`
}
