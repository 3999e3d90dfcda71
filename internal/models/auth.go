package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/sessionguard/internal/fingerprint"
)

// Redirect targets returned after login.
const (
	RedirectDashboard      = "/dashboard"
	RedirectAccountPending = "/account-pending"
)

// DeviceMetadata is descriptive device information submitted at login. It is
// stored for display and never used for identity decisions.
type DeviceMetadata struct {
	Name             string `json:"device_name" validate:"max=128"`
	Browser          string `json:"browser_info" validate:"max=128"`
	OS               string `json:"os_info" validate:"max=128"`
	ScreenResolution string `json:"screen_resolution" validate:"max=32"`
	Timezone         string `json:"timezone" validate:"max=64"`
	Language         string `json:"language" validate:"max=32"`
}

// LoginRequest carries credentials and the client-derived device fingerprint.
type LoginRequest struct {
	TelegramUsername string         `json:"telegram_username" validate:"required,max=64"`
	Password         string         `json:"password" validate:"required"`
	Fingerprint      string         `json:"fingerprint" validate:"required,len=16,hexadecimal,lowercase"`
	Device           DeviceMetadata `json:"device"`
	IP               string         `json:"-"`
	UserAgent        string         `json:"-"`
}

// LoginResponse returns the issued session token and redirect guidance.
type LoginResponse struct {
	Token      string    `json:"token"`
	ExpiresAt  time.Time `json:"expires_at"`
	Redirect   string    `json:"redirect"`
	User       UserInfo  `json:"user"`
	Superseded int64     `json:"superseded_sessions"`
	Device     Device    `json:"device"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID               string        `json:"id"`
	TelegramUsername string        `json:"telegram_username"`
	FullName         string        `json:"full_name"`
	IsApproved       bool          `json:"is_approved"`
	AccountStatus    AccountStatus `json:"account_status"`
}

// NewUserInfo projects the public fields of u.
func NewUserInfo(u *User) UserInfo {
	if u == nil {
		return UserInfo{}
	}
	return UserInfo{
		ID:               u.ID,
		TelegramUsername: u.TelegramUsername,
		FullName:         u.FullName,
		IsApproved:       u.IsApproved,
		AccountStatus:    u.AccountStatus,
	}
}

// FingerprintRequest submits a raw signal bundle for server-side derivation.
type FingerprintRequest struct {
	Signals fingerprint.Signals `json:"signals" validate:"required"`
}

// FingerprintResponse returns the derived fingerprint and device labels.
type FingerprintResponse struct {
	fingerprint.Result
	fingerprint.Device
	Components int `json:"components"`
}

// AdminClaims is the payload of admin bearer tokens.
type AdminClaims struct {
	UserID string    `json:"user_id"`
	Role   AdminRole `json:"role"`
	Email  string    `json:"email"`
	jwt.RegisteredClaims
}
