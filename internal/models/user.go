package models

import "time"

// AccountStatus mirrors users.account_status.
type AccountStatus string

const (
	AccountActive    AccountStatus = "active"
	AccountInactive  AccountStatus = "inactive"
	AccountSuspended AccountStatus = "suspended"
)

// AdminRole is a role accepted on admin bearer tokens.
type AdminRole string

const (
	RoleSuperAdmin AdminRole = "SUPERADMIN"
	RoleAdmin      AdminRole = "ADMIN"
)

// User represents an account in the users table.
type User struct {
	ID               string        `db:"id" json:"id"`
	TelegramUsername string        `db:"telegram_username" json:"telegram_username"`
	PasswordHash     string        `db:"password_hash" json:"-"`
	FullName         string        `db:"full_name" json:"full_name"`
	IsApproved       bool          `db:"is_approved" json:"is_approved"`
	AccountStatus    AccountStatus `db:"account_status" json:"account_status"`
	IsActive         bool          `db:"is_active" json:"is_active"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
