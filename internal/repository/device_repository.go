package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sessionguard/internal/models"
)

const deviceColumns = `id, user_id, device_fingerprint, device_name, browser_info, os_info, screen_resolution, timezone, language, first_seen, last_seen, is_trusted, is_blocked, total_logins`

// DeviceRepository persists the device registry.
type DeviceRepository struct {
	db *sqlx.DB
}

// NewDeviceRepository creates a new DeviceRepository.
func NewDeviceRepository(db *sqlx.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// RegisterLogin upserts the (user, fingerprint) row. A new device is trusted
// with one login; a known device has its counter incremented and descriptive
// fields refreshed. The stored row, including is_blocked, is returned.
func (r *DeviceRepository) RegisterLogin(ctx context.Context, device *models.Device) (*models.Device, error) {
	if device.ID == "" {
		device.ID = uuid.NewString()
	}
	if device.LastSeen.IsZero() {
		device.LastSeen = time.Now().UTC()
	}

	const query = `INSERT INTO user_devices (` + deviceColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10, TRUE, FALSE, 1)
ON CONFLICT (user_id, device_fingerprint)
DO UPDATE SET total_logins = user_devices.total_logins + 1,
              last_seen = EXCLUDED.last_seen,
              device_name = COALESCE(NULLIF(EXCLUDED.device_name, ''), user_devices.device_name),
              browser_info = COALESCE(NULLIF(EXCLUDED.browser_info, ''), user_devices.browser_info),
              os_info = COALESCE(NULLIF(EXCLUDED.os_info, ''), user_devices.os_info),
              screen_resolution = COALESCE(NULLIF(EXCLUDED.screen_resolution, ''), user_devices.screen_resolution),
              timezone = COALESCE(NULLIF(EXCLUDED.timezone, ''), user_devices.timezone),
              language = COALESCE(NULLIF(EXCLUDED.language, ''), user_devices.language)
RETURNING ` + deviceColumns

	var stored models.Device
	err := r.db.QueryRowxContext(ctx, query,
		device.ID,
		device.UserID,
		device.DeviceFingerprint,
		device.DeviceName,
		device.BrowserInfo,
		device.OSInfo,
		device.ScreenResolution,
		device.Timezone,
		device.Language,
		device.LastSeen,
	).StructScan(&stored)
	if err != nil {
		return nil, fmt.Errorf("register device login: %w", err)
	}
	return &stored, nil
}

// ListByUserWithSessions returns a user's devices joined with their active
// session count and the address of the live session, most recent first.
func (r *DeviceRepository) ListByUserWithSessions(ctx context.Context, userID string) ([]models.DeviceSummary, error) {
	const query = `SELECT d.id, d.user_id, d.device_fingerprint, d.device_name, d.browser_info, d.os_info,
       d.screen_resolution, d.timezone, d.language, d.first_seen, d.last_seen, d.is_trusted, d.is_blocked, d.total_logins,
       COUNT(s.id) AS active_sessions,
       MAX(s.ip_address) AS current_ip
FROM user_devices d
LEFT JOIN user_sessions s ON s.user_id = d.user_id AND s.device_fingerprint = d.device_fingerprint AND s.is_active
WHERE d.user_id = $1
GROUP BY d.id
ORDER BY d.last_seen DESC`

	devices := []models.DeviceSummary{}
	if err := r.db.SelectContext(ctx, &devices, query, userID); err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return devices, nil
}

// SetBlocked flips the admin block flag. It reports false when the device is
// unknown.
func (r *DeviceRepository) SetBlocked(ctx context.Context, userID, fingerprint string, blocked bool) (bool, error) {
	const query = `UPDATE user_devices SET is_blocked = $3 WHERE user_id = $1 AND device_fingerprint = $2`
	res, err := r.db.ExecContext(ctx, query, userID, fingerprint, blocked)
	if err != nil {
		return false, fmt.Errorf("set device blocked: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set device blocked rows: %w", err)
	}
	return affected > 0, nil
}

// BlockAndRevoke blocks a device and closes its active sessions as
// admin_logout in one transaction. It returns sql.ErrNoRows for an unknown
// device.
func (r *DeviceRepository) BlockAndRevoke(ctx context.Context, userID, fingerprint string) (closed int64, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin block device: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `UPDATE user_devices SET is_blocked = TRUE WHERE user_id = $1 AND device_fingerprint = $2`, userID, fingerprint)
	if err != nil {
		return 0, fmt.Errorf("block device: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("block device rows: %w", err)
	}
	if affected == 0 {
		err = sql.ErrNoRows
		return 0, err
	}

	res, err = tx.ExecContext(ctx,
		`UPDATE user_sessions SET is_active = FALSE, logout_reason = $3 WHERE user_id = $1 AND device_fingerprint = $2 AND is_active`,
		userID, fingerprint, string(models.LogoutAdmin))
	if err != nil {
		return 0, fmt.Errorf("revoke device sessions: %w", err)
	}
	if closed, err = res.RowsAffected(); err != nil {
		return 0, fmt.Errorf("revoke device sessions rows: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit block device: %w", err)
	}
	return closed, nil
}
