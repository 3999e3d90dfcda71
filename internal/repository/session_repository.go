package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sessionguard/internal/models"
)

// ErrSessionConflict is returned when the store rejects a new active session
// because another one won the race for the same user or device.
var ErrSessionConflict = errors.New("active session conflict")

// ErrPolicyMismatch is returned when the schema cannot serve the configured
// device policy.
var ErrPolicyMismatch = errors.New("session schema does not match device policy")

// singleDeviceIndex allows one active session per user.
const singleDeviceIndex = "uq_user_sessions_active_user"

const sessionColumns = `id, user_id, device_fingerprint, ip_address, user_agent, created_at, last_accessed, expires_at, is_active, logout_reason`

// SessionRepository persists user_sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// FindByID returns a session by its token.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM user_sessions WHERE id = $1 LIMIT 1`
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	return &session, nil
}

// VerifyPolicy fails when multi-device sessions are enabled while the
// single-device unique index is still installed; every login from a second
// device would otherwise end in a conflict.
func (r *SessionRepository) VerifyPolicy(ctx context.Context, multiDevice bool) error {
	if !multiDevice {
		return nil
	}
	const query = `SELECT EXISTS (SELECT 1 FROM pg_indexes WHERE tablename = 'user_sessions' AND indexname = $1)`
	var present bool
	if err := r.db.GetContext(ctx, &present, query, singleDeviceIndex); err != nil {
		return fmt.Errorf("inspect session indexes: %w", err)
	}
	if present {
		return fmt.Errorf("%w: index %s is installed, roll back migration 000004 or disable MULTI_DEVICE_ENABLED", ErrPolicyMismatch, singleDeviceIndex)
	}
	return nil
}

// CountActiveByUser counts a user's active sessions.
func (r *SessionRepository) CountActiveByUser(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COUNT(*) FROM user_sessions WHERE user_id = $1 AND is_active`
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("count active sessions: %w", err)
	}
	return count, nil
}

// ActiveIPs returns the distinct addresses bound to a user's active sessions.
func (r *SessionRepository) ActiveIPs(ctx context.Context, userID string) ([]string, error) {
	const query = `SELECT DISTINCT ip_address FROM user_sessions WHERE user_id = $1 AND is_active ORDER BY ip_address`
	ips := []string{}
	if err := r.db.SelectContext(ctx, &ips, query, userID); err != nil {
		return nil, fmt.Errorf("list active session ips: %w", err)
	}
	return ips, nil
}

// CreateExclusive inserts session after closing every other active session of
// the user as device_superseded. Both steps run in one transaction holding a
// per-user advisory lock, so concurrent logins for a user are serialized.
func (r *SessionRepository) CreateExclusive(ctx context.Context, session *models.Session) (int64, error) {
	const supersede = `UPDATE user_sessions SET is_active = FALSE, logout_reason = $2 WHERE user_id = $1 AND is_active`
	return r.insertSuperseding(ctx, session, supersede, session.UserID, string(models.LogoutDeviceSuperseded))
}

// Create inserts session after closing only the active session bound to the
// same device. Used when multi-device mode is enabled.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) (int64, error) {
	const supersede = `UPDATE user_sessions SET is_active = FALSE, logout_reason = $2 WHERE user_id = $1 AND device_fingerprint = $3 AND is_active`
	return r.insertSuperseding(ctx, session, supersede, session.UserID, string(models.LogoutDeviceSuperseded), session.DeviceFingerprint)
}

func (r *SessionRepository) insertSuperseding(ctx context.Context, session *models.Session, supersede string, args ...interface{}) (superseded int64, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin create session: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, session.UserID); err != nil {
		return 0, fmt.Errorf("lock user sessions: %w", err)
	}

	res, err := tx.ExecContext(ctx, supersede, args...)
	if err != nil {
		return 0, fmt.Errorf("supersede sessions: %w", err)
	}
	if superseded, err = res.RowsAffected(); err != nil {
		return 0, fmt.Errorf("supersede sessions rows: %w", err)
	}

	const insert = `INSERT INTO user_sessions (` + sessionColumns + `) VALUES (:id, :user_id, :device_fingerprint, :ip_address, :user_agent, :created_at, :last_accessed, :expires_at, :is_active, :logout_reason)`
	if _, err = tx.NamedExecContext(ctx, insert, session); err != nil {
		if isUniqueViolation(err) {
			err = ErrSessionConflict
			return 0, err
		}
		return 0, fmt.Errorf("insert session: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit create session: %w", err)
	}
	return superseded, nil
}

// Deactivate closes one session. Already inactive sessions are left untouched
// and report zero affected rows.
func (r *SessionRepository) Deactivate(ctx context.Context, id string, reason models.LogoutReason) (int64, error) {
	const query = `UPDATE user_sessions SET is_active = FALSE, logout_reason = $2 WHERE id = $1 AND is_active`
	return r.exec(ctx, "deactivate session", query, id, string(reason))
}

// DeactivateOthers closes every active session of the user except keepID.
func (r *SessionRepository) DeactivateOthers(ctx context.Context, userID, keepID string, reason models.LogoutReason) (int64, error) {
	const query = `UPDATE user_sessions SET is_active = FALSE, logout_reason = $2 WHERE user_id = $1 AND id <> $3 AND is_active`
	return r.exec(ctx, "deactivate other sessions", query, userID, string(reason), keepID)
}

// DeactivateAllForUser closes every active session of the user.
func (r *SessionRepository) DeactivateAllForUser(ctx context.Context, userID string, reason models.LogoutReason) (int64, error) {
	const query = `UPDATE user_sessions SET is_active = FALSE, logout_reason = $2 WHERE user_id = $1 AND is_active`
	return r.exec(ctx, "deactivate user sessions", query, userID, string(reason))
}

// ExpireStale closes every active session whose expiry has passed.
func (r *SessionRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	const query = `UPDATE user_sessions SET is_active = FALSE, logout_reason = $1 WHERE is_active AND expires_at <= $2`
	return r.exec(ctx, "expire stale sessions", query, string(models.LogoutExpired), now)
}

// Touch records activity on an active session.
func (r *SessionRepository) Touch(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE user_sessions SET last_accessed = $2 WHERE id = $1 AND is_active`
	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

func (r *SessionRepository) exec(ctx context.Context, op, query string, args ...interface{}) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s rows: %w", op, err)
	}
	return affected, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
