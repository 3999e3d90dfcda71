package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sessionguard/internal/models"
)

// IPHistoryRepository persists the per-user address audit trail.
type IPHistoryRepository struct {
	db *sqlx.DB
}

// NewIPHistoryRepository creates a new IPHistoryRepository.
func NewIPHistoryRepository(db *sqlx.DB) *IPHistoryRepository {
	return &IPHistoryRepository{db: db}
}

// Record upserts (user, ip) and makes it the only current address. Records
// can arrive out of order when a write is retried, so an address seen at at
// becomes current only if no other address was seen later, and last_seen
// never moves backwards.
func (r *IPHistoryRepository) Record(ctx context.Context, userID, ip string, at time.Time) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record ip: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext('ip_history:' || $1))`, userID); err != nil {
		return fmt.Errorf("lock ip history: %w", err)
	}

	const clear = `UPDATE user_ip_history SET is_current = FALSE
WHERE user_id = $1 AND ip_address <> $2 AND is_current AND last_seen <= $3`
	if _, err = tx.ExecContext(ctx, clear, userID, ip, at); err != nil {
		return fmt.Errorf("clear current ip: %w", err)
	}

	const upsert = `INSERT INTO user_ip_history (id, user_id, ip_address, first_seen, last_seen, is_current)
VALUES ($1, $2, $3, $4, $4, NOT EXISTS (
    SELECT 1 FROM user_ip_history WHERE user_id = $2 AND ip_address <> $3 AND last_seen > $4))
ON CONFLICT (user_id, ip_address)
DO UPDATE SET first_seen = LEAST(user_ip_history.first_seen, EXCLUDED.first_seen),
    last_seen = GREATEST(user_ip_history.last_seen, EXCLUDED.last_seen),
    is_current = user_ip_history.is_current OR EXCLUDED.is_current`
	if _, err = tx.ExecContext(ctx, upsert, uuid.NewString(), userID, ip, at); err != nil {
		return fmt.Errorf("upsert ip history: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit record ip: %w", err)
	}
	return nil
}

// ListByUser returns the most recently seen addresses of a user.
func (r *IPHistoryRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.IPHistory, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	const query = `SELECT id, user_id, ip_address, first_seen, last_seen, is_current FROM user_ip_history WHERE user_id = $1 ORDER BY last_seen DESC LIMIT $2`
	history := []models.IPHistory{}
	if err := r.db.SelectContext(ctx, &history, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list ip history: %w", err)
	}
	return history, nil
}
