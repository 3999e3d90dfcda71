package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sessionguard/internal/events"
	"github.com/noah-isme/sessionguard/internal/iplookup"
	"github.com/noah-isme/sessionguard/internal/models"
	appErrors "github.com/noah-isme/sessionguard/pkg/errors"
)

type sessionChecker interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
	Deactivate(ctx context.Context, id string, reason models.LogoutReason) (int64, error)
	Touch(ctx context.Context, id string, at time.Time) error
}

// ValidatorConfig tunes per-request checks.
type ValidatorConfig struct {
	// TrustPrivateNetworks admits an address change when both the stored
	// and the current address are private or loopback. Development only.
	TrustPrivateNetworks bool
}

// ValidatorService admits or rejects each authenticated request.
type ValidatorService struct {
	sessions  sessionChecker
	publisher events.Publisher
	metrics   *MetricsService
	logger    *zap.Logger
	config    ValidatorConfig
	now       func() time.Time
}

// NewValidatorService constructs a ValidatorService instance.
func NewValidatorService(sessions sessionChecker, publisher events.Publisher, metrics *MetricsService, logger *zap.Logger, config ValidatorConfig) *ValidatorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &ValidatorService{
		sessions:  sessions,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Validate checks token against the store, its expiry and the address it was
// issued to. Any storage failure rejects the request.
func (s *ValidatorService) Validate(ctx context.Context, token, currentIP string) (*models.Session, error) {
	if token == "" {
		return nil, appErrors.ErrSessionInvalid
	}

	session, err := s.sessions.FindByID(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrSessionInvalid
		}
		s.logger.Error("session lookup failed, rejecting request", zap.Error(err))
		rejected := appErrors.Clone(appErrors.ErrSessionInvalid, "")
		rejected.Err = err
		return nil, rejected
	}

	if !session.IsActive {
		return nil, appErrors.ErrSessionInvalid
	}

	now := s.now()
	if session.Expired(now) {
		s.end(ctx, session, models.LogoutExpired)
		return nil, appErrors.Clone(appErrors.ErrSessionInvalid, "session expired")
	}

	if !iplookup.Match(session.IPAddress, currentIP) && !s.trusted(session.IPAddress, currentIP) {
		s.logger.Info("ip changed, ending session",
			zap.String("user_id", session.UserID),
			zap.String("stored_ip", session.IPAddress),
			zap.String("current_ip", currentIP),
		)
		s.end(ctx, session, models.LogoutIPChanged)
		return nil, appErrors.ErrIPChanged
	}

	if err := s.sessions.Touch(ctx, session.ID, now); err != nil {
		s.logger.Debug("failed to touch session", zap.String("user_id", session.UserID), zap.Error(err))
	} else {
		session.LastAccessed = now
	}

	return session, nil
}

func (s *ValidatorService) trusted(stored, current string) bool {
	return s.config.TrustPrivateNetworks && iplookup.IsPrivate(stored) && iplookup.IsPrivate(current)
}

// end deactivates session; the rejection stands even when the write fails.
func (s *ValidatorService) end(ctx context.Context, session *models.Session, reason models.LogoutReason) {
	closed, err := s.sessions.Deactivate(ctx, session.ID, reason)
	if err != nil {
		s.logger.Error("failed to deactivate session",
			zap.String("user_id", session.UserID),
			zap.String("reason", string(reason)),
			zap.Error(err),
		)
		return
	}
	if closed == 0 {
		return
	}

	s.metrics.RecordSessionsEnded(string(reason), closed)
	event := events.Event{
		Type:              events.TypeSessionRevoked,
		UserID:            session.UserID,
		DeviceFingerprint: session.DeviceFingerprint,
		IPAddress:         session.IPAddress,
		Reason:            string(reason),
		Count:             closed,
		OccurredAt:        s.now(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish session event", zap.String("type", event.Type), zap.Error(err))
	}
}
