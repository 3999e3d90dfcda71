package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sessionguard/internal/events"
	"github.com/noah-isme/sessionguard/internal/models"
	appErrors "github.com/noah-isme/sessionguard/pkg/errors"
)

type revocationStore interface {
	DeactivateOthers(ctx context.Context, userID, keepID string, reason models.LogoutReason) (int64, error)
	DeactivateAllForUser(ctx context.Context, userID string, reason models.LogoutReason) (int64, error)
}

type deviceBlocker interface {
	BlockAndRevoke(ctx context.Context, userID, fingerprint string) (int64, error)
	SetBlocked(ctx context.Context, userID, fingerprint string, blocked bool) (bool, error)
}

// RevocationService ends sessions on behalf of users and administrators.
// Every operation is idempotent.
type RevocationService struct {
	sessions  revocationStore
	devices   deviceBlocker
	publisher events.Publisher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRevocationService constructs a RevocationService instance.
func NewRevocationService(sessions revocationStore, devices deviceBlocker, publisher events.Publisher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *RevocationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &RevocationService{
		sessions:  sessions,
		devices:   devices,
		publisher: publisher,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// LogoutOthers ends every active session of the caller except current.
func (s *RevocationService) LogoutOthers(ctx context.Context, current *models.Session) (*models.RevocationResult, error) {
	if current == nil {
		return nil, appErrors.ErrSessionInvalid
	}
	closed, err := s.sessions.DeactivateOthers(ctx, current.UserID, current.ID, models.LogoutUser)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to end other sessions")
	}
	s.record(ctx, events.Event{
		Type:   events.TypeSessionRevoked,
		UserID: current.UserID,
		Reason: string(models.LogoutUser),
		Count:  closed,
	})
	return &models.RevocationResult{SessionsClosed: closed}, nil
}

// ForceLogout ends every active session of userID.
func (s *RevocationService) ForceLogout(ctx context.Context, adminID, userID string) (*models.AdminActionResult, error) {
	closed, err := s.sessions.DeactivateAllForUser(ctx, userID, models.LogoutAdmin)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to end user sessions")
	}
	s.logger.Info("admin forced logout",
		zap.String("admin_id", adminID),
		zap.String("user_id", userID),
		zap.Int64("sessions_closed", closed),
	)
	s.record(ctx, events.Event{
		Type:    events.TypeSessionRevoked,
		UserID:  userID,
		Reason:  string(models.LogoutAdmin),
		Count:   closed,
		ActorID: adminID,
	})
	return &models.AdminActionResult{Action: models.AdminActionForceLogout, UserID: userID, SessionsClosed: closed}, nil
}

// BlockDevice marks the device blocked and ends its active sessions in one
// transaction. Later logins from it are refused.
func (s *RevocationService) BlockDevice(ctx context.Context, adminID, userID, fingerprint string) (*models.AdminActionResult, error) {
	closed, err := s.devices.BlockAndRevoke(ctx, userID, fingerprint)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "device not found")
		}
		return nil, appErrors.Storage(err, "failed to block device")
	}
	s.logger.Info("device blocked",
		zap.String("admin_id", adminID),
		zap.String("user_id", userID),
		zap.String("device_fingerprint", fingerprint),
		zap.Int64("sessions_closed", closed),
	)
	s.record(ctx, events.Event{
		Type:              events.TypeDeviceBlocked,
		UserID:            userID,
		DeviceFingerprint: fingerprint,
		Reason:            string(models.LogoutAdmin),
		Count:             closed,
		ActorID:           adminID,
	})
	return &models.AdminActionResult{
		Action:         models.AdminActionBlockDevice,
		UserID:         userID,
		SessionsClosed: closed,
		DeviceUpdated:  true,
	}, nil
}

// UnblockDevice lets the device log in again. Sessions are not restored.
func (s *RevocationService) UnblockDevice(ctx context.Context, adminID, userID, fingerprint string) (*models.AdminActionResult, error) {
	found, err := s.devices.SetBlocked(ctx, userID, fingerprint, false)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to unblock device")
	}
	if !found {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "device not found")
	}
	s.logger.Info("device unblocked",
		zap.String("admin_id", adminID),
		zap.String("user_id", userID),
		zap.String("device_fingerprint", fingerprint),
	)
	s.record(ctx, events.Event{
		Type:              events.TypeDeviceUnblocked,
		UserID:            userID,
		DeviceFingerprint: fingerprint,
		ActorID:           adminID,
	})
	return &models.AdminActionResult{Action: models.AdminActionUnblockDevice, UserID: userID, DeviceUpdated: true}, nil
}

// Apply dispatches an admin device action.
func (s *RevocationService) Apply(ctx context.Context, adminID string, req models.AdminDeviceActionRequest) (*models.AdminActionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid device action payload")
	}
	switch req.Action {
	case models.AdminActionBlockDevice:
		return s.BlockDevice(ctx, adminID, req.UserID, req.DeviceFingerprint)
	case models.AdminActionUnblockDevice:
		return s.UnblockDevice(ctx, adminID, req.UserID, req.DeviceFingerprint)
	case models.AdminActionForceLogout:
		return s.ForceLogout(ctx, adminID, req.UserID)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported action")
	}
}

func (s *RevocationService) record(ctx context.Context, event events.Event) {
	if event.Reason != "" {
		s.metrics.RecordSessionsEnded(event.Reason, event.Count)
	}
	if event.Count == 0 && event.Type == events.TypeSessionRevoked {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish session event", zap.String("type", event.Type), zap.Error(err))
	}
}
