package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sessionguard/internal/events"
	"github.com/noah-isme/sessionguard/internal/fingerprint"
	"github.com/noah-isme/sessionguard/internal/iplookup"
	"github.com/noah-isme/sessionguard/internal/models"
	"github.com/noah-isme/sessionguard/internal/repository"
	appErrors "github.com/noah-isme/sessionguard/pkg/errors"
)

const defaultSessionTTL = 7 * 24 * time.Hour

type sessionStore interface {
	CreateExclusive(ctx context.Context, session *models.Session) (int64, error)
	Create(ctx context.Context, session *models.Session) (int64, error)
	FindByID(ctx context.Context, id string) (*models.Session, error)
	Deactivate(ctx context.Context, id string, reason models.LogoutReason) (int64, error)
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

type deviceRegistry interface {
	RegisterLogin(ctx context.Context, device *models.Device) (*models.Device, error)
}

type credentialVerifier interface {
	VerifyCredentials(ctx context.Context, username, password string) (*models.User, error)
}

type ipHistoryRecorder interface {
	Record(userID, ip string, at time.Time)
}

// SessionConfig governs issuance.
type SessionConfig struct {
	TTL time.Duration
	// MultiDevice keeps sessions on other devices alive; only an older
	// session on the same fingerprint is superseded.
	MultiDevice     bool
	ConflictRetries int
}

// IssueRequest is everything needed to bind a new session to a device.
type IssueRequest struct {
	User        *models.User
	Fingerprint string
	IP          string
	UserAgent   string
	Device      models.DeviceMetadata
}

// IssueResult describes a committed session.
type IssueResult struct {
	Session    *models.Session
	Device     *models.Device
	Superseded int64
}

// SessionService issues device-bound sessions and ends them on logout.
type SessionService struct {
	sessions  sessionStore
	devices   deviceRegistry
	verifier  credentialVerifier
	history   ipHistoryRecorder
	publisher events.Publisher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    SessionConfig

	now      func() time.Time
	newToken func() (string, error)
}

// NewSessionService constructs a SessionService instance.
func NewSessionService(
	sessions sessionStore,
	devices deviceRegistry,
	verifier credentialVerifier,
	history ipHistoryRecorder,
	publisher events.Publisher,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	config SessionConfig,
) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if config.TTL <= 0 {
		config.TTL = defaultSessionTTL
	}
	if config.ConflictRetries <= 0 {
		config.ConflictRetries = 3
	}
	return &SessionService{
		sessions:  sessions,
		devices:   devices,
		verifier:  verifier,
		history:   history,
		publisher: publisher,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
		newToken:  generateSessionToken,
	}
}

// Login verifies credentials and issues a session for the submitting device.
// Approved users are sent to the dashboard, pending users to the waiting page.
func (s *SessionService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		s.metrics.RecordLogin(appErrors.ErrValidation.Code, 0)
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.verifier.VerifyCredentials(ctx, req.TelegramUsername, req.Password)
	if err != nil {
		s.metrics.RecordLogin(appErrors.FromError(err).Code, 0)
		return nil, err
	}

	result, err := s.Issue(ctx, IssueRequest{
		User:        user,
		Fingerprint: req.Fingerprint,
		IP:          req.IP,
		UserAgent:   req.UserAgent,
		Device:      req.Device,
	})
	if err != nil {
		return nil, err
	}

	redirect := models.RedirectDashboard
	if !user.IsApproved {
		redirect = models.RedirectAccountPending
	}

	return &models.LoginResponse{
		Token:      result.Session.ID,
		ExpiresAt:  result.Session.ExpiresAt,
		Redirect:   redirect,
		User:       models.NewUserInfo(user),
		Superseded: result.Superseded,
		Device:     *result.Device,
	}, nil
}

// Issue registers the device, refuses blocked devices and atomically replaces
// the user's superseded sessions with a new one. Nothing is persisted for a
// blocked device beyond the login counter.
func (s *SessionService) Issue(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	if req.User == nil || req.User.ID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user is required")
	}
	if !fingerprint.ValidFormat(req.Fingerprint) {
		s.metrics.RecordLogin(appErrors.ErrValidation.Code, 0)
		return nil, appErrors.Clone(appErrors.ErrValidation, "fingerprint must be 16 lowercase hex characters")
	}
	ip := iplookup.Normalize(req.IP)
	if ip == "" {
		s.metrics.RecordLogin(appErrors.ErrResolverExhausted.Code, 0)
		return nil, appErrors.ErrResolverExhausted
	}

	now := s.now()
	device, err := s.devices.RegisterLogin(ctx, s.deviceRecord(req, now))
	if err != nil {
		s.metrics.RecordLogin(appErrors.ErrStorageFailure.Code, 0)
		return nil, appErrors.Storage(err, "failed to register device")
	}

	if device.IsBlocked {
		s.metrics.RecordLogin(appErrors.ErrDeviceBlocked.Code, 0)
		s.publish(ctx, events.Event{
			Type:              events.TypeLoginRejected,
			UserID:            req.User.ID,
			DeviceFingerprint: req.Fingerprint,
			IPAddress:         ip,
			Reason:            appErrors.ErrDeviceBlocked.Code,
		})
		return nil, appErrors.ErrDeviceBlocked
	}

	session, superseded, err := s.createSession(ctx, req, ip, now)
	if err != nil {
		s.metrics.RecordLogin(appErrors.ErrStorageFailure.Code, 0)
		return nil, err
	}

	s.metrics.RecordLogin("success", superseded)
	s.metrics.RecordSessionsEnded(string(models.LogoutDeviceSuperseded), superseded)
	if s.history != nil {
		s.history.Record(req.User.ID, ip, now)
	}
	s.publish(ctx, events.Event{
		Type:              events.TypeSessionIssued,
		UserID:            req.User.ID,
		DeviceFingerprint: req.Fingerprint,
		IPAddress:         ip,
		OccurredAt:        now,
	})
	if superseded > 0 {
		s.publish(ctx, events.Event{
			Type:              events.TypeSessionSuperseded,
			UserID:            req.User.ID,
			DeviceFingerprint: req.Fingerprint,
			IPAddress:         ip,
			Reason:            string(models.LogoutDeviceSuperseded),
			Count:             superseded,
			OccurredAt:        now,
		})
	}

	s.logger.Info("session issued",
		zap.String("user_id", req.User.ID),
		zap.String("device_fingerprint", req.Fingerprint),
		zap.String("ip", ip),
		zap.Int64("superseded", superseded),
	)

	return &IssueResult{Session: session, Device: device, Superseded: superseded}, nil
}

func (s *SessionService) createSession(ctx context.Context, req IssueRequest, ip string, now time.Time) (*models.Session, int64, error) {
	create := s.sessions.CreateExclusive
	if s.config.MultiDevice {
		create = s.sessions.Create
	}

	var lastErr error
	for attempt := 0; attempt <= s.config.ConflictRetries; attempt++ {
		token, err := s.newToken()
		if err != nil {
			return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate session token")
		}

		session := &models.Session{
			ID:                token,
			UserID:            req.User.ID,
			DeviceFingerprint: req.Fingerprint,
			IPAddress:         ip,
			UserAgent:         req.UserAgent,
			CreatedAt:         now,
			LastAccessed:      now,
			ExpiresAt:         now.Add(s.config.TTL),
			IsActive:          true,
			LogoutReason:      models.LogoutNone,
		}

		superseded, err := create(ctx, session)
		if err == nil {
			return session, superseded, nil
		}
		if !errors.Is(err, repository.ErrSessionConflict) {
			return nil, 0, appErrors.Storage(err, "failed to persist session")
		}
		lastErr = err
		s.logger.Warn("concurrent session issuance, retrying",
			zap.String("user_id", req.User.ID),
			zap.Int("attempt", attempt+1),
		)
	}

	return nil, 0, appErrors.Storage(lastErr, "session issuance kept conflicting")
}

func (s *SessionService) deviceRecord(req IssueRequest, now time.Time) *models.Device {
	described := fingerprint.Describe(req.UserAgent)
	meta := req.Device
	if meta.Name == "" {
		meta.Name = described.Name
	}
	if meta.Browser == "" {
		meta.Browser = described.Browser
	}
	if meta.OS == "" {
		meta.OS = described.OS
	}
	return &models.Device{
		UserID:            req.User.ID,
		DeviceFingerprint: req.Fingerprint,
		DeviceName:        meta.Name,
		BrowserInfo:       meta.Browser,
		OSInfo:            meta.OS,
		ScreenResolution:  meta.ScreenResolution,
		Timezone:          meta.Timezone,
		Language:          meta.Language,
		FirstSeen:         now,
		LastSeen:          now,
		IsTrusted:         true,
	}
}

// Logout ends the session identified by token. Unknown or already closed
// sessions are not an error.
func (s *SessionService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	session, err := s.sessions.FindByID(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Storage(err, "failed to load session")
	}

	closed, err := s.sessions.Deactivate(ctx, token, models.LogoutUser)
	if err != nil {
		return appErrors.Storage(err, "failed to end session")
	}
	if closed == 0 {
		return nil
	}

	s.metrics.RecordSessionsEnded(string(models.LogoutUser), closed)
	s.publish(ctx, events.Event{
		Type:              events.TypeSessionRevoked,
		UserID:            session.UserID,
		DeviceFingerprint: session.DeviceFingerprint,
		Reason:            string(models.LogoutUser),
		Count:             closed,
	})
	return nil
}

// ExpireStale closes every active session past its expiry.
func (s *SessionService) ExpireStale(ctx context.Context) (int64, error) {
	closed, err := s.sessions.ExpireStale(ctx, s.now())
	if err != nil {
		return 0, appErrors.Storage(err, "failed to expire sessions")
	}
	s.metrics.RecordSessionsEnded(string(models.LogoutExpired), closed)
	if closed > 0 {
		s.logger.Info("expired stale sessions", zap.Int64("count", closed))
	}
	return closed, nil
}

func (s *SessionService) publish(ctx context.Context, event events.Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish session event",
			zap.String("type", event.Type),
			zap.String("user_id", event.UserID),
			zap.Error(err),
		)
	}
}
