package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/sessionguard/internal/models"
	appErrors "github.com/noah-isme/sessionguard/pkg/errors"
)

type deviceLister interface {
	ListByUserWithSessions(ctx context.Context, userID string) ([]models.DeviceSummary, error)
}

type activeSessionSource interface {
	ActiveIPs(ctx context.Context, userID string) ([]string, error)
	CountActiveByUser(ctx context.Context, userID string) (int, error)
}

type ipHistoryReader interface {
	History(ctx context.Context, userID string, limit int) ([]models.IPHistory, error)
}

// DeviceService answers device-management queries.
type DeviceService struct {
	devices  deviceLister
	sessions activeSessionSource
	history  ipHistoryReader
	logger   *zap.Logger
}

// NewDeviceService constructs a DeviceService instance.
func NewDeviceService(devices deviceLister, sessions activeSessionSource, history ipHistoryReader, logger *zap.Logger) *DeviceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeviceService{devices: devices, sessions: sessions, history: history, logger: logger}
}

// ListDevices returns the user's devices with live session state, the
// addresses of active sessions and recent IP history. currentFingerprint
// marks the caller's own device and may be empty for admin views.
func (s *DeviceService) ListDevices(ctx context.Context, userID, currentFingerprint string) (*models.DeviceOverview, error) {
	devices, err := s.devices.ListByUserWithSessions(ctx, userID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list devices")
	}
	for i := range devices {
		devices[i].IsCurrent = currentFingerprint != "" && devices[i].DeviceFingerprint == currentFingerprint
	}

	ips, err := s.sessions.ActiveIPs(ctx, userID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list current addresses")
	}

	history, err := s.history.History(ctx, userID, DefaultIPHistoryLimit)
	if err != nil {
		return nil, err
	}

	if devices == nil {
		devices = []models.DeviceSummary{}
	}
	if ips == nil {
		ips = []string{}
	}
	if history == nil {
		history = []models.IPHistory{}
	}
	return &models.DeviceOverview{Devices: devices, CurrentIPs: ips, IPHistory: history}, nil
}

// DeviceCount reports how many distinct addresses, devices and sessions are
// live for userID.
func (s *DeviceService) DeviceCount(ctx context.Context, userID string) (*models.DeviceCount, error) {
	ips, err := s.sessions.ActiveIPs(ctx, userID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to count addresses")
	}
	devices, err := s.devices.ListByUserWithSessions(ctx, userID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to count devices")
	}

	sessions, err := s.sessions.CountActiveByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to count sessions")
	}

	active := 0
	for _, d := range devices {
		if d.ActiveSessions > 0 {
			active++
		}
	}
	return &models.DeviceCount{UserID: userID, UniqueIPs: len(ips), ActiveDevices: active, ActiveSessions: sessions}, nil
}

// IPHistory returns up to limit recent addresses for userID.
func (s *DeviceService) IPHistory(ctx context.Context, userID string, limit int) ([]models.IPHistory, error) {
	return s.history.History(ctx, userID, limit)
}
