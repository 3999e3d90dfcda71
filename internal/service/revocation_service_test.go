package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sessionguard/internal/events"
	"github.com/noah-isme/sessionguard/internal/models"
	appErrors "github.com/noah-isme/sessionguard/pkg/errors"
)

func newRevocationFixture(t *testing.T) (*sessionFixture, *RevocationService) {
	t.Helper()
	f := newSessionFixture(t, SessionConfig{MultiDevice: true})
	svc := NewRevocationService(f.sessions, f.devices, f.publisher, f.metrics, nil, nil)
	return f, svc
}

func TestLogoutOthersKeepsCurrentSession(t *testing.T) {
	f, svc := newRevocationFixture(t)
	ctx := context.Background()
	_, err := f.svc.Login(ctx, loginRequest(laptopFP, "203.0.113.5"))
	require.NoError(t, err)
	current, err := f.svc.Login(ctx, loginRequest(phoneFP, "198.51.100.7"))
	require.NoError(t, err)

	session := f.sessions.get(current.Token)
	result, err := svc.LogoutOthers(ctx, &session)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.SessionsClosed)
	assert.Equal(t, models.LogoutUser, f.sessions.get("token-1").LogoutReason)
	assert.True(t, f.sessions.get(current.Token).IsActive)

	again, err := svc.LogoutOthers(ctx, &session)
	require.NoError(t, err)
	assert.Equal(t, int64(0), again.SessionsClosed)
}

func TestForceLogoutIsIdempotent(t *testing.T) {
	f, svc := newRevocationFixture(t)
	ctx := context.Background()
	_, err := f.svc.Login(ctx, loginRequest(laptopFP, "203.0.113.5"))
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, loginRequest(phoneFP, "198.51.100.7"))
	require.NoError(t, err)

	result, err := svc.ForceLogout(ctx, "admin-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.SessionsClosed)
	assert.Empty(t, f.sessions.active("user-1"))
	assert.Equal(t, models.LogoutAdmin, f.sessions.get("token-2").LogoutReason)

	again, err := svc.ForceLogout(ctx, "admin-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), again.SessionsClosed)
	assert.Equal(t, models.LogoutAdmin, f.sessions.get("token-2").LogoutReason)
}

func TestBlockDeviceClosesSessionsAndRefusesLogin(t *testing.T) {
	f, svc := newRevocationFixture(t)
	ctx := context.Background()
	_, err := f.svc.Login(ctx, loginRequest(laptopFP, "203.0.113.5"))
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, loginRequest(phoneFP, "198.51.100.7"))
	require.NoError(t, err)

	result, err := svc.BlockDevice(ctx, "admin-1", "user-1", laptopFP)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.SessionsClosed)
	assert.True(t, result.DeviceUpdated)
	assert.Equal(t, models.LogoutAdmin, f.sessions.get("token-1").LogoutReason)
	assert.True(t, f.sessions.get("token-2").IsActive)
	assert.Contains(t, f.publisher.types(), events.TypeDeviceBlocked)

	rows := f.sessions.count()
	_, err = f.svc.Login(ctx, loginRequest(laptopFP, "203.0.113.5"))
	assert.True(t, errors.Is(err, appErrors.ErrDeviceBlocked))
	assert.Equal(t, rows, f.sessions.count())

	again, err := svc.BlockDevice(ctx, "admin-1", "user-1", laptopFP)
	require.NoError(t, err)
	assert.Equal(t, int64(0), again.SessionsClosed)

	_, err = svc.UnblockDevice(ctx, "admin-1", "user-1", laptopFP)
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, loginRequest(laptopFP, "203.0.113.5"))
	assert.NoError(t, err)
}

func TestBlockUnknownDevice(t *testing.T) {
	_, svc := newRevocationFixture(t)

	_, err := svc.BlockDevice(context.Background(), "admin-1", "user-1", laptopFP)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	_, err = svc.UnblockDevice(context.Background(), "admin-1", "user-1", laptopFP)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestApplyDispatchesActions(t *testing.T) {
	f, svc := newRevocationFixture(t)
	ctx := context.Background()
	_, err := f.svc.Login(ctx, loginRequest(laptopFP, "203.0.113.5"))
	require.NoError(t, err)

	result, err := svc.Apply(ctx, "admin-1", models.AdminDeviceActionRequest{
		Action: models.AdminActionForceLogout,
		UserID: "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.AdminActionForceLogout, result.Action)
	assert.Equal(t, int64(1), result.SessionsClosed)

	result, err = svc.Apply(ctx, "admin-1", models.AdminDeviceActionRequest{
		Action:            models.AdminActionBlockDevice,
		UserID:            "user-1",
		DeviceFingerprint: laptopFP,
	})
	require.NoError(t, err)
	assert.Equal(t, models.AdminActionBlockDevice, result.Action)

	_, err = svc.Apply(ctx, "admin-1", models.AdminDeviceActionRequest{Action: models.AdminActionBlockDevice, UserID: "user-1"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Apply(ctx, "admin-1", models.AdminDeviceActionRequest{Action: "delete_everything", UserID: "user-1"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestRevocationStorageFailure(t *testing.T) {
	f, svc := newRevocationFixture(t)
	f.sessions.deactivateErr = errors.New("connection reset")

	_, err := svc.ForceLogout(context.Background(), "admin-1", "user-1")
	assert.True(t, errors.Is(err, appErrors.ErrStorageFailure))
}
