package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sessionguard/internal/models"
	appErrors "github.com/noah-isme/sessionguard/pkg/errors"
)

func TestListDevicesMarksCurrentDevice(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{MultiDevice: true})
	ctx := context.Background()
	_, err := f.svc.Login(ctx, loginRequest(laptopFP, "203.0.113.5"))
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, loginRequest(phoneFP, "198.51.100.7"))
	require.NoError(t, err)
	f.history.rows = []models.IPHistory{{UserID: "user-1", IPAddress: "198.51.100.7", IsCurrent: true}}

	svc := NewDeviceService(f.devices, f.sessions, f.history, nil)
	overview, err := svc.ListDevices(ctx, "user-1", phoneFP)
	require.NoError(t, err)

	require.Len(t, overview.Devices, 2)
	for _, d := range overview.Devices {
		assert.Equal(t, d.DeviceFingerprint == phoneFP, d.IsCurrent)
		assert.Equal(t, 1, d.ActiveSessions)
		require.NotNil(t, d.CurrentIP)
	}
	assert.Equal(t, []string{"198.51.100.7", "203.0.113.5"}, overview.CurrentIPs)
	assert.Len(t, overview.IPHistory, 1)
	assert.Equal(t, DefaultIPHistoryLimit, f.history.limit)
}

func TestListDevicesEmptyUser(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	svc := NewDeviceService(f.devices, f.sessions, f.history, nil)

	overview, err := svc.ListDevices(context.Background(), "nobody", "")
	require.NoError(t, err)
	assert.NotNil(t, overview.Devices)
	assert.NotNil(t, overview.CurrentIPs)
	assert.NotNil(t, overview.IPHistory)
}

func TestListDevicesHistoryFailure(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	f.history.err = appErrors.Storage(errors.New("timeout"), "failed to load ip history")
	svc := NewDeviceService(f.devices, f.sessions, f.history, nil)

	_, err := svc.ListDevices(context.Background(), "user-1", "")
	assert.True(t, errors.Is(err, appErrors.ErrStorageFailure))
}

func TestDeviceCountAfterSupersede(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	ctx := context.Background()
	_, err := f.svc.Login(ctx, loginRequest(laptopFP, "203.0.113.5"))
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, loginRequest(phoneFP, "198.51.100.7"))
	require.NoError(t, err)

	svc := NewDeviceService(f.devices, f.sessions, f.history, nil)
	count, err := svc.DeviceCount(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count.UniqueIPs)
	assert.Equal(t, 1, count.ActiveDevices)
	assert.Equal(t, 1, count.ActiveSessions)
}

func TestExportDeviceReport(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	ctx := context.Background()
	_, err := f.svc.Login(ctx, loginRequest(laptopFP, "203.0.113.5"))
	require.NoError(t, err)

	devices := NewDeviceService(f.devices, f.sessions, f.history, nil)
	svc := NewExportService(devices, nil, nil, nil)

	csvResult, err := svc.DeviceReport(ctx, "user-1", "")
	require.NoError(t, err)
	assert.Equal(t, "text/csv; charset=utf-8", csvResult.ContentType)
	assert.True(t, strings.HasPrefix(csvResult.Filename, "devices_user-1_"))
	assert.True(t, strings.HasSuffix(csvResult.Filename, ".csv"))
	lines := strings.Split(strings.TrimSpace(string(csvResult.Payload)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], laptopFP)
	assert.Contains(t, lines[1], "203.0.113.5")

	pdfResult, err := svc.DeviceReport(ctx, "user-1", "PDF")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", pdfResult.ContentType)
	assert.True(t, strings.HasPrefix(string(pdfResult.Payload), "%PDF"))

	_, err = svc.DeviceReport(ctx, "user-1", "xlsx")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "na", sanitizeFilename(""))
	assert.Equal(t, "a-b_c", sanitizeFilename("a/b c"))
}
