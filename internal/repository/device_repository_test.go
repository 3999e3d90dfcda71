package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sessionguard/internal/models"
)

var deviceCols = []string{"id", "user_id", "device_fingerprint", "device_name", "browser_info", "os_info", "screen_resolution", "timezone", "language", "first_seen", "last_seen", "is_trusted", "is_blocked", "total_logins"}

func TestRegisterLoginReturnsStoredRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDeviceRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (user_id, device_fingerprint)")).
		WithArgs(sqlmock.AnyArg(), "u1", "aaaaaaaaaaaaaaaa", "Windows PC", "Chrome 120", "Windows 10/11", "1920x1080", "Asia/Jakarta", "id-ID", now).
		WillReturnRows(sqlmock.NewRows(deviceCols).
			AddRow("d1", "u1", "aaaaaaaaaaaaaaaa", "Windows PC", "Chrome 120", "Windows 10/11", "1920x1080", "Asia/Jakarta", "id-ID", now.Add(-time.Hour), now, true, true, 4))

	stored, err := repo.RegisterLogin(context.Background(), &models.Device{
		UserID:            "u1",
		DeviceFingerprint: "aaaaaaaaaaaaaaaa",
		DeviceName:        "Windows PC",
		BrowserInfo:       "Chrome 120",
		OSInfo:            "Windows 10/11",
		ScreenResolution:  "1920x1080",
		Timezone:          "Asia/Jakarta",
		Language:          "id-ID",
		LastSeen:          now,
	})
	require.NoError(t, err)
	assert.Equal(t, "d1", stored.ID)
	assert.True(t, stored.IsBlocked)
	assert.Equal(t, 4, stored.TotalLogins)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListDevicesWithSessions(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDeviceRepository(db)

	now := time.Now()
	cols := append(append([]string{}, deviceCols...), "active_sessions", "current_ip")
	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN user_sessions s")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("d1", "u1", "aaaaaaaaaaaaaaaa", "Mac", "Safari 17", "macOS 14", "1440x900", "UTC", "en", now, now, true, false, 2, 1, "1.2.3.4").
			AddRow("d2", "u1", "bbbbbbbbbbbbbbbb", "iPad", "Safari 17", "iOS 17", "820x1180", "UTC", "en", now, now, true, false, 1, 0, nil))

	devices, err := repo.ListByUserWithSessions(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, devices, 2)
	require.NotNil(t, devices[0].CurrentIP)
	assert.Equal(t, "1.2.3.4", *devices[0].CurrentIP)
	assert.Equal(t, 1, devices[0].ActiveSessions)
	assert.Nil(t, devices[1].CurrentIP)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetBlockedUnknownDevice(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDeviceRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE user_devices SET is_blocked = $3")).
		WithArgs("u1", "aaaaaaaaaaaaaaaa", false).
		WillReturnResult(sqlmock.NewResult(0, 0))

	found, err := repo.SetBlocked(context.Background(), "u1", "aaaaaaaaaaaaaaaa", false)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestBlockAndRevoke(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDeviceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE user_devices SET is_blocked = TRUE")).
		WithArgs("u1", "aaaaaaaaaaaaaaaa").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE user_sessions SET is_active = FALSE, logout_reason = $3")).
		WithArgs("u1", "aaaaaaaaaaaaaaaa", "admin_logout").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	closed, err := repo.BlockAndRevoke(context.Background(), "u1", "aaaaaaaaaaaaaaaa")
	require.NoError(t, err)
	assert.Equal(t, int64(1), closed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBlockAndRevokeUnknownDevice(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDeviceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE user_devices").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.BlockAndRevoke(context.Background(), "u1", "ffffffffffffffff")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}
