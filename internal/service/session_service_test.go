package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sessionguard/internal/events"
	"github.com/noah-isme/sessionguard/internal/models"
	appErrors "github.com/noah-isme/sessionguard/pkg/errors"
)

const (
	laptopFP = "0123456789abcdef"
	phoneFP  = "fedcba9876543210"
	chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

type sessionFixture struct {
	sessions  *memorySessions
	devices   *memoryDevices
	history   *fakeHistory
	publisher *fakePublisher
	metrics   *MetricsService
	user      *models.User
	svc       *SessionService
	clock     time.Time
}

func newSessionFixture(t *testing.T, cfg SessionConfig) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		sessions:  newMemorySessions(),
		history:   &fakeHistory{},
		publisher: &fakePublisher{},
		metrics:   NewMetricsService(),
		user:      &models.User{ID: "user-1", TelegramUsername: "alice", IsApproved: true, AccountStatus: models.AccountActive, IsActive: true},
		clock:     time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
	}
	f.devices = newMemoryDevices(f.sessions)
	f.svc = NewSessionService(f.sessions, f.devices, staticVerifier{user: f.user}, f.history, f.publisher, f.metrics, nil, nil, cfg)
	f.svc.now = func() time.Time { return f.clock }
	var n int
	f.svc.newToken = func() (string, error) {
		n++
		return fmt.Sprintf("token-%d", n), nil
	}
	return f
}

func loginRequest(fp, ip string) models.LoginRequest {
	return models.LoginRequest{
		TelegramUsername: "alice",
		Password:         "secret",
		Fingerprint:      fp,
		IP:               ip,
		UserAgent:        chromeUA,
	}
}

func TestLoginIssuesSevenDaySession(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})

	resp, err := f.svc.Login(context.Background(), loginRequest(laptopFP, "203.0.113.5"))
	require.NoError(t, err)

	assert.Equal(t, "token-1", resp.Token)
	assert.Equal(t, f.clock.Add(7*24*time.Hour), resp.ExpiresAt)
	assert.Equal(t, models.RedirectDashboard, resp.Redirect)
	assert.Equal(t, int64(0), resp.Superseded)
	assert.Equal(t, "Windows PC", resp.Device.DeviceName)
	assert.Equal(t, 1, resp.Device.TotalLogins)
	assert.True(t, resp.Device.IsTrusted)

	stored := f.sessions.get("token-1")
	assert.True(t, stored.IsActive)
	assert.Equal(t, "203.0.113.5", stored.IPAddress)
	assert.Equal(t, models.LogoutNone, stored.LogoutReason)

	require.Len(t, f.history.records, 1)
	assert.Equal(t, recordedIP{userID: "user-1", ip: "203.0.113.5"}, f.history.records[0])
	assert.Equal(t, []string{events.TypeSessionIssued}, f.publisher.types())
}

func TestLoginSupersedesOtherDevices(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	ctx := context.Background()

	_, err := f.svc.Login(ctx, loginRequest(laptopFP, "203.0.113.5"))
	require.NoError(t, err)
	resp, err := f.svc.Login(ctx, loginRequest(phoneFP, "198.51.100.7"))
	require.NoError(t, err)

	assert.Equal(t, int64(1), resp.Superseded)
	active := f.sessions.active("user-1")
	require.Len(t, active, 1)
	assert.Equal(t, "token-2", active[0].ID)

	old := f.sessions.get("token-1")
	assert.False(t, old.IsActive)
	assert.Equal(t, models.LogoutDeviceSuperseded, old.LogoutReason)
	assert.Contains(t, f.publisher.types(), events.TypeSessionSuperseded)
}

func TestLoginSameDeviceReplacesSession(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	ctx := context.Background()

	_, err := f.svc.Login(ctx, loginRequest(laptopFP, "203.0.113.5"))
	require.NoError(t, err)
	resp, err := f.svc.Login(ctx, loginRequest(laptopFP, "203.0.113.5"))
	require.NoError(t, err)

	assert.Equal(t, 2, resp.Device.TotalLogins)
	assert.Len(t, f.sessions.active("user-1"), 1)
}

func TestLoginMultiDeviceKeepsOtherDevices(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{MultiDevice: true})
	ctx := context.Background()

	_, err := f.svc.Login(ctx, loginRequest(laptopFP, "203.0.113.5"))
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, loginRequest(phoneFP, "198.51.100.7"))
	require.NoError(t, err)
	assert.Len(t, f.sessions.active("user-1"), 2)

	resp, err := f.svc.Login(ctx, loginRequest(laptopFP, "203.0.113.5"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.Superseded)
	assert.Len(t, f.sessions.active("user-1"), 2)
}

func TestConcurrentLoginsLeaveOneActiveSession(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	var mu sync.Mutex
	var n int
	f.svc.newToken = func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("token-%d", n), nil
	}

	fps := []string{laptopFP, phoneFP, "00000000000000aa", "00000000000000bb", "00000000000000cc"}
	var wg sync.WaitGroup
	for _, fp := range fps {
		wg.Add(1)
		go func(fp string) {
			defer wg.Done()
			_, err := f.svc.Login(context.Background(), loginRequest(fp, "203.0.113.5"))
			assert.NoError(t, err)
		}(fp)
	}
	wg.Wait()

	assert.Len(t, f.sessions.active("user-1"), 1)
	assert.Equal(t, len(fps), f.sessions.count())
}

func TestLoginPendingAccountRedirects(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	f.user.IsApproved = false

	resp, err := f.svc.Login(context.Background(), loginRequest(laptopFP, "203.0.113.5"))
	require.NoError(t, err)
	assert.Equal(t, models.RedirectAccountPending, resp.Redirect)
	assert.NotEmpty(t, resp.Token)
}

func TestLoginBlockedDeviceCreatesNoSession(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	ctx := context.Background()

	_, err := f.svc.Login(ctx, loginRequest(laptopFP, "203.0.113.5"))
	require.NoError(t, err)
	_, err = f.devices.BlockAndRevoke(ctx, "user-1", laptopFP)
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, loginRequest(laptopFP, "203.0.113.5"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrDeviceBlocked))
	assert.Equal(t, 1, f.sessions.count())
	assert.Empty(t, f.sessions.active("user-1"))
	assert.Contains(t, f.publisher.types(), events.TypeLoginRejected)
}

func TestLoginPropagatesCredentialErrors(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	f.svc.verifier = staticVerifier{err: appErrors.ErrCredentialInvalid}

	_, err := f.svc.Login(context.Background(), loginRequest(laptopFP, "203.0.113.5"))
	assert.True(t, errors.Is(err, appErrors.ErrCredentialInvalid))
	assert.Equal(t, 0, f.sessions.count())
}

func TestLoginValidatesFingerprint(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})

	for _, fp := range []string{"", "0123456789ABCDEF", "0123", "zz23456789abcdef"} {
		_, err := f.svc.Login(context.Background(), loginRequest(fp, "203.0.113.5"))
		assert.True(t, errors.Is(err, appErrors.ErrValidation), "fingerprint %q", fp)
	}
	assert.Equal(t, 0, f.sessions.count())
}

func TestIssueRejectsUnresolvedAddress(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})

	for _, ip := range []string{"", "unknown", "not-an-ip"} {
		_, err := f.svc.Issue(context.Background(), IssueRequest{User: f.user, Fingerprint: laptopFP, IP: ip})
		assert.True(t, errors.Is(err, appErrors.ErrResolverExhausted), "ip %q", ip)
	}
	assert.Equal(t, 0, f.sessions.count())
}

func TestIssueRetriesConflicts(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{ConflictRetries: 3})
	f.sessions.conflicts = 2

	result, err := f.svc.Issue(context.Background(), IssueRequest{User: f.user, Fingerprint: laptopFP, IP: "203.0.113.5"})
	require.NoError(t, err)
	assert.Equal(t, "token-3", result.Session.ID)
	assert.Len(t, f.sessions.active("user-1"), 1)
}

func TestIssueGivesUpAfterRepeatedConflicts(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{ConflictRetries: 2})
	f.sessions.conflicts = 10

	_, err := f.svc.Issue(context.Background(), IssueRequest{User: f.user, Fingerprint: laptopFP, IP: "203.0.113.5"})
	assert.True(t, errors.Is(err, appErrors.ErrStorageFailure))
	assert.Equal(t, 0, f.sessions.count())
	assert.Empty(t, f.history.records)
}

func TestIssueStorageFailures(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	f.devices.registerErr = errors.New("connection reset")
	_, err := f.svc.Issue(context.Background(), IssueRequest{User: f.user, Fingerprint: laptopFP, IP: "203.0.113.5"})
	assert.True(t, errors.Is(err, appErrors.ErrStorageFailure))

	f.devices.registerErr = nil
	f.sessions.createErr = errors.New("connection reset")
	_, err = f.svc.Issue(context.Background(), IssueRequest{User: f.user, Fingerprint: laptopFP, IP: "203.0.113.5"})
	assert.True(t, errors.Is(err, appErrors.ErrStorageFailure))
	assert.Equal(t, 0, f.sessions.count())
	assert.Empty(t, f.publisher.types())
}

func TestIssueSurvivesPublisherFailure(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	f.publisher.err = errors.New("broker down")

	_, err := f.svc.Issue(context.Background(), IssueRequest{User: f.user, Fingerprint: laptopFP, IP: "203.0.113.5"})
	require.NoError(t, err)
	assert.Len(t, f.sessions.active("user-1"), 1)
}

func TestLogoutIsIdempotent(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{})
	ctx := context.Background()
	resp, err := f.svc.Login(ctx, loginRequest(laptopFP, "203.0.113.5"))
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, resp.Token))
	stored := f.sessions.get(resp.Token)
	assert.False(t, stored.IsActive)
	assert.Equal(t, models.LogoutUser, stored.LogoutReason)

	require.NoError(t, f.svc.Logout(ctx, resp.Token))
	require.NoError(t, f.svc.Logout(ctx, "missing"))
	require.NoError(t, f.svc.Logout(ctx, ""))
	assert.Equal(t, models.LogoutUser, f.sessions.get(resp.Token).LogoutReason)
}

func TestExpireStale(t *testing.T) {
	f := newSessionFixture(t, SessionConfig{TTL: time.Hour})
	ctx := context.Background()
	resp, err := f.svc.Login(ctx, loginRequest(laptopFP, "203.0.113.5"))
	require.NoError(t, err)

	closed, err := f.svc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), closed)

	f.clock = f.clock.Add(time.Hour)
	closed, err = f.svc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), closed)
	assert.Equal(t, models.LogoutExpired, f.sessions.get(resp.Token).LogoutReason)
}
