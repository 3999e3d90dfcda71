package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/sessionguard/internal/events"
	"github.com/noah-isme/sessionguard/internal/models"
	"github.com/noah-isme/sessionguard/internal/repository"
)

// memorySessions mirrors SessionRepository: each create and deactivation is
// atomic under one lock, like the advisory-locked transaction.
type memorySessions struct {
	mu        sync.Mutex
	rows      map[string]*models.Session
	conflicts int

	createErr     error
	findErr       error
	deactivateErr error
	touchErr      error
	touched       int
}

func newMemorySessions() *memorySessions {
	return &memorySessions{rows: make(map[string]*models.Session)}
}

func (m *memorySessions) CreateExclusive(ctx context.Context, session *models.Session) (int64, error) {
	return m.insert(session, func(s *models.Session) bool { return s.UserID == session.UserID })
}

func (m *memorySessions) Create(ctx context.Context, session *models.Session) (int64, error) {
	return m.insert(session, func(s *models.Session) bool {
		return s.UserID == session.UserID && s.DeviceFingerprint == session.DeviceFingerprint
	})
}

func (m *memorySessions) insert(session *models.Session, supersede func(*models.Session) bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return 0, m.createErr
	}
	if m.conflicts > 0 {
		m.conflicts--
		return 0, repository.ErrSessionConflict
	}
	var superseded int64
	for _, s := range m.rows {
		if s.IsActive && supersede(s) {
			s.IsActive = false
			s.LogoutReason = models.LogoutDeviceSuperseded
			superseded++
		}
	}
	copied := *session
	m.rows[session.ID] = &copied
	return superseded, nil
}

func (m *memorySessions) FindByID(ctx context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	s, ok := m.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *s
	return &copied, nil
}

func (m *memorySessions) deactivate(reason models.LogoutReason, match func(*models.Session) bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deactivateErr != nil {
		return 0, m.deactivateErr
	}
	var n int64
	for _, s := range m.rows {
		if s.IsActive && match(s) {
			s.IsActive = false
			s.LogoutReason = reason
			n++
		}
	}
	return n, nil
}

func (m *memorySessions) Deactivate(ctx context.Context, id string, reason models.LogoutReason) (int64, error) {
	return m.deactivate(reason, func(s *models.Session) bool { return s.ID == id })
}

func (m *memorySessions) DeactivateOthers(ctx context.Context, userID, keepID string, reason models.LogoutReason) (int64, error) {
	return m.deactivate(reason, func(s *models.Session) bool { return s.UserID == userID && s.ID != keepID })
}

func (m *memorySessions) DeactivateAllForUser(ctx context.Context, userID string, reason models.LogoutReason) (int64, error) {
	return m.deactivate(reason, func(s *models.Session) bool { return s.UserID == userID })
}

func (m *memorySessions) deactivateDevice(ctx context.Context, userID, fingerprint string, reason models.LogoutReason) (int64, error) {
	return m.deactivate(reason, func(s *models.Session) bool {
		return s.UserID == userID && s.DeviceFingerprint == fingerprint
	})
}

func (m *memorySessions) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	return m.deactivate(models.LogoutExpired, func(s *models.Session) bool { return !now.Before(s.ExpiresAt) })
}

func (m *memorySessions) Touch(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.touchErr != nil {
		return m.touchErr
	}
	if s, ok := m.rows[id]; ok && s.IsActive {
		s.LastAccessed = at
		m.touched++
	}
	return nil
}

func (m *memorySessions) ActiveIPs(ctx context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]struct{}{}
	var ips []string
	for _, s := range m.rows {
		if s.IsActive && s.UserID == userID {
			if _, ok := seen[s.IPAddress]; !ok {
				seen[s.IPAddress] = struct{}{}
				ips = append(ips, s.IPAddress)
			}
		}
	}
	sort.Strings(ips)
	return ips, nil
}

func (m *memorySessions) CountActiveByUser(ctx context.Context, userID string) (int, error) {
	return len(m.active(userID)), nil
}

func (m *memorySessions) active(userID string) []models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Session
	for _, s := range m.rows {
		if s.IsActive && s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out
}

func (m *memorySessions) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *memorySessions) get(id string) models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.rows[id]
}

// memoryDevices mirrors DeviceRepository over a shared session table.
type memoryDevices struct {
	mu          sync.Mutex
	rows        map[string]*models.Device
	sessions    *memorySessions
	registerErr error
}

func newMemoryDevices(sessions *memorySessions) *memoryDevices {
	return &memoryDevices{rows: make(map[string]*models.Device), sessions: sessions}
}

func deviceKey(userID, fingerprint string) string { return userID + "|" + fingerprint }

func (m *memoryDevices) RegisterLogin(ctx context.Context, device *models.Device) (*models.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.registerErr != nil {
		return nil, m.registerErr
	}
	key := deviceKey(device.UserID, device.DeviceFingerprint)
	existing, ok := m.rows[key]
	if !ok {
		copied := *device
		copied.ID = "dev-" + device.DeviceFingerprint
		copied.TotalLogins = 1
		m.rows[key] = &copied
		result := copied
		return &result, nil
	}
	existing.TotalLogins++
	existing.LastSeen = device.LastSeen
	result := *existing
	return &result, nil
}

func (m *memoryDevices) SetBlocked(ctx context.Context, userID, fingerprint string, blocked bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.rows[deviceKey(userID, fingerprint)]
	if !ok {
		return false, nil
	}
	d.IsBlocked = blocked
	return true, nil
}

func (m *memoryDevices) BlockAndRevoke(ctx context.Context, userID, fingerprint string) (int64, error) {
	m.mu.Lock()
	d, ok := m.rows[deviceKey(userID, fingerprint)]
	if !ok {
		m.mu.Unlock()
		return 0, sql.ErrNoRows
	}
	d.IsBlocked = true
	m.mu.Unlock()
	return m.sessions.deactivateDevice(ctx, userID, fingerprint, models.LogoutAdmin)
}

func (m *memoryDevices) ListByUserWithSessions(ctx context.Context, userID string) ([]models.DeviceSummary, error) {
	m.mu.Lock()
	var devices []models.Device
	for _, d := range m.rows {
		if d.UserID == userID {
			devices = append(devices, *d)
		}
	}
	m.mu.Unlock()
	sort.Slice(devices, func(i, j int) bool { return devices[i].DeviceFingerprint < devices[j].DeviceFingerprint })

	active := m.sessions.active(userID)
	out := make([]models.DeviceSummary, 0, len(devices))
	for _, d := range devices {
		summary := models.DeviceSummary{Device: d}
		for _, s := range active {
			if s.DeviceFingerprint == d.DeviceFingerprint {
				summary.ActiveSessions++
				ip := s.IPAddress
				summary.CurrentIP = &ip
			}
		}
		out = append(out, summary)
	}
	return out, nil
}

type recordedIP struct {
	userID string
	ip     string
}

type fakeHistory struct {
	mu      sync.Mutex
	records []recordedIP
	rows    []models.IPHistory
	err     error
	limit   int
}

func (f *fakeHistory) Record(userID, ip string, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, recordedIP{userID: userID, ip: ip})
}

func (f *fakeHistory) History(ctx context.Context, userID string, limit int) ([]models.IPHistory, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, event events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

type staticVerifier struct {
	user *models.User
	err  error
}

func (v staticVerifier) VerifyCredentials(ctx context.Context, username, password string) (*models.User, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.user, nil
}
