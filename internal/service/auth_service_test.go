package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sessionguard/internal/models"
	appErrors "github.com/noah-isme/sessionguard/pkg/errors"
)

type mockAuthRepo struct {
	user   *models.User
	err    error
	byID   *models.User
	idErr  error
	lookup string
}

func (m *mockAuthRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	m.lookup = username
	if m.err != nil {
		return nil, m.err
	}
	return m.user, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.idErr != nil {
		return nil, m.idErr
	}
	return m.byID, nil
}

func activeUser(t *testing.T, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{
		ID:               "user-1",
		TelegramUsername: "alice",
		PasswordHash:     string(hash),
		IsApproved:       true,
		AccountStatus:    models.AccountActive,
		IsActive:         true,
	}
}

func TestVerifyCredentialsSuccess(t *testing.T) {
	repo := &mockAuthRepo{user: activeUser(t, "secret")}
	svc := NewAuthService(repo, nil, AuthConfig{})

	user, err := svc.VerifyCredentials(context.Background(), "  alice ", "secret")
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, "alice", repo.lookup)
}

func TestVerifyCredentialsFailures(t *testing.T) {
	inactive := activeUser(t, "secret")
	inactive.AccountStatus = models.AccountSuspended

	tests := []struct {
		name     string
		repo     *mockAuthRepo
		password string
		want     *appErrors.Error
	}{
		{name: "unknown user", repo: &mockAuthRepo{err: sql.ErrNoRows}, password: "secret", want: appErrors.ErrCredentialInvalid},
		{name: "wrong password", repo: &mockAuthRepo{user: activeUser(t, "secret")}, password: "nope", want: appErrors.ErrCredentialInvalid},
		{name: "empty password", repo: &mockAuthRepo{user: activeUser(t, "secret")}, password: "", want: appErrors.ErrCredentialInvalid},
		{name: "suspended", repo: &mockAuthRepo{user: inactive}, password: "secret", want: appErrors.ErrAccountInactive},
		{name: "storage", repo: &mockAuthRepo{err: errors.New("db down")}, password: "secret", want: appErrors.ErrStorageFailure},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewAuthService(tc.repo, nil, AuthConfig{})
			_, err := svc.VerifyCredentials(context.Background(), "alice", tc.password)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestPendingAccountStillVerifies(t *testing.T) {
	user := activeUser(t, "secret")
	user.IsApproved = false
	svc := NewAuthService(&mockAuthRepo{user: user}, nil, AuthConfig{})

	got, err := svc.VerifyCredentials(context.Background(), "alice", "secret")
	require.NoError(t, err)
	assert.False(t, got.IsApproved)
}

func TestAdminTokenRoundTrip(t *testing.T) {
	svc := NewAuthService(&mockAuthRepo{}, nil, AuthConfig{AdminTokenSecret: "s3cret", AdminTokenIssuer: "console"})

	token, expires, err := svc.IssueAdminToken("admin-1", "ops@example.com", models.RoleSuperAdmin)
	require.NoError(t, err)
	assert.True(t, expires.After(time.Now()))

	claims, err := svc.ValidateAdminToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", claims.UserID)
	assert.Equal(t, models.RoleSuperAdmin, claims.Role)
}

func TestAdminTokenRejections(t *testing.T) {
	svc := NewAuthService(&mockAuthRepo{}, nil, AuthConfig{AdminTokenSecret: "s3cret", AdminTokenIssuer: "console"})

	userToken, _, err := svc.IssueAdminToken("u1", "", models.AdminRole("USER"))
	require.NoError(t, err)
	_, err = svc.ValidateAdminToken(userToken)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	other := NewAuthService(&mockAuthRepo{}, nil, AuthConfig{AdminTokenSecret: "other", AdminTokenIssuer: "console"})
	forged, _, err := other.IssueAdminToken("admin-1", "", models.RoleAdmin)
	require.NoError(t, err)
	_, err = svc.ValidateAdminToken(forged)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	wrongIssuer := NewAuthService(&mockAuthRepo{}, nil, AuthConfig{AdminTokenSecret: "s3cret", AdminTokenIssuer: "elsewhere"})
	foreign, _, err := wrongIssuer.IssueAdminToken("admin-1", "", models.RoleAdmin)
	require.NoError(t, err)
	_, err = svc.ValidateAdminToken(foreign)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &models.AdminClaims{Role: models.RoleAdmin})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.ValidateAdminToken(unsigned)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestUserLookupMapsMissingToSessionInvalid(t *testing.T) {
	svc := NewAuthService(&mockAuthRepo{idErr: sql.ErrNoRows}, nil, AuthConfig{})
	_, err := svc.User(context.Background(), "gone")
	assert.True(t, errors.Is(err, appErrors.ErrSessionInvalid))
}

func TestGenerateSessionToken(t *testing.T) {
	a, err := generateSessionToken()
	require.NoError(t, err)
	b, err := generateSessionToken()
	require.NoError(t, err)
	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
}
