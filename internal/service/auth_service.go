package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sessionguard/internal/models"
	appErrors "github.com/noah-isme/sessionguard/pkg/errors"
)

type authUserRepository interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// AuthConfig defines configuration for credential and admin token checks.
type AuthConfig struct {
	AdminTokenSecret string
	AdminTokenIssuer string
	AdminTokenExpiry time.Duration
}

// AuthService verifies user credentials and admin bearer tokens.
type AuthService struct {
	repo   authUserRepository
	logger *zap.Logger
	config AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.AdminTokenExpiry <= 0 {
		config.AdminTokenExpiry = time.Hour
	}
	return &AuthService{repo: repo, logger: logger, config: config}
}

// VerifyCredentials checks a username and password pair. Pending approval is
// not an error here: the caller decides where to send unapproved users.
func (s *AuthService) VerifyCredentials(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, appErrors.ErrCredentialInvalid
	}

	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrCredentialInvalid
		}
		return nil, appErrors.Storage(err, "failed to fetch user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, appErrors.ErrCredentialInvalid
	}

	if !user.IsActive || user.AccountStatus != models.AccountActive {
		s.logger.Info("login refused for inactive account",
			zap.String("user_id", user.ID),
			zap.String("account_status", string(user.AccountStatus)),
		)
		return nil, appErrors.ErrAccountInactive
	}

	return user, nil
}

// User returns the account behind a validated session.
func (s *AuthService) User(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrSessionInvalid
		}
		return nil, appErrors.Storage(err, "failed to fetch user")
	}
	return user, nil
}

// ValidateAdminToken parses an HS256 admin bearer token and checks its role.
func (s *AuthService) ValidateAdminToken(tokenString string) (*models.AdminClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.config.AdminTokenIssuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.AdminTokenIssuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &models.AdminClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AdminTokenSecret), nil
	}, opts...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.AdminClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	switch claims.Role {
	case models.RoleAdmin, models.RoleSuperAdmin:
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin role required")
	}

	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	return claims, nil
}

// IssueAdminToken signs an admin bearer token, used by operator tooling.
func (s *AuthService) IssueAdminToken(userID, email string, role models.AdminRole) (string, time.Time, error) {
	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(s.config.AdminTokenExpiry)
	claims := &models.AdminClaims{
		UserID: userID,
		Role:   role,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.AdminTokenIssuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.AdminTokenSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// generateSessionToken returns 256 bits of randomness, URL-safe encoded.
func generateSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
