package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sessionguard/internal/models"
	appErrors "github.com/noah-isme/sessionguard/pkg/errors"
	"github.com/noah-isme/sessionguard/pkg/logger"
	"github.com/noah-isme/sessionguard/pkg/response"
)

// ContextAdminKey is the gin context key storing admin token claims.
const ContextAdminKey = "currentAdmin"

type adminTokenValidator interface {
	ValidateAdminToken(token string) (*models.AdminClaims, error)
}

// AdminJWT protects admin routes by requiring a valid admin bearer token.
// Every attempt is logged with the caller address.
func AdminJWT(validator adminTokenValidator, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.FromContext(c, log).With(
			zap.String("ip", c.ClientIP()),
			zap.String("path", c.Request.URL.Path),
		)

		token, ok := bearerToken(c)
		if !ok {
			reqLog.Warn("admin access without bearer token")
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}

		claims, err := validator.ValidateAdminToken(token)
		if err != nil {
			reqLog.Warn("admin access rejected", zap.Error(err))
			response.Abort(c, err)
			return
		}

		reqLog.Info("admin access", zap.String("admin_id", claims.UserID), zap.String("role", string(claims.Role)))
		c.Set(ContextAdminKey, claims)
		c.Next()
	}
}

// AdminFromContext returns the claims set by AdminJWT.
func AdminFromContext(c *gin.Context) *models.AdminClaims {
	value, exists := c.Get(ContextAdminKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.AdminClaims)
	if !ok {
		return nil
	}
	return claims
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
