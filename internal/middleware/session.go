package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sessionguard/internal/iplookup"
	"github.com/noah-isme/sessionguard/internal/models"
	appErrors "github.com/noah-isme/sessionguard/pkg/errors"
	"github.com/noah-isme/sessionguard/pkg/logger"
	"github.com/noah-isme/sessionguard/pkg/response"
)

// Context keys set by the session gate.
const (
	ContextSessionKey  = "currentSession"
	ContextClientIPKey = "clientIP"
)

type sessionValidator interface {
	Validate(ctx context.Context, token, currentIP string) (*models.Session, error)
}

type requestIPResolver interface {
	Resolve(ctx context.Context, clientIP string) iplookup.Result
}

// Session admits requests carrying a valid session token, taken from the
// Authorization bearer header or the session cookie. A rejected token also
// clears the cookie so the browser drops it.
func Session(validator sessionValidator, resolver requestIPResolver, cookie SessionCookie, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := RequestToken(c, cookie)
		if token == "" {
			response.Abort(c, appErrors.ErrSessionInvalid)
			return
		}

		ip := ResolveClientIP(c, resolver)
		session, err := validator.Validate(c.Request.Context(), token, ip)
		if err != nil {
			if appErrors.IsForcedLogout(err) {
				cookie.Clear(c)
			}
			logger.FromContext(c, log).Info("session rejected",
				zap.String("code", appErrors.FromError(err).Code),
				zap.String("ip", ip),
			)
			response.Abort(c, err)
			return
		}

		c.Set(ContextSessionKey, session)
		c.Next()
	}
}

// RequestToken returns the bearer token, falling back to the session cookie.
func RequestToken(c *gin.Context, cookie SessionCookie) string {
	if token, ok := bearerToken(c); ok {
		return token
	}
	return cookie.Token(c)
}

// ResolveClientIP resolves and caches the caller address for this request.
// Forwarding headers count only when the peer is one of the engine's trusted
// proxies.
func ResolveClientIP(c *gin.Context, resolver requestIPResolver) string {
	if cached, ok := c.Get(ContextClientIPKey); ok {
		if ip, ok := cached.(string); ok {
			return ip
		}
	}
	ip := iplookup.Unknown
	if resolver != nil {
		ip = resolver.Resolve(c.Request.Context(), c.ClientIP()).IP
	}
	c.Set(ContextClientIPKey, ip)
	return ip
}

// SessionFromContext returns the session admitted by Session.
func SessionFromContext(c *gin.Context) *models.Session {
	value, exists := c.Get(ContextSessionKey)
	if !exists {
		return nil
	}
	session, ok := value.(*models.Session)
	if !ok {
		return nil
	}
	return session
}
