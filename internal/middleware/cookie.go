package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// SessionCookie describes the HttpOnly cookie carrying the session token.
type SessionCookie struct {
	Name   string
	Domain string
	Secure bool
}

// Set writes token with an expiry matching the session.
func (s SessionCookie) Set(c *gin.Context, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.name(), token, maxAge, "/", s.Domain, s.Secure, true)
}

// Clear expires the cookie on the client.
func (s SessionCookie) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.name(), "", -1, "/", s.Domain, s.Secure, true)
}

// Token returns the cookie value, if any.
func (s SessionCookie) Token(c *gin.Context) string {
	value, err := c.Cookie(s.name())
	if err != nil {
		return ""
	}
	return value
}

func (s SessionCookie) name() string {
	if s.Name == "" {
		return "session_token"
	}
	return s.Name
}
