package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sessionguard/internal/iplookup"
	"github.com/noah-isme/sessionguard/internal/middleware"
	"github.com/noah-isme/sessionguard/internal/models"
	appErrors "github.com/noah-isme/sessionguard/pkg/errors"
	"github.com/noah-isme/sessionguard/pkg/response"
)

type sessionIssuer interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
	Logout(ctx context.Context, token string) error
}

type requestIPResolver interface {
	Resolve(ctx context.Context, clientIP string) iplookup.Result
}

// AuthHandler wires HTTP endpoints to the session issuer.
type AuthHandler struct {
	sessions sessionIssuer
	resolver requestIPResolver
	cookie   middleware.SessionCookie
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(sessions sessionIssuer, resolver requestIPResolver, cookie middleware.SessionCookie) *AuthHandler {
	return &AuthHandler{sessions: sessions, resolver: resolver, cookie: cookie}
}

// Login godoc
// @Summary Authenticate user
// @Description Verify Telegram username and password and bind a session to the submitting device
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}
	req.IP = middleware.ResolveClientIP(c, h.resolver)
	req.UserAgent = c.GetHeader("User-Agent")

	res, err := h.sessions.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.cookie.Set(c, res.Token, res.ExpiresAt)
	response.JSON(c, http.StatusOK, res, nil)
}

// Logout godoc
// @Summary Logout current session
// @Description End the session carried by the bearer token or cookie. Repeated calls succeed.
// @Tags Authentication
// @Produce json
// @Success 204 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	token := middleware.RequestToken(c, h.cookie)
	if err := h.sessions.Logout(c.Request.Context(), token); err != nil {
		response.Error(c, err)
		return
	}

	h.cookie.Clear(c)
	response.NoContent(c)
}

// Session godoc
// @Summary Current session
// @Description Return the session admitted for this request
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/session [get]
func (h *AuthHandler) Session(c *gin.Context) {
	session := middleware.SessionFromContext(c)
	if session == nil {
		response.Error(c, appErrors.ErrSessionInvalid)
		return
	}
	response.JSON(c, http.StatusOK, models.NewSessionInfo(session), nil)
}
