package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sessionguard/internal/middleware"
	"github.com/noah-isme/sessionguard/internal/models"
	appErrors "github.com/noah-isme/sessionguard/pkg/errors"
	"github.com/noah-isme/sessionguard/pkg/response"
)

type deviceQueries interface {
	ListDevices(ctx context.Context, userID, currentFingerprint string) (*models.DeviceOverview, error)
	DeviceCount(ctx context.Context, userID string) (*models.DeviceCount, error)
	IPHistory(ctx context.Context, userID string, limit int) ([]models.IPHistory, error)
}

type sessionRevoker interface {
	LogoutOthers(ctx context.Context, current *models.Session) (*models.RevocationResult, error)
}

// UserHandler exposes self-service device management.
type UserHandler struct {
	devices  deviceQueries
	revoker  sessionRevoker
	resolver requestIPResolver
}

// NewUserHandler creates a new handler.
func NewUserHandler(devices deviceQueries, revoker sessionRevoker, resolver requestIPResolver) *UserHandler {
	return &UserHandler{devices: devices, revoker: revoker, resolver: resolver}
}

// CurrentIP godoc
// @Summary Caller address
// @Description Resolve the caller's public address and report which source produced it
// @Tags User
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /user/current-ip [get]
func (h *UserHandler) CurrentIP(c *gin.Context) {
	result := h.resolver.Resolve(c.Request.Context(), c.ClientIP())
	response.JSON(c, http.StatusOK, result, nil)
}

// Devices godoc
// @Summary List devices
// @Description List the caller's devices with live session state and recent IP history
// @Tags User
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /user/devices [get]
func (h *UserHandler) Devices(c *gin.Context) {
	session := middleware.SessionFromContext(c)
	if session == nil {
		response.Error(c, appErrors.ErrSessionInvalid)
		return
	}

	overview, err := h.devices.ListDevices(c.Request.Context(), session.UserID, session.DeviceFingerprint)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overview, nil)
}

// DeleteDevices godoc
// @Summary Logout other devices
// @Description End every session of the caller except the current one
// @Tags User
// @Produce json
// @Security BearerAuth
// @Param action query string true "Must be logout-others"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /user/devices [delete]
func (h *UserHandler) DeleteDevices(c *gin.Context) {
	session := middleware.SessionFromContext(c)
	if session == nil {
		response.Error(c, appErrors.ErrSessionInvalid)
		return
	}
	if action := c.Query("action"); action != "logout-others" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unsupported action"))
		return
	}

	result, err := h.revoker.LogoutOthers(c.Request.Context(), session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// DeviceCount godoc
// @Summary Active address count
// @Description Count distinct addresses and devices holding active sessions for the caller
// @Tags User
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /user/device-count [get]
func (h *UserHandler) DeviceCount(c *gin.Context) {
	session := middleware.SessionFromContext(c)
	if session == nil {
		response.Error(c, appErrors.ErrSessionInvalid)
		return
	}

	count, err := h.devices.DeviceCount(c.Request.Context(), session.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, count, nil)
}

// IPHistory godoc
// @Summary Login address history
// @Description Most recent addresses the caller logged in from
// @Tags User
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum rows (default 10, max 100)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /user/ip-history [get]
func (h *UserHandler) IPHistory(c *gin.Context) {
	session := middleware.SessionFromContext(c)
	if session == nil {
		response.Error(c, appErrors.ErrSessionInvalid)
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "limit must be between 1 and 100"))
			return
		}
		limit = parsed
	}

	history, err := h.devices.IPHistory(c.Request.Context(), session.UserID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}
