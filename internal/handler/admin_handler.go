package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sessionguard/internal/middleware"
	"github.com/noah-isme/sessionguard/internal/models"
	"github.com/noah-isme/sessionguard/internal/service"
	appErrors "github.com/noah-isme/sessionguard/pkg/errors"
	"github.com/noah-isme/sessionguard/pkg/response"
)

type adminDeviceLister interface {
	ListDevices(ctx context.Context, userID, currentFingerprint string) (*models.DeviceOverview, error)
}

type adminDeviceActions interface {
	Apply(ctx context.Context, adminID string, req models.AdminDeviceActionRequest) (*models.AdminActionResult, error)
}

type deviceReporter interface {
	DeviceReport(ctx context.Context, userID, format string) (*service.ExportResult, error)
}

// AdminHandler exposes device administration for operators.
type AdminHandler struct {
	devices  adminDeviceLister
	actions  adminDeviceActions
	reporter deviceReporter
}

// NewAdminHandler creates a new handler.
func NewAdminHandler(devices adminDeviceLister, actions adminDeviceActions, reporter deviceReporter) *AdminHandler {
	return &AdminHandler{devices: devices, actions: actions, reporter: reporter}
}

// UserDevices godoc
// @Summary List a user's devices
// @Description Devices, current addresses and recent IP history for one user
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param user_id query string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/user-devices [get]
func (h *AdminHandler) UserDevices(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("user_id"))
	if userID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "user_id is required"))
		return
	}

	overview, err := h.devices.ListDevices(c.Request.Context(), userID, "")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overview, nil)
}

// DeviceAction godoc
// @Summary Apply a device action
// @Description Block or unblock a device, or log a user out of every device
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.AdminDeviceActionRequest true "Action payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/user-devices [post]
func (h *AdminHandler) DeviceAction(c *gin.Context) {
	admin := middleware.AdminFromContext(c)
	if admin == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.AdminDeviceActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid device action payload"))
		return
	}

	result, err := h.actions.Apply(c.Request.Context(), admin.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ExportDevices godoc
// @Summary Export a user's devices
// @Description Download the device list as CSV or PDF
// @Tags Admin
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param user_id query string true "User ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /admin/user-devices/export [get]
func (h *AdminHandler) ExportDevices(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("user_id"))
	if userID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "user_id is required"))
		return
	}

	result, err := h.reporter.DeviceReport(c.Request.Context(), userID, c.DefaultQuery("format", service.ExportFormatCSV))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, result.ContentType, result.Payload)
}
