package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sessionguard/internal/fingerprint"
	"github.com/noah-isme/sessionguard/internal/models"
	appErrors "github.com/noah-isme/sessionguard/pkg/errors"
	"github.com/noah-isme/sessionguard/pkg/response"
)

// FingerprintHandler derives fingerprints from submitted signal bundles so
// clients can check their implementation against the server's.
type FingerprintHandler struct {
	deriver   *fingerprint.Deriver
	validator *validator.Validate
}

// NewFingerprintHandler creates a new handler.
func NewFingerprintHandler(deriver *fingerprint.Deriver, validate *validator.Validate) *FingerprintHandler {
	if deriver == nil {
		deriver = fingerprint.NewDeriver(nil)
	}
	if validate == nil {
		validate = validator.New()
	}
	return &FingerprintHandler{deriver: deriver, validator: validate}
}

// Derive godoc
// @Summary Derive fingerprint
// @Description Hash a signal bundle exactly as clients must
// @Tags Fingerprint
// @Accept json
// @Produce json
// @Param payload body models.FingerprintRequest true "Signal bundle"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /fingerprint [post]
func (h *FingerprintHandler) Derive(c *gin.Context) {
	var req models.FingerprintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid signal bundle"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid signal bundle"))
		return
	}

	response.JSON(c, http.StatusOK, models.FingerprintResponse{
		Result:     h.deriver.Derive(req.Signals),
		Device:     fingerprint.Describe(req.Signals.UserAgent),
		Components: len(req.Signals.Components()),
	}, nil)
}
