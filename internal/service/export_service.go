package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sessionguard/internal/models"
	appErrors "github.com/noah-isme/sessionguard/pkg/errors"
	"github.com/noah-isme/sessionguard/pkg/export"
)

// Report formats accepted by the device export endpoint.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type deviceOverviewSource interface {
	ListDevices(ctx context.Context, userID, currentFingerprint string) (*models.DeviceOverview, error)
}

// ExportResult is a rendered report ready to stream.
type ExportResult struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders per-user device reports for administrators.
type ExportService struct {
	devices   deviceOverviewSource
	renderers map[string]export.Renderer
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to
// the CSV and PDF exporters.
func NewExportService(devices deviceOverviewSource, logger *zap.Logger, csv, pdf export.Renderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		devices:   devices,
		renderers: map[string]export.Renderer{ExportFormatCSV: csv, ExportFormatPDF: pdf},
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// DeviceReport renders the device list of userID in format.
func (s *ExportService) DeviceReport(ctx context.Context, userID, format string) (*ExportResult, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q", format))
	}

	overview, err := s.devices.ListDevices(ctx, userID, "")
	if err != nil {
		return nil, err
	}

	generated := s.now()
	dataset := export.Dataset{
		Title:       fmt.Sprintf("Devices for user %s", userID),
		GeneratedAt: generated,
		Headers: []string{
			"device_fingerprint", "device_name", "browser", "os", "first_seen",
			"last_seen", "total_logins", "blocked", "active_sessions", "current_ip",
		},
	}
	for _, d := range overview.Devices {
		currentIP := ""
		if d.CurrentIP != nil {
			currentIP = *d.CurrentIP
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"device_fingerprint": d.DeviceFingerprint,
			"device_name":        d.DeviceName,
			"browser":            d.BrowserInfo,
			"os":                 d.OSInfo,
			"first_seen":         d.FirstSeen.UTC().Format(time.RFC3339),
			"last_seen":          d.LastSeen.UTC().Format(time.RFC3339),
			"total_logins":       strconv.Itoa(d.TotalLogins),
			"blocked":            strconv.FormatBool(d.IsBlocked),
			"active_sessions":    strconv.Itoa(d.ActiveSessions),
			"current_ip":         currentIP,
		})
	}

	payload, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}

	s.logger.Info("device report generated",
		zap.String("user_id", userID),
		zap.String("format", format),
		zap.Int("devices", len(overview.Devices)),
	)

	return &ExportResult{
		Filename:    fmt.Sprintf("devices_%s_%s.%s", sanitizeFilename(userID), generated.Format("20060102_150405"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Payload:     payload,
	}, nil
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
