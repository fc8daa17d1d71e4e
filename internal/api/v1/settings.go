package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/scanline/dsnscan/internal/conf"
	"github.com/scanline/dsnscan/internal/logger"
	"github.com/scanline/dsnscan/internal/observability/metrics"
)

// SensitivityRequest is the body of PUT /config/sensitivity
type SensitivityRequest struct {
	Mode string `json:"mode"`
}

// ConfigResponse wraps a configuration snapshot with its version
type ConfigResponse struct {
	Version  uint64         `json:"version"`
	Settings *conf.Settings `json:"settings"`
	Notes    []string       `json:"notes,omitempty"`
}

// GetConfig returns the active configuration with secrets redacted
func (c *Controller) GetConfig(ctx echo.Context) error {
	store := c.Processor.Store()
	return ctx.JSON(http.StatusOK, ConfigResponse{
		Version:  store.Version(),
		Settings: store.Load().Redacted(),
	})
}

// UpdateSensitivity swaps in a configuration with a new sensitivity mode.
// The change applies from the next analysis pass.
func (c *Controller) UpdateSensitivity(ctx echo.Context) error {
	var req SensitivityRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	mode, ok := conf.ParseSensitivityMode(req.Mode)
	if !ok {
		c.recorder.RecordOperation(metrics.OpConfigReload, metrics.StatusError)
		return c.HandleError(ctx, nil, "Unknown sensitivity mode "+req.Mode, http.StatusBadRequest)
	}

	store := c.Processor.Store()
	next, notes := store.Update(func(s *conf.Settings) {
		s.OCR.SensitivityMode = mode
	})
	c.recorder.RecordOperation(metrics.OpConfigReload, metrics.StatusSuccess)
	c.log.Info("sensitivity mode changed",
		logger.String("mode", string(mode)),
		logger.String("ip", ctx.RealIP()))

	return ctx.JSON(http.StatusOK, ConfigResponse{
		Version:  store.Version(),
		Settings: next.Redacted(),
		Notes:    notes,
	})
}
