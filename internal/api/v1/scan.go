package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/scanline/dsnscan/internal/analysis/processor"
	"github.com/scanline/dsnscan/internal/dsn"
	"github.com/scanline/dsnscan/internal/environment"
	"github.com/scanline/dsnscan/internal/observability/metrics"
)

// ManualEntryRequest is the body of POST /validate
type ManualEntryRequest struct {
	Text string `json:"text"`
}

// SubmitFrameResponse reports whether a posted frame reached the worker
type SubmitFrameResponse struct {
	Accepted  bool   `json:"accepted"`
	SessionID string `json:"session_id"`
}

// ValidateManualEntry validates a typed serial. An invalid serial is a
// successful request with valid=false and a reason.
func (c *Controller) ValidateManualEntry(ctx echo.Context) error {
	var req ManualEntryRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	res := dsn.ValidateManualEntry(req.Text, c.Processor.Settings().OCR.MinTextLength)
	status := metrics.StatusSuccess
	if !res.Valid {
		status = metrics.StatusError
	}
	c.recorder.RecordOperation(metrics.OpManualEntry, status)

	return ctx.JSON(http.StatusOK, res)
}

// SubmitFrame hands a recognition frame to the analysis worker. Frames the
// throttle or a busy worker drops are answered with 429.
func (c *Controller) SubmitFrame(ctx echo.Context) error {
	var frame processor.Frame
	if err := ctx.Bind(&frame); err != nil {
		return c.HandleError(ctx, err, "Invalid frame", http.StatusBadRequest)
	}
	if frame.Expected != dsn.ComponentUnknown && !frame.Expected.Known() {
		return c.HandleError(ctx, nil, "Unknown expected component type "+string(frame.Expected), http.StatusBadRequest)
	}

	resp := SubmitFrameResponse{
		Accepted:  c.Processor.Submit(frame),
		SessionID: c.Processor.SessionID(),
	}
	if !resp.Accepted {
		return ctx.JSON(http.StatusTooManyRequests, resp)
	}
	return ctx.JSON(http.StatusAccepted, resp)
}

// IngestSensors records a light and/or accelerometer sample
func (c *Controller) IngestSensors(ctx echo.Context) error {
	var sample environment.Sample
	if err := ctx.Bind(&sample); err != nil {
		return c.HandleError(ctx, err, "Invalid sensor sample", http.StatusBadRequest)
	}
	if sample.Lux == nil && sample.Acceleration == nil {
		return c.HandleError(ctx, nil, "Sample carries neither lux nor acceleration", http.StatusBadRequest)
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}

	c.Processor.IngestSensors(sample)
	return ctx.JSON(http.StatusOK, c.Processor.Environment())
}

// ResetSession clears the scan state and starts a new session
func (c *Controller) ResetSession(ctx echo.Context) error {
	id := c.Processor.Reset()
	return ctx.JSON(http.StatusOK, map[string]string{"session_id": id})
}
