// Package api implements the v1 JSON endpoints of the diagnostics server.
package api

import (
	"crypto/rand"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/scanline/dsnscan/internal/analysis/processor"
	"github.com/scanline/dsnscan/internal/buildinfo"
	"github.com/scanline/dsnscan/internal/logger"
	"github.com/scanline/dsnscan/internal/observability/metrics"
)

// Controller manages the API routes and handlers
type Controller struct {
	Echo      *echo.Echo
	Group     *echo.Group
	Processor *processor.Processor

	build     buildinfo.BuildInfo
	recorder  metrics.Recorder
	startTime time.Time
	log       logger.Logger
}

// Option is a functional option for configuring the Controller.
type Option func(*Controller)

// WithBuildInfo sets the build metadata reported by the health endpoint.
func WithBuildInfo(info buildinfo.BuildInfo) Option {
	return func(c *Controller) { c.build = info }
}

// WithRecorder records manual entry validations and configuration changes.
func WithRecorder(r metrics.Recorder) Option {
	return func(c *Controller) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithLogger replaces the controller logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// New creates the controller and registers its routes under /api/v1.
func New(e *echo.Echo, proc *processor.Processor, opts ...Option) *Controller {
	c := &Controller{
		Echo:      e,
		Processor: proc,
		build:     buildinfo.NewContext("", "", ""),
		recorder:  metrics.NopRecorder{},
		startTime: time.Now(),
		log:       logger.Global().Module("api"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.initRoutes()
	return c
}

func (c *Controller) initRoutes() {
	c.Group = c.Echo.Group("/api/v1")

	c.Group.GET("/health", c.HealthCheck)

	c.Group.GET("/history/confidence", c.GetConfidenceHistory)
	c.Group.GET("/history/frames", c.GetFrameHistory)
	c.Group.GET("/groups", c.GetGroups)
	c.Group.GET("/result", c.GetLastResult)
	c.Group.GET("/environment", c.GetEnvironment)

	c.Group.POST("/validate", c.ValidateManualEntry)
	c.Group.POST("/frames", c.SubmitFrame)
	c.Group.POST("/sensors", c.IngestSensors)
	c.Group.POST("/session/reset", c.ResetSession)

	c.Group.GET("/config", c.GetConfig)
	c.Group.PUT("/config/sensitivity", c.UpdateSensitivity)
}

// ErrorResponse represents a standardized error response for the API
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"` // Unique identifier for tracking this error
}

// NewErrorResponse creates a new API error response
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

// generateCorrelationID creates a short random identifier for error tracking
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// HandleError logs err and writes an ErrorResponse with the given status code
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	resp := NewErrorResponse(err, message, code)

	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("path", ctx.Path()),
		logger.String("ip", ctx.RealIP()),
		logger.Int("code", code),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	if code >= 500 {
		c.log.Error(message, fields...)
	} else {
		c.log.Warn(message, fields...)
	}

	return ctx.JSON(code, resp)
}
