package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// HealthCheck reports build metadata, the session and the configuration version
func (c *Controller) HealthCheck(ctx echo.Context) error {
	uptime := time.Since(c.startTime)
	store := c.Processor.Store()
	settings := store.Load()

	return ctx.JSON(http.StatusOK, map[string]any{
		"status":         "healthy",
		"instance":       settings.Main.Name,
		"version":        c.build.Version(),
		"build_date":     c.build.BuildDate(),
		"system_id":      c.build.SystemID(),
		"session_id":     c.Processor.SessionID(),
		"config_version": store.Version(),
		"uptime":         uptime.String(),
		"uptime_seconds": uptime.Seconds(),
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}
