package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// GetConfidenceHistory returns recent composite scores, oldest first.
// The optional limit query parameter keeps only the newest entries.
func (c *Controller) GetConfidenceHistory(ctx echo.Context) error {
	limit, err := parseLimit(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid limit parameter", http.StatusBadRequest)
	}
	return ctx.JSON(http.StatusOK, tail(c.Processor.ConfidenceHistory(), limit))
}

// GetFrameHistory returns the stabilizer history, oldest first
func (c *Controller) GetFrameHistory(ctx echo.Context) error {
	limit, err := parseLimit(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid limit parameter", http.StatusBadRequest)
	}
	return ctx.JSON(http.StatusOK, tail(c.Processor.FrameHistory(), limit))
}

// GetGroups returns the current stabilized groups
func (c *Controller) GetGroups(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.Processor.StabilizedGroups())
}

// GetLastResult returns the most recent frame result
func (c *Controller) GetLastResult(ctx echo.Context) error {
	result, ok := c.Processor.LastResult()
	if !ok {
		return c.HandleError(ctx, nil, "No frame has been processed yet", http.StatusNotFound)
	}
	return ctx.JSON(http.StatusOK, result)
}

// GetEnvironment returns the environmental score and its parts
func (c *Controller) GetEnvironment(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.Processor.Environment())
}

// parseLimit reads the limit query parameter; 0 means no limit
func parseLimit(ctx echo.Context) (int, error) {
	raw := ctx.QueryParam("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
	}
	return n, nil
}

func tail[T any](items []T, limit int) []T {
	if items == nil {
		items = []T{}
	}
	if limit > 0 && len(items) > limit {
		return items[len(items)-limit:]
	}
	return items
}
