package controllers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v5"

	"github.com/tripfetch/tripfetch/internal/app"
	"github.com/tripfetch/tripfetch/internal/engine"
)

// StatusSource exposes the orchestrator's live view without the
// controller importing its internals.
type StatusSource interface {
	RunID() string
	Snapshot() []engine.ItemState
}

type StatusController struct {
	App    *app.Context
	Source StatusSource
	Runs   app.HistoryStore
}

// HandleStatus returns the current run's per-item states.
func (ctrl *StatusController) HandleStatus(c *echo.Context) error {
	return c.JSON(http.StatusOK, StatusResponse{
		RunID: ctrl.Source.RunID(),
		Items: ctrl.Source.Snapshot(),
	})
}

// HandleRuns returns recent run history from the store.
func (ctrl *StatusController) HandleRuns(c *echo.Context) error {
	if ctrl.Runs == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "run history is disabled")
	}

	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = parsed
	}

	runs, err := ctrl.Runs.ListRuns(c.Request().Context(), limit)
	if err != nil {
		ctrl.App.Logger.Error("failed to list runs: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load run history")
	}

	return c.JSON(http.StatusOK, RunsResponse{Runs: runs})
}
