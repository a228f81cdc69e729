package api

import (
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/tripfetch/tripfetch/internal/api/controllers"
	"github.com/tripfetch/tripfetch/internal/app"
)

func RegisterRoutes(e *echo.Echo, appCtx *app.Context, source controllers.StatusSource, runs app.HistoryStore) {

	// Middleware: Request Logger
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c *echo.Context, v middleware.RequestLoggerValues) error {
			appCtx.Logger.Info("%s %s | %d | %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	statusCtrl := &controllers.StatusController{App: appCtx, Source: source, Runs: runs}

	// Live view of the in-flight run
	e.GET("/api/status", statusCtrl.HandleStatus)

	// Persisted run history
	e.GET("/api/runs", statusCtrl.HandleRuns)
}
