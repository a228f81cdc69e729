package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/spf13/cobra"

	"github.com/tripfetch/tripfetch/internal/api"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline with a status API alongside it",
		Long: "Starts the HTTP status API, processes every target archive, then keeps\n" +
			"serving run history until interrupted.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			env, cleanup, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			e := echo.New()
			api.RegisterRoutes(e, env.app, env.orch, env.history)

			server := &http.Server{
				Addr:    ":" + env.app.Config.Port,
				Handler: e,
			}

			serverErr := make(chan error, 1)
			go func() {
				env.app.Logger.Info("status API listening on %s", server.Addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			if _, err := env.orch.ProcessAll(ctx); err != nil {
				env.app.Logger.Error("run failed: %v", err)
			}

			// Keep serving history until the process is interrupted.
			select {
			case err := <-serverErr:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}
}
