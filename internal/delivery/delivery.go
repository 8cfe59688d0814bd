package delivery

import (
	"context"
	"log/slog"
	"os"

	"go.uber.org/fx"
)

// Delivery is a long-running server started by the application after the Fx graph is built.
type Delivery interface {
	Serve(ctx context.Context) error
}

type StartParams struct {
	fx.In
	fx.Shutdowner

	Logger     *slog.Logger
	Deliveries []Delivery `group:"deliveries"`
}

// Start serves every delivery in the background. The first one that fails to serve
// shuts the whole application down so the OnStop hooks run.
func Start(ctx context.Context, params StartParams) {
	for _, d := range params.Deliveries {
		go func() {
			if err := d.Serve(ctx); err != nil {
				params.Logger.Error("[Delivery] Serve failed", slog.Any("error", err))

				if shutdownErr := params.Shutdown(); shutdownErr != nil {
					params.Logger.Error("[Delivery] Graceful shutdown failed", slog.Any("error", shutdownErr))
					os.Exit(1)
				}
			}
		}()
	}
}
