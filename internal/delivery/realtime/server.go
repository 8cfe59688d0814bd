package realtime

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"beacon/config"
	"beacon/internal/delivery"
	"beacon/internal/delivery/middleware"
	"beacon/internal/delivery/realtime/handler"
	"beacon/internal/domain/lifecycle"
	"beacon/internal/realtime"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

type realtimeServer struct {
	cfg      *config.Config
	logger   *slog.Logger
	server   *echo.Echo
	registry *realtime.Registry
}

// ServerParams holds dependencies for the realtime server, injected by Fx.
type ServerParams struct {
	fx.In

	Lc            fx.Lifecycle
	Cfg           *config.Config
	Logger        *slog.Logger
	Registry      *realtime.Registry
	WSHandler     *handler.WSHandler
	BridgeHandler *handler.BridgeHandler
	PushHandler   *handler.PushHandler
	StatsHandler  *handler.StatsHandler
}

// NewServer creates the server holding WebSocket connections and receiving bridge calls.
func NewServer(params ServerParams) (delivery.Delivery, error) {
	e := NewEcho(params)

	srv := &realtimeServer{
		cfg:      params.Cfg,
		logger:   params.Logger,
		server:   e,
		registry: params.Registry,
	}

	params.Lc.Append(fx.Hook{
		OnStop: srv.stop,
	})

	return srv, nil
}

// NewEcho builds the routed echo instance of the realtime server.
func NewEcho(params ServerParams) *echo.Echo {
	e := echo.New()
	// Read and write timeouts would outlive the upgrade on hijacked connections.
	e.Server.ReadHeaderTimeout = params.Cfg.HTTP.Timeouts.ReadHeaderTimeout

	middleware.Install(e, params.Logger, params.Cfg)

	e.GET("/health", params.StatsHandler.Health)
	e.GET("/stats", params.StatsHandler.Stats)

	e.GET(params.Cfg.Realtime.Path, params.WSHandler.Handle)

	var secret string
	if params.Cfg.Bridge != nil {
		secret = params.Cfg.Bridge.SharedSecret
	}
	bridgeGroup := e.Group("", echomiddleware.BodyLimit(params.Cfg.HTTP.MaxRequestBodySize), middleware.BridgeAuth(secret))
	{
		bridgeGroup.POST("/emit-notification", params.BridgeHandler.EmitNotification)
		bridgeGroup.POST("/emit", params.BridgeHandler.Emit)
	}

	// Google push subscriptions cannot send the bridge secret; they present an OIDC token.
	if params.PushHandler.VerifiesOIDC() {
		e.POST("/push", params.PushHandler.HandlePush, echomiddleware.BodyLimit(params.Cfg.HTTP.MaxRequestBodySize))
	} else {
		bridgeGroup.POST("/push", params.PushHandler.HandlePush)
	}

	return e
}

func (s *realtimeServer) Serve(ctx context.Context) error {
	hostPort := net.JoinHostPort("0.0.0.0", strconv.Itoa(s.cfg.Realtime.Port))
	s.logger.Info("Starting realtime server",
		slog.String("host_port", hostPort),
		slog.String("ws_path", s.cfg.Realtime.Path),
	)
	if err := s.server.Start(hostPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.WithStack(err)
	}

	return nil
}

func (s *realtimeServer) stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, lifecycle.DefaultTimeout)
	defer cancel()

	closed := s.registry.CloseAll(websocket.CloseGoingAway, "server shutdown")
	s.logger.Info("Shutting down realtime server", slog.Int("closed_connections", closed))

	return errors.WithStack(s.server.Shutdown(shutdownCtx))
}
