package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"beacon/config"
	"beacon/internal/delivery"
	"beacon/internal/delivery/api/router"
	"beacon/internal/delivery/middleware"
	"beacon/internal/domain/lifecycle"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"golang.org/x/net/http2"
)

// apiServer serves the notification REST API over h2c.
type apiServer struct {
	hostPort    string
	idleTimeout time.Duration
	logger      *slog.Logger
	echo        *echo.Echo
}

// ServerParams holds dependencies for HTTP server, injected by Fx.
type ServerParams struct {
	fx.In

	Lc           fx.Lifecycle
	Cfg          *config.Config
	Logger       *slog.Logger
	RouterParams router.RouterParams
}

// NewServer creates the REST API server. It speaks h2c so clients may multiplex requests.
func NewServer(params ServerParams) (delivery.Delivery, error) {
	srv := &apiServer{
		hostPort:    net.JoinHostPort("0.0.0.0", strconv.Itoa(params.Cfg.HTTP.Port)),
		idleTimeout: params.Cfg.HTTP.Timeouts.IdleTimeout,
		logger:      params.Logger,
		echo:        NewEcho(params),
	}

	params.Lc.Append(fx.Hook{
		OnStop: srv.stop,
	})

	return srv, nil
}

// NewEcho builds the routed echo instance of the API.
func NewEcho(params ServerParams) *echo.Echo {
	e := echo.New()
	timeouts := params.Cfg.HTTP.Timeouts
	e.Server.ReadTimeout = timeouts.ReadTimeout
	e.Server.ReadHeaderTimeout = timeouts.ReadHeaderTimeout
	e.Server.WriteTimeout = timeouts.WriteTimeout
	e.Server.IdleTimeout = timeouts.IdleTimeout

	middleware.Install(e, params.Logger, params.Cfg)

	// Browser inboxes call from another origin and correlate failures by request id.
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:  corsOrigins(params.Cfg.HTTP.CORSOrigins),
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders:  []string{echo.HeaderAuthorization, echo.HeaderContentType, echo.HeaderXRequestID},
		ExposeHeaders: []string{echo.HeaderXRequestID},
	}))
	e.Use(echomiddleware.BodyLimit(params.Cfg.HTTP.MaxRequestBodySize))

	router.NewRouter(params.RouterParams).RegisterRoutes(e)

	return e
}

func corsOrigins(configured []string) []string {
	if len(configured) == 0 {
		return []string{"*"}
	}

	return configured
}

func (s *apiServer) Serve(ctx context.Context) error {
	s.logger.Info("[API] Listening", slog.String("host_port", s.hostPort))

	h2 := &http2.Server{IdleTimeout: s.idleTimeout}
	if err := s.echo.StartH2CServer(s.hostPort, h2); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.WithStack(err)
	}

	return nil
}

func (s *apiServer) stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, lifecycle.DefaultTimeout)
	defer cancel()

	s.logger.Info("[API] Shutting down")

	return errors.WithStack(s.echo.Shutdown(shutdownCtx))
}
