package middleware

import (
	"log/slog"

	"beacon/config"
	"beacon/internal/delivery/validator"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
)

// Install wires what both servers share: panic recovery, request ids before the
// request log, the JSON error envelope and body validation.
func Install(e *echo.Echo, logger *slog.Logger, cfg *config.Config) {
	e.HideBanner = true

	e.Use(echomiddleware.Recover())
	e.Use(NewRequestIDMiddleware(logger).Process)
	e.Use(NewLoggerMiddleware(logger, cfg).Handle)

	e.HTTPErrorHandler = NewErrorMiddleware(logger).HandleHTTPError
	e.Validator = validator.New()
}
