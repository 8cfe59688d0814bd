// Package context carries request-scoped values between the delivery layer and the
// services below it: the request id and a logger already tagged with it.
package context

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"
)

type key int

const (
	requestIDKey key = iota
	loggerKey
)

// HeaderXRequestID is echoed back on every response and used as the envelope meta id.
const HeaderXRequestID = echo.HeaderXRequestID

const echoRequestIDKey = "request_id"

// GetRequestID returns the id stored by the request id middleware, falling back to the
// response header for routes that bypass it.
func GetRequestID(c echo.Context) string {
	if id, ok := c.Get(echoRequestIDKey).(string); ok && id != "" {
		return id
	}

	return c.Response().Header().Get(HeaderXRequestID)
}

func SetRequestID(c echo.Context, requestID string) {
	c.Set(echoRequestIDKey, requestID)
}

// GetRequestIDFromContext returns "" when ctx did not come through the middleware,
// e.g. an inbound WebSocket command or a broker delivery.
func GetRequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)

	return id
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetLoggerOrDefault returns the logger stored by WithLogger, or fallback.
func GetLoggerOrDefault(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok && logger != nil {
		return logger
	}

	return fallback
}

func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}
