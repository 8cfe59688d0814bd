package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"beacon/config"
	deliverycontext "beacon/internal/delivery/context"
	"beacon/internal/domain/constants"
	"beacon/internal/infra/bridge"
	"beacon/internal/realtime"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"google.golang.org/api/idtoken"
)

// TokenValidator checks a Google-signed OIDC token for audience.
type TokenValidator func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// PushHandler receives Pub/Sub push deliveries of the bridge topic. With the google
// provider every request must carry a Google-signed OIDC token; otherwise the route
// sits behind the bridge secret.
type PushHandler struct {
	verifyPushAuth bool
	validateToken  TokenValidator
	dispatcher     *realtime.Dispatcher
	logger         *slog.Logger
}

// PushHandlerParams holds dependencies for the PushHandler
type PushHandlerParams struct {
	fx.In

	Config     *config.Config
	Logger     *slog.Logger
	Dispatcher *realtime.Dispatcher
}

// NewPushHandler creates a new Pub/Sub push handler
func NewPushHandler(params PushHandlerParams) *PushHandler {
	cfg := params.Config.Bridge
	verifyPushAuth := cfg != nil && cfg.Provider == constants.BridgeProviderGoogle

	return &PushHandler{
		verifyPushAuth: verifyPushAuth,
		validateToken:  idtoken.Validate,
		dispatcher:     params.Dispatcher,
		logger:         params.Logger,
	}
}

// VerifiesOIDC reports whether the handler authenticates requests itself.
func (h *PushHandler) VerifiesOIDC() bool {
	return h.verifyPushAuth
}

// HandlePush handles incoming Pub/Sub push messages.
// Malformed messages are acknowledged with 400 so Pub/Sub does not retry them forever.
func (h *PushHandler) HandlePush(c echo.Context) error {
	ctx := c.Request().Context()

	if h.verifyPushAuth {
		if err := h.verifyPubSubToken(c.Request()); err != nil {
			h.logger.Warn("[Push] Invalid Pub/Sub token", slog.Any("error", err))

			return c.NoContent(http.StatusUnauthorized)
		}
	}

	var pushMsg bridge.PubSubPushMessage
	if err := c.Bind(&pushMsg); err != nil {
		h.logger.Error("[Push] Failed to parse push message", slog.Any("error", err))

		return c.NoContent(http.StatusBadRequest)
	}

	req, err := pushMsg.DecodeEmitRequest()
	if err != nil {
		h.logger.Error("[Push] Failed to decode emit request", slog.Any("error", err))

		return c.NoContent(http.StatusBadRequest)
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil || !req.Type.IsKnown() {
		h.logger.Warn("[Push] Dropping invalid emit request",
			slog.String("user_id", req.UserID),
			slog.String("type", string(req.Type)),
		)

		return c.NoContent(http.StatusBadRequest)
	}

	requestID := extractRequestID(ctx, &pushMsg)
	reqLogger := h.logger.With(slog.String("request_id", requestID))
	ctx = deliverycontext.WithRequestID(ctx, requestID)
	ctx = deliverycontext.WithLogger(ctx, reqLogger)

	delivered := h.dispatcher.Deliver(ctx, userID, req.Envelope())

	reqLogger.Debug("[Push] Envelope delivered",
		slog.String("message_id", pushMsg.Message.MessageID),
		slog.String("type", string(req.Type)),
		slog.Int("delivered", delivered),
	)

	return c.NoContent(http.StatusOK)
}

// extractRequestID prefers the message attribute, then the request context, then a new id
func extractRequestID(ctx context.Context, pushMsg *bridge.PubSubPushMessage) string {
	if requestID := pushMsg.RequestID(); requestID != "" {
		return requestID
	}

	if requestID := deliverycontext.GetRequestIDFromContext(ctx); requestID != "" {
		return requestID
	}

	return uuid.New().String()
}

// verifyPubSubToken verifies the JWT token from Google Pub/Sub push requests
// Reference: https://cloud.google.com/pubsub/docs/push#authenticating_standard_push_requests
func (h *PushHandler) verifyPubSubToken(req *http.Request) error {
	authHeader := req.Header.Get("Authorization")
	if authHeader == "" {
		return errors.New("missing authorization header")
	}

	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return errors.New("invalid authorization header format")
	}
	token := strings.TrimPrefix(authHeader, bearerPrefix)

	// The audience is the URL of this endpoint
	scheme := "https"
	if req.TLS == nil {
		scheme = "http"
	}
	audience := fmt.Sprintf("%s://%s%s", scheme, req.Host, req.URL.Path)

	payload, err := h.validateToken(req.Context(), token, audience)
	if err != nil {
		return errors.Wrap(err, "failed to validate token")
	}

	if payload.Issuer != "accounts.google.com" && payload.Issuer != "https://accounts.google.com" {
		return errors.Errorf("invalid issuer: %s", payload.Issuer)
	}

	if emailVerified, ok := payload.Claims["email_verified"].(bool); ok && !emailVerified {
		return errors.New("email not verified")
	}

	return nil
}
