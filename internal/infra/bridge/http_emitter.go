package bridge

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	deliverycontext "beacon/internal/delivery/context"
	"beacon/internal/domain/constants"
	"beacon/pkg/protocol"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	PathEmitNotification = "/emit-notification"
	PathEmit             = "/emit"
	PathPush             = "/push"

	maxErrorBodyBytes = 512
)

// httpEmitter calls the realtime server's bridge endpoints directly
type httpEmitter struct {
	baseURL    string
	secret     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPEmitter creates an emitter that POSTs to baseURL
func NewHTTPEmitter(baseURL, secret string, timeout time.Duration, logger *slog.Logger) *httpEmitter {
	return &httpEmitter{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Emit sends notification envelopes to /emit-notification and every other type to /emit
func (e *httpEmitter) Emit(ctx context.Context, userID uuid.UUID, env protocol.Envelope) error {
	path, body, err := e.buildRequest(userID, env)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return errors.WithStack(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.secret != "" {
		req.Header.Set(constants.BridgeSecretHeader, e.secret)
	}
	if requestID := deliverycontext.GetRequestIDFromContext(ctx); requestID != "" {
		req.Header.Set(deliverycontext.HeaderXRequestID, requestID)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "post %s", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

		return errors.Errorf("realtime server returned %d for %s: %s", resp.StatusCode, path, strings.TrimSpace(string(snippet)))
	}

	e.logger.Debug("[HTTPBridge] Envelope emitted",
		slog.String("user_id", userID.String()),
		slog.String("type", string(env.Type)),
	)

	return nil
}

func (e *httpEmitter) buildRequest(userID uuid.UUID, env protocol.Envelope) (string, []byte, error) {
	var (
		path    string
		payload any
	)

	if env.Type == protocol.TypeNotification {
		path = PathEmitNotification
		payload = protocol.EmitNotificationRequest{
			UserID:       userID.String(),
			Notification: env.Data,
		}
	} else {
		path = PathEmit
		payload = protocol.EmitRequest{
			UserID: userID.String(),
			Type:   env.Type,
			Data:   env.Data,
		}
	}

	body, err := sonic.Marshal(payload)
	if err != nil {
		return "", nil, errors.Wrap(err, "marshal bridge request")
	}

	return path, body, nil
}

// Close releases resources (no-op for HTTP client)
func (e *httpEmitter) Close() error {
	e.httpClient.CloseIdleConnections()

	return nil
}
