// Package bridge carries envelopes from the API tier to the realtime tier.
package bridge

import (
	"context"
	"log/slog"

	"beacon/config"
	"beacon/internal/domain/constants"
	"beacon/internal/domain/service"
	"beacon/pkg/protocol"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// noopEmitter is used when no bridge is configured
type noopEmitter struct {
	logger *slog.Logger
}

func (e *noopEmitter) Emit(_ context.Context, userID uuid.UUID, env protocol.Envelope) error {
	e.logger.Debug("[NoopBridge] Emitting disabled, skipping",
		slog.String("user_id", userID.String()),
		slog.String("type", string(env.Type)),
	)

	return nil
}

func (e *noopEmitter) Close() error {
	return nil
}

// EmitterParams holds dependencies for NotificationEmitter, injected by Fx
type EmitterParams struct {
	fx.In

	Lc     fx.Lifecycle
	Ctx    context.Context
	Config *config.Config
	Logger *slog.Logger
}

// NewNotificationEmitter creates a NotificationEmitter based on configuration
func NewNotificationEmitter(params EmitterParams) (service.NotificationEmitter, error) {
	emitter, err := newEmitter(params.Ctx, params.Config.Bridge, params.Logger)
	if err != nil {
		return nil, err
	}

	// Register lifecycle hook to close emitter on shutdown
	params.Lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			params.Logger.Info("[Bridge] Closing emitter")

			return emitter.Close()
		},
	})

	return emitter, nil
}

func newEmitter(ctx context.Context, cfg *config.BridgeConfig, logger *slog.Logger) (service.NotificationEmitter, error) {
	if cfg == nil || cfg.Provider == "" {
		logger.Info("[Bridge] Not configured, using no-op emitter")

		return &noopEmitter{logger: logger}, nil
	}

	switch cfg.Provider {
	case constants.BridgeProviderHTTP:
		if cfg.BaseURL == "" {
			return nil, errors.New("base URL is required for http bridge")
		}
		logger.Info("[Bridge] Using HTTP emitter", slog.String("base_url", cfg.BaseURL))

		return NewHTTPEmitter(cfg.BaseURL, cfg.SharedSecret, cfg.Timeout, logger), nil

	case constants.BridgeProviderGoogle:
		if cfg.Google == nil || cfg.Google.ProjectID == "" || cfg.Google.TopicID == "" {
			return nil, errors.New("project ID and topic ID are required for google bridge")
		}

		publisher, err := NewGooglePubSubPublisher(ctx, cfg.Google.ProjectID, cfg.Google.TopicID, logger)
		if err != nil {
			return nil, err
		}

		return publisher, nil

	case constants.BridgeProviderRabbitMQ:
		if cfg.RabbitMQ == nil || cfg.RabbitMQ.URL == "" {
			return nil, errors.New("url is required for rabbitmq bridge")
		}

		publisher, err := NewAMQPPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, logger)
		if err != nil {
			return nil, err
		}

		return publisher, nil

	default:
		return nil, errors.Errorf("unknown bridge provider: %s", cfg.Provider)
	}
}

// PeerEmitterParams holds dependencies for the replica-to-replica emitter, injected by Fx
type PeerEmitterParams struct {
	fx.In

	Lc      fx.Lifecycle
	Config  *config.Config
	Logger  *slog.Logger
	Replica ReplicaID
}

// NewPeerEmitter returns the publisher a realtime replica forwards socket-originated
// mutations through. Only the rabbitmq fanout reaches every replica, so any other
// provider yields nil.
func NewPeerEmitter(params PeerEmitterParams) (service.NotificationEmitter, error) {
	cfg := params.Config.Bridge
	if cfg == nil || cfg.Provider != constants.BridgeProviderRabbitMQ || cfg.RabbitMQ == nil || cfg.RabbitMQ.URL == "" {
		return nil, nil
	}

	publisher, err := NewAMQPPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, params.Logger)
	if err != nil {
		return nil, err
	}
	publisher.replica = params.Replica

	params.Lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return publisher.Close()
		},
	})

	return publisher, nil
}
