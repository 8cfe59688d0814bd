package realtime

import (
	"context"
	"log/slog"

	"beacon/config"
	deliverycontext "beacon/internal/delivery/context"
	"beacon/internal/domain/service"
	"beacon/internal/usecase"
	"beacon/pkg/protocol"

	"github.com/google/uuid"
	"go.uber.org/fx"
)

type originKey struct{}

// WithOriginConnection marks ctx as handling a command that arrived on connection id.
func WithOriginConnection(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, originKey{}, id)
}

// OriginConnection returns the connection id set by WithOriginConnection.
func OriginConnection(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(originKey{}).(string)

	return id, ok && id != ""
}

// DispatcherParams holds dependencies for the Dispatcher, injected by Fx.
type DispatcherParams struct {
	fx.In

	Config   *config.Config
	Logger   *slog.Logger
	Registry *Registry
	DeviceUC usecase.DeviceUsecase
}

// Dispatcher hands envelopes from any bridge transport to the registry.
type Dispatcher struct {
	registry    *Registry
	deviceUC    usecase.DeviceUsecase
	offlinePush bool
	logger      *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(params DispatcherParams) *Dispatcher {
	return &Dispatcher{
		registry:    params.Registry,
		deviceUC:    params.DeviceUC,
		offlinePush: params.Config.Realtime.OfflinePush,
		logger:      params.Logger,
	}
}

// Deliver fans env out to userID's connections and returns how many received it.
//
// When ctx carries an origin connection the envelope skips it, since that client already
// applied the change locally; unread_count always reaches every connection.
// A notification nobody received is pushed to the user's devices when offline push is on.
func (d *Dispatcher) Deliver(ctx context.Context, userID uuid.UUID, env protocol.Envelope) int {
	var delivered int
	if origin, ok := OriginConnection(ctx); ok && env.Type != protocol.TypeUnreadCount {
		delivered = d.registry.SendToUserExcept(userID, origin, env)
	} else {
		delivered = d.registry.SendToUser(userID, env)
	}

	if delivered == 0 && env.Type == protocol.TypeNotification && d.offlinePush && d.deviceUC != nil {
		d.pushOffline(ctx, userID, env)
	}

	return delivered
}

func (d *Dispatcher) pushOffline(ctx context.Context, userID uuid.UUID, env protocol.Envelope) {
	logger := deliverycontext.GetLoggerOrDefault(ctx, d.logger)

	var notification protocol.Notification
	if err := env.DecodeData(&notification); err != nil {
		logger.Warn("[Dispatcher] Cannot decode notification for offline push", slog.Any("error", err))

		return
	}

	sent, err := d.deviceUC.PushToUser(ctx, userID, &usecase.PushMessage{
		Title: notification.Title,
		Body:  notification.Message,
		Data: map[string]string{
			"notificationId": notification.ID,
			"type":           notification.Type,
			"category":       notification.Category,
		},
	})
	if err != nil {
		logger.Warn("[Dispatcher] Offline push failed",
			slog.String("user_id", userID.String()),
			slog.Any("error", err),
		)

		return
	}

	logger.Debug("[Dispatcher] Offline push sent",
		slog.String("user_id", userID.String()),
		slog.Int("devices", sent),
	)
}

// LocalEmitter is the in-process NotificationEmitter of the realtime tier:
// mutations applied here reach the registry without a bridge hop.
type LocalEmitter struct {
	dispatcher *Dispatcher
}

// NewLocalEmitter creates a LocalEmitter over dispatcher.
func NewLocalEmitter(dispatcher *Dispatcher) *LocalEmitter {
	return &LocalEmitter{dispatcher: dispatcher}
}

func (e *LocalEmitter) Emit(ctx context.Context, userID uuid.UUID, env protocol.Envelope) error {
	e.dispatcher.Deliver(ctx, userID, env)

	return nil
}

func (e *LocalEmitter) Close() error {
	return nil
}

// ReplicatedEmitterParams holds dependencies for NewReplicatedEmitter, injected by Fx.
type ReplicatedEmitterParams struct {
	fx.In

	Logger *slog.Logger
	Local  *LocalEmitter
	Peers  service.NotificationEmitter `name:"peers" optional:"true"`
}

// NewReplicatedEmitter returns the emitter of the realtime tier's usecases. Without peers
// it is the LocalEmitter; with a broker it also reaches connections held by other replicas.
func NewReplicatedEmitter(params ReplicatedEmitterParams) service.NotificationEmitter {
	if params.Peers == nil {
		return params.Local
	}

	return &replicatedEmitter{local: params.Local, peers: params.Peers, logger: params.Logger}
}

type replicatedEmitter struct {
	local  *LocalEmitter
	peers  service.NotificationEmitter
	logger *slog.Logger
}

// Emit delivers locally, then forwards. A failed forward is logged, not returned.
func (e *replicatedEmitter) Emit(ctx context.Context, userID uuid.UUID, env protocol.Envelope) error {
	_ = e.local.Emit(ctx, userID, env)

	if err := e.peers.Emit(ctx, userID, env); err != nil {
		deliverycontext.GetLoggerOrDefault(ctx, e.logger).Warn("[Dispatcher] Forward to replicas failed",
			slog.String("user_id", userID.String()),
			slog.String("type", string(env.Type)),
			slog.Any("error", err),
		)
	}

	return nil
}

func (e *replicatedEmitter) Close() error {
	return e.peers.Close()
}
