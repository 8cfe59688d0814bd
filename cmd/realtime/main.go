package main

import (
	"context"

	"beacon/config"
	"beacon/internal/delivery"
	realtimedelivery "beacon/internal/delivery/realtime"
	"beacon/internal/delivery/realtime/handler"
	"beacon/internal/infra/auth"
	"beacon/internal/infra/bridge"
	logs "beacon/internal/infra/log"
	"beacon/internal/infra/notification"
	"beacon/internal/infra/persistence/postgres"
	"beacon/internal/realtime"
	"beacon/internal/usecase/impl"
	"beacon/pkg/protocol"

	"github.com/google/uuid"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		injectInfra(),
		injectRepo(),
		injectService(),
		injectRealtime(),
		injectUsecase(),
		injectHandler(),
		injectDelivery(),
		fx.Invoke(
			delivery.Start,
			// Constructed for their lifecycle hooks
			func(*realtime.LivenessMonitor) {},
			func(*bridge.AMQPConsumer) {},
		),
	).Run()
}

func injectInfra() fx.Option {
	return fx.Provide(
		config.New,
		logs.New,
		context.Background,
		postgres.New,
	)
}

func injectRepo() fx.Option {
	return fx.Options(
		fx.Provide(
			postgres.NewUserRepository,
			postgres.NewDeviceRepository,
			postgres.NewNotificationRepository,
		),
	)
}

func injectService() fx.Option {
	return fx.Options(
		fx.Provide(
			auth.NewJWTService,
			notification.NewPushService,
		),
	)
}

func injectRealtime() fx.Option {
	return fx.Options(
		fx.Provide(
			realtime.NewRegistry,
			realtime.NewAuthenticator,
			realtime.NewInboundHandler,
			realtime.NewDispatcher,
			realtime.NewLivenessMonitor,
			realtime.NewLocalEmitter,
			// Mutations made over a socket reach this replica's tabs directly and the
			// other replicas through the fanout exchange when one is configured
			fx.Annotate(
				bridge.NewPeerEmitter,
				fx.ResultTags(`name:"peers"`),
			),
			realtime.NewReplicatedEmitter,
			bridge.NewReplicaID,
			newEnvelopeHandler,
			bridge.NewAMQPConsumer,
		),
	)
}

// newEnvelopeHandler feeds messages consumed from the broker into the dispatcher
func newEnvelopeHandler(dispatcher *realtime.Dispatcher) bridge.EnvelopeHandler {
	return func(ctx context.Context, userID uuid.UUID, env protocol.Envelope) {
		dispatcher.Deliver(ctx, userID, env)
	}
}

func injectUsecase() fx.Option {
	return fx.Options(
		fx.Provide(
			impl.NewDeviceService,
			impl.NewNotificationService,
		),
	)
}

func injectHandler() fx.Option {
	return fx.Options(
		fx.Provide(
			handler.NewWSHandler,
			handler.NewBridgeHandler,
			handler.NewPushHandler,
			handler.NewStatsHandler,
		),
	)
}

func injectDelivery() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				realtimedelivery.NewServer,
				fx.ResultTags(`group:"deliveries"`),
			),
		),
	)
}
