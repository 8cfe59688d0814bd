package bridge

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"beacon/config"
	deliverycontext "beacon/internal/delivery/context"
	"beacon/internal/domain/constants"
	"beacon/internal/domain/lifecycle"
	"beacon/pkg/protocol"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/fx"
)

const (
	consumerReconnectDelay    = time.Second
	consumerMaxReconnectDelay = 30 * time.Second
	consumerPrefetch          = 32
)

// EnvelopeHandler delivers a decoded bridge message to local connections
type EnvelopeHandler func(ctx context.Context, userID uuid.UUID, env protocol.Envelope)

// AMQPConsumer binds an exclusive queue to the bridge exchange and hands every message to the handler
type AMQPConsumer struct {
	url      string
	exchange string
	replica  ReplicaID
	handler  EnvelopeHandler
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ConsumerParams holds dependencies for the AMQPConsumer, injected by Fx
type ConsumerParams struct {
	fx.In

	Lc      fx.Lifecycle
	Config  *config.Config
	Logger  *slog.Logger
	Handler EnvelopeHandler
	Replica ReplicaID
}

// NewAMQPConsumer returns nil when the rabbitmq provider is not configured
func NewAMQPConsumer(params ConsumerParams) *AMQPConsumer {
	cfg := params.Config.Bridge
	if cfg == nil || cfg.Provider != constants.BridgeProviderRabbitMQ || cfg.RabbitMQ == nil || cfg.RabbitMQ.URL == "" {
		return nil
	}

	consumer := &AMQPConsumer{
		url:      cfg.RabbitMQ.URL,
		exchange: cfg.RabbitMQ.Exchange,
		replica:  params.Replica,
		handler:  params.Handler,
		logger:   params.Logger,
	}

	params.Lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			consumer.Start()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			return consumer.Stop(ctx)
		},
	})

	return consumer
}

// Start runs the consume loop in the background until Stop
func (c *AMQPConsumer) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(ctx)
	}()
}

// Stop cancels the consume loop and waits for it to exit
func (c *AMQPConsumer) Stop(ctx context.Context) error {
	if c.cancel == nil {
		return nil
	}
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	ctx, cancel := context.WithTimeout(ctx, lifecycle.DefaultTimeout)
	defer cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "amqp consumer did not stop")
	}
}

func (c *AMQPConsumer) run(ctx context.Context) {
	var delay time.Duration

	for {
		started, err := c.consume(ctx)
		if ctx.Err() != nil {
			return
		}

		delay = retryDelay(delay, started)
		c.logger.Warn("[RabbitMQ] Consumer disconnected, retrying",
			slog.Any("error", err),
			slog.Duration("delay", delay),
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// retryDelay returns the wait before the next attempt. It doubles after every failed
// attempt and starts over once a session reached the consuming stage.
func retryDelay(prev time.Duration, started bool) time.Duration {
	if started || prev <= 0 {
		return consumerReconnectDelay
	}

	return min(prev*2, consumerMaxReconnectDelay)
}

// consume reports whether it got as far as consuming before the session ended.
func (c *AMQPConsumer) consume(ctx context.Context) (bool, error) {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return false, errors.Wrap(err, "failed to connect to RabbitMQ")
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return false, errors.Wrap(err, "failed to open channel")
	}
	defer ch.Close()

	if err := declareExchange(ch, c.exchange); err != nil {
		return false, err
	}

	// Every replica owns a private queue so a fanout reaches all of them.
	queue, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return false, errors.Wrap(err, "failed to declare queue")
	}
	if err := ch.QueueBind(queue.Name, "", c.exchange, false, nil); err != nil {
		return false, errors.Wrap(err, "failed to bind queue")
	}
	if err := ch.Qos(consumerPrefetch, 0, false); err != nil {
		return false, errors.Wrap(err, "failed to set qos")
	}

	deliveries, err := ch.Consume(queue.Name, "", false, true, false, false, nil)
	if err != nil {
		return false, errors.Wrap(err, "failed to consume")
	}

	c.logger.Info("[RabbitMQ] Consumer ready",
		slog.String("exchange", c.exchange),
		slog.String("queue", queue.Name),
	)

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))

	for {
		select {
		case <-ctx.Done():
			return true, nil
		case amqpErr := <-closed:
			return true, errors.Errorf("connection closed: %v", amqpErr)
		case delivery, ok := <-deliveries:
			if !ok {
				return true, errors.New("delivery channel closed")
			}
			c.handleDelivery(ctx, delivery)
		}
	}
}

func (c *AMQPConsumer) handleDelivery(ctx context.Context, delivery amqp.Delivery) {
	// This replica delivered its own mutations before forwarding them.
	if sender, ok := delivery.Headers[headerReplicaID].(string); ok && c.replica != "" && sender == string(c.replica) {
		_ = delivery.Ack(false)

		return
	}

	var req protocol.EmitRequest
	if err := sonic.Unmarshal(delivery.Body, &req); err != nil {
		c.logger.Warn("[RabbitMQ] Dropping malformed message", slog.Any("error", err))
		_ = delivery.Reject(false)

		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil || req.Type == "" {
		c.logger.Warn("[RabbitMQ] Dropping message with invalid target",
			slog.String("user_id", req.UserID),
			slog.String("type", string(req.Type)),
		)
		_ = delivery.Reject(false)

		return
	}

	if requestID, ok := delivery.Headers[headerRequestID].(string); ok && requestID != "" {
		ctx = deliverycontext.WithRequestID(ctx, requestID)
	}

	c.handler(ctx, userID, req.Envelope())

	if err := delivery.Ack(false); err != nil {
		c.logger.Warn("[RabbitMQ] Failed to ack message", slog.Any("error", err))
	}
}
