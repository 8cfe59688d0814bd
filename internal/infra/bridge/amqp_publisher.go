package bridge

import (
	"context"
	"log/slog"
	"sync"
	"time"

	deliverycontext "beacon/internal/delivery/context"
	"beacon/pkg/protocol"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	exchangeKindFanout = "fanout"

	headerRequestID = "request_id"
	headerReplicaID = "replica_id"
)

// ReplicaID identifies one realtime process on the fanout exchange.
type ReplicaID string

// NewReplicaID returns a fresh id for this process.
func NewReplicaID() ReplicaID {
	return ReplicaID(uuid.NewString())
}

// amqpPublisher emits envelopes to a fanout exchange so every realtime replica receives them
type amqpPublisher struct {
	url      string
	exchange string
	replica  ReplicaID
	logger   *slog.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewAMQPPublisher connects to RabbitMQ and declares the exchange
func NewAMQPPublisher(url, exchange string, logger *slog.Logger) (*amqpPublisher, error) {
	p := &amqpPublisher{
		url:      url,
		exchange: exchange,
		logger:   logger,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.connectLocked(); err != nil {
		return nil, err
	}

	logger.Info("[RabbitMQ] Publisher connected", slog.String("exchange", exchange))

	return p, nil
}

func (p *amqpPublisher) connectLocked() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return errors.Wrap(err, "failed to connect to RabbitMQ")
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()

		return errors.Wrap(err, "failed to open channel")
	}

	if err := declareExchange(ch, p.exchange); err != nil {
		ch.Close()
		conn.Close()

		return err
	}

	p.conn = conn
	p.channel = ch

	return nil
}

// Emit publishes one message per envelope; a closed channel is reopened once
func (p *amqpPublisher) Emit(ctx context.Context, userID uuid.UUID, env protocol.Envelope) error {
	body, err := sonic.Marshal(protocol.EmitRequest{
		UserID: userID.String(),
		Type:   env.Type,
		Data:   env.Data,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now(),
		Type:         string(env.Type),
		Body:         body,
	}
	msg.Headers = publishHeaders(ctx, p.replica)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil || p.channel.IsClosed() {
		p.logger.Warn("[RabbitMQ] Channel closed, reconnecting publisher")
		p.closeLocked()
		if err := p.connectLocked(); err != nil {
			return err
		}
	}

	if err := p.channel.PublishWithContext(ctx, p.exchange, "", false, false, msg); err != nil {
		return errors.Wrap(err, "publish envelope")
	}

	return nil
}

// publishHeaders carries the request id and, for replica-to-replica traffic, the sender.
func publishHeaders(ctx context.Context, replica ReplicaID) amqp.Table {
	headers := amqp.Table{}
	if requestID := deliverycontext.GetRequestIDFromContext(ctx); requestID != "" {
		headers[headerRequestID] = requestID
	}
	if replica != "" {
		headers[headerReplicaID] = string(replica)
	}
	if len(headers) == 0 {
		return nil
	}

	return headers
}

// Close releases the channel and connection
func (p *amqpPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.closeLocked()
}

func (p *amqpPublisher) closeLocked() error {
	var err error
	if p.channel != nil && !p.channel.IsClosed() {
		err = p.channel.Close()
	}
	if p.conn != nil && !p.conn.IsClosed() {
		if connErr := p.conn.Close(); connErr != nil && err == nil {
			err = connErr
		}
	}
	p.channel = nil
	p.conn = nil

	return errors.WithStack(err)
}

func declareExchange(ch *amqp.Channel, exchange string) error {
	err := ch.ExchangeDeclare(
		exchange,
		exchangeKindFanout,
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	)

	return errors.Wrapf(err, "failed to declare exchange %s", exchange)
}
