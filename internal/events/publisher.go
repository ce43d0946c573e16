package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/sequence"
)

// Sequencer hands out per-partition event sequence numbers.
type Sequencer interface {
	Next(ctx context.Context, partitionKey string) (int64, error)
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type Publisher struct {
	ch       channel
	seq      Sequencer
	producer string
	now      func() time.Time
}

func NewPublisher(conn *amqp.Connection, seq Sequencer) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareEventsExchange(ch); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare events exchange: %w", err)
	}
	return newPublisher(ch, seq), nil
}

func newPublisher(ch channel, seq Sequencer) *Publisher {
	return &Publisher{
		ch:       ch,
		seq:      seq,
		producer: producerName,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

func (p *Publisher) OrderCreated(ctx context.Context, o order.Order) error {
	env, err := p.envelope(ctx, EventTypeOrderCreated, orderCreatedSchema, o.ID, orderCreatedPayload(o))
	if err != nil {
		return err
	}
	return p.publish(ctx, OrderCreatedRoutingKey, env)
}

func (p *Publisher) OrderStatusChanged(ctx context.Context, o order.Order, from order.Status) error {
	env, err := p.envelope(ctx, EventTypeOrderStatusChanged, orderStatusChangedSchema, o.ID, orderStatusChangedPayload(o, from))
	if err != nil {
		return err
	}
	return p.publish(ctx, OrderStatusChangedRoutingKey, env)
}

func (p *Publisher) envelope(ctx context.Context, name, schema, orderID string, payload any) (EventEnvelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return EventEnvelope{}, fmt.Errorf("marshal %s payload: %w", name, err)
	}
	key := sequence.PartitionKey(orderID)
	seq, err := p.seq.Next(ctx, key)
	if err != nil {
		return EventEnvelope{}, fmt.Errorf("reserve sequence: %w", err)
	}
	return EventEnvelope{
		EventName:     name,
		EventVersion:  1,
		EventID:       uuid.NewString(),
		CorrelationID: CorrelationID(ctx),
		Producer:      p.producer,
		PartitionKey:  key,
		Sequence:      seq,
		OccurredAt:    p.now(),
		Schema:        schema,
		Payload:       body,
	}, nil
}

func (p *Publisher) publish(ctx context.Context, routingKey string, env EventEnvelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", env.EventName, err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(
		pubCtx,
		EventsExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    env.EventID,
			Timestamp:    env.OccurredAt,
			Body:         body,
		},
	)
}

// Nop drops every event. It stands in when RabbitMQ is not configured.
type Nop struct{}

func (Nop) OrderCreated(context.Context, order.Order) error                     { return nil }
func (Nop) OrderStatusChanged(context.Context, order.Order, order.Status) error { return nil }
