package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/nastyazhadan/spot-order-trigger/orderService/internal/domain/models"
	"github.com/nastyazhadan/spot-order-trigger/shared/config"
	zapLogger "github.com/nastyazhadan/spot-order-trigger/shared/interceptors/logger/zap"
)

const (
	sinkName     = "kafka"
	sendTimeout  = 3 * time.Second
	sendAttempts = 3
)

type FailureRecorder interface {
	RecordSinkFailure(sink string)
}

// OrderEvent is the payload published for every committed change. From is
// empty for a freshly created order.
type OrderEvent struct {
	OrderID       string    `json:"order_id"`
	Owner         string    `json:"owner"`
	Kind          string    `json:"kind"`
	From          string    `json:"from,omitempty"`
	To            string    `json:"to"`
	Version       uint64    `json:"version"`
	At            time.Time `json:"at"`
	FailureReason string    `json:"failure_reason,omitempty"`
	SwapReference string    `json:"swap_reference,omitempty"`
}

func NewOrderEvent(order models.Order, from models.Status) OrderEvent {
	event := OrderEvent{
		OrderID:       order.ID.String(),
		Owner:         order.Owner,
		Kind:          order.Kind.String(),
		To:            order.Status.String(),
		Version:       order.Version,
		At:            order.UpdatedAt,
		FailureReason: order.FailureReason,
		SwapReference: order.SwapReference,
	}
	if from != models.StatusUnspecified {
		event.From = from.String()
	}
	return event
}

type EventPublisher struct {
	producer sarama.SyncProducer
	topic    string
	failures FailureRecorder
}

func NewEventPublisher(producer sarama.SyncProducer, topic string, failures FailureRecorder) *EventPublisher {
	return &EventPublisher{
		producer: producer,
		topic:    topic,
		failures: failures,
	}
}

// NewSyncProducer builds a producer that waits for all in-sync replicas and
// returns successes, which SyncProducer requires.
func NewSyncProducer(cfg config.KafkaConfig) (sarama.SyncProducer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.ClientID = "order-trigger"
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Retry.Max = sendAttempts
	saramaConfig.Producer.Timeout = sendTimeout
	saramaConfig.Producer.Idempotent = false
	saramaConfig.Net.DialTimeout = sendTimeout

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("sarama.NewSyncProducer: %w", err)
	}

	return producer, nil
}

func (p *EventPublisher) OrderInserted(ctx context.Context, order models.Order) {
	p.publish(ctx, NewOrderEvent(order, models.StatusUnspecified))
}

func (p *EventPublisher) OrderTransitioned(ctx context.Context, order models.Order, from models.Status) {
	p.publish(ctx, NewOrderEvent(order, from))
}

func (p *EventPublisher) publish(ctx context.Context, event OrderEvent) {
	if err := p.Publish(event); err != nil {
		if p.failures != nil {
			p.failures.RecordSinkFailure(sinkName)
		}
		zapLogger.Warn(ctx, "order event publish failed",
			zap.String("order_id", event.OrderID),
			zap.String("to", event.To),
			zap.Error(err),
		)
	}
}

// Publish sends one event keyed by order id, which keeps every event of an
// order on the same partition.
func (p *EventPublisher) Publish(event OrderEvent) error {
	const op = "kafka.EventPublisher.Publish"

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%s: marshal: %w", op, err)
	}

	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.OrderID),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event-version"), Value: []byte(fmt.Sprintf("%d", event.Version))},
		},
	})
	if err != nil {
		return fmt.Errorf("%s: send: %w", op, err)
	}

	return nil
}

func (p *EventPublisher) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("kafka.EventPublisher.Close: %w", err)
	}
	return nil
}
