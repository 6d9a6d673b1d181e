/*
Package events publishes committed ledger adjustments to Kafka.

PURPOSE:
  Downstream payroll and reporting systems subscribe to the adjustment
  stream instead of polling the ledger. One message is written per
  adjustment, keyed by employee so each employee's events stay ordered
  within a partition.

DELIVERY:
  Best effort. The ledger has already committed when Publish runs; a
  failure is returned to the caller, which logs it.
*/
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/warp/leave-ledger/generic"
)

// KafkaWriter wraps kafka.Writer methods for testing
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// AdjustmentEvent is the wire format of one adjustment.
type AdjustmentEvent struct {
	ID             string            `json:"id"`
	EmployeeID     string            `json:"employee_id"`
	LeaveTypeID    string            `json:"leave_type_id"`
	Type           string            `json:"type"`
	Kind           string            `json:"kind"`
	Amount         decimal.Decimal   `json:"amount"`
	Reason         string            `json:"reason"`
	ActorID        string            `json:"actor_id"`
	RequestID      string            `json:"request_id,omitempty"`
	Override       bool              `json:"override,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

func NewAdjustmentEvent(a generic.Adjustment) AdjustmentEvent {
	return AdjustmentEvent{
		ID:             string(a.ID),
		EmployeeID:     string(a.EmployeeID),
		LeaveTypeID:    string(a.LeaveTypeID),
		Type:           string(a.Type),
		Kind:           string(a.Kind),
		Amount:         a.Amount,
		Reason:         a.Reason,
		ActorID:        a.ActorID,
		RequestID:      string(a.RequestID),
		Override:       a.Override,
		IdempotencyKey: a.IdempotencyKey,
		Metadata:       a.Metadata,
		CreatedAt:      a.CreatedAt,
	}
}

// AdjustmentPublisher implements leave.Publisher on a Kafka topic.
type AdjustmentPublisher struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
}

func NewAdjustmentPublisher(logger *slog.Logger, cfg KafkaConfig) (*AdjustmentPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are not configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka adjustment topic is not configured")
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		WriteTimeout:           cfg.WriteTimeout,
		AllowAutoTopicCreation: true,
	}
	return NewAdjustmentPublisherWithWriter(logger, writer, cfg.Topic), nil
}

func NewAdjustmentPublisherWithWriter(logger *slog.Logger, writer KafkaWriter, topic string) *AdjustmentPublisher {
	return &AdjustmentPublisher{logger: logger, writer: writer, topic: topic}
}

func (p *AdjustmentPublisher) PublishAdjustments(ctx context.Context, adjustments []generic.Adjustment) error {
	if len(adjustments) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(adjustments))
	for _, adj := range adjustments {
		value, err := json.Marshal(NewAdjustmentEvent(adj))
		if err != nil {
			return fmt.Errorf("failed to marshal adjustment %s: %w", adj.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(adj.EmployeeID),
			Value: value,
			Headers: []kafka.Header{
				{Key: "kind", Value: []byte(adj.Kind)},
			},
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.logger.Error("Failed to publish adjustments",
			"topic", p.topic,
			"count", len(msgs),
			"error", err,
		)
		return fmt.Errorf("failed to publish adjustments to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published adjustments", "topic", p.topic, "count", len(msgs))
	return nil
}

func (p *AdjustmentPublisher) Close() error {
	p.logger.Info("Closing Kafka adjustment publisher", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
