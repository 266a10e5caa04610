package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"studyspace/pkg/models"
)

// Consumer reads audit events from a durable queue bound to the exchange.
type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
}

func NewConsumer(url, exchange, queueName string) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, ExchangeKind, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq exchange declare: %w", err)
	}

	q, err := ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	if err := ch.QueueBind(q.Name, "audit.#", exchange, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq queue bind: %w", err)
	}

	return &Consumer{conn: conn, channel: ch, queue: q.Name}, nil
}

func (c *Consumer) Consume() (<-chan amqp.Delivery, error) {
	msgs, err := c.channel.Consume(
		c.queue,
		"",
		false, // acked after the record is stored
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq consume: %w", err)
	}
	return msgs, nil
}

func (c *Consumer) Close() {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}

// Recorder stores delivered events as AuditRecord rows. Redelivered events
// overwrite the same row.
type Recorder struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRecorder(db *gorm.DB, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{db: db, logger: logger.With("component", "audit_recorder")}
}

// Run handles deliveries until msgs is closed or ctx is done.
func (r *Recorder) Run(ctx context.Context, msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				r.logger.Info("delivery channel closed, stopping recorder")
				return
			}
			r.Handle(ctx, msg)
		}
	}
}

func (r *Recorder) Handle(ctx context.Context, msg amqp.Delivery) {
	var ev Event
	if err := json.Unmarshal(msg.Body, &ev); err != nil || ev.ID == "" {
		r.logger.WarnContext(ctx, "discarding malformed audit message", "error", err, "message_id", msg.MessageId)
		_ = msg.Nack(false, false)
		return
	}

	if err := r.Store(ctx, ev); err != nil {
		r.logger.ErrorContext(ctx, "failed to store audit event", "event_id", ev.ID, "error", err)
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}

func (r *Recorder) Store(ctx context.Context, ev Event) error {
	detail := ""
	if len(ev.Detail) > 0 {
		b, err := json.Marshal(ev.Detail)
		if err != nil {
			return fmt.Errorf("marshal detail: %w", err)
		}
		detail = string(b)
	}
	rec := models.AuditRecord{
		ID:             ev.ID,
		Type:           ev.Type,
		OccurredAt:     ev.OccurredAt.UTC(),
		LibraryID:      ev.LibraryID,
		BranchID:       ev.BranchID,
		SubscriptionID: ev.SubscriptionID,
		ResourceKind:   ev.ResourceKind,
		ResourceID:     ev.ResourceID,
		Actor:          ev.Actor,
		Detail:         detail,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"type", "occurred_at", "library_id", "branch_id", "subscription_id", "resource_kind", "resource_id", "actor", "detail"}),
	}).Create(&rec).Error
}
