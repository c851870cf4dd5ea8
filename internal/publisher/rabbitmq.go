package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"transcript_sync/internal/domain"
)

const routingPrefix = "transcript."

type Config struct {
	URL      string
	Exchange string
	// BindingKey is the topic pattern the queue is bound with, e.g. "transcript.*".
	BindingKey string
	// QueueName is optional; without it only the exchange is declared and
	// consumers bind their own queues.
	QueueName string
}

// RabbitMQ publishes transcript events to a topic exchange and waits for
// the broker to confirm each one.
type RabbitMQ struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *slog.Logger
}

func NewRabbitMQ(cfg Config, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	r := &RabbitMQ{
		conn:     conn,
		channel:  ch,
		exchange: cfg.Exchange,
		logger:   logger.With("exchange", cfg.Exchange),
	}

	if err := r.declare(cfg); err != nil {
		r.Close()
		return nil, err
	}

	if err := ch.Confirm(false); err != nil {
		r.Close()
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}

	r.logger.Info("connected to rabbitmq",
		"queue", cfg.QueueName,
		"binding_key", cfg.BindingKey,
	)

	return r, nil
}

func (r *RabbitMQ) declare(cfg Config) error {
	// durable, not auto-deleted, not internal, wait for server
	if err := r.channel.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}

	if cfg.QueueName == "" {
		return nil
	}

	q, err := r.channel.QueueDeclare(cfg.QueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", cfg.QueueName, err)
	}
	if err := r.channel.QueueBind(q.Name, cfg.BindingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s to %s: %w", q.Name, cfg.BindingKey, err)
	}
	return nil
}

// TranscriptMessage is the JSON body of every published event.
type TranscriptMessage struct {
	Event     domain.TranscriptEvent `json:"event"`
	Timestamp time.Time              `json:"timestamp"`
}

// RoutingKey returns the key an event is published under, e.g. "transcript.synced".
func RoutingKey(event domain.TranscriptEvent) string {
	return routingPrefix + event.Action
}

// Publish sends one event and blocks until the broker acks or nacks it.
func (r *RabbitMQ) Publish(ctx context.Context, event domain.TranscriptEvent) error {
	now := time.Now().UTC()
	body, err := json.Marshal(TranscriptMessage{Event: event, Timestamp: now})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	key := RoutingKey(event)
	confirm, err := r.channel.PublishWithDeferredConfirmWithContext(ctx, r.exchange, key, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    event.Source + ":" + event.TranscriptID,
		Timestamp:    now,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("await confirm for %s: %w", key, err)
	}
	if !acked {
		return fmt.Errorf("broker rejected %s for %s", key, event.TranscriptID)
	}

	r.logger.Debug("published transcript event",
		"routing_key", key,
		"id", event.TranscriptID,
	)
	return nil
}

func (r *RabbitMQ) Close() error {
	var errs []error
	if r.channel != nil {
		if err := r.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if r.conn != nil {
		if err := r.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
