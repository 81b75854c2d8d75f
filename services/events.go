package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/yeremiapane/library-seat-app/utils"
)

// Routing keys published on the events exchange.
const (
	EventBookingConfirmed     = "booking.confirmed"
	EventBookingCancelled     = "booking.cancelled"
	EventBookingStatusChanged = "booking.status_changed"
	EventMembershipActivated  = "membership.activated"
	EventMembershipCancelled  = "membership.cancelled"
	EventPaymentFailed        = "payment.failed"
)

type DomainEvent struct {
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

type Publisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
	Close() error
}

// AMQPPublisher publishes JSON messages to a durable topic exchange.
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *AMQPPublisher) PublishJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         b,
	})
}

func (p *AMQPPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// NoopPublisher drops every event. Used when RABBITMQ_URL is unset.
type NoopPublisher struct{}

func (NoopPublisher) PublishJSON(context.Context, string, any) error { return nil }
func (NoopPublisher) Close() error                                   { return nil }

// NewPublisher connects to RabbitMQ or falls back to NoopPublisher.
func NewPublisher(url, exchange string) Publisher {
	if url == "" {
		return NoopPublisher{}
	}
	p, err := NewAMQPPublisher(url, exchange)
	if err != nil {
		utils.ErrorLogger.Printf("Event publisher disabled: %v", err)
		return NoopPublisher{}
	}
	utils.InfoLogger.Printf("Publishing domain events to exchange %s", exchange)
	return p
}

// publishEvent is fire-and-forget: failures are logged only.
func publishEvent(ctx context.Context, p Publisher, key string, data interface{}) {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	evt := DomainEvent{Type: key, OccurredAt: time.Now(), Data: data}
	if err := p.PublishJSON(ctx, key, evt); err != nil {
		utils.ErrorLogger.Printf("Failed to publish %s: %v", key, err)
	}
}
