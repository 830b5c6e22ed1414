package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/siteadmin/internal/auth/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the part of *amqp.Channel the publisher uses.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher mirrors audit entries to an AMQP exchange as JSON messages.
type AMQPPublisher struct {
	conn       *amqp.Connection
	ch         Channel
	exchange   string
	routingKey string
}

// Message is the JSON body published for each entry.
type Message struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Action    string            `json:"action"`
	ActorID   string            `json:"actor_id"`
	Details   map[string]string `json:"details,omitempty"`
}

// DialAMQP connects to url and declares a durable topic exchange.
func DialAMQP(url, exchange, routingKey string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp declare exchange %q: %w", exchange, err)
	}

	p := NewAMQPPublisher(ch, exchange, routingKey)
	p.conn = conn
	return p, nil
}

// NewAMQPPublisher publishes over an already open channel.
func NewAMQPPublisher(ch Channel, exchange, routingKey string) *AMQPPublisher {
	return &AMQPPublisher{ch: ch, exchange: exchange, routingKey: routingKey}
}

func (p *AMQPPublisher) Write(ctx context.Context, e domain.AuditEntry) error {
	body, err := json.Marshal(Message{
		ID:        e.ID,
		Timestamp: e.Timestamp,
		Action:    e.Action,
		ActorID:   e.ActorID,
		Details:   e.Details,
	})
	if err != nil {
		return err
	}

	return p.ch.PublishWithContext(ctx,
		p.exchange,
		p.routingKey,
		false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    e.ID,
			Type:         e.Action,
			Timestamp:    e.Timestamp,
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

func (p *AMQPPublisher) Close() error {
	err := p.ch.Close()
	if p.conn != nil {
		err = errors.Join(err, p.conn.Close())
	}
	return err
}
