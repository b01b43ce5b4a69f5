// Package messaging publishes post-commit ledger events to RabbitMQ.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitPublisher sends every event to a durable queue named after its
// routing key, through the default exchange. The connection is opened lazily
// and reopened after a failure.
type RabbitPublisher struct {
	url      string
	mu       sync.Mutex
	conn     *amqp.Connection
	declared map[string]bool
}

// NewRabbitPublisher creates a publisher for url. It does not dial.
func NewRabbitPublisher(url string) *RabbitPublisher {
	return &RabbitPublisher{url: url, declared: map[string]bool{}}
}

// Publish marshals event to JSON and publishes it as a persistent message
func (p *RabbitPublisher) Publish(ctx context.Context, routingKey string, event interface{}) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	if !p.declared[routingKey] {
		if _, err := ch.QueueDeclare(routingKey, true, false, false, false, nil); err != nil {
			p.reset()
			return err
		}
		p.declared[routingKey] = true
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", routingKey, false, false, pub); err != nil {
		p.reset()
		return err
	}
	return nil
}

// Close closes the broker connection
func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	if errors.Is(err, amqp.ErrClosed) {
		return nil
	}
	return err
}

// channel opens a channel, dialing first when needed. Caller holds mu.
func (p *RabbitPublisher) channel() (*amqp.Channel, error) {
	if p.conn == nil || p.conn.IsClosed() {
		conn, err := amqp.Dial(p.url)
		if err != nil {
			log.Printf("⚠️ RabbitMQ dial failed: %v", err)
			return nil, err
		}
		p.conn = conn
		p.declared = map[string]bool{}
		log.Println("✅ RabbitMQ connected")
	}
	ch, err := p.conn.Channel()
	if err != nil {
		p.reset()
		return nil, err
	}
	return ch, nil
}

// reset drops the connection so the next publish redials. Caller holds mu.
func (p *RabbitPublisher) reset() {
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn = nil
}
