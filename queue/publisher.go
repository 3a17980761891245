// Package queue publishes reservation events to RabbitMQ.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-reservation/models"
)

const DefaultQueue = "reservation.events"

// ErrBrokerUnavailable is returned without dialing while a failed connection
// attempt is cooling down.
var ErrBrokerUnavailable = errors.New("message broker unavailable")

// Publisher keeps one AMQP channel open and reopens it after a failure.
// Delivery is best-effort: a failed publish is logged and dropped.
type Publisher struct {
	URL     string
	Queue   string
	Timeout time.Duration
	// Cooldown is how long publishes fail fast after a failed dial.
	Cooldown time.Duration

	log     logrus.FieldLogger
	mu      sync.Mutex
	conn    *amqp.Connection
	ch      *amqp.Channel
	retryAt time.Time
	lastErr error
}

func NewPublisher(url, queue string, log logrus.FieldLogger) *Publisher {
	if queue == "" {
		queue = DefaultQueue
	}
	return &Publisher{URL: url, Queue: queue, Timeout: 2 * time.Second, Cooldown: 5 * time.Second, log: log}
}

// Notify implements services.ChangeNotifier.
func (p *Publisher) Notify(ctx context.Context, ev models.ReservationEvent) {
	if err := p.Publish(ctx, ev); err != nil {
		p.log.WithError(err).WithFields(logrus.Fields{
			"event":          ev.Type,
			"reservation_id": ev.ReservationID,
		}).Warn("publish reservation event failed")
	}
}

func (p *Publisher) Publish(ctx context.Context, ev models.ReservationEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	err = ch.PublishWithContext(ctx,
		"",      // default exchange
		p.Queue, // routing key = queue name
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    ev.OccurredAt,
			Type:         ev.Type,
			Body:         body,
		},
	)
	if err != nil {
		p.reset()
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// channel returns the open channel, dialing when needed. Callers hold p.mu.
func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()
	if time.Now().Before(p.retryAt) {
		return nil, fmt.Errorf("%w: %v", ErrBrokerUnavailable, p.lastErr)
	}

	ch, err := p.dial()
	if err != nil {
		p.retryAt = time.Now().Add(p.Cooldown)
		p.lastErr = err
		return nil, err
	}
	p.retryAt, p.lastErr = time.Time{}, nil
	return ch, nil
}

func (p *Publisher) dial() (*amqp.Channel, error) {
	conn, err := amqp.DialConfig(p.URL, amqp.Config{Dial: amqp.DefaultDial(p.Timeout)})
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(p.Queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", p.Queue, err)
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}
