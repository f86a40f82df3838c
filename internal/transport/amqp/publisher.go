// Package amqp publishes match notifications to a RabbitMQ topic exchange.
package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/jobrag/internal/domain"
	"github.com/kailas-cloud/jobrag/internal/domain/notification"
)

// DefaultExchange receives match notifications when none is configured.
const DefaultExchange = "job_matches"

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Config holds the broker settings.
type Config struct {
	URL      string
	Exchange string
}

// Publisher sends one JSON message per match, routed by tenant.
// A single channel is shared; publishes are serialized.
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       channel
	exchange string
	now      func() time.Time
	logger   *zap.Logger
}

// New dials the broker and declares the durable topic exchange.
func New(cfg Config, logger *zap.Logger) (*Publisher, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("amqp url is required")
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	p, err := newPublisher(ch, cfg.Exchange, logger)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, exchange string, logger *zap.Logger) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if err := ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &Publisher{ch: ch, exchange: exchange, now: time.Now, logger: logger}, nil
}

// RoutingKey is the key a tenant's notifications are published under.
func RoutingKey(tenant string) string {
	return "match." + tenant
}

// Notify publishes msg as JSON.
func (p *Publisher) Notify(ctx context.Context, msg notification.Message) error {
	if err := msg.Validate(); err != nil {
		return err //nolint:wrapcheck // domain error
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.Publish(
		p.exchange,
		RoutingKey(msg.Tenant),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    p.now().UTC(),
			Type:         "job.match",
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish to %s: %w: %w", p.exchange, domain.ErrNotifyFailed, err)
	}

	p.logger.Debug("Match notification published",
		zap.String("exchange", p.exchange),
		zap.String("routing_key", RoutingKey(msg.Tenant)),
		zap.Int("job_origin_index", msg.JobOriginIndex),
	)
	return nil
}

// Close closes the channel and the connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.ch.Close()
	if p.conn != nil {
		err = errors.Join(err, p.conn.Close())
	}
	return err //nolint:wrapcheck // close errors are self-describing
}
