package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/ponto/internal/domain"
	"github.com/nats-io/nats.go"
)

// natsConn is the part of *nats.Conn the publisher uses.
type natsConn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// Publisher forwards order events to NATS as JSON on
// "<prefix>.<event key>", e.g. ponto.order.payment_updated.
type Publisher struct {
	conn   natsConn
	prefix string
	logger *slog.Logger
}

// NewPublisher wraps an existing connection.
func NewPublisher(conn natsConn, prefix string, logger *slog.Logger) *Publisher {
	if prefix == "" {
		prefix = "ponto"
	}
	return &Publisher{conn: conn, prefix: prefix, logger: logger}
}

// ConnectPublisher dials url and returns a publisher over the connection.
// The client reconnects indefinitely; events published while disconnected
// are buffered by the client.
func ConnectPublisher(url, prefix string, logger *slog.Logger) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("ponto"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return NewPublisher(conn, prefix, logger), nil
}

// Subject returns the subject an event key is published on.
func (p *Publisher) Subject(key string) string {
	return p.prefix + "." + key
}

// Handle publishes ev. It satisfies Handler.
func (p *Publisher) Handle(_ context.Context, ev domain.OrderEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode order event: %w", err)
	}
	if err := p.conn.Publish(p.Subject(ev.Key), data); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Key, err)
	}
	p.logger.Debug("order event published", "subject", p.Subject(ev.Key), "order_number", ev.OrderNumber)
	return nil
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() error {
	return p.conn.Drain()
}
