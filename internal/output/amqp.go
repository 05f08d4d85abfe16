package output

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultExchange is the topic exchange artifacts are published to.
const DefaultExchange = "multiocr.artifacts"

// publisher is the part of *amqp.Channel the writer uses.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPWriter publishes each artifact to a topic exchange with routing key
// "ocr.<kind>". The source base name travels in the "artifact" header.
type AMQPWriter struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  publisher
	exchange string
	logger   *slog.Logger
}

// NewAMQPWriter connects to url and declares the exchange.
func NewAMQPWriter(url, exchange string, logger *slog.Logger) (*AMQPWriter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
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

	logger.Info("artifact publisher connected", "exchange", exchange)
	w := newAMQPWriter(ch, exchange, logger)
	w.conn = conn
	return w, nil
}

func newAMQPWriter(ch publisher, exchange string, logger *slog.Logger) *AMQPWriter {
	return &AMQPWriter{channel: ch, exchange: exchange, logger: logger}
}

// Name returns the sink name.
func (w *AMQPWriter) Name() string {
	return "amqp"
}

// RoutingKey returns the routing key for an artifact kind.
func RoutingKey(kind Kind) string {
	return "ocr." + string(kind)
}

// Write publishes doc.
func (w *AMQPWriter) Write(ctx context.Context, sourcePath string, kind Kind, doc any) error {
	data, err := Encode(doc)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	err = w.channel.PublishWithContext(ctx, w.exchange, RoutingKey(kind), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Headers:      amqp.Table{"artifact": ArtifactName(sourcePath, kind)},
		Body:         data,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", kind, err)
	}
	w.logger.Debug("artifact published", "routing_key", RoutingKey(kind), "size", len(data))
	return nil
}

// Ping reports whether the connection is still open.
func (w *AMQPWriter) Ping(context.Context) error {
	if w.conn != nil && w.conn.IsClosed() {
		return fmt.Errorf("rabbitmq connection closed")
	}
	return nil
}

// Close closes the channel and connection.
func (w *AMQPWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.channel.Close(); err != nil {
		w.logger.Warn("error closing channel", "error", err)
	}
	if w.conn != nil {
		return w.conn.Close()
	}
	return nil
}
