package output

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/multiocr/pkg/observability"
)

// Config selects the artifact sinks. Dir is always used; the other sinks
// are enabled by a non-empty URL or path.
type Config struct {
	Dir string

	BlobURL    string
	BlobPrefix string

	RedisURL    string
	RedisPrefix string
	RedisTTL    time.Duration

	SQLitePath  string
	PostgresURL string

	AMQPURL      string
	AMQPExchange string
}

// OpenWriters builds the configured sinks. If any sink fails to open, the
// ones already opened are closed and the error is returned.
func OpenWriters(ctx context.Context, cfg Config, logger *slog.Logger, metrics observability.Metrics) (*MultiWriter, error) {
	if logger == nil {
		logger = slog.Default()
	}

	writers := []Writer{NewFileWriter(cfg.Dir)}
	fail := func(err error) (*MultiWriter, error) {
		closeErr := NewMultiWriter(logger, metrics, writers...).Close()
		return nil, errors.Join(err, closeErr)
	}

	if cfg.BlobURL != "" {
		w, err := NewBlobWriter(ctx, cfg.BlobURL, cfg.BlobPrefix)
		if err != nil {
			return fail(err)
		}
		writers = append(writers, w)
	}
	if cfg.RedisURL != "" {
		w, err := NewRedisWriter(ctx, cfg.RedisURL, cfg.RedisPrefix, cfg.RedisTTL)
		if err != nil {
			return fail(err)
		}
		writers = append(writers, w)
	}
	if cfg.SQLitePath != "" {
		w, err := OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return fail(err)
		}
		writers = append(writers, w)
	}
	if cfg.PostgresURL != "" {
		w, err := OpenPostgres(ctx, cfg.PostgresURL)
		if err != nil {
			return fail(err)
		}
		writers = append(writers, w)
	}
	if cfg.AMQPURL != "" {
		w, err := NewAMQPWriter(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			return fail(err)
		}
		writers = append(writers, w)
	}

	names := make([]string, len(writers))
	for i, w := range writers {
		names[i] = sinkName(w)
	}
	logger.Info("artifact sinks ready", "sinks", names)

	return NewMultiWriter(logger, metrics, writers...), nil
}
