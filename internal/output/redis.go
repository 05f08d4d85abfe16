package output

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces artifact keys.
const DefaultRedisPrefix = "multiocr:"

// RedisWriter caches artifacts under "<prefix><kind>:<base>".
type RedisWriter struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisWriter connects to url and verifies the connection. A zero ttl
// keeps keys forever.
func NewRedisWriter(ctx context.Context, url, prefix string, ttl time.Duration) (*RedisWriter, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisWriterFromClient(client, prefix, ttl), nil
}

// NewRedisWriterFromClient wraps an existing client.
func NewRedisWriterFromClient(client *redis.Client, prefix string, ttl time.Duration) *RedisWriter {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisWriter{client: client, prefix: prefix, ttl: ttl}
}

// Name returns the sink name.
func (w *RedisWriter) Name() string {
	return "redis"
}

// Key returns the redis key for an artifact.
func (w *RedisWriter) Key(sourcePath string, kind Kind) string {
	return fmt.Sprintf("%s%s:%s", w.prefix, kind, BaseName(sourcePath))
}

// Write stores doc.
func (w *RedisWriter) Write(ctx context.Context, sourcePath string, kind Kind, doc any) error {
	data, err := Encode(doc)
	if err != nil {
		return err
	}
	return w.client.Set(ctx, w.Key(sourcePath, kind), data, w.ttl).Err()
}

// Ping checks the connection.
func (w *RedisWriter) Ping(ctx context.Context) error {
	return w.client.Ping(ctx).Err()
}

// Close closes the client.
func (w *RedisWriter) Close() error {
	return w.client.Close()
}
