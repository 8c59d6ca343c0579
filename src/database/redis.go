package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/khabaroff/mockhook/src/logging"
	"github.com/redis/go-redis/v9"
)

// DocumentKey is the redis key holding the document
const DocumentKey = "mockhook:document"

// RedisGateway keeps the document under a single key
type RedisGateway struct {
	client *redis.Client
	key    string
}

// NewRedisGateway connects using a redis:// URL
func NewRedisGateway(ctx context.Context, redisURL string) (*RedisGateway, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	gw := &RedisGateway{client: client, key: DocumentKey}

	empty, err := encodeDocument(NewDocument())
	if err != nil {
		client.Close()
		return nil, err
	}
	if err := client.SetNX(ctx, gw.key, empty, 0).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to seed document: %w", err)
	}

	return gw, nil
}

// Read returns the stored document; a missing or corrupt value yields an empty one
func (r *RedisGateway) Read(ctx context.Context) (*Document, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return NewDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	doc, err := decodeDocument(data)
	if err != nil {
		log := logging.NewLogger("database")
		log.Warn().Err(err).Str("backend", BackendRedis).Msg("document unreadable, using empty document")
		return NewDocument(), nil
	}
	return doc, nil
}

// Write replaces the stored value
func (r *RedisGateway) Write(ctx context.Context, doc *Document) error {
	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}

// Ping checks the connection
func (r *RedisGateway) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the client
func (r *RedisGateway) Close() error {
	return r.client.Close()
}
