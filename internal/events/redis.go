package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kilupskalvis/folio/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisChannel is used when no channel is configured.
const DefaultRedisChannel = "folio:content-changed"

// ErrEncodeEvent wraps failures to serialize an event for a sink.
var ErrEncodeEvent = errors.New("encode event")

// redisPublisher is the part of the redis client the sink needs.
type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisSink publishes ContentChanged events as JSON on a redis channel.
type RedisSink struct {
	rdb     redisPublisher
	client  *redis.Client
	channel string
}

// NewRedisSink connects to redis at addr and verifies the connection.
func NewRedisSink(ctx context.Context, addr, channel string) (*RedisSink, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	if channel == "" {
		channel = DefaultRedisChannel
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisSink{rdb: rdb, client: rdb, channel: channel}, nil
}

// Channel returns the redis channel events are published on.
func (s *RedisSink) Channel() string {
	return s.channel
}

func (s *RedisSink) Publish(ctx context.Context, ev models.ContentChanged) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncodeEvent, err)
	}
	return s.rdb.Publish(ctx, s.channel, raw).Err()
}

// Close closes the underlying redis client.
func (s *RedisSink) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

var _ Sink = (*RedisSink)(nil)
