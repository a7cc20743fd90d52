package render

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/matzehuels/geoviewer/pkg/layer"
	"github.com/matzehuels/geoviewer/pkg/observability"
)

// Publisher is the subset of a Redis client used by [RedisWidget].
// *redis.Client satisfies it.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

var _ Publisher = (*redis.Client)(nil)

// DefaultChannel is the channel layer documents are published on.
const DefaultChannel = "geoviewer:layers"

// Publish retry defaults.
const (
	DefaultAttempts = 3
	DefaultBackoff  = 100 * time.Millisecond
)

// RedisWidget publishes each layer set as a JSON [Document].
// The latest document is also stored under the channel name so that late
// subscribers can fetch the current state. Network failures are retried
// with exponential backoff.
type RedisWidget struct {
	client   Publisher
	channel  string
	attempts int
	backoff  time.Duration
}

// NewRedisWidget creates a widget publishing on channel. An empty channel
// means DefaultChannel.
func NewRedisWidget(client Publisher, channel string) *RedisWidget {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisWidget{client: client, channel: channel, attempts: DefaultAttempts, backoff: DefaultBackoff}
}

// WithRetry sets how often a failed publish is attempted and the initial
// backoff between attempts.
func (r *RedisWidget) WithRetry(attempts int, backoff time.Duration) *RedisWidget {
	r.attempts = attempts
	r.backoff = backoff
	return r
}

// NewRedisClient connects to the Redis server at addr and checks it responds.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	c := redis.NewClient(&redis.Options{Addr: addr})
	ping := func() error { return c.Ping(ctx).Err() }
	if err := retry(ctx, DefaultAttempts, DefaultBackoff, ping); err != nil {
		c.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return c, nil
}

var _ layer.Widget = (*RedisWidget)(nil)

// Channel returns the publish channel.
func (r *RedisWidget) Channel() string { return r.channel }

// SetLayers implements layer.Widget.
func (r *RedisWidget) SetLayers(ctx context.Context, layers []layer.Drawable) (err error) {
	start := time.Now()
	defer func() {
		observability.Widget().OnPublish(ctx, "redis", len(layers), time.Since(start), err)
	}()

	data, err := json.Marshal(Encode(layers))
	if err != nil {
		return fmt.Errorf("encode layer document: %w", err)
	}
	return retry(ctx, r.attempts, r.backoff, func() error {
		if err := r.client.Set(ctx, r.channel, data, 0).Err(); err != nil {
			return fmt.Errorf("store layer document: %w", err)
		}
		if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
			return fmt.Errorf("publish layer document: %w", err)
		}
		return nil
	})
}
