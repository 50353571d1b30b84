package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/okian/stride/internal/domain/announce"
	"github.com/okian/stride/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisChannel is the pub/sub channel events are published on.
const DefaultRedisChannel = "stride:events"

// DialRedis connects to addr and verifies the connection.
func DialRedis(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

// RedisPublisher publishes events as JSON so remote speech or display
// clients on other hosts receive them.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher publishes on channel, or DefaultRedisChannel when empty.
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (*RedisPublisher) Name() string { return "redis" }

// Channel returns the pub/sub channel name.
func (p *RedisPublisher) Channel() string { return p.channel }

// Notify publishes ev.
func (p *RedisPublisher) Notify(ctx context.Context, ev announce.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Kind, err)
	}
	return nil
}

// RedisRelay forwards every message on a channel to a Hub, so websocket
// clients of any instance see events published by all of them.
type RedisRelay struct {
	client  *redis.Client
	channel string
	hub     *Hub
	log     logger.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

// NewRedisRelay creates a relay from channel to hub.
func NewRedisRelay(client *redis.Client, channel string, hub *Hub, l logger.Logger) *RedisRelay {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	if l == nil {
		l = logger.Default()
	}
	return &RedisRelay{client: client, channel: channel, hub: hub, log: l}
}

// Start subscribes and returns once the subscription is confirmed.
func (r *RedisRelay) Start(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	r.mu.Lock()
	r.pubsub = pubsub
	r.done = make(chan struct{})
	r.mu.Unlock()

	go r.loop(ctx, pubsub.Channel())
	r.log.Info(ctx, "relaying events from redis", logger.String("channel", r.channel))
	return nil
}

func (r *RedisRelay) loop(ctx context.Context, msgs <-chan *redis.Message) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			r.hub.Broadcast([]byte(msg.Payload))
		}
	}
}

// Close unsubscribes and waits for the relay loop to exit.
func (r *RedisRelay) Close() error {
	r.mu.Lock()
	pubsub, done := r.pubsub, r.done
	r.pubsub = nil
	r.mu.Unlock()

	if pubsub == nil {
		return nil
	}
	err := pubsub.Close()
	<-done
	return err
}
