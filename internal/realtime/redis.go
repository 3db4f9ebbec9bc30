package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const channelPrefix = "leitstelle:changes:"

// ChannelFor is the Redis pub/sub channel carrying a user's changes.
func ChannelFor(userID uuid.UUID) string {
	return channelPrefix + userID.String()
}

// RedisBroker shares changes between API replicas through Redis pub/sub.
type RedisBroker struct {
	client *redis.Client
	log    zerolog.Logger
}

var _ Broker = (*RedisBroker)(nil)

// NewRedisClient connects and pings Redis.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: 10,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return rdb, nil
}

// NewRedisBroker wraps a connected client.
func NewRedisBroker(client *redis.Client, log zerolog.Logger) *RedisBroker {
	return &RedisBroker{client: client, log: log.With().Str("component", "realtime").Logger()}
}

func (b *RedisBroker) Publish(ctx context.Context, c Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	if err := b.client.Publish(ctx, ChannelFor(c.UserID), payload).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, userID uuid.UUID) (<-chan Change, func(), error) {
	ps := b.client.Subscribe(ctx, ChannelFor(userID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", ChannelFor(userID), err)
	}

	out := make(chan Change, subscriberBuffer)
	done := make(chan struct{})
	go func() {
		defer close(out)
		msgs := ps.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var c Change
				if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
					b.log.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed change")
					continue
				}
				select {
				case out <- c:
				default:
					droppedChangesTotal.WithLabelValues("redis").Inc()
					b.log.Warn().Str("user_id", userID.String()).Str("table", c.Table).Msg("subscriber too slow, change dropped")
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = ps.Close()
		})
	}
	return out, cancel, nil
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}
