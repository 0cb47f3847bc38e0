package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	roomChannelPrefix = "dinein:room:"
	menuKeyPrefix     = "dinein:menu:"
	markerKeyPrefix   = "dinein:once:"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client and verifies the connection
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Wrap uses an already configured redis client.
func Wrap(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks Redis connectivity
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// RoomChannel maps a realtime room to its pub/sub channel.
func RoomChannel(room string) string {
	return roomChannelPrefix + room
}

// PublishRoom fans a serialized room event out to every subscribed instance
func (c *Client) PublishRoom(ctx context.Context, room string, payload []byte) error {
	if err := c.rdb.Publish(ctx, RoomChannel(room), payload).Err(); err != nil {
		return fmt.Errorf("publish to room %s failed: %w", room, err)
	}
	return nil
}

// SubscribeRooms subscribes to the given rooms. The caller must close the
// returned PubSub.
func (c *Client) SubscribeRooms(ctx context.Context, rooms ...string) (*redis.PubSub, error) {
	channels := make([]string, len(rooms))
	for i, room := range rooms {
		channels[i] = RoomChannel(room)
	}

	sub := c.rdb.Subscribe(ctx, channels...)
	// Wait for the subscription confirmation so no message published after
	// this call returns is missed.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe failed: %w", err)
	}
	return sub, nil
}

// GetMenu returns the cached menu document of a restaurant. ok is false on a miss.
func (c *Client) GetMenu(ctx context.Context, restaurantID string) (data []byte, ok bool, err error) {
	data, err = c.rdb.Get(ctx, menuKeyPrefix+restaurantID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// SetMenu caches a restaurant's menu document with TTL
func (c *Client) SetMenu(ctx context.Context, restaurantID string, data []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, menuKeyPrefix+restaurantID, data, ttl).Err()
}

// InvalidateMenu drops a restaurant's cached menu
func (c *Client) InvalidateMenu(ctx context.Context, restaurantID string) error {
	return c.rdb.Del(ctx, menuKeyPrefix+restaurantID).Err()
}

// MarkOnce records key and reports whether this call was the first to do so
// within ttl.
func (c *Client) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, markerKeyPrefix+key, time.Now().Unix(), ttl).Result()
}

// ForgetMark removes a marker so the key can be processed again
func (c *Client) ForgetMark(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, markerKeyPrefix+key).Err()
}
