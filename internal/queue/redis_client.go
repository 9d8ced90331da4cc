package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoMessage is returned by Receive when the poll window elapses with an
// empty queue.
var ErrNoMessage = errors.New("no message available")

// RedisClient runs the queue on a redis list. The API pushes with LPUSH and
// the worker pops with BRPOP, so messages come off in submission order.
type RedisClient struct {
	Client *redis.Client
	Key    string
}

// NewRedisClient constructs a redis-backed queue client.
func NewRedisClient(client *redis.Client, key string) (*RedisClient, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("redis queue key is required")
	}
	return &RedisClient{Client: client, Key: key}, nil
}

// Send pushes a message onto the queue list.
func (r *RedisClient) Send(ctx context.Context, msg Message) error {
	payload, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode redis message: %w", err)
	}
	if err := r.Client.LPush(ctx, r.Key, payload).Err(); err != nil {
		return fmt.Errorf("redis lpush: %w", err)
	}
	return nil
}

// Receive blocks up to wait for the next message. ErrNoMessage means the
// window elapsed; callers loop and try again.
func (r *RedisClient) Receive(ctx context.Context, wait time.Duration) (string, error) {
	res, err := r.Client.BRPop(ctx, wait, r.Key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNoMessage
		}
		return "", fmt.Errorf("redis brpop: %w", err)
	}
	// BRPOP returns [key, value].
	if len(res) != 2 {
		return "", ErrNoMessage
	}
	return res[1], nil
}

var _ Client = (*RedisClient)(nil)
