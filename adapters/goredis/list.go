// Package goredis backs the lead handoff queue with a Redis list.
package goredis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPopWait bounds a single BLPOP call so cancellation is observed
// between calls.
const DefaultPopWait = 5 * time.Second

// ListClient is the subset of redis.Cmdable used by ListQueue.
type ListClient interface {
	RPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
}

// ListQueue is a FIFO over one Redis list: producers RPUSH to the tail and
// consumers BLPOP from the head.
type ListQueue struct {
	client  ListClient
	key     string
	popWait time.Duration
}

func NewListQueue(client ListClient, key string, popWait time.Duration) *ListQueue {
	if popWait <= 0 {
		popWait = DefaultPopWait
	}
	return &ListQueue{
		client:  client,
		key:     strings.TrimSpace(key),
		popWait: popWait,
	}
}

func (q *ListQueue) Key() string {
	if q == nil {
		return ""
	}
	return q.key
}

func (q *ListQueue) Push(ctx context.Context, payload []byte) error {
	if err := q.validate(); err != nil {
		return err
	}
	if err := q.client.RPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("goredis: push %s: %w", q.key, err)
	}
	return nil
}

// Pop blocks until an item is available or ctx is done.
func (q *ListQueue) Pop(ctx context.Context) ([]byte, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		values, err := q.client.BLPop(ctx, q.popWait, q.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("goredis: pop %s: %w", q.key, err)
		}
		// BLPOP replies with [key, value]
		if len(values) != 2 {
			return nil, fmt.Errorf("goredis: pop %s: unexpected reply of %d elements", q.key, len(values))
		}
		return []byte(values[1]), nil
	}
}

func (q *ListQueue) Len(ctx context.Context) (int64, error) {
	if err := q.validate(); err != nil {
		return 0, err
	}
	return q.client.LLen(ctx, q.key).Result()
}

func (q *ListQueue) validate() error {
	if q == nil || q.client == nil {
		return fmt.Errorf("goredis: list client is not configured")
	}
	if q.key == "" {
		return fmt.Errorf("goredis: list key is required")
	}
	return nil
}
