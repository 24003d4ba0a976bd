package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisQueue is a Queue implementation backed by Redis lists, using
// LMOVE (non-blocking) to shift an item from the pending list to an
// in-flight list atomically, the same move-on-dequeue idiom the teacher's Redis stores
// use for its index sets.
type RedisQueue struct {
	client   *redis.Client
	pending  string
	inflight string
}

var _ Queue = (*RedisQueue)(nil)

// NewRedisQueue creates a RedisQueue. prefix is optional but recommended
// (e.g. "jobflow:").
func NewRedisQueue(client *redis.Client, prefix string) *RedisQueue {
	if prefix == "" {
		prefix = "jobflow:"
	}
	return &RedisQueue{
		client:   client,
		pending:  prefix + "queue:pending",
		inflight: prefix + "queue:inflight",
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, item Item) error {
	data, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return q.client.RPush(ctx, q.pending, data).Err()
}

func (q *RedisQueue) Dequeue(ctx context.Context) (*Item, error) {
	data, err := q.client.LMove(ctx, q.pending, q.inflight, "LEFT", "RIGHT").Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var item Item
	if err := json.Unmarshal([]byte(data), &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (q *RedisQueue) Ack(ctx context.Context, item Item) error {
	data, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return q.client.LRem(ctx, q.inflight, 1, data).Err()
}

func (q *RedisQueue) RecoverStuck(ctx context.Context) ([]Item, error) {
	entries, err := q.client.LRange(ctx, q.inflight, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	var recovered []Item
	for _, raw := range entries {
		var item Item
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			return nil, err
		}
		recovered = append(recovered, item)
		if err := q.client.RPush(ctx, q.pending, raw).Err(); err != nil {
			return nil, fmt.Errorf("jobflow: requeueing stuck item: %w", err)
		}
	}
	if len(entries) > 0 {
		if err := q.client.Del(ctx, q.inflight).Err(); err != nil {
			return nil, err
		}
	}
	return recovered, nil
}

func (q *RedisQueue) Len(ctx context.Context) (int, error) {
	n, err := q.client.LLen(ctx, q.pending).Result()
	return int(n), err
}
