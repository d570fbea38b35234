package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/eldtechnologies/parley/internal/models"
)

// RedisStore keeps each account's pending messages in a sorted set scored by
// server sequence number, so drain order matches enqueue order even across
// server instances sharing the same Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis-backed queue.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// inboxKey returns the key for an account's pending-message sorted set.
func inboxKey(account string) string {
	return fmt.Sprintf("inbox:%s:pending", account)
}

// Append adds msg to account's queue.
func (s *RedisStore) Append(ctx context.Context, account string, msg models.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return s.client.ZAdd(ctx, inboxKey(account), redis.Z{
		Score:  float64(msg.Seq),
		Member: string(data),
	}).Err()
}

// Drain removes and returns all queued messages for account in enqueue
// order. ZPOPMIN is atomic, so a message appended mid-drain is either popped
// here or stays queued for the next drain.
func (s *RedisStore) Drain(ctx context.Context, account string) ([]models.Message, error) {
	key := inboxKey(account)

	n, err := s.client.ZCard(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}

	entries, err := s.client.ZPopMin(ctx, key, n).Result()
	if err != nil {
		return nil, err
	}

	msgs := make([]models.Message, 0, len(entries))
	for _, entry := range entries {
		data, ok := entry.Member.(string)
		if !ok {
			continue
		}
		var msg models.Message
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			continue
		}
		msgs = append(msgs, msg)
	}

	return msgs, nil
}

// Pending returns the total number of queued messages across accounts.
func (s *RedisStore) Pending(ctx context.Context) (int64, error) {
	var total int64

	iter := s.client.Scan(ctx, 0, "inbox:*:pending", 100).Iterator()
	for iter.Next(ctx) {
		n, err := s.client.ZCard(ctx, iter.Val()).Result()
		if err != nil {
			return 0, err
		}
		total += n
	}
	if err := iter.Err(); err != nil {
		return 0, err
	}

	return total, nil
}
