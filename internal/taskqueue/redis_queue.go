package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue keeps tasks in the Redis list <prefix>tasks as gob-encoded values.
type RedisQueue struct {
	client *redis.Client
	key    string
}

func NewRedisQueue(client *redis.Client, prefix string) *RedisQueue {
	return &RedisQueue{
		client: client,
		key:    prefix + "tasks",
	}
}

var _ Queue = (*RedisQueue)(nil)

// Enqueue pushes a task onto the list (LPUSH).
func (q *RedisQueue) Enqueue(ctx context.Context, t Task) error {
	data, err := EncodeTask(t)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, data).Err()
}

// Dequeue blocks on BRPOP until a task is available or ctx is cancelled.
// The wait is bounded so cancellation is observed even if the client
// does not interrupt a blocking command.
func (q *RedisQueue) Dequeue(ctx context.Context) (*Task, error) {
	for {
		res, err := q.client.BRPop(ctx, 5*time.Second, q.key).Result()
		if errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		if len(res) != 2 {
			return nil, fmt.Errorf("unexpected BRPOP reply: %v", res)
		}
		return DecodeTask([]byte(res[1]))
	}
}

// Len returns the number of queued tasks (LLEN), 0 on error.
func (q *RedisQueue) Len() int {
	n, err := q.client.LLen(context.Background(), q.key).Result()
	if err != nil {
		return 0
	}
	return int(n)
}
