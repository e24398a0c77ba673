package rdx

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// ReconcileKey is the list holding gig ids awaiting bid repair.
const ReconcileKey = "hire:reconcile"

// Queue is a FIFO of gig ids backed by a Redis list, so pending repairs
// survive a restart and are shared by every instance.
type Queue struct {
	conn *redis.Client
	key  string
}

func NewQueue(conn *redis.Client, key string) *Queue {
	if key == "" {
		key = ReconcileKey
	}
	return &Queue{conn: conn, key: key}
}

func (q *Queue) Push(ctx context.Context, gigID string) error {
	return q.conn.LPush(ctx, q.key, gigID).Err()
}

func (q *Queue) Drain(ctx context.Context, max int) ([]string, error) {
	var out []string
	for max <= 0 || len(out) < max {
		id, err := q.conn.RPop(ctx, q.key).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return out, err
		}
		out = append(out, id)
	}
	return out, nil
}
