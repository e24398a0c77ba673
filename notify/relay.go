package notify

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"

	"gigmarket/models"
)

// RedisRelay publishes envelopes on a Redis channel; every process runs
// Listen and hands what it receives to its own hub.
type RedisRelay struct {
	conn    *redis.Client
	channel string
}

func NewRedisRelay(conn *redis.Client, channel string) *RedisRelay {
	return &RedisRelay{conn: conn, channel: channel}
}

func (r *RedisRelay) Publish(ctx context.Context, env *models.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return r.conn.Publish(ctx, r.channel, data).Err()
}

// Listen blocks until ctx is done.
func (r *RedisRelay) Listen(ctx context.Context, d *Dispatcher) {
	sub := r.conn.Subscribe(ctx, r.channel)
	defer sub.Close()

	log.Printf("[Notify] listening on redis channel %q", r.channel)
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env models.Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Printf("[Notify] bad relay payload: %v", err)
				continue
			}
			d.Deliver(&env)
		}
	}
}
