package rdx

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	tokenHash     = "tokki"
	revokedPrefix = "revoked:"
)

// Tokens records the most recent token issued to each user and the ids of
// tokens signed out before they expired.
type Tokens struct {
	conn *redis.Client
}

func NewTokens(conn *redis.Client) *Tokens {
	return &Tokens{conn: conn}
}

func (t *Tokens) Save(ctx context.Context, userID, token string) error {
	return t.conn.HSet(ctx, tokenHash, userID, token).Err()
}

// Revoke forgets the user's token and blocks tokenID until it would have
// expired anyway.
func (t *Tokens) Revoke(ctx context.Context, userID, tokenID string, expires time.Time) error {
	pipe := t.conn.TxPipeline()
	pipe.HDel(ctx, tokenHash, userID)
	if ttl := time.Until(expires); tokenID != "" && ttl > 0 {
		pipe.Set(ctx, revokedPrefix+tokenID, userID, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (t *Tokens) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := t.conn.Exists(ctx, revokedPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
