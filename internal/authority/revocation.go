package authority

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationList records token IDs that must no longer be accepted.
type RevocationList interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// RedisRevocationList stores revoked token IDs as Redis keys that expire
// together with the token they block.
type RedisRevocationList struct {
	client redis.Cmdable
	prefix string
	now    func() time.Time
}

// NewRedisRevocationList constructs the list over client.
func NewRedisRevocationList(client redis.Cmdable) *RedisRevocationList {
	return &RedisRevocationList{
		client: client,
		prefix: "revoked:",
		now:    time.Now,
	}
}

// Revoke blocks tokenID until the given instant. Already expired tokens are
// not stored.
func (l *RedisRevocationList) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	if tokenID == "" {
		return fmt.Errorf("authority: revoke: empty token id")
	}
	ttl := until.Sub(l.now())
	if ttl <= 0 {
		return nil
	}
	if err := l.client.Set(ctx, l.key(tokenID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("authority: revoke: %w", err)
	}
	return nil
}

// IsRevoked reports whether tokenID is blocked.
func (l *RedisRevocationList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := l.client.Exists(ctx, l.key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("authority: revocation lookup: %w", err)
	}
	return n > 0, nil
}

func (l *RedisRevocationList) key(tokenID string) string {
	return l.prefix + tokenID
}

var _ RevocationList = (*RedisRevocationList)(nil)
