// TransitBook | 2026
// registry.go

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionRegistry tracks which issued sessions have been invalidated.
// Absence of a record means the session is valid: only an explicit
// Invalidate flips a session to revoked.
type SessionRegistry interface {
	IsValid(ctx context.Context, sessionID string) (bool, error)
	Invalidate(ctx context.Context, sessionID string) error
}

// RedisSessionRegistry stores revoked session ids in Redis. Reads after
// a completed invalidation observe it from any process, which is what a
// logout racing an in-flight request needs. Entries carry a TTL covering
// the refresh-token lifetime; after that no token referencing the
// session can still verify, so the record may lapse.
type RedisSessionRegistry struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessionRegistry(
	client *redis.Client,
	ttl time.Duration,
) *RedisSessionRegistry {
	return &RedisSessionRegistry{
		client: client,
		ttl:    ttl,
	}
}

func revokedKey(sessionID string) string {
	return "session:revoked:" + sessionID
}

func (r *RedisSessionRegistry) IsValid(
	ctx context.Context,
	sessionID string,
) (bool, error) {
	exists, err := r.client.Exists(ctx, revokedKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("check session: %w", err)
	}

	return exists == 0, nil
}

// Invalidate is idempotent: revoking an already-revoked or unknown
// session succeeds.
func (r *RedisSessionRegistry) Invalidate(
	ctx context.Context,
	sessionID string,
) error {
	if sessionID == "" {
		return nil
	}

	if err := r.client.Set(ctx, revokedKey(sessionID), "1", r.ttl).Err(); err != nil {
		return fmt.Errorf("invalidate session: %w", err)
	}

	return nil
}
