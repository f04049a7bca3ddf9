package revocation

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisSetKey = "aval:revoked_mandates"

// RedisList stores the revocation set in a Redis set so multiple verifier
// processes share one view. Entries are never expired; a revocation is
// permanent.
type RedisList struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed revocation list.
func NewRedis(client *redis.Client) *RedisList {
	return &RedisList{client: client}
}

// Revoke adds a credential id to the shared set.
func (l *RedisList) Revoke(ctx context.Context, credentialID string) error {
	if err := l.client.SAdd(ctx, redisSetKey, credentialID).Err(); err != nil {
		return fmt.Errorf("revoke %s: %w", credentialID, err)
	}
	return nil
}

// IsRevoked reports whether the credential id is in the shared set.
func (l *RedisList) IsRevoked(ctx context.Context, credentialID string) (bool, error) {
	revoked, err := l.client.SIsMember(ctx, redisSetKey, credentialID).Result()
	if err != nil {
		return false, fmt.Errorf("check revocation of %s: %w", credentialID, err)
	}
	return revoked, nil
}
