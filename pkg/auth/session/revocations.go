package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	redisclient "github.com/lensportal/lensportal-backend/pkg/redis"
)

type revocationStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

type revocationKeyer interface {
	RevocationKey(userID string) string
}

// RevocationChecker exposes the read-only surface needed by middleware.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, userID string) (bool, error)
}

// Revocations records accounts whose already-issued tokens must stop working.
// Identity-provider tokens stay valid until they expire, so suspension writes
// a marker that outlives the longest token lifetime.
type Revocations struct {
	store revocationStore
	keyer revocationKeyer
	ttl   time.Duration
}

// NewRevocations constructs a revocation registry backed by Redis.
func NewRevocations(client *redisclient.Client, ttl time.Duration) (*Revocations, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("revocation ttl must be positive")
	}
	return &Revocations{store: client, keyer: client, ttl: ttl}, nil
}

// Revoke marks the account's outstanding tokens as unusable.
func (r *Revocations) Revoke(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("user id is required")
	}
	return r.store.Set(ctx, r.keyer.RevocationKey(userID), time.Now().UTC().Format(time.RFC3339), r.ttl)
}

// Restore clears the marker written by Revoke.
func (r *Revocations) Restore(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("user id is required")
	}
	return r.store.Del(ctx, r.keyer.RevocationKey(userID))
}

// IsRevoked reports whether the account currently carries a revocation marker.
func (r *Revocations) IsRevoked(ctx context.Context, userID string) (bool, error) {
	if strings.TrimSpace(userID) == "" {
		return false, fmt.Errorf("user id is required")
	}
	return r.store.Exists(ctx, r.keyer.RevocationKey(userID))
}
