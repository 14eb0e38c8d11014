// internal/pkg/session/manager.go
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Manager keeps the revocation list for access tokens. Tokens are minted by
// the identity service; a revoked jti is remembered until the token would
// have expired anyway.
type Manager struct {
	client *redis.Client
	prefix string
}

func NewManager(client *redis.Client, prefix string) *Manager {
	return &Manager{client: client, prefix: prefix}
}

func (m *Manager) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := m.client.Exists(ctx, m.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("check revocation of %s: %w", jti, err)
	}
	return n > 0, nil
}

// Revoke is a no-op for tokens already past expiresAt.
func (m *Manager) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := m.client.Set(ctx, m.key(jti), expiresAt.UTC().Format(time.RFC3339), ttl).Err(); err != nil {
		return fmt.Errorf("revoke %s: %w", jti, err)
	}
	return nil
}

func (m *Manager) key(jti string) string {
	return m.prefix + "revoked:" + jti
}
