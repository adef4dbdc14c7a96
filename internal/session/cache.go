// Package session keeps the client's record of the signed-in user: the
// session token and a snapshot of the profile it belongs to.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/quick-fold/quickfold-customer-app/internal/domain"
)

// Entry names in the local store.
const (
	KeyToken   = "authToken"
	KeyProfile = "userData"
)

// Cache answers "am I logged in, and as whom". It performs no expiry check;
// the server rejects a stale token on the next request.
type Cache struct {
	store  Store
	logger *slog.Logger
}

func NewCache(store Store, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{store: store, logger: logger}
}

// SaveSession overwrites the token and profile together.
func (c *Cache) SaveSession(ctx context.Context, token string, profile *domain.User) error {
	if token == "" || profile == nil {
		return fmt.Errorf("save session: token and profile are required")
	}
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	return c.store.SetAll(ctx, map[string][]byte{
		KeyToken:   []byte(token),
		KeyProfile: raw,
	})
}

// SaveProfile replaces only the profile snapshot, keeping the token.
func (c *Cache) SaveProfile(ctx context.Context, profile *domain.User) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	return c.store.SetAll(ctx, map[string][]byte{KeyProfile: raw})
}

// ClearSession removes both entries.
func (c *Cache) ClearSession(ctx context.Context) error {
	return c.store.Delete(ctx, KeyToken, KeyProfile)
}

// IsAuthenticated reports whether a token and a readable profile are both
// stored. A token without a profile counts as signed out.
func (c *Cache) IsAuthenticated(ctx context.Context) bool {
	return c.Token(ctx) != "" && c.Profile(ctx) != nil
}

// Token returns the stored token, or "" when absent or unreadable.
func (c *Cache) Token(ctx context.Context) string {
	raw, err := c.store.Get(ctx, KeyToken)
	if err != nil {
		c.logger.WarnContext(ctx, "read session token", slog.String("error", err.Error()))
		return ""
	}
	return string(raw)
}

// Profile returns the stored profile, or nil when absent or corrupt.
func (c *Cache) Profile(ctx context.Context) *domain.User {
	raw, err := c.store.Get(ctx, KeyProfile)
	if err != nil {
		c.logger.WarnContext(ctx, "read session profile", slog.String("error", err.Error()))
		return nil
	}
	if len(raw) == 0 {
		return nil
	}

	var u domain.User
	if err := json.Unmarshal(raw, &u); err != nil {
		c.logger.WarnContext(ctx, "decode session profile", slog.String("error", err.Error()))
		return nil
	}
	return &u
}
