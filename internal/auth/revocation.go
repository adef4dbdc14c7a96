package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/quick-fold/quickfold-customer-app/pkg/errors"
)

// ErrTokenRevoked is returned for a token that was logged out or predates
// the user's last password change.
var ErrTokenRevoked = apperrors.New(http.StatusUnauthorized, "TOKEN_REVOKED",
	"Token has been revoked", apperrors.ErrUnauthorized)

// Revoker records tokens that must stop working before their expiry.
type Revoker interface {
	// Revoke denies the token until its own expiry.
	Revoke(ctx context.Context, claims *Claims) error
	// InvalidateUser denies every token for userID issued before at.
	InvalidateUser(ctx context.Context, userID int64, at time.Time) error
	// Check returns ErrTokenRevoked when claims were revoked either way.
	Check(ctx context.Context, claims *Claims) error
}

const (
	revokedTokenPrefix = "quickfold:revoked:jti:"
	invalidUserPrefix  = "quickfold:revoked:user:"
)

// RedisRevoker keeps a jti denylist and a per-user invalidated-before
// timestamp in Redis. Entries expire with the tokens they deny.
type RedisRevoker struct {
	client   redis.Cmdable
	tokenTTL time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewRedisRevoker creates a revoker. tokenTTL bounds how long a per-user
// marker has to live: no token outlives it.
func NewRedisRevoker(client redis.Cmdable, tokenTTL time.Duration, logger *slog.Logger) *RedisRevoker {
	return &RedisRevoker{client: client, tokenTTL: tokenTTL, logger: logger, now: time.Now}
}

func (r *RedisRevoker) Revoke(ctx context.Context, claims *Claims) error {
	if claims.TokenID == "" {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, revokedTokenPrefix+claims.TokenID, claims.UserID, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (r *RedisRevoker) InvalidateUser(ctx context.Context, userID int64, at time.Time) error {
	// iat has second precision, so tokens from the same second stay valid.
	key := invalidUserPrefix + strconv.FormatInt(userID, 10)
	if err := r.client.Set(ctx, key, at.Unix(), r.tokenTTL).Err(); err != nil {
		return fmt.Errorf("invalidate user tokens: %w", err)
	}
	return nil
}

// Check fails open: when Redis is unreachable the token is accepted on its
// signature and expiry alone and the failure is logged.
func (r *RedisRevoker) Check(ctx context.Context, claims *Claims) error {
	var (
		denied *redis.IntCmd
		before *redis.StringCmd
	)
	_, err := r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		denied = p.Exists(ctx, revokedTokenPrefix+claims.TokenID)
		before = p.Get(ctx, invalidUserPrefix+strconv.FormatInt(claims.UserID, 10))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		r.logger.WarnContext(ctx, "revocation check skipped",
			slog.Int64("user_id", claims.UserID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	if denied.Val() > 0 {
		return ErrTokenRevoked
	}
	if cutoff, err := before.Int64(); err == nil && claims.IssuedAt.Unix() < cutoff {
		return ErrTokenRevoked
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (r *RedisRevoker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// NopRevoker is used when Redis is disabled: tokens are valid until expiry.
type NopRevoker struct{}

func (NopRevoker) Revoke(context.Context, *Claims) error { return nil }
func (NopRevoker) InvalidateUser(context.Context, int64, time.Time) error { return nil }
func (NopRevoker) Check(context.Context, *Claims) error { return nil }

// Authenticator verifies a bearer token and consults the Revoker.
type Authenticator struct {
	tokens  *JWTManager
	revoker Revoker
}

func NewAuthenticator(tokens *JWTManager, revoker Revoker) *Authenticator {
	if revoker == nil {
		revoker = NopRevoker{}
	}
	return &Authenticator{tokens: tokens, revoker: revoker}
}

// Authenticate returns the claims of a valid, unrevoked token.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := a.tokens.VerifyToken(token)
	if err != nil {
		return nil, err
	}
	if err := a.revoker.Check(ctx, claims); err != nil {
		return nil, err
	}
	return claims, nil
}
