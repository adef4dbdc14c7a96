package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "github.com/quick-fold/quickfold-customer-app/pkg/errors"
)

// Issuer is the iss claim on every token minted by the API.
const Issuer = "quickfold-api"

// DefaultExpiry is the session lifetime when none is configured.
const DefaultExpiry = 7 * 24 * time.Hour

// Token verification failures. All of them are terminal: the caller must log in again.
var (
	ErrTokenExpired = apperrors.New(http.StatusUnauthorized, "TOKEN_EXPIRED",
		"Token has expired", apperrors.ErrUnauthorized)
	ErrTokenInvalidSignature = apperrors.New(http.StatusUnauthorized, "TOKEN_INVALID",
		"Token signature is invalid", apperrors.ErrUnauthorized)
	ErrTokenMalformed = apperrors.New(http.StatusUnauthorized, "TOKEN_MALFORMED",
		"Token is malformed", apperrors.ErrUnauthorized)
)

// Claims is the verified content of a session token.
type Claims struct {
	UserID    int64
	Role      string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type tokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTManager issues and verifies HS256 session tokens. It holds no
// per-session state.
type JWTManager struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewJWTManager creates a manager signing with secret. A non-positive expiry
// falls back to DefaultExpiry.
func NewJWTManager(secret string, expiry time.Duration) *JWTManager {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &JWTManager{
		secret: []byte(secret),
		expiry: expiry,
		now:    time.Now,
	}
}

// Expiry returns the configured token lifetime.
func (m *JWTManager) Expiry() time.Duration {
	return m.expiry
}

// IssueToken mints a signed token for userID carrying role.
func (m *JWTManager) IssueToken(userID int64, role string) (string, error) {
	now := m.now().UTC()
	claims := &tokenClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken checks the signature and expiry of token and returns its
// claims. Errors are ErrTokenExpired, ErrTokenInvalidSignature or
// ErrTokenMalformed, each wrapping the parser's cause.
func (m *JWTManager) VerifyToken(token string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)

	var tc tokenClaims
	_, err := parser.ParseWithClaims(token, &tc, func(*jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}

	userID, err := strconv.ParseInt(tc.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, fmt.Errorf("%w: subject %q", ErrTokenMalformed, tc.Subject)
	}

	claims := &Claims{
		UserID:    userID,
		Role:      tc.Role,
		TokenID:   tc.ID,
		ExpiresAt: tc.ExpiresAt.Time,
	}
	if tc.IssuedAt != nil {
		claims.IssuedAt = tc.IssuedAt.Time
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrTokenInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	default:
		// Missing or foreign claims: structurally not one of ours.
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
}
