package client

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/quick-fold/quickfold-customer-app/internal/domain"
	"github.com/quick-fold/quickfold-customer-app/internal/session"
	apperrors "github.com/quick-fold/quickfold-customer-app/pkg/errors"
	"github.com/quick-fold/quickfold-customer-app/pkg/httpclient"
)

// User-facing messages for failures that carry no server message.
const (
	MsgUnreachable  = "Unable to reach the server. Please check your connection and try again."
	MsgUnavailable  = "The service is temporarily unavailable. Please try again shortly."
	MsgCancelled    = "Request cancelled"
	MsgNotLoggedIn  = "You are not logged in"
	MsgSessionSave  = "Could not save your session on this device"
	MsgLoggedIn     = "Login successful"
	MsgRegistered   = "Registration successful"
	MsgLoggedOut    = "Logged out successfully"
	MsgProfileFresh = "Profile updated"
)

// Result is the uniform outcome of every client auth operation. Failures are
// reported through Success and Message instead of an error so callers have
// one handling path.
type Result struct {
	Success bool
	Message string
	User    *domain.User
	Token   string
}

func failure(msg string) Result {
	return Result{Message: msg}
}

// AuthService coordinates the auth API with the local session cache.
type AuthService struct {
	api    *API
	cache  *session.Cache
	logger *slog.Logger
	now    func() time.Time
}

// NewAuthService creates an AuthService.
func NewAuthService(api *API, cache *session.Cache, logger *slog.Logger) *AuthService {
	return &AuthService{api: api, cache: cache, logger: logger, now: time.Now}
}

// Login submits credentials and, on success, replaces the cached session.
// Nothing is written locally unless the server answered with a complete
// user and token.
func (s *AuthService) Login(ctx context.Context, email, password string) Result {
	resp, err := s.api.Login(ctx, email, password)
	if err != nil {
		return s.fail(ctx, "login", err)
	}
	return s.save(ctx, resp, MsgLoggedIn)
}

// Register creates an account and stores the issued session.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) Result {
	resp, err := s.api.Register(ctx, req)
	if err != nil {
		return s.fail(ctx, "register", err)
	}
	return s.save(ctx, resp, MsgRegistered)
}

func (s *AuthService) save(ctx context.Context, resp *AuthResponse, msg string) Result {
	if err := ctx.Err(); err != nil {
		return failure(MsgCancelled)
	}
	if err := s.cache.SaveSession(ctx, resp.Token, resp.User); err != nil {
		s.logger.ErrorContext(ctx, "save session", slog.String("error", err.Error()))
		return failure(MsgSessionSave)
	}
	return Result{Success: true, Message: msg, User: resp.User, Token: resp.Token}
}

// Logout notifies the server and clears the local session. The local clear
// runs whatever the remote call returns, including cancellation.
func (s *AuthService) Logout(ctx context.Context) Result {
	if token := s.cache.Token(ctx); token != "" {
		if err := s.api.Logout(ctx, token); err != nil {
			s.logger.WarnContext(ctx, "remote logout failed", slog.String("error", err.Error()))
		}
	}

	if err := s.cache.ClearSession(context.WithoutCancel(ctx)); err != nil {
		s.logger.ErrorContext(ctx, "clear session", slog.String("error", err.Error()))
		return failure("Could not clear your session on this device")
	}
	return Result{Success: true, Message: MsgLoggedOut}
}

// RefreshUser reloads the profile from the server. A 401 means the cached
// token is no longer usable and the session is cleared.
func (s *AuthService) RefreshUser(ctx context.Context) Result {
	token := s.cache.Token(ctx)
	if token == "" {
		return failure(MsgNotLoggedIn)
	}

	user, err := s.api.Me(ctx, token)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnauthorized) {
			if clearErr := s.cache.ClearSession(context.WithoutCancel(ctx)); clearErr != nil {
				s.logger.ErrorContext(ctx, "clear session", slog.String("error", clearErr.Error()))
			}
		}
		return s.fail(ctx, "refresh", err)
	}

	if err := ctx.Err(); err != nil {
		return failure(MsgCancelled)
	}
	if err := s.cache.SaveProfile(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "save profile", slog.String("error", err.Error()))
		return failure(MsgSessionSave)
	}
	return Result{Success: true, Message: MsgProfileFresh, User: user, Token: token}
}

// CurrentUser returns the cached profile, or nil.
func (s *AuthService) CurrentUser(ctx context.Context) *domain.User {
	return s.cache.Profile(ctx)
}

// IsAuthenticated reports whether a session is cached and its token has not
// passed its exp claim. The signature is not checked; the server remains the
// authority. An expired session is cleared.
func (s *AuthService) IsAuthenticated(ctx context.Context) bool {
	if !s.cache.IsAuthenticated(ctx) {
		return false
	}

	exp, ok := TokenExpiry(s.cache.Token(ctx))
	if !ok || s.now().Before(exp) {
		return true
	}

	s.logger.InfoContext(ctx, "cached session expired", slog.Time("expired_at", exp))
	if err := s.cache.ClearSession(ctx); err != nil {
		s.logger.ErrorContext(ctx, "clear session", slog.String("error", err.Error()))
	}
	return false
}

// SessionExpiry returns the exp claim of the cached token.
func (s *AuthService) SessionExpiry(ctx context.Context) (time.Time, bool) {
	return TokenExpiry(s.cache.Token(ctx))
}

// TokenExpiry reads the exp claim of token without verifying it. ok is false
// when the token cannot be decoded or has no exp.
func TokenExpiry(token string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func (s *AuthService) fail(ctx context.Context, op string, err error) Result {
	var appErr *apperrors.AppError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return failure(MsgCancelled)
	case errors.As(err, &appErr):
		return failure(appErr.Message)
	case errors.Is(err, httpclient.ErrCircuitOpen):
		return failure(MsgUnavailable)
	}

	s.logger.WarnContext(ctx, op+" failed", slog.String("error", err.Error()))
	return failure(MsgUnreachable)
}
