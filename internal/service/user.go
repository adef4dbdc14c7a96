package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/quick-fold/quickfold-customer-app/internal/auth"
	"github.com/quick-fold/quickfold-customer-app/internal/domain"
	"github.com/quick-fold/quickfold-customer-app/internal/repository"
	apperrors "github.com/quick-fold/quickfold-customer-app/pkg/errors"
	"github.com/quick-fold/quickfold-customer-app/pkg/pagination"
	"github.com/quick-fold/quickfold-customer-app/pkg/validator"
)

// MinPasswordLength is the shortest accepted password, before hashing.
const MinPasswordLength = 6

// ErrWrongCurrentPassword is returned by ChangePassword when the supplied
// current password does not match. The session stays valid, so it is not a 401.
var ErrWrongCurrentPassword = apperrors.New(http.StatusBadRequest, "INVALID_CURRENT_PASSWORD",
	"Current password is incorrect", apperrors.ErrInvalidInput)

// EventPublisher announces user lifecycle events. Failures are logged by the
// service and never fail the request.
type EventPublisher interface {
	UserRegistered(ctx context.Context, u *domain.User) error
	UserLoggedIn(ctx context.Context, u *domain.User) error
	PasswordChanged(ctx context.Context, u *domain.User) error
}

// UserService implements registration, credential checks and session issuance.
type UserService struct {
	users   repository.UserRepository
	hasher  *auth.Hasher
	tokens  *auth.JWTManager
	revoker auth.Revoker
	events  EventPublisher
	logger  *slog.Logger
	now     func() time.Time
}

// NewUserService creates a user service. revoker may be nil when revocation
// is disabled.
func NewUserService(
	users repository.UserRepository,
	hasher *auth.Hasher,
	tokens *auth.JWTManager,
	revoker auth.Revoker,
	events EventPublisher,
	logger *slog.Logger,
) *UserService {
	if revoker == nil {
		revoker = auth.NopRevoker{}
	}
	return &UserService{
		users:   users,
		hasher:  hasher,
		tokens:  tokens,
		revoker: revoker,
		events:  events,
		logger:  logger,
		now:     time.Now,
	}
}

// RegisterInput holds the parameters for a new account. The tags mirror the
// users table limits.
type RegisterInput struct {
	FirstName string         `json:"firstName" validate:"notblank,max=50"`
	LastName  string         `json:"lastName" validate:"notblank,max=50"`
	Email     string         `json:"email" validate:"required,email,max=100"`
	Password  string         `json:"password" validate:"required,min=6,bcryptmax"`
	Phone     string         `json:"phone" validate:"required,max=20,phone"`
	Address   domain.Address `json:"address"`
	// Role defaults to customer. Only trusted callers such as the seeder set it.
	Role string
}

// UpdateProfileInput carries the fields a user may change. Nil means unchanged.
type UpdateProfileInput struct {
	FirstName *string         `json:"firstName" validate:"omitnil,notblank,max=50"`
	LastName  *string         `json:"lastName" validate:"omitnil,notblank,max=50"`
	Phone     *string         `json:"phone" validate:"omitnil,required,max=20,phone"`
	Address   *domain.Address `json:"address"`
}

// AuthResult is what a successful registration or login returns to the client.
type AuthResult struct {
	User  *domain.User `json:"user"`
	Token string       `json:"token"`
}

// ChangePasswordResult reports whether the hash was replaced. When it was,
// Token is a fresh session token: older ones may have been revoked.
type ChangePasswordResult struct {
	Changed bool
	Token   string
}

// Register creates an account and issues its first session token.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	if err := validator.Validate(in); err != nil {
		return nil, err
	}

	role := in.Role
	if role == "" {
		role = domain.RoleCustomer
	}
	if !domain.IsValidRole(role) {
		return nil, apperrors.InvalidInput("invalid role: " + role)
	}

	hash, err := s.hash(ctx, in.Password)
	if err != nil {
		registrations.WithLabelValues(resultError).Inc()
		return nil, err
	}

	user := &domain.User{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		PasswordHash: hash,
		Phone:        in.Phone,
		IsActive:     true,
		Role:         role,
	}
	user.SetAddress(in.Address)

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			registrations.WithLabelValues(resultDuplicate).Inc()
			return nil, domain.ErrDuplicateEmail
		}
		registrations.WithLabelValues(resultError).Inc()
		return nil, fmt.Errorf("create user: %w", err)
	}

	token, err := s.tokens.IssueToken(user.ID, user.Role)
	if err != nil {
		registrations.WithLabelValues(resultError).Inc()
		return nil, fmt.Errorf("issue token: %w", err)
	}
	registrations.WithLabelValues(resultSuccess).Inc()

	if err := s.events.UserRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.Int64("user_id", user.ID),
		slog.String("role", user.Role),
	)

	return &AuthResult{User: user, Token: token}, nil
}

// VerifyCredentials returns the user owning email if password matches. An
// unknown email, a wrong password and a deactivated account all yield
// domain.ErrInvalidCredentials after the same amount of bcrypt work.
func (s *UserService) VerifyCredentials(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			start := time.Now()
			s.hasher.CompareDummy(ctx, password)
			passwordHashDuration.WithLabelValues("compare").Observe(time.Since(start).Seconds())
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	ok, err := s.compare(ctx, user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok || !user.IsActive {
		return nil, domain.ErrInvalidCredentials
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.upgradeHash(ctx, user, password)
	}
	return user, nil
}

// Login verifies credentials, stamps lastLogin and issues a session token.
func (s *UserService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.VerifyCredentials(ctx, email, password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			loginAttempts.WithLabelValues(resultInvalidCredentials).Inc()
			s.logger.InfoContext(ctx, "login rejected")
		} else {
			loginAttempts.WithLabelValues(resultError).Inc()
		}
		return nil, err
	}

	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		loginAttempts.WithLabelValues(resultError).Inc()
		return nil, fmt.Errorf("update last login: %w", err)
	}
	user.LastLogin = &now

	token, err := s.tokens.IssueToken(user.ID, user.Role)
	if err != nil {
		loginAttempts.WithLabelValues(resultError).Inc()
		return nil, fmt.Errorf("issue token: %w", err)
	}
	loginAttempts.WithLabelValues(resultSuccess).Inc()

	if err := s.events.UserLoggedIn(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.logged_in event",
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user logged in", slog.Int64("user_id", user.ID))

	return &AuthResult{User: user, Token: token}, nil
}

// Logout revokes the presented token when revocation is enabled. Without it
// the token simply lives until expiry and the client discards it.
func (s *UserService) Logout(ctx context.Context, claims *auth.Claims) error {
	if err := s.revoker.Revoke(ctx, claims); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	s.logger.InfoContext(ctx, "user logged out", slog.Int64("user_id", claims.UserID))
	return nil
}

// ChangePassword replaces the user's hash after checking current. An
// unchanged password is a no-op: nothing is hashed or written.
func (s *UserService) ChangePassword(ctx context.Context, userID int64, current, next string) (*ChangePasswordResult, error) {
	if current == "" {
		return nil, apperrors.InvalidInput("current password is required")
	}
	if err := validatePassword(next); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user for password change: %w", err)
	}

	ok, err := s.compare(ctx, user.PasswordHash, current)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrWrongCurrentPassword
	}
	if current == next {
		return &ChangePasswordResult{Changed: false}, nil
	}

	hash, err := s.hash(ctx, next)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return nil, fmt.Errorf("update password: %w", err)
	}
	user.PasswordHash = hash

	if err := s.revoker.InvalidateUser(ctx, user.ID, s.now()); err != nil {
		s.logger.ErrorContext(ctx, "failed to invalidate sessions after password change",
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	token, err := s.tokens.IssueToken(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	if err := s.events.PasswordChanged(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.password_changed event",
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "password changed", slog.Int64("user_id", user.ID))

	return &ChangePasswordResult{Changed: true, Token: token}, nil
}

func (s *UserService) GetProfile(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user profile: %w", err)
	}
	return user, nil
}

// UpdateProfile changes names, phone and address. Email and role are not
// editable here.
func (s *UserService) UpdateProfile(ctx context.Context, userID int64, in UpdateProfileInput) (*domain.User, error) {
	if err := validator.Validate(in); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user for update: %w", err)
	}

	if in.FirstName != nil {
		user.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		user.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Phone != nil {
		user.Phone = *in.Phone
	}
	if in.Address != nil {
		user.SetAddress(*in.Address)
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.logger.InfoContext(ctx, "user profile updated", slog.Int64("user_id", user.ID))
	return user, nil
}

// ListUsers returns one page of users and the total count.
func (s *UserService) ListUsers(ctx context.Context, p pagination.Params) ([]domain.User, int, error) {
	total, err := s.users.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	users, err := s.users.List(ctx, p.Offset, p.PerPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

// CountUsers reports how many accounts exist.
func (s *UserService) CountUsers(ctx context.Context) (int, error) {
	return s.users.Count(ctx)
}

func (s *UserService) hash(ctx context.Context, password string) (string, error) {
	start := time.Now()
	defer func() {
		passwordHashDuration.WithLabelValues("hash").Observe(time.Since(start).Seconds())
	}()
	return s.hasher.Hash(ctx, password)
}

func (s *UserService) compare(ctx context.Context, hash, password string) (bool, error) {
	start := time.Now()
	defer func() {
		passwordHashDuration.WithLabelValues("compare").Observe(time.Since(start).Seconds())
	}()
	return s.hasher.Compare(ctx, hash, password)
}

// upgradeHash re-hashes a verified password produced under an older cost.
// Failure only means the upgrade is retried on the next login.
func (s *UserService) upgradeHash(ctx context.Context, user *domain.User, password string) {
	hash, err := s.hash(ctx, password)
	if err == nil {
		err = s.users.UpdatePassword(ctx, user.ID, hash)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "password rehash skipped",
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	user.PasswordHash = hash
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if len(password) > validator.MaxPasswordBytes {
		return auth.ErrPasswordTooLong
	}
	return nil
}
