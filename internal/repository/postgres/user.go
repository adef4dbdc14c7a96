package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/quick-fold/quickfold-customer-app/internal/domain"
	"github.com/quick-fold/quickfold-customer-app/pkg/database"
	apperrors "github.com/quick-fold/quickfold-customer-app/pkg/errors"
)

const userColumns = `id, first_name, last_name, email, password_hash, phone,
		address_street, address_city, address_state, address_zip_code, address_country,
		is_active, role, last_login, created_at, updated_at`

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository takes any DBTX: a pool, a transaction or a mock.
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts u. A duplicate email surfaces from the unique index as
// domain.ErrDuplicateEmail.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) (err error) {
	query := `
		INSERT INTO users (first_name, last_name, email, password_hash, phone,
			address_street, address_city, address_state, address_zip_code, address_country,
			is_active, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`

	ctx, end := database.TraceQuery(ctx, "CreateUser", query)
	defer func() { end(err) }()

	err = r.db.QueryRow(ctx, query,
		u.FirstName,
		u.LastName,
		u.Email,
		u.PasswordHash,
		u.Phone,
		u.AddressStreet,
		u.AddressCity,
		u.AddressState,
		u.AddressZipCode,
		u.AddressCountry,
		u.IsActive,
		u.Role,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := r.scanUser(ctx, "GetUserByID", query, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("user", strconv.FormatInt(id, 10))
	}
	return u, err
}

// GetByEmail matches the email exactly, case included.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	u, err := r.scanUser(ctx, "GetUserByEmail", query, email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	return u, err
}

func (r *UserRepository) Update(ctx context.Context, u *domain.User) (err error) {
	query := `
		UPDATE users
		SET first_name = $1, last_name = $2, phone = $3,
		    address_street = $4, address_city = $5, address_state = $6,
		    address_zip_code = $7, address_country = $8, updated_at = NOW()
		WHERE id = $9
		RETURNING updated_at`

	ctx, end := database.TraceQuery(ctx, "UpdateUser", query)
	defer func() { end(err) }()

	err = r.db.QueryRow(ctx, query,
		u.FirstName,
		u.LastName,
		u.Phone,
		u.AddressStreet,
		u.AddressCity,
		u.AddressState,
		u.AddressZipCode,
		u.AddressCountry,
		u.ID,
	).Scan(&u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("user", strconv.FormatInt(u.ID, 10))
		}
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, hash string) (err error) {
	query := `UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`

	ctx, end := database.TraceQuery(ctx, "UpdateUserPassword", query)
	defer func() { end(err) }()

	return r.execOne(ctx, "update password", query, id, hash, id)
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) (err error) {
	query := `UPDATE users SET last_login = $1 WHERE id = $2`

	ctx, end := database.TraceQuery(ctx, "UpdateUserLastLogin", query)
	defer func() { end(err) }()

	return r.execOne(ctx, "update last login", query, id, at, id)
}

func (r *UserRepository) List(ctx context.Context, offset, limit int) (users []domain.User, err error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id LIMIT $1 OFFSET $2`

	ctx, end := database.TraceQuery(ctx, "ListUsers", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users = make([]domain.User, 0, limit)
	for rows.Next() {
		u, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user rows: %w", err)
	}
	return users, nil
}

func (r *UserRepository) Count(ctx context.Context) (n int, err error) {
	query := `SELECT COUNT(*) FROM users`

	ctx, end := database.TraceQuery(ctx, "CountUsers", query)
	defer func() { end(err) }()

	if err = r.db.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (r *UserRepository) execOne(ctx context.Context, op, query string, id int64, args ...any) error {
	ct, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", strconv.FormatInt(id, 10))
	}
	return nil
}

// scanUser runs a query expected to return one user row. pgx.ErrNoRows is
// returned unwrapped so callers can pick their not-found error.
func (r *UserRepository) scanUser(ctx context.Context, operation, query string, args ...any) (u *domain.User, err error) {
	ctx, end := database.TraceQuery(ctx, operation, query)
	defer func() {
		if errors.Is(err, pgx.ErrNoRows) {
			end(nil)
			return
		}
		end(err)
	}()

	u, err = scan(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

func scan(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.FirstName,
		&u.LastName,
		&u.Email,
		&u.PasswordHash,
		&u.Phone,
		&u.AddressStreet,
		&u.AddressCity,
		&u.AddressState,
		&u.AddressZipCode,
		&u.AddressCountry,
		&u.IsActive,
		&u.Role,
		&u.LastLogin,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
