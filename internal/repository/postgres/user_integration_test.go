//go:build integration

package postgres

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/quick-fold/quickfold-customer-app/internal/domain"
	"github.com/quick-fold/quickfold-customer-app/migrations"
	"github.com/quick-fold/quickfold-customer-app/pkg/database"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("quickfold"),
		tcpostgres.WithUsername("quickfold"),
		tcpostgres.WithPassword("quickfold"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := database.DefaultPostgresConfig()
	cfg.URL = dsn
	pool, err := database.NewPostgresPool(ctx, &cfg, logger)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, database.RunMigrations(ctx, pool, migrations.FS, logger))
	return pool
}

func TestUserRepository_Integration(t *testing.T) {
	pool := startPostgres(t)
	repo := NewUserRepository(pool)
	ctx := context.Background()

	u := &domain.User{
		FirstName:      "John",
		LastName:       "Doe",
		Email:          "john@example.com",
		PasswordHash:   "$2a$12$hash",
		Phone:          "+1234567890",
		AddressCountry: domain.DefaultCountry,
		IsActive:       true,
		Role:           domain.RoleCustomer,
	}
	require.NoError(t, repo.Create(ctx, u))
	assert.Positive(t, u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	dup := *u
	dup.ID = 0
	assert.ErrorIs(t, repo.Create(ctx, &dup), domain.ErrDuplicateEmail)

	// Exact match: a different case is a different email.
	upper := *u
	upper.ID = 0
	upper.Email = "John@example.com"
	require.NoError(t, repo.Create(ctx, &upper))

	got, err := repo.GetByEmail(ctx, "john@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Nil(t, got.LastLogin)

	now := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, repo.UpdateLastLogin(ctx, u.ID, now))
	require.NoError(t, repo.UpdatePassword(ctx, u.ID, "$2a$12$other"))

	got, err = repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastLogin)
	assert.True(t, now.Equal(*got.LastLogin))
	assert.Equal(t, "$2a$12$other", got.PasswordHash)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	users, err := repo.List(ctx, 0, 10)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}
