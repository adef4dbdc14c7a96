package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/quick-fold/quickfold-customer-app/internal/domain"
	"github.com/quick-fold/quickfold-customer-app/internal/service"
)

// SampleUsers are the accounts created on an empty database.
var SampleUsers = []service.RegisterInput{
	{
		FirstName: "John",
		LastName:  "Doe",
		Email:     "john.doe@example.com",
		Password:  "password123",
		Phone:     "+1234567890",
		Address:   domain.Address{Street: "123 Main St", City: "New York", State: "NY", ZipCode: "10001", Country: "US"},
		Role:      domain.RoleCustomer,
	},
	{
		FirstName: "Jane",
		LastName:  "Smith",
		Email:     "jane.smith@example.com",
		Password:  "password123",
		Phone:     "+1234567891",
		Address:   domain.Address{Street: "456 Oak Ave", City: "Los Angeles", State: "CA", ZipCode: "90210", Country: "US"},
		Role:      domain.RoleCustomer,
	},
	{
		FirstName: "Admin",
		LastName:  "User",
		Email:     "admin@quickfold.com",
		Password:  "admin123",
		Phone:     "+1234567892",
		Address:   domain.Address{Street: "789 Admin Blvd", City: "Miami", State: "FL", ZipCode: "33101", Country: "US"},
		Role:      domain.RoleAdmin,
	},
}

type seeder interface {
	CountUsers(ctx context.Context) (int, error)
	Register(ctx context.Context, in service.RegisterInput) (*service.AuthResult, error)
}

// Seed creates users when the table is empty and returns how many were
// created. A user that already exists is skipped, not fatal.
func Seed(ctx context.Context, svc seeder, users []service.RegisterInput, logger *slog.Logger) (int, error) {
	existing, err := svc.CountUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	if existing > 0 {
		logger.Info("database already contains users, skipping seed", slog.Int("count", existing))
		return 0, nil
	}

	created := 0
	for _, in := range users {
		res, err := svc.Register(ctx, in)
		if err != nil {
			if errors.Is(err, domain.ErrDuplicateEmail) {
				logger.Warn("seed user already exists", slog.String("email", in.Email))
				continue
			}
			return created, fmt.Errorf("seed user %s: %w", in.Email, err)
		}
		created++
		logger.Info("created user",
			slog.Int64("user_id", res.User.ID),
			slog.String("email", res.User.Email),
			slog.String("role", res.User.Role),
		)
	}
	return created, nil
}
