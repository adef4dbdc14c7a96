package domain

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/quick-fold/quickfold-customer-app/pkg/errors"
)

func TestIsValidRole(t *testing.T) {
	for _, r := range ValidRoles() {
		assert.True(t, IsValidRole(r), r)
	}
	for _, r := range []string{"", "ADMIN", "seller", "superadmin"} {
		assert.False(t, IsValidRole(r), r)
	}
}

func TestUser_JSONOmitsPasswordHash(t *testing.T) {
	u := User{
		ID:           1,
		FirstName:    "John",
		LastName:     "Doe",
		Email:        "john@example.com",
		PasswordHash: "$2a$12$abcdefghijklmnopqrstuv",
		Phone:        "+1234567890",
		IsActive:     true,
		Role:         RoleCustomer,
		CreatedAt:    time.Now(),
	}

	raw, err := json.Marshal(u)
	require.NoError(t, err)

	assert.NotContains(t, string(raw), "$2a$12$")
	assert.NotContains(t, string(raw), "password")

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "john@example.com", out["email"])
	assert.Equal(t, "customer", out["role"])
	assert.Contains(t, out, "lastLogin")
	assert.Nil(t, out["lastLogin"])
}

func TestUser_SetAddressDefaultsCountry(t *testing.T) {
	var u User
	u.SetAddress(Address{Street: "123 Main St", City: "New York", State: "NY", ZipCode: "10001"})
	assert.Equal(t, "US", u.AddressCountry)
	assert.Equal(t, "123 Main St", u.AddressStreet)

	u.SetAddress(Address{Country: "CA"})
	assert.Equal(t, "CA", u.AddressCountry)
}

func TestUser_FullName(t *testing.T) {
	u := User{FirstName: "Jane", LastName: "Smith"}
	assert.Equal(t, "Jane Smith", u.FullName())
}

func TestDomainErrors(t *testing.T) {
	assert.Equal(t, http.StatusConflict, ErrDuplicateEmail.Status)
	assert.Equal(t, "DUPLICATE_EMAIL", ErrDuplicateEmail.Code)
	assert.True(t, errors.Is(ErrDuplicateEmail, apperrors.ErrAlreadyExists))

	assert.Equal(t, http.StatusUnauthorized, ErrInvalidCredentials.Status)
	assert.Equal(t, "INVALID_CREDENTIALS", ErrInvalidCredentials.Code)
	assert.Equal(t, "Invalid email or password", ErrInvalidCredentials.Message)
	assert.True(t, errors.Is(ErrInvalidCredentials, apperrors.ErrUnauthorized))
}
