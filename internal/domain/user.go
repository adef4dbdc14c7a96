package domain

import (
	"net/http"
	"time"

	apperrors "github.com/quick-fold/quickfold-customer-app/pkg/errors"
)

// DefaultCountry is stored when a registration omits addressCountry.
const DefaultCountry = "US"

// User is a QuickFold account. PasswordHash never leaves the server: it is
// excluded from every JSON encoding.
type User struct {
	ID             int64      `json:"id"`
	FirstName      string     `json:"firstName"`
	LastName       string     `json:"lastName"`
	Email          string     `json:"email"`
	PasswordHash   string     `json:"-"`
	Phone          string     `json:"phone"`
	AddressStreet  string     `json:"addressStreet,omitempty"`
	AddressCity    string     `json:"addressCity,omitempty"`
	AddressState   string     `json:"addressState,omitempty"`
	AddressZipCode string     `json:"addressZipCode,omitempty"`
	AddressCountry string     `json:"addressCountry,omitempty"`
	IsActive       bool       `json:"isActive"`
	Role           string     `json:"role"`
	LastLogin      *time.Time `json:"lastLogin"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// FullName returns "First Last".
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// Address is the optional postal address carried on a User.
type Address struct {
	Street  string `json:"addressStreet" validate:"max=255"`
	City    string `json:"addressCity" validate:"max=100"`
	State   string `json:"addressState" validate:"max=100"`
	ZipCode string `json:"addressZipCode" validate:"max=20"`
	Country string `json:"addressCountry" validate:"max=100"`
}

// SetAddress copies a onto u, defaulting the country.
func (u *User) SetAddress(a Address) {
	u.AddressStreet = a.Street
	u.AddressCity = a.City
	u.AddressState = a.State
	u.AddressZipCode = a.ZipCode
	u.AddressCountry = a.Country
	if u.AddressCountry == "" {
		u.AddressCountry = DefaultCountry
	}
}

var (
	// ErrDuplicateEmail is returned when registering an email that already exists.
	ErrDuplicateEmail = apperrors.New(http.StatusConflict, "DUPLICATE_EMAIL",
		"User already exists with this email", apperrors.ErrAlreadyExists)

	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = apperrors.New(http.StatusUnauthorized, "INVALID_CREDENTIALS",
		"Invalid email or password", apperrors.ErrUnauthorized)
)
