// Package client talks to the QuickFold auth API and keeps the local session
// cache in step with the server's answers.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/quick-fold/quickfold-customer-app/internal/domain"
	"github.com/quick-fold/quickfold-customer-app/pkg/httpclient"
)

// BreakerName labels the API circuit breaker in logs and metrics.
const BreakerName = "quickfold-api"

// ErrTransport wraps failures that never produced an answer from the server:
// connection errors, timeouts, 5xx responses and an open circuit breaker.
var ErrTransport = errors.New("transport error")

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	Phone          string `json:"phone"`
	AddressStreet  string `json:"addressStreet,omitempty"`
	AddressCity    string `json:"addressCity,omitempty"`
	AddressState   string `json:"addressState,omitempty"`
	AddressZipCode string `json:"addressZipCode,omitempty"`
	AddressCountry string `json:"addressCountry,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is the data of a successful register or login.
type AuthResponse struct {
	User  *domain.User `json:"user"`
	Token string       `json:"token"`
}

type meResponse struct {
	User *domain.User `json:"user"`
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
}

// API is a thin typed wrapper over the auth endpoints.
type API struct {
	baseURL string
	http    *httpclient.CircuitBreakerClient
}

// NewAPI creates an API rooted at baseURL, e.g. "http://localhost:5000/api/v1".
func NewAPI(baseURL string, cfg httpclient.Config, logger *slog.Logger) *API {
	return &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: httpclient.NewCircuitBreakerClient(
			httpclient.New(cfg),
			httpclient.DefaultCircuitBreakerConfig(BreakerName),
			logger,
		),
	}
}

// BreakerState reports the circuit breaker state ("closed", "open", "half-open").
func (a *API) BreakerState() string {
	return a.http.State().String()
}

// Close releases idle connections.
func (a *API) Close() {
	a.http.CloseIdleConnections()
}

// Register creates an account.
func (a *API) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	var out AuthResponse
	if err := a.do(ctx, http.MethodPost, "/auth/register", "", req, &out); err != nil {
		return nil, err
	}
	if err := out.validate(); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges credentials for a token.
func (a *API) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var out AuthResponse
	if err := a.do(ctx, http.MethodPost, "/auth/login", "", loginRequest{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	if err := out.validate(); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout tells the server the token is no longer in use.
func (a *API) Logout(ctx context.Context, token string) error {
	return a.do(ctx, http.MethodPost, "/auth/logout", token, nil, nil)
}

// Me fetches the profile behind token.
func (a *API) Me(ctx context.Context, token string) (*domain.User, error) {
	var out meResponse
	if err := a.do(ctx, http.MethodGet, "/auth/me", token, nil, &out); err != nil {
		return nil, err
	}
	if out.User == nil {
		return nil, fmt.Errorf("%w: response has no user", ErrTransport)
	}
	return out.User, nil
}

// Ready queries the server's readiness probe at the root of baseURL's host
// and returns the reported status ("up", "degraded" or "down").
func (a *API) Ready(ctx context.Context) (string, error) {
	u, err := url.Parse(a.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	u.Path = "/health/ready"

	resp, err := a.http.Get(ctx, u.String())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return "", fmt.Errorf("%w: decode health: %w", ErrTransport, err)
	}
	return health.Status, nil
}

func (r *AuthResponse) validate() error {
	if r.User == nil || r.Token == "" {
		return fmt.Errorf("%w: incomplete auth response", ErrTransport)
	}
	return nil
}

func (a *API) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := a.http.Do(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return httpclient.ParseResponseError(resp)
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrTransport, err)
	}
	if !env.Success {
		return fmt.Errorf("%w: unsuccessful response: %s", ErrTransport, env.Message)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: decode data: %w", ErrTransport, err)
	}
	return nil
}
