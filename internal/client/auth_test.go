package client

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/quick-fold/quickfold-customer-app/internal/domain"
	"github.com/quick-fold/quickfold-customer-app/internal/session"
	apperrors "github.com/quick-fold/quickfold-customer-app/pkg/errors"
	"github.com/quick-fold/quickfold-customer-app/pkg/httpclient"
	"github.com/quick-fold/quickfold-customer-app/pkg/httputil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testUser() *domain.User {
	return &domain.User{
		ID:        7,
		FirstName: "John",
		LastName:  "Doe",
		Email:     "john.doe@example.com",
		Phone:     "+1234567890",
		Role:      domain.RoleCustomer,
		IsActive:  true,
	}
}

func tokenExpiringAt(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "7",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("client-test-secret"))
	require.NoError(t, err)
	return tok
}

type authData struct {
	User  *domain.User `json:"user"`
	Token string       `json:"token"`
}

// fakeServer records what the client sent and lets each test pick the answer.
type fakeServer struct {
	mu      sync.Mutex
	bearers []string
	bodies  []map[string]any
	paths   []string
}

func (f *fakeServer) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, r.Method+" "+r.URL.Path)
	f.bearers = append(f.bearers, r.Header.Get("Authorization"))
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.bodies = append(f.bodies, body)
}

func (f *fakeServer) seen() (paths, bearers []string, bodies []map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...), append([]string(nil), f.bearers...), append([]map[string]any(nil), f.bodies...)
}

type testEnv struct {
	svc    *AuthService
	api    *API
	cache  *session.Cache
	server *fakeServer
}

func newTestEnv(t *testing.T, handler func(f *fakeServer) http.Handler) *testEnv {
	t.Helper()

	f := &fakeServer{}
	srv := httptest.NewServer(handler(f))
	t.Cleanup(srv.Close)

	return newTestEnvAt(t, srv.URL+"/api/v1", f)
}

func newTestEnvAt(t *testing.T, baseURL string, f *fakeServer) *testEnv {
	t.Helper()

	store, err := session.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := httpclient.DefaultConfig()
	cfg.Timeout = 2 * time.Second
	cfg.RetryWaitMin = time.Millisecond
	cfg.RetryWaitMax = time.Millisecond

	api := NewAPI(baseURL, cfg, discardLogger())
	t.Cleanup(api.Close)

	cache := session.NewCache(store, discardLogger())
	return &testEnv{
		svc:    NewAuthService(api, cache, discardLogger()),
		api:    api,
		cache:  cache,
		server: f,
	}
}

// authServer answers register and login with user/token, logout with a
// message and /me with the user.
func authServer(token string, user *domain.User) func(f *fakeServer) http.Handler {
	return func(f *fakeServer) http.Handler {
		mux := http.NewServeMux()
		mux.HandleFunc("POST /api/v1/auth/register", func(w http.ResponseWriter, r *http.Request) {
			f.record(r)
			httputil.WriteSuccess(w, http.StatusCreated, authData{User: user, Token: token})
		})
		mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
			f.record(r)
			httputil.WriteSuccess(w, http.StatusOK, authData{User: user, Token: token})
		})
		mux.HandleFunc("POST /api/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
			f.record(r)
			httputil.WriteMessage(w, http.StatusOK, "Logged out successfully")
		})
		mux.HandleFunc("GET /api/v1/auth/me", func(w http.ResponseWriter, r *http.Request) {
			f.record(r)
			httputil.WriteSuccess(w, http.StatusOK, map[string]any{"user": user})
		})
		return mux
	}
}

// failingServer answers every request with err rendered as an envelope.
func failingServer(err error) func(f *fakeServer) http.Handler {
	return func(f *fakeServer) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			f.record(r)
			httputil.WriteError(w, r, err, discardLogger())
		})
	}
}

func seedSession(t *testing.T, env *testEnv, token string) {
	t.Helper()
	require.NoError(t, env.cache.SaveSession(context.Background(), token, testUser()))
}

// --- Login / Register ---

func TestLogin_SavesSession(t *testing.T) {
	token := tokenExpiringAt(t, time.Now().Add(time.Hour))
	env := newTestEnv(t, authServer(token, testUser()))
	ctx := context.Background()

	res := env.svc.Login(ctx, "john.doe@example.com", "password123")

	require.True(t, res.Success, res.Message)
	assert.Equal(t, MsgLoggedIn, res.Message)
	assert.Equal(t, token, res.Token)
	assert.Equal(t, "john.doe@example.com", res.User.Email)

	assert.Equal(t, token, env.cache.Token(ctx))
	assert.Equal(t, int64(7), env.cache.Profile(ctx).ID)
	assert.True(t, env.svc.IsAuthenticated(ctx))

	_, bearers, bodies := env.server.seen()
	require.Len(t, bodies, 1)
	assert.Equal(t, "john.doe@example.com", bodies[0]["email"])
	assert.Equal(t, "password123", bodies[0]["password"])
	assert.Empty(t, bearers[0])
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := newTestEnv(t, failingServer(domain.ErrInvalidCredentials))
	ctx := context.Background()

	res := env.svc.Login(ctx, "john.doe@example.com", "wrong")

	assert.False(t, res.Success)
	assert.Equal(t, "Invalid email or password", res.Message)
	assert.Empty(t, env.cache.Token(ctx))
	assert.False(t, env.svc.IsAuthenticated(ctx))
}

func TestLogin_FailureKeepsExistingSession(t *testing.T) {
	env := newTestEnv(t, failingServer(domain.ErrInvalidCredentials))
	ctx := context.Background()
	old := tokenExpiringAt(t, time.Now().Add(time.Hour))
	seedSession(t, env, old)

	res := env.svc.Login(ctx, "jane.smith@example.com", "wrong")

	assert.False(t, res.Success)
	assert.Equal(t, old, env.cache.Token(ctx))
}

func TestLogin_IncompleteResponseWritesNothing(t *testing.T) {
	env := newTestEnv(t, authServer("", testUser()))
	ctx := context.Background()

	res := env.svc.Login(ctx, "john.doe@example.com", "password123")

	assert.False(t, res.Success)
	assert.Equal(t, MsgUnreachable, res.Message)
	assert.Empty(t, env.cache.Token(ctx))
	assert.Nil(t, env.cache.Profile(ctx))
}

func TestLogin_CancelledWritesNothing(t *testing.T) {
	release := make(chan struct{})
	env := newTestEnv(t, func(f *fakeServer) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-release:
			}
		})
	})
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res := env.svc.Login(ctx, "john.doe@example.com", "password123")

	assert.False(t, res.Success)
	assert.Equal(t, MsgCancelled, res.Message)
	assert.Empty(t, env.cache.Token(context.Background()))
}

func TestLogin_ServerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL + "/api/v1"
	srv.Close()

	env := newTestEnvAt(t, baseURL, &fakeServer{})
	res := env.svc.Login(context.Background(), "john.doe@example.com", "password123")

	assert.False(t, res.Success)
	assert.Equal(t, MsgUnreachable, res.Message)
}

func TestLogin_ServerErrorIsTransport(t *testing.T) {
	env := newTestEnv(t, failingServer(apperrors.ErrInternal))

	_, err := env.api.Login(context.Background(), "john.doe@example.com", "password123")
	require.ErrorIs(t, err, ErrTransport)

	res := env.svc.Login(context.Background(), "john.doe@example.com", "password123")
	assert.Equal(t, MsgUnreachable, res.Message)
}

func TestLogin_CircuitOpens(t *testing.T) {
	env := newTestEnv(t, failingServer(apperrors.ErrInternal))
	ctx := context.Background()

	for range 4 {
		res := env.svc.Login(ctx, "john.doe@example.com", "password123")
		require.False(t, res.Success)
	}
	assert.Equal(t, "open", env.api.BreakerState())

	res := env.svc.Login(ctx, "john.doe@example.com", "password123")
	assert.Equal(t, MsgUnavailable, res.Message)
	paths, _, _ := env.server.seen()
	assert.Len(t, paths, 4)
}

func TestLogin_BadRequestDoesNotTripBreaker(t *testing.T) {
	env := newTestEnv(t, failingServer(domain.ErrInvalidCredentials))

	for range 6 {
		env.svc.Login(context.Background(), "john.doe@example.com", "wrong")
	}
	assert.Equal(t, "closed", env.api.BreakerState())
}

func TestRegister_SavesSession(t *testing.T) {
	token := tokenExpiringAt(t, time.Now().Add(time.Hour))
	env := newTestEnv(t, authServer(token, testUser()))
	ctx := context.Background()

	res := env.svc.Register(ctx, RegisterRequest{
		FirstName: "John",
		LastName:  "Doe",
		Email:     "john.doe@example.com",
		Password:  "password123",
		Phone:     "+1234567890",
	})

	require.True(t, res.Success, res.Message)
	assert.Equal(t, MsgRegistered, res.Message)
	assert.Equal(t, token, env.cache.Token(ctx))

	_, _, bodies := env.server.seen()
	require.Len(t, bodies, 1)
	body := bodies[0]
	assert.Equal(t, "John", body["firstName"])
	assert.NotContains(t, body, "addressStreet")
}

func TestRegister_Duplicate(t *testing.T) {
	env := newTestEnv(t, failingServer(domain.ErrDuplicateEmail))

	res := env.svc.Register(context.Background(), RegisterRequest{Email: "john.doe@example.com"})

	assert.False(t, res.Success)
	assert.Equal(t, "User already exists with this email", res.Message)
}

// --- Logout ---

func TestLogout_ClearsAndSendsBearer(t *testing.T) {
	token := tokenExpiringAt(t, time.Now().Add(time.Hour))
	env := newTestEnv(t, authServer(token, testUser()))
	ctx := context.Background()
	seedSession(t, env, token)

	res := env.svc.Logout(ctx)

	assert.True(t, res.Success)
	assert.Equal(t, MsgLoggedOut, res.Message)
	assert.False(t, env.cache.IsAuthenticated(ctx))
	_, bearers, _ := env.server.seen()
	assert.Equal(t, []string{"Bearer " + token}, bearers)
}

func TestLogout_ClearsWhenServerFails(t *testing.T) {
	env := newTestEnv(t, failingServer(apperrors.ErrInternal))
	ctx := context.Background()
	seedSession(t, env, tokenExpiringAt(t, time.Now().Add(time.Hour)))

	res := env.svc.Logout(ctx)

	assert.True(t, res.Success)
	assert.False(t, env.cache.IsAuthenticated(ctx))
}

func TestLogout_ClearsWhenCancelled(t *testing.T) {
	env := newTestEnv(t, authServer("unused", testUser()))
	seedSession(t, env, tokenExpiringAt(t, time.Now().Add(time.Hour)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := env.svc.Logout(ctx)

	assert.True(t, res.Success)
	assert.False(t, env.cache.IsAuthenticated(context.Background()))
}

func TestLogout_WithoutSessionSkipsServer(t *testing.T) {
	env := newTestEnv(t, authServer("unused", testUser()))

	res := env.svc.Logout(context.Background())

	assert.True(t, res.Success)
	paths, _, _ := env.server.seen()
	assert.Empty(t, paths)
}

// --- RefreshUser ---

func TestRefreshUser_UpdatesProfile(t *testing.T) {
	fresh := testUser()
	fresh.Phone = "+1987654321"
	token := tokenExpiringAt(t, time.Now().Add(time.Hour))
	env := newTestEnv(t, authServer(token, fresh))
	ctx := context.Background()
	seedSession(t, env, token)

	res := env.svc.RefreshUser(ctx)

	require.True(t, res.Success, res.Message)
	assert.Equal(t, "+1987654321", res.User.Phone)
	assert.Equal(t, "+1987654321", env.svc.CurrentUser(ctx).Phone)
	assert.Equal(t, token, env.cache.Token(ctx))
	paths, _, _ := env.server.seen()
	assert.Equal(t, []string{"GET /api/v1/auth/me"}, paths)
}

func TestRefreshUser_UnauthorizedClearsSession(t *testing.T) {
	expired := apperrors.New(http.StatusUnauthorized, "TOKEN_EXPIRED", "Token expired", apperrors.ErrUnauthorized)
	env := newTestEnv(t, failingServer(expired))
	ctx := context.Background()
	seedSession(t, env, tokenExpiringAt(t, time.Now().Add(time.Hour)))

	res := env.svc.RefreshUser(ctx)

	assert.False(t, res.Success)
	assert.Equal(t, "Token expired", res.Message)
	assert.False(t, env.cache.IsAuthenticated(ctx))
}

func TestRefreshUser_TransportErrorKeepsSession(t *testing.T) {
	env := newTestEnv(t, failingServer(apperrors.ErrInternal))
	ctx := context.Background()
	seedSession(t, env, tokenExpiringAt(t, time.Now().Add(time.Hour)))

	res := env.svc.RefreshUser(ctx)

	assert.False(t, res.Success)
	assert.True(t, env.cache.IsAuthenticated(ctx))
}

func TestRefreshUser_NotLoggedIn(t *testing.T) {
	env := newTestEnv(t, authServer("unused", testUser()))

	res := env.svc.RefreshUser(context.Background())

	assert.False(t, res.Success)
	assert.Equal(t, MsgNotLoggedIn, res.Message)
	paths, _, _ := env.server.seen()
	assert.Empty(t, paths)
}

// --- IsAuthenticated ---

func TestIsAuthenticated_ExpiredTokenClears(t *testing.T) {
	env := newTestEnv(t, authServer("unused", testUser()))
	ctx := context.Background()
	seedSession(t, env, tokenExpiringAt(t, time.Now().Add(-time.Minute)))

	assert.False(t, env.svc.IsAuthenticated(ctx))
	assert.Empty(t, env.cache.Token(ctx))
	assert.Nil(t, env.svc.CurrentUser(ctx))
}

func TestIsAuthenticated_UsesClock(t *testing.T) {
	env := newTestEnv(t, authServer("unused", testUser()))
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)
	seedSession(t, env, tokenExpiringAt(t, exp))

	assert.True(t, env.svc.IsAuthenticated(ctx))

	env.svc.now = func() time.Time { return exp.Add(time.Second) }
	assert.False(t, env.svc.IsAuthenticated(ctx))
}

func TestIsAuthenticated_OpaqueTokenTrustsPresence(t *testing.T) {
	env := newTestEnv(t, authServer("unused", testUser()))
	seedSession(t, env, "not-a-jwt")

	assert.True(t, env.svc.IsAuthenticated(context.Background()))
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(7 * 24 * time.Hour).Truncate(time.Second)

	got, ok := TokenExpiry(tokenExpiringAt(t, exp))
	require.True(t, ok)
	assert.True(t, exp.Equal(got))

	_, ok = TokenExpiry("garbage")
	assert.False(t, ok)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "7"}).
		SignedString([]byte("client-test-secret"))
	require.NoError(t, err)
	_, ok = TokenExpiry(noExp)
	assert.False(t, ok)
}

// --- API ---

func TestAPI_Ready(t *testing.T) {
	env := newTestEnv(t, func(f *fakeServer) http.Handler {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /health/ready", func(w http.ResponseWriter, r *http.Request) {
			f.record(r)
			httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "degraded"})
		})
		return mux
	})

	status, err := env.api.Ready(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "degraded", status)

	paths, _, _ := env.server.seen()
	assert.Equal(t, []string{"GET /health/ready"}, paths)
}
