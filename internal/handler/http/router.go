package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quick-fold/quickfold-customer-app/internal/auth"
	"github.com/quick-fold/quickfold-customer-app/internal/domain"
	"github.com/quick-fold/quickfold-customer-app/internal/service"
	"github.com/quick-fold/quickfold-customer-app/pkg/health"
	"github.com/quick-fold/quickfold-customer-app/pkg/middleware"
)

// ServiceName labels HTTP metrics and server spans.
const ServiceName = "quickfold-api"

// RouterConfig carries everything the router needs.
type RouterConfig struct {
	Service       *service.UserService
	Authenticator *auth.Authenticator
	Health        *health.Handler
	Logger        *slog.Logger
	CORS          middleware.CORSConfig

	RateLimitRPS   float64
	RateLimitBurst int

	// TrustProxy makes RemoteAddr follow X-Forwarded-For / X-Real-IP.
	TrustProxy bool

	PprofEnabled    bool
	PprofAllowedIPs []string
}

// NewRouter creates a chi router with all API routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	r := chi.NewRouter()

	// Global middleware
	if cfg.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(ServiceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(ServiceName))

	// Health check endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	if cfg.PprofEnabled {
		middleware.RegisterPprof(r, cfg.PprofAllowedIPs, logger)
	}

	requireAuth := middleware.Auth(tokenValidator(cfg.Authenticator))
	limit := RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, logger)

	authHandler := NewAuthHandler(cfg.Service, logger)
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Use(ContentTypeJSON)

		r.With(limit).Post("/register", authHandler.Register)
		r.With(limit).Post("/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
			r.Put("/me", authHandler.UpdateMe)
			r.Post("/change-password", authHandler.ChangePassword)
		})
	})

	adminHandler := NewAdminHandler(cfg.Service, logger)
	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Use(requireAuth)
		r.Use(middleware.RequireRole(domain.RoleAdmin))

		r.Get("/users", adminHandler.ListUsers)
		r.Get("/users/{id}", adminHandler.GetUser)
	})

	return r
}

// tokenValidator bridges the auth middleware to the authenticator.
func tokenValidator(a *auth.Authenticator) middleware.TokenValidator {
	return func(ctx context.Context, token string) (*middleware.Claims, error) {
		claims, err := a.Authenticate(ctx, token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{
			UserID:    claims.UserID,
			Role:      claims.Role,
			TokenID:   claims.TokenID,
			IssuedAt:  claims.IssuedAt,
			ExpiresAt: claims.ExpiresAt,
		}, nil
	}
}
