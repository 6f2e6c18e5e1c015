package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/vncsmyrnk/usersync/internal/core/authz"
	"github.com/vncsmyrnk/usersync/internal/core/domain"
	"github.com/vncsmyrnk/usersync/internal/core/ports"
)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

type RouterConfig struct {
	AllowedOrigins []string
	Logger         *slog.Logger
	Health         map[string]HealthCheck
	// RateLimiter guards the unauthenticated auth endpoints; nil disables it.
	RateLimiter *RateLimiter
	// DocsInstance is the swag instance served at /api-docs. The docs
	// package must be linked in for it to resolve. Empty disables the route.
	DocsInstance string
}

func newBaseRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(AccessLog(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", healthHandler(cfg.Health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	if cfg.DocsInstance != "" {
		r.Get("/api-docs/*", httpSwagger.Handler(
			httpSwagger.URL("/api-docs/doc.json"),
			httpSwagger.InstanceName(cfg.DocsInstance),
		))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Route not found")
	})
	return r
}

func rateLimited(rl *RateLimiter) func(http.Handler) http.Handler {
	if rl == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return rl.Middleware
}

// NewAuthRouter serves the identity service API.
func NewAuthRouter(cfg RouterConfig, authHandler *AuthHandler, userHandler *UserHandler, validator ports.AccessValidator) http.Handler {
	r := newBaseRouter(cfg)
	authenticate := Authenticate(validator, cfg.Logger)
	adminOnly := Require(authz.HasRole(domain.RoleAdmin), cfg.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(rateLimited(cfg.RateLimiter)).Post("/login", authHandler.Login)
			r.With(rateLimited(cfg.RateLimiter)).Post("/refresh", authHandler.Refresh)
			r.With(authenticate).Post("/logout", authHandler.Logout)
		})

		r.Route("/users", func(r chi.Router) {
			r.With(rateLimited(cfg.RateLimiter)).Post("/register", userHandler.Register)

			r.Group(func(r chi.Router) {
				r.Use(authenticate)
				r.Get("/me", userHandler.GetMe)
				r.Patch("/me", userHandler.UpdateMe)
				r.Delete("/me", userHandler.DeleteMe)

				r.Group(func(r chi.Router) {
					r.Use(adminOnly)
					r.Get("/", userHandler.List)
					r.Get("/{id}", userHandler.Get)
					r.Patch("/{id}", userHandler.Update)
					r.Delete("/{id}", userHandler.Delete)
				})
			})
		})
	})

	return r
}

// NewProductRouter serves the product service API. It trusts access tokens
// signed with the shared access secret and never calls the identity service.
func NewProductRouter(cfg RouterConfig, productHandler *ProductHandler, validator ports.AccessValidator) http.Handler {
	r := newBaseRouter(cfg)

	r.Route("/api/products", func(r chi.Router) {
		r.Use(Authenticate(validator, cfg.Logger))
		r.Post("/", productHandler.CreateProduct)
		r.Get("/", productHandler.ListProducts)
		r.Get("/{id}", productHandler.GetProduct)
		r.Patch("/{id}", productHandler.UpdateProduct)
		r.Delete("/{id}", productHandler.DeleteProduct)
	})

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}

		body := healthResponse{Status: "success", Checks: results}
		if status != http.StatusOK {
			body.Status = "error"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
