package port

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig wires the identity routes.
type RouterConfig struct {
	Auth    *AuthHandler
	Profile *ProfileHandler
	Tokens  tokenValidator
	Limiter *IPRateLimiter
	Origin  string
	Logger  *slog.Logger

	// TrustProxy takes the client address from X-Real-IP or X-Forwarded-For.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool
}

// Mount registers CORS, the per-IP limiter and every identity route on r.
// It adds middleware, so it must run before any route is registered on r.
func Mount(r chi.Router, cfg RouterConfig) {
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.Origin},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	if cfg.Limiter != nil {
		r.Use(cfg.Limiter.Middleware(cfg.Logger))
	}

	r.Route("/auth", func(ar chi.Router) {
		ar.Post("/request-otp", cfg.Auth.RequestOTP)
		ar.Post("/verify-otp", cfg.Auth.VerifyOTP)
		ar.Post("/resend-otp", cfg.Auth.ResendOTP)
	})

	r.Group(func(pr chi.Router) {
		pr.Use(RequireAuth(cfg.Tokens, cfg.Logger))
		pr.Get("/users/me", cfg.Profile.Get)
		pr.Put("/users/me", cfg.Profile.Update)
	})
}
