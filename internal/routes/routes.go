package routes

import (
	"github.com/BradenHooton/warden/internal/auth"
	"github.com/BradenHooton/warden/internal/handlers"
	"github.com/BradenHooton/warden/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	tokenManager *auth.ContextTokenManager,
	registry *auth.ContextRegistry,
	contextConfig auth.ContextMiddlewareConfig,
	rateLimitConfig middleware.RateLimitConfig,
) {
	router.Group(func(r chi.Router) {
		// every request below runs inside exactly one client context
		r.Use(auth.ClientContextMiddleware(tokenManager, registry, contextConfig))

		r.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/me", authHandler.Me)

		// Logged in accounts only
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireLoggedIn)
			r.Post("/auth/password", authHandler.ChangePassword)
			r.Post("/accounts", authHandler.Register)
		})
	})
}
