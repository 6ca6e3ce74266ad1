package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/warden/internal/services"
	pkghttp "github.com/BradenHooton/warden/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// ClientContextKey is the key for storing the client context in the request context
	ClientContextKey contextKey = "client_context"
)

// ContextMiddlewareConfig configures ClientContextMiddleware
type ContextMiddlewareConfig struct {
	Cookie       CookieConfig
	CookieMaxAge int // seconds
	Logger       *slog.Logger
}

// ClientContextMiddleware resolves the caller's client context from its cookie,
// opening a new one when the cookie is missing, invalid, or names a context
// that no longer exists.
func ClientContextMiddleware(tm *ContextTokenManager, registry *ContextRegistry, cfg ContextMiddlewareConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var cc *ClientContext

			if token, err := GetContextCookie(r); err == nil {
				if id, err := tm.Validate(token); err == nil {
					cc, _ = registry.Lookup(id)
				}
			}

			if cc == nil {
				cc = registry.Open()
				token, err := tm.Issue(cc.ID)
				if err != nil {
					registry.Close(cc.ID)
					if cfg.Logger != nil {
						cfg.Logger.Error("failed to issue context token", slog.Any("error", err))
					}
					pkghttp.WriteInternalError(w, "Internal server error")
					return
				}
				SetContextCookie(w, token, cfg.CookieMaxAge, cfg.Cookie)
			}

			next.ServeHTTP(w, r.WithContext(WithClientContext(r.Context(), cc)))
		})
	}
}

// RequireLoggedIn rejects requests whose client context has no logged in account.
// Must be used after ClientContextMiddleware.
func RequireLoggedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cc := GetClientContext(r)
		if cc == nil || !cc.Session.Active() {
			pkghttp.WriteUnauthorized(w, "No active session")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// GetClientContext extracts the client context from the request context
func GetClientContext(r *http.Request) *ClientContext {
	cc, ok := r.Context().Value(ClientContextKey).(*ClientContext)
	if !ok {
		return nil
	}
	return cc
}

// GetSessionManager returns the session manager of the request's client context
func GetSessionManager(r *http.Request) *services.AuthSessionManager {
	cc := GetClientContext(r)
	if cc == nil {
		return nil
	}
	return cc.Manager
}

// WithClientContext returns a copy of ctx carrying cc
func WithClientContext(ctx context.Context, cc *ClientContext) context.Context {
	return context.WithValue(ctx, ClientContextKey, cc)
}
