package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/yourorg/softstore/internal/security/audit"
	"github.com/yourorg/softstore/internal/security/auth"
	"github.com/yourorg/softstore/internal/security/ratelimit"
)

type ClaimsContextKey struct{}

// TokenVerifier validates a bearer token, including revocation state
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*auth.Claims, error)
}

// gated paths require a resolved identity; everything else is public.
// Catalog reads and the token lifecycle itself never need a token.
func isGated(r *http.Request) bool {
	if r.URL.Path == "/api/viewer" {
		return true
	}
	if r.Method == http.MethodPost && r.URL.Path == "/api/orders" {
		return true
	}
	return false
}

// JWTMiddleware resolves the bearer token once and injects the claims into
// the request context. Core services receive the already-resolved identity
// and never re-derive it. Gated paths fail closed without a valid token, and
// every closed door leaves an audit record.
func JWTMiddleware(verifier TokenVerifier, auditLog *audit.Logger, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			deny := func(reason string) {
				auditLog.LogDenied(r.Context(), clientIdentity(r), reason)
				writeUnauthorized(w, reason)
			}

			authHeader := r.Header.Get("Authorization")

			if authHeader == "" {
				if isGated(r) {
					deny("missing auth")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			tokenString, err := auth.ExtractToken(authHeader)
			if err != nil {
				if isGated(r) {
					deny("invalid auth")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verifier.VerifyToken(r.Context(), tokenString)
			if err != nil {
				if isGated(r) {
					deny("invalid token")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			if claims.TokenType != auth.TypeAccess {
				if isGated(r) {
					deny("access token required")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimitMiddleware limits mutation endpoints per identity. Reads pass
// through untouched.
func RateLimitMiddleware(limiter *ratelimit.Limiter, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			identity := clientIdentity(r)
			allowed := limiter.Allow(identity)
			if allowed && r.URL.Path == "/api/auth/token" {
				// Credential guessing gets a much tighter budget.
				allowed = limiter.AllowStrict(identity, 10, time.Minute)
			}
			if !allowed {
				log.Warn("rate limit exceeded",
					slog.String("identity", identity),
					slog.String("path", r.URL.Path),
				)
				writeRateLimited(w, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AuditMiddleware records security-relevant mutations before they run
func AuditMiddleware(auditLog *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := int64(0)
			email := ""
			if claims := GetClaimsFromContext(r.Context()); claims != nil {
				userID = claims.UserID
				email = claims.Email
			}

			if r.Method == http.MethodPost {
				switch r.URL.Path {
				case "/api/auth/register":
					auditLog.LogAction(r.Context(), userID, email, "register", "user", "initiated")
				case "/api/auth/revoke":
					auditLog.LogAction(r.Context(), userID, email, "revoke", "token", "initiated")
				case "/api/orders":
					auditLog.LogRedemption(r.Context(), userID, email, "initiated")
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetClaimsFromContext returns the resolved claims, nil when unauthenticated
func GetClaimsFromContext(ctx context.Context) *auth.Claims {
	if c := ctx.Value(ClaimsContextKey{}); c != nil {
		return c.(*auth.Claims)
	}
	return nil
}

// clientIdentity prefers the authenticated user, falling back to remote host
func clientIdentity(r *http.Request) string {
	if claims := GetClaimsFromContext(r.Context()); claims != nil {
		return claims.Email
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	return host
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":{"kind":"permission_denied","message":"` + message + `"}}`))
}

func writeRateLimited(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(`{"error":{"kind":"rate_limited","message":"` + message + `"}}`))
}
