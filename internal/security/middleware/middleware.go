package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/yourorg/communityhub/internal/security/audit"
	"github.com/yourorg/communityhub/internal/security/auth"
	"github.com/yourorg/communityhub/internal/security/ratelimit"
)

type ClaimsContextKey struct{}

// publicPath reports whether the path is reachable without a session token
func publicPath(path string) bool {
	switch path {
	case "/healthz", "/readyz", "/metrics", "/api/auth/login":
		return true
	default:
		return false
	}
}

func JWTMiddleware(tm *auth.TokenManager, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// CORS preflights carry no credentials.
			if r.Method == http.MethodOptions || publicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, `{"error":"missing auth"}`, http.StatusUnauthorized)
				return
			}

			tokenString, err := auth.ExtractToken(authHeader)
			if err != nil {
				http.Error(w, `{"error":"invalid auth"}`, http.StatusUnauthorized)
				return
			}

			claims, err := tm.ValidateToken(tokenString)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimitMiddleware limits requests per signed-in user. strictLogin
// additionally applies a tight window to the sign-in endpoint, keyed by
// remote address since there is no session yet.
func RateLimitMiddleware(limiter *ratelimit.Limiter, strictLogin bool, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/auth/login" {
				if strictLogin && !limiter.AllowStrict(r.RemoteAddr, 10, time.Minute) {
					http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			if publicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			key := ""
			if claims := GetClaimsFromContext(r.Context()); claims != nil {
				key = strconv.FormatInt(claims.UserID, 10)
			}

			if !limiter.Allow(key) {
				http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AuditMiddleware records the initiation of privileged mutations
func AuditMiddleware(auditLog *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actorID := ""
			if claims := GetClaimsFromContext(r.Context()); claims != nil {
				actorID = strconv.FormatInt(claims.UserID, 10)
			}

			if r.Method == http.MethodPost {
				switch {
				case pathAction(r, "review"):
					auditLog.LogReview(r.Context(), actorID, r.PathValue("id"), "", "initiated")
				case pathAction(r, "role"):
					auditLog.LogAction(r.Context(), actorID, "change_role", "user", r.PathValue("id"), "initiated", "")
				case pathAction(r, "ban"):
					auditLog.LogAction(r.Context(), actorID, "ban", "user", r.PathValue("id"), "initiated", "")
				}
			}
			if r.Method == http.MethodDelete {
				auditLog.LogAction(r.Context(), actorID, "delete", "user", r.PathValue("id"), "initiated", "")
			}

			next.ServeHTTP(w, r)
		})
	}
}

func pathAction(r *http.Request, action string) bool {
	p := r.URL.Path
	n := len(p) - len(action)
	return n > 0 && p[n:] == action && p[n-1] == '/'
}

func GetClaimsFromContext(ctx context.Context) *auth.Claims {
	if c := ctx.Value(ClaimsContextKey{}); c != nil {
		return c.(*auth.Claims)
	}
	return nil
}
