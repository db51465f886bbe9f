package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/angelmondragon/bidhouse-backend/api/responses"
	pkgerrors "github.com/angelmondragon/bidhouse-backend/pkg/errors"
	"github.com/angelmondragon/bidhouse-backend/pkg/logger"
	"github.com/angelmondragon/bidhouse-backend/pkg/ratelimit"
)

// ActionRateLimit caps how often one authenticated user may hit an action.
// It must run after Auth.
func ActionRateLimit(limiter ratelimit.Limiter, action string, policy ratelimit.Policy, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || policy.Limit <= 0 || policy.Window <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			userID := UserIDFromContext(ctx)
			if userID == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			decision, err := limiter.Allow(ctx, ratelimit.Key(userID, action), policy)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
				return
			}
			if !decision.Allowed {
				if logg != nil {
					logg.Warn(logg.WithFields(ctx, map[string]any{
						"action":   action,
						"attempts": decision.Count,
						"limit":    decision.Limit,
					}), "rate_limit.blocked")
				}
				if decision.RetryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(decision.RetryAfter.Seconds()+0.999)))
				}
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IPRateLimit applies a per-address token bucket to unauthenticated traffic.
func IPRateLimit(visitors *ratelimit.Visitors, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if visitors == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !visitors.Allow(ip) {
				if logg != nil {
					logg.Warn(logg.WithField(r.Context(), "ip", ip), "ip_rate_limit.blocked")
				}
				w.Header().Set("Retry-After", "1")
				responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
