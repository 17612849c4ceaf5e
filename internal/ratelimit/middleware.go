package ratelimit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"gatekeeper/internal/models"
)

// Middleware returns HTTP middleware that enforces rate limits on every
// request. The identifier is resolved from the API key when present,
// otherwise from the client IP. Rate limit headers are set on allowed and
// denied responses alike.
func Middleware(limiter Decider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identifier := IdentifierFromRequest(r)
			decision := limiter.Decide(identifier)

			WriteHeaders(w, decision)

			if !decision.Allowed {
				retryAfterSecs := int(math.Ceil(decision.RetryAfter.Seconds()))
				if retryAfterSecs < 1 {
					retryAfterSecs = 1
				}
				w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSecs))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)

				errorResp := models.NewErrorResponse("Rate limit exceeded", models.ErrorCodeRateLimitExceeded).
					WithDetails(map[string]any{
						"tier":               decision.Tier.Name,
						"limit":              decision.Limit,
						"windowMs":           decision.Tier.Window.Milliseconds(),
						"retryAfter":         retryAfterSecs,
						"adaptiveMultiplier": decision.Multiplier,
					})
				json.NewEncoder(w).Encode(errorResp)

				slog.Warn("Rate limit exceeded",
					"identifier", identifier,
					"tier", decision.Tier.Name,
					"limit", decision.Limit,
					"retry_after", retryAfterSecs,
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// WriteHeaders sets the X-RateLimit-* response headers for a decision. The
// adaptive header is only present when the multiplier deviates from neutral.
func WriteHeaders(w http.ResponseWriter, d Decision) {
	remaining := d.Remaining
	if !d.Allowed {
		remaining = 0
	}
	w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", d.Limit))
	w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
	w.Header().Set("X-RateLimit-Reset", d.ResetAt.UTC().Format(time.RFC3339))
	w.Header().Set("X-RateLimit-Tier", d.Tier.Name)

	if adaptive := fmt.Sprintf("%.2f", d.Multiplier); adaptive != "1.00" {
		w.Header().Set("X-RateLimit-Adaptive", adaptive)
	}
}

// IdentifierFromRequest resolves the caller identity used to partition rate
// limit state: "api:<key>" when an API key is presented, "ip:<address>"
// otherwise. The result is never empty.
func IdentifierFromRequest(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return APIKeyPrefix + key
	}

	const prefix = "Bearer "
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, prefix) {
		if token := auth[len(prefix):]; token != "" {
			return APIKeyPrefix + token
		}
	}

	if ip := clientIP(r); ip != "" {
		return IPPrefix + ip
	}
	return FallbackIdentifier
}

// clientIP extracts the client IP from the request, checking proxy headers.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	return r.RemoteAddr
}
