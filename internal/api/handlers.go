// Package api contains the HTTP handlers and routing for the gatekeeper
// service: health, limiter status, the tier table, and the explicit decision
// endpoint used by sibling services that consult the limiter directly.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"gatekeeper/internal/models"
	"gatekeeper/internal/ratelimit"
	"gatekeeper/internal/version"
)

// Handlers contains HTTP handlers for the gatekeeper API.
type Handlers struct {
	decider ratelimit.Decider
	limiter *ratelimit.Limiter
	started time.Time
}

// NewHandlers creates a new handlers instance. The decider is used for
// decisions (it may be an instrumented wrapper); the limiter provides stats
// and the tier table.
func NewHandlers(decider ratelimit.Decider, limiter *ratelimit.Limiter) *Handlers {
	return &Handlers{
		decider: decider,
		limiter: limiter,
		started: time.Now(),
	}
}

// checkResponse is the wire shape of a rate limit decision.
type checkResponse struct {
	Allowed            bool      `json:"allowed"`
	Tier               string    `json:"tier"`
	Limit              int       `json:"limit"`
	Remaining          int       `json:"remaining"`
	ResetAt            time.Time `json:"reset_at"`
	RetryAfterMs       int64     `json:"retry_after_ms,omitempty"`
	WindowMs           int64     `json:"window_ms"`
	AdaptiveMultiplier float64   `json:"adaptive_multiplier"`
}

// tierInfo is the wire shape of one quota tier.
type tierInfo struct {
	Name        string `json:"name"`
	MaxRequests int    `json:"max_requests"`
	BurstLimit  int    `json:"burst_limit"`
	WindowMs    int64  `json:"window_ms"`
	Priority    int    `json:"priority"`
}

// Check handles explicit rate limit decisions for sibling services.
// POST /api/v1/check
func (h *Handlers) Check(w http.ResponseWriter, r *http.Request) {
	var req models.CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "invalid JSON body")
		return
	}
	if req.Identifier == "" {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeInvalidRequest, "identifier is required")
		return
	}

	d := h.decider.Decide(req.Identifier)

	resp := checkResponse{
		Allowed:            d.Allowed,
		Tier:               d.Tier.Name,
		Limit:              d.Limit,
		Remaining:          d.Remaining,
		ResetAt:            d.ResetAt.UTC(),
		WindowMs:           d.Tier.Window.Milliseconds(),
		AdaptiveMultiplier: d.Multiplier,
	}
	if !d.Allowed {
		resp.RetryAfterMs = d.RetryAfter.Milliseconds()
	}

	h.writeJSONResponse(w, http.StatusOK, resp)
}

// ListTiers returns the static quota table, priority ascending.
// GET /api/v1/tiers
func (h *Handlers) ListTiers(w http.ResponseWriter, r *http.Request) {
	tiers := h.limiter.Tiers()
	out := make([]tierInfo, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, tierInfo{
			Name:        t.Name,
			MaxRequests: t.MaxRequests,
			BurstLimit:  t.BurstLimit,
			WindowMs:    t.Window.Milliseconds(),
			Priority:    t.Priority,
		})
	}
	h.writeJSONResponse(w, http.StatusOK, map[string]any{"tiers": out})
}

// Status reports the limiter's live state.
// GET /api/v1/status
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	stats := h.limiter.Stats()
	resp := models.StatusResponse{
		Uptime:             time.Since(h.started).Round(time.Second).String(),
		Buckets:            stats.Buckets,
		TrackedIdentifiers: stats.TrackedIdentifiers,
		Timestamp:          time.Now(),
		Version:            version.GetInfo().Version,
	}
	h.writeJSONResponse(w, http.StatusOK, resp)
}

// HealthCheck reports service health.
// GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := models.NewHealthCheckResponse(models.StatusHealthy)
	resp.Version = version.GetInfo().Version
	resp.Uptime = time.Since(h.started).Round(time.Second).String()
	resp.AddComponent("ratelimiter", models.StatusHealthy, "")
	h.writeJSONResponse(w, http.StatusOK, resp)
}

func (h *Handlers) writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func (h *Handlers) writeErrorResponse(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	errorResp := models.NewErrorResponse(message, code)
	if err := json.NewEncoder(w).Encode(errorResp); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}
