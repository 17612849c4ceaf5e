package models

import "time"

// Error code constants. Upper-case with underscores, machine-readable, mapped
// to standard HTTP status codes.
const (
	ErrorCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED" // 429: quota exhausted
	ErrorCodeBadRequest        = "BAD_REQUEST"         // 400: invalid request format
	ErrorCodeNotFound          = "NOT_FOUND"           // 404: resource doesn't exist
	ErrorCodeInvalidRequest    = "INVALID_REQUEST"     // 400: invalid request data
	ErrorCodeInternalError     = "INTERNAL_ERROR"      // 500: server-side error
)

// ErrorDetail carries the machine-readable code, a human-readable message and
// optional structured context for debugging.
type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorResponse is the envelope for all error replies. Success is always
// false; it exists so clients can branch on one field regardless of status.
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

// NewErrorResponse builds an error envelope with the given message and code.
func NewErrorResponse(message, code string) *ErrorResponse {
	return &ErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	}
}

// WithDetails attaches structured context and returns the response for
// chaining.
func (e *ErrorResponse) WithDetails(details map[string]any) *ErrorResponse {
	e.Error.Details = details
	return e
}

// HealthCheckResponse reports overall service health plus per-component
// detail.
type HealthCheckResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Uptime     string                     `json:"uptime,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

type ComponentHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Health status constants.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// NewHealthCheckResponse creates a health response with the given status.
func NewHealthCheckResponse(status string) *HealthCheckResponse {
	return &HealthCheckResponse{
		Status:     status,
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentHealth),
	}
}

// AddComponent records one component's health.
func (h *HealthCheckResponse) AddComponent(name, status, message string) {
	h.Components[name] = ComponentHealth{Status: status, Message: message}
}

// CheckRequest is the body of the explicit decision endpoint.
type CheckRequest struct {
	Identifier string `json:"identifier"`
}

// StatusResponse describes the limiter's live state.
type StatusResponse struct {
	Uptime             string    `json:"uptime"`
	Buckets            int       `json:"buckets"`
	TrackedIdentifiers int       `json:"tracked_identifiers"`
	Timestamp          time.Time `json:"timestamp"`
	Version            string    `json:"version"`
}
