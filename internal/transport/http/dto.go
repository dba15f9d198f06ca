package http

// HealthResponse is the health endpoint payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse is the readiness endpoint payload.
type ReadyResponse struct {
	Status string `json:"status"`
	// TokenValidation reports whether the validator has a JWKS URL to work
	// with. A gateway without one still serves public routes.
	TokenValidation bool `json:"token_validation"`
}

// WhoamiResponse echoes the authenticated identity back to the caller.
type WhoamiResponse struct {
	Subject string   `json:"subject"`
	Email   string   `json:"email,omitempty"`
	Issuer  string   `json:"issuer,omitempty"`
	Roles   []string `json:"roles,omitempty"`
	Scopes  []string `json:"scopes,omitempty"`
}

// RouteEntryRequest adds or removes a public route table entry.
type RouteEntryRequest struct {
	// Type is "exact" or "prefix".
	Type string `json:"type"`
	Path string `json:"path"`
}

// LoggingRequest changes the runtime log level.
type LoggingRequest struct {
	Level string `json:"level"`
}

// LoggingResponse reports the current log level.
type LoggingResponse struct {
	Level string `json:"level"`
}

// RateLimitStatusResponse reports the limiter state for one client key.
type RateLimitStatusResponse struct {
	Key       string `json:"key"`
	Limit     int64  `json:"limit"`
	Remaining int64  `json:"remaining"`
	Reached   bool   `json:"reached"`
}

// RouteMutationResponse reports the result of a route table change.
type RouteMutationResponse struct {
	Applied bool   `json:"applied"`
	Type    string `json:"type"`
	Path    string `json:"path"`
}
