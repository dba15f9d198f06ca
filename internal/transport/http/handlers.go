package http

import (
	"encoding/json"
	"net/http"

	"github.com/your-org/authgate/internal/service/routes"
	"github.com/your-org/authgate/internal/service/token"
	"github.com/your-org/authgate/pkg/httputil"
	"github.com/your-org/authgate/pkg/logger"
)

// Handler holds the HTTP endpoint implementations.
type Handler struct {
	table   *routes.Table
	policy  token.Policy
	version string
}

// NewHandler creates the endpoint handler set.
func NewHandler(table *routes.Table, policy token.Policy, version string) *Handler {
	return &Handler{
		table:   table,
		policy:  policy,
		version: version,
	}
}

// Health handles the liveness endpoint.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: h.version,
	})
}

// Ready handles the readiness endpoint.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, ReadyResponse{
		Status:          "ready",
		TokenValidation: h.policy.Configured(),
	})
}

// Whoami returns the identity the gateway attached to the request. Reaching
// it without one means the request came through the bypass.
func (h *Handler) Whoami(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFromContext(r.Context())
	if identity == nil {
		httputil.WriteJSON(w, http.StatusOK, WhoamiResponse{Subject: "anonymous"})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, WhoamiResponse{
		Subject: identity.Subject,
		Email:   identity.Email,
		Issuer:  identity.Issuer,
		Roles:   identity.Roles,
		Scopes:  identity.Scopes,
	})
}

// GetLogLevel returns the runtime log level.
func (h *Handler) GetLogLevel(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, LoggingResponse{Level: logger.GetLevel()})
}

// SetLogLevel changes the runtime log level. The level comes from the
// "level" query parameter or a JSON body.
func (h *Handler) SetLogLevel(w http.ResponseWriter, r *http.Request) {
	level := r.URL.Query().Get("level")
	if level == "" {
		var req LoggingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			level = req.Level
		}
	}
	if level == "" {
		httputil.WriteError(w, http.StatusBadRequest, "level is required (debug, info, warn, error)")
		return
	}

	if err := logger.SetLevel(level); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid log level (debug, info, warn, error)")
		return
	}

	logger.WithContext(r.Context()).Info("log level changed", logger.String("level", level))
	httputil.WriteJSON(w, http.StatusOK, LoggingResponse{Level: logger.GetLevel()})
}

// ListRoutes returns a snapshot of the public route table.
func (h *Handler) ListRoutes(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.table.Snapshot())
}

// AddRoute registers a new public route entry at runtime.
func (h *Handler) AddRoute(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRouteEntry(w, r)
	if !ok {
		return
	}

	switch req.Type {
	case "exact":
		h.table.AddExact(req.Path)
	case "prefix":
		h.table.AddPrefix(req.Path)
	default:
		httputil.WriteError(w, http.StatusBadRequest, "type must be 'exact' or 'prefix'")
		return
	}

	logger.WithContext(r.Context()).Info("public route added",
		logger.String("type", req.Type),
		logger.String("path", req.Path))
	httputil.WriteJSON(w, http.StatusOK, RouteMutationResponse{
		Applied: true,
		Type:    req.Type,
		Path:    req.Path,
	})
}

// RemoveRoute unregisters a public route entry at runtime. The affected
// paths fall back to protected on the next request.
func (h *Handler) RemoveRoute(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRouteEntry(w, r)
	if !ok {
		return
	}

	var removed bool
	switch req.Type {
	case "exact":
		removed = h.table.RemoveExact(req.Path)
	case "prefix":
		removed = h.table.RemovePrefix(req.Path)
	default:
		httputil.WriteError(w, http.StatusBadRequest, "type must be 'exact' or 'prefix'")
		return
	}

	if removed {
		logger.WithContext(r.Context()).Info("public route removed",
			logger.String("type", req.Type),
			logger.String("path", req.Path))
	}
	httputil.WriteJSON(w, http.StatusOK, RouteMutationResponse{
		Applied: removed,
		Type:    req.Type,
		Path:    req.Path,
	})
}

func decodeRouteEntry(w http.ResponseWriter, r *http.Request) (RouteEntryRequest, bool) {
	var req RouteEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	if req.Path == "" {
		httputil.WriteError(w, http.StatusBadRequest, "path is required")
		return req, false
	}
	return req, true
}
