package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/authgate/internal/config"
	"github.com/your-org/authgate/internal/domain"
	"github.com/your-org/authgate/internal/service/routes"
	"github.com/your-org/authgate/internal/service/token"
	"github.com/your-org/authgate/pkg/logger"
	"github.com/your-org/authgate/pkg/resilience/ratelimit"
)

func testHandler() *Handler {
	table := routes.NewTable(config.DefaultPublicExact(), nil)
	policy := token.NewPolicy(config.AuthConfig{
		Algorithm: "RS256",
		JWKSURL:   "https://idp.example.com/keys",
	})
	return NewHandler(table, policy, "1.2.3")
}

func TestHandler_Health(t *testing.T) {
	h := testHandler()

	rr := httptest.NewRecorder()
	h.Health(rr, httptest.NewRequest("GET", "/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
}

func TestHandler_Ready(t *testing.T) {
	h := testHandler()

	rr := httptest.NewRecorder()
	h.Ready(rr, httptest.NewRequest("GET", "/healthz/ready", nil))

	require.Equal(t, http.StatusOK, rr.Code)

	var resp ReadyResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.TokenValidation)
}

func TestHandler_Whoami(t *testing.T) {
	h := testHandler()

	identity := &domain.Identity{
		Subject: "user-1",
		Email:   "u@example.com",
		Roles:   []string{"admin"},
	}
	req := httptest.NewRequest("GET", "/whoami", nil)
	req = req.WithContext(withIdentity(req.Context(), identity))

	rr := httptest.NewRecorder()
	h.Whoami(rr, req)

	var resp WhoamiResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "user-1", resp.Subject)
	assert.Equal(t, []string{"admin"}, resp.Roles)
}

func TestHandler_WhoamiWithoutIdentity(t *testing.T) {
	h := testHandler()

	rr := httptest.NewRecorder()
	h.Whoami(rr, httptest.NewRequest("GET", "/whoami", nil))

	var resp WhoamiResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "anonymous", resp.Subject)
}

func TestHandler_RouteAdministration(t *testing.T) {
	h := testHandler()

	// Add an exact entry.
	rr := httptest.NewRecorder()
	h.AddRoute(rr, httptest.NewRequest("POST", "/admin/routes",
		strings.NewReader(`{"type":"exact","path":"/status"}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, h.table.IsPublic("/status"))

	// Add a prefix entry.
	rr = httptest.NewRecorder()
	h.AddRoute(rr, httptest.NewRequest("POST", "/admin/routes",
		strings.NewReader(`{"type":"prefix","path":"/static/"}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, h.table.IsPublic("/static/app.js"))

	// Snapshot shows both.
	rr = httptest.NewRecorder()
	h.ListRoutes(rr, httptest.NewRequest("GET", "/admin/routes", nil))
	var snap routes.Snapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	assert.Contains(t, snap.PublicExact, "/status")
	assert.Contains(t, snap.PublicPrefixes, "/static/")

	// Remove the exact entry.
	rr = httptest.NewRecorder()
	h.RemoveRoute(rr, httptest.NewRequest("DELETE", "/admin/routes",
		strings.NewReader(`{"type":"exact","path":"/status"}`)))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp RouteMutationResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Applied)
	assert.True(t, h.table.IsProtected("/status"))

	// Removing again reports nothing applied.
	rr = httptest.NewRecorder()
	h.RemoveRoute(rr, httptest.NewRequest("DELETE", "/admin/routes",
		strings.NewReader(`{"type":"exact","path":"/status"}`)))
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.Applied)
}

func TestHandler_RouteAdministrationRejectsBadInput(t *testing.T) {
	h := testHandler()

	rr := httptest.NewRecorder()
	h.AddRoute(rr, httptest.NewRequest("POST", "/admin/routes",
		strings.NewReader(`{"type":"glob","path":"/x"}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	h.AddRoute(rr, httptest.NewRequest("POST", "/admin/routes",
		strings.NewReader(`{"type":"exact"}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	h.AddRoute(rr, httptest.NewRequest("POST", "/admin/routes",
		strings.NewReader(`not json`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandler_LogLevelAdministration(t *testing.T) {
	h := testHandler()
	require.NoError(t, logger.SetLevel("info"))

	rr := httptest.NewRecorder()
	h.GetLogLevel(rr, httptest.NewRequest("GET", "/admin/logging", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp LoggingResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "info", resp.Level)

	// Change via JSON body.
	rr = httptest.NewRecorder()
	h.SetLogLevel(rr, httptest.NewRequest("POST", "/admin/logging",
		strings.NewReader(`{"level":"debug"}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "debug", logger.GetLevel())

	// Change via query parameter.
	rr = httptest.NewRecorder()
	h.SetLogLevel(rr, httptest.NewRequest("POST", "/admin/logging?level=warn", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "warn", logger.GetLevel())

	// Bad level is rejected and leaves the current level alone.
	rr = httptest.NewRecorder()
	h.SetLogLevel(rr, httptest.NewRequest("POST", "/admin/logging",
		strings.NewReader(`{"level":"loud"}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "warn", logger.GetLevel())

	rr = httptest.NewRecorder()
	h.SetLogLevel(rr, httptest.NewRequest("POST", "/admin/logging", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	require.NoError(t, logger.SetLevel("info"))
}

func TestServer_RateLimitAdministration(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Addr:         ":0",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		},
		Auth: config.AuthConfig{
			Algorithm:         "RS256",
			ValidationRetries: 1,
			RetryBaseDelay:    time.Millisecond,
		},
	}

	limiter, err := ratelimit.NewLimiter(config.RateLimitConfig{
		Enabled: true,
		Rate:    "5-M",
		Store:   "memory",
	})
	require.NoError(t, err)

	// Admin endpoints are public here so the requests reach the handlers
	// without credentials.
	table := routes.NewTable(nil, []string{"/admin/"})
	srv := NewServer(cfg, table, token.NewService(cfg.Auth), "test", WithRateLimiter(limiter))

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest("GET", "/admin/ratelimit/10.0.0.9", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var status RateLimitStatusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	assert.Equal(t, "10.0.0.9", status.Key)
	assert.Equal(t, int64(5), status.Limit)
	assert.False(t, status.Reached)

	rr = httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest("DELETE", "/admin/ratelimit/10.0.0.9", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	assert.Equal(t, int64(5), status.Remaining)
}

func TestServer_EndToEnd(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Addr:         ":0",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		},
		Auth: config.AuthConfig{
			Algorithm:         "RS256",
			CacheTTL:          time.Hour,
			ValidationTimeout: time.Second,
			ValidationRetries: 1,
			RetryBaseDelay:    time.Millisecond,
		},
	}

	table := routes.NewTable(config.DefaultPublicExact(), nil)
	tokenService := token.NewService(cfg.Auth)
	srv := NewServer(cfg, table, tokenService, "test")

	// Public endpoints respond without credentials.
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	// Protected endpoints deny without credentials.
	rr = httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest("GET", "/whoami", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest("GET", "/admin/routes", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// No JWKS URL configured: a presented token still yields 401, not 500.
	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer some.jwt.token")
	rr = httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
