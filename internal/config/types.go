package config

import (
	"time"

	"github.com/your-org/authgate/pkg/logger"
	"github.com/your-org/authgate/pkg/tracing"
)

// Default values for the auth configuration surface. Malformed values in the
// environment fall back to these rather than failing startup.
const (
	DefaultAlgorithm         = "RS256"
	DefaultCacheTTLSeconds   = 3600
	DefaultTimeoutSeconds    = 30
	DefaultValidationRetries = 3
	DefaultRetryBaseDelay    = 100 * time.Millisecond
	DefaultServerAddr        = ":8080"
	DefaultReadTimeout       = 15 * time.Second
	DefaultWriteTimeout      = 30 * time.Second
	DefaultIdleTimeout       = 60 * time.Second
	DefaultMaxHeaderBytes    = 1 << 20
	DefaultRateLimitRate     = "100-M"
	DefaultRateLimitStore    = "memory"
	DefaultRedisKeyPrefix    = "authgate:ratelimit"
	DefaultShutdownTimeout   = 30 * time.Second
)

// BypassEnvVar is the environment variable consulted on every request by the
// authentication gateway's test bypass. It is intentionally not cached at
// startup so integration tests can toggle it, and it is only honored when
// Env.NonProduction is set.
const BypassEnvVar = "AUTHGATE_AUTH_BYPASS"

// Config is the root configuration.
type Config struct {
	Env       EnvConfig       `mapstructure:"env"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   logger.Config   `mapstructure:"logging"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Routes    RoutesConfig    `mapstructure:"routes"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Tracing   tracing.Config  `mapstructure:"tracing"`
}

// EnvConfig holds deployment environment information.
type EnvConfig struct {
	// Name is a free-form environment label (production, staging, dev).
	Name string `mapstructure:"name"`

	// NonProduction is the explicit marker required before the request-time
	// auth bypass is honored. Leaving the bypass variable set in a deployment
	// without this marker has no effect.
	NonProduction bool `mapstructure:"non_production"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
}

// ProfileConfig is one source of audience/issuer values. Two profiles exist:
// the identity-provider profile and the legacy generic-JWT profile. Both stay
// independently readable after load; only the effective values resolved by
// the validation policy follow the fallback rule.
type ProfileConfig struct {
	Audience string `mapstructure:"audience"`
	Issuer   string `mapstructure:"issuer"`
}

// AuthConfig holds token validation configuration.
type AuthConfig struct {
	// Algorithm is the accepted signature scheme (for example RS256).
	Algorithm string `mapstructure:"algorithm"`

	// Provider is the primary identity-provider profile.
	Provider ProfileConfig `mapstructure:"provider"`

	// Legacy is the secondary generic-JWT profile, used when the provider
	// profile leaves a value empty.
	Legacy ProfileConfig `mapstructure:"legacy"`

	// JWKSURL is the signing key endpoint. When empty, no token can ever be
	// validated: every attempt fails closed with a configuration error.
	JWKSURL string `mapstructure:"jwks_url"`

	// CacheTTL bounds how long a fetched signing key is used for new
	// verifications.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`

	// ValidationTimeout bounds each network call to the JWKS endpoint.
	ValidationTimeout time.Duration `mapstructure:"validation_timeout"`

	// ValidationRetries is the maximum number of validation attempts for
	// transient failures. Always at least 1.
	ValidationRetries int `mapstructure:"validation_retries"`

	// RetryBaseDelay is the first backoff delay; attempt n waits
	// base * 2^(n-1).
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`

	// AllowStaleKeys permits serving an expired cached key when a refresh
	// fails. Default is fail-closed.
	AllowStaleKeys bool `mapstructure:"allow_stale_keys"`
}

// RoutesConfig holds the static route classification.
type RoutesConfig struct {
	// PublicExact lists paths that are public on an exact match.
	PublicExact []string `mapstructure:"public_exact"`

	// PublicPrefixes lists path prefixes under which everything is public.
	PublicPrefixes []string `mapstructure:"public_prefixes"`

	// File optionally points at a YAML file with the same two lists,
	// reloaded on change when Watch is set.
	File  string `mapstructure:"file"`
	Watch bool   `mapstructure:"watch"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	Enabled       bool        `mapstructure:"enabled"`
	Rate          string      `mapstructure:"rate"`
	Store         string      `mapstructure:"store"`
	ExcludedPaths []string    `mapstructure:"excluded_paths"`
	Redis         RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds Redis connection settings for the rate limit store.
type RedisConfig struct {
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// DefaultPublicExact is the out-of-the-box public allow-list: health and API
// documentation endpoints. Everything else is protected.
func DefaultPublicExact() []string {
	return []string{"/health", "/healthz/ready", "/metrics", "/docs", "/openapi.json", "/redoc"}
}
