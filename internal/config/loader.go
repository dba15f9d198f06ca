package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/your-org/authgate/pkg/logger"
)

// envPrefix is the fixed prefix for environment variables. Keys are
// case-insensitive; dots in config paths map to underscores, so
// auth.jwks_url becomes AUTHGATE_AUTH_JWKS_URL.
const envPrefix = "AUTHGATE"

// Load reads configuration from an optional YAML file and the environment.
// A missing file is not an error; the environment alone is a complete
// configuration source. Malformed numeric values are replaced by their
// documented defaults with a warning rather than failing startup.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("authgate")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/authgate")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && path != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Numeric auth settings arrive as seconds from the environment and must
	// tolerate garbage, so they are re-read leniently.
	cfg.Auth.CacheTTL = lenientSeconds(v, "auth.cache_ttl", DefaultCacheTTLSeconds)
	cfg.Auth.ValidationTimeout = lenientSeconds(v, "auth.validation_timeout", DefaultTimeoutSeconds)
	cfg.Auth.ValidationRetries = lenientInt(v, "auth.validation_retries", DefaultValidationRetries)
	cfg.Auth.RetryBaseDelay = lenientDuration(v, "auth.retry_base_delay", DefaultRetryBaseDelay)

	cfg.normalize()

	return &cfg, nil
}

// setDefaults registers default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("env.name", "production")
	v.SetDefault("env.non_production", false)

	v.SetDefault("server.addr", DefaultServerAddr)
	v.SetDefault("server.read_timeout", DefaultReadTimeout)
	v.SetDefault("server.write_timeout", DefaultWriteTimeout)
	v.SetDefault("server.idle_timeout", DefaultIdleTimeout)
	v.SetDefault("server.max_header_bytes", DefaultMaxHeaderBytes)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_caller", true)

	v.SetDefault("auth.algorithm", DefaultAlgorithm)
	v.SetDefault("auth.jwks_url", "")
	// Registered empty so environment overrides bind through Unmarshal.
	v.SetDefault("auth.provider.audience", "")
	v.SetDefault("auth.provider.issuer", "")
	v.SetDefault("auth.legacy.audience", "")
	v.SetDefault("auth.legacy.issuer", "")
	v.SetDefault("auth.cache_ttl", DefaultCacheTTLSeconds)
	v.SetDefault("auth.validation_timeout", DefaultTimeoutSeconds)
	v.SetDefault("auth.validation_retries", DefaultValidationRetries)
	v.SetDefault("auth.retry_base_delay", DefaultRetryBaseDelay)
	v.SetDefault("auth.allow_stale_keys", false)

	v.SetDefault("routes.public_exact", DefaultPublicExact())
	v.SetDefault("routes.public_prefixes", []string{})
	v.SetDefault("routes.watch", false)

	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.rate", DefaultRateLimitRate)
	v.SetDefault("rate_limit.store", DefaultRateLimitStore)
	v.SetDefault("rate_limit.redis.key_prefix", DefaultRedisKeyPrefix)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.service_name", "authgate")
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.batch_timeout", 5*time.Second)
	v.SetDefault("tracing.export_timeout", 30*time.Second)
}

// normalize trims profile values and clamps retry settings. Empty strings and
// absent values are equivalent everywhere: a profile value of "" never wins
// precedence and never enables a verification step.
func (c *Config) normalize() {
	c.Auth.Algorithm = strings.TrimSpace(c.Auth.Algorithm)
	if c.Auth.Algorithm == "" {
		c.Auth.Algorithm = DefaultAlgorithm
	}
	c.Auth.JWKSURL = strings.TrimSpace(c.Auth.JWKSURL)
	c.Auth.Provider.Audience = strings.TrimSpace(c.Auth.Provider.Audience)
	c.Auth.Provider.Issuer = strings.TrimSpace(c.Auth.Provider.Issuer)
	c.Auth.Legacy.Audience = strings.TrimSpace(c.Auth.Legacy.Audience)
	c.Auth.Legacy.Issuer = strings.TrimSpace(c.Auth.Legacy.Issuer)

	if c.Auth.ValidationRetries < 1 {
		c.Auth.ValidationRetries = DefaultValidationRetries
	}
	if c.Auth.CacheTTL <= 0 {
		c.Auth.CacheTTL = DefaultCacheTTLSeconds * time.Second
	}
	if c.Auth.ValidationTimeout <= 0 {
		c.Auth.ValidationTimeout = DefaultTimeoutSeconds * time.Second
	}
	if c.Auth.RetryBaseDelay <= 0 {
		c.Auth.RetryBaseDelay = DefaultRetryBaseDelay
	}
}

// lenientSeconds reads an integer number of seconds, falling back to the
// default on malformed input.
func lenientSeconds(v *viper.Viper, key string, defSeconds int) time.Duration {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return time.Duration(defSeconds) * time.Second
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		logger.Warn("malformed numeric config value, using default",
			logger.String("key", key),
			logger.String("value", raw),
			logger.Int("default", defSeconds),
		)
		return time.Duration(defSeconds) * time.Second
	}
	return time.Duration(n) * time.Second
}

// lenientInt reads an integer, falling back to the default on malformed input.
func lenientInt(v *viper.Viper, key string, def int) int {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		logger.Warn("malformed numeric config value, using default",
			logger.String("key", key),
			logger.String("value", raw),
			logger.Int("default", def),
		)
		return def
	}
	return n
}

// lenientDuration reads a Go duration string ("100ms", "2s"), falling back to
// the default on malformed input.
func lenientDuration(v *viper.Viper, key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		// Bare integers are taken as milliseconds.
		if n, nerr := strconv.Atoi(raw); nerr == nil && n > 0 {
			return time.Duration(n) * time.Millisecond
		}
		logger.Warn("malformed duration config value, using default",
			logger.String("key", key),
			logger.String("value", raw),
			logger.Duration("default", def),
		)
		return def
	}
	return d
}
