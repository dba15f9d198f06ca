package config

import (
	"os"
	"strings"
)

// BypassRequested reports whether the administrative auth bypass variable is
// currently set in the process environment. It is deliberately re-read on
// every call rather than cached at startup so test harnesses can toggle it;
// the gateway refuses to honor it unless the configuration also carries the
// explicit non-production marker.
func BypassRequested() bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(BypassEnvVar)))
	return v == "true" || v == "1" || v == "yes"
}

// BypassAllowed reports whether this configuration permits the request-time
// bypass at all. A deployment without the non-production marker never skips
// authentication, whatever the environment variable says.
func (c *Config) BypassAllowed() bool {
	return c.Env.NonProduction
}
