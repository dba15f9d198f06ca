package token

import (
	"time"

	"github.com/your-org/authgate/internal/config"
)

// Policy is the immutable validation policy, resolved once at startup.
//
// Audience and issuer come from two profiles: the identity-provider profile
// and the legacy generic-JWT profile. The effective value used during
// verification is the provider value when non-empty, otherwise the legacy
// value. Both profiles remain readable so operators can inspect what was
// configured; only the effective values participate in verification.
type Policy struct {
	// Algorithm is the only accepted signature scheme.
	Algorithm string

	// Provider is the primary audience/issuer profile.
	Provider config.ProfileConfig

	// Legacy is the secondary audience/issuer profile.
	Legacy config.ProfileConfig

	// JWKSURL is the signing key endpoint. Empty means validation is
	// unconfigured and every attempt fails closed.
	JWKSURL string

	// CacheTTL bounds how long fetched keys serve new verifications.
	CacheTTL time.Duration

	// FetchTimeout bounds each JWKS network call.
	FetchTimeout time.Duration

	// MaxRetries is the maximum number of validation attempts, at least 1.
	MaxRetries int

	// RetryBaseDelay is the first backoff delay; attempt n waits
	// base * 2^(n-1).
	RetryBaseDelay time.Duration

	// AllowStaleKeys permits serving an expired cached key when a refresh
	// fails. Off by default: a fetch failure fails closed.
	AllowStaleKeys bool

	effectiveAudience string
	effectiveIssuer   string
}

// NewPolicy resolves a Policy from configuration. Precedence between the two
// profiles is computed here, exactly once; nothing downstream re-implements
// the fallback.
func NewPolicy(cfg config.AuthConfig) Policy {
	p := Policy{
		Algorithm:      cfg.Algorithm,
		Provider:       cfg.Provider,
		Legacy:         cfg.Legacy,
		JWKSURL:        cfg.JWKSURL,
		CacheTTL:       cfg.CacheTTL,
		FetchTimeout:   cfg.ValidationTimeout,
		MaxRetries:     cfg.ValidationRetries,
		RetryBaseDelay: cfg.RetryBaseDelay,
		AllowStaleKeys: cfg.AllowStaleKeys,
	}

	p.effectiveAudience = firstNonEmpty(cfg.Provider.Audience, cfg.Legacy.Audience)
	p.effectiveIssuer = firstNonEmpty(cfg.Provider.Issuer, cfg.Legacy.Issuer)

	if p.MaxRetries < 1 {
		p.MaxRetries = 1
	}

	return p
}

// EffectiveAudience returns the audience used for verification, or "" when
// neither profile sets one (audience verification is then skipped).
func (p Policy) EffectiveAudience() string { return p.effectiveAudience }

// EffectiveIssuer returns the issuer used for verification, or "" when
// neither profile sets one (issuer verification is then skipped).
func (p Policy) EffectiveIssuer() string { return p.effectiveIssuer }

// Configured reports whether the policy can validate tokens at all.
func (p Policy) Configured() bool { return p.JWKSURL != "" }

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
