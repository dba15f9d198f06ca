package token

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/your-org/authgate/internal/domain"
	"github.com/your-org/authgate/internal/service/metrics"
	"github.com/your-org/authgate/pkg/errors"
	"github.com/your-org/authgate/pkg/logger"
)

// KeyProvider provides signing keys for token validation.
type KeyProvider interface {
	SigningKey(ctx context.Context, kid string) (jwk.Key, error)
}

// Validator validates bearer tokens against the resolved policy. It is
// constructed once at startup and owned by the authentication gateway; it
// holds no per-request state and is safe for concurrent use.
type Validator struct {
	policy Policy
	keys   KeyProvider
}

// NewValidator creates a validator over the given key provider and policy.
func NewValidator(keys KeyProvider, policy Policy) *Validator {
	return &Validator{
		policy: policy,
		keys:   keys,
	}
}

// Policy returns the validator's resolved policy.
func (v *Validator) Policy() Policy { return v.policy }

// Validate validates a token and returns its full decoded claim set. Every
// failure is an AuthError carrying one of the five public kinds; no library
// error escapes this boundary.
func (v *Validator) Validate(ctx context.Context, tokenString string) (domain.Claims, error) {
	// Fail closed before touching the network: without a JWKS endpoint no
	// token can ever be validated.
	if !v.policy.Configured() {
		return nil, errors.New(errors.KindConfiguration, "JWKS URL not configured", nil)
	}

	// Parse without verification to read the header. Structural garbage
	// stops here, before any key source contact.
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	unverified, _, err := parser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return nil, errors.New(errors.KindDecode, "token could not be decoded", err)
	}

	if alg := unverified.Method.Alg(); alg != v.policy.Algorithm {
		return nil, errors.New(errors.KindInvalidToken,
			fmt.Sprintf("algorithm %s is not allowed", alg), nil)
	}

	kid, _ := unverified.Header["kid"].(string)
	if kid == "" {
		return nil, errors.New(errors.KindInvalidToken, "missing key ID in token header", nil)
	}

	jwkKey, err := v.keys.SigningKey(ctx, kid)
	if err != nil {
		if errors.Is(err, errors.ErrKeyNotFound) {
			// The kid is absent from a fresh set; fetching again cannot help.
			return nil, errors.New(errors.KindValidationFailed, "unknown signing key", err)
		}
		if errors.KindOf(err) == errors.KindValidationFailed {
			return nil, err
		}
		return nil, errors.New(errors.KindValidationFailed, "failed to obtain signing key", err)
	}

	var rawKey any
	if err := jwkKey.Raw(&rawKey); err != nil {
		return nil, errors.New(errors.KindValidationFailed, "failed to extract key material", err)
	}

	claims, err := v.verify(tokenString, rawKey)
	if err != nil {
		return nil, err
	}

	logger.Debug("token validated",
		logger.String("subject", claims.Subject()),
		logger.String("issuer", claims.Issuer()),
	)

	return claims, nil
}

// verify checks signature, expiry, and the effective audience/issuer. Expiry
// is always verified; audience and issuer only when the policy resolves a
// non-empty effective value.
func (v *Validator) verify(tokenString string, key any) (domain.Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{v.policy.Algorithm}),
	}
	if aud := v.policy.EffectiveAudience(); aud != "" {
		options = append(options, jwt.WithAudience(aud))
	}
	if iss := v.policy.EffectiveIssuer(); iss != "" {
		options = append(options, jwt.WithIssuer(iss))
	}

	parsed, err := jwt.NewParser(options...).Parse(tokenString, func(t *jwt.Token) (any, error) {
		return key, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, errors.New(errors.KindExpiredToken, "token has expired", err)
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, errors.New(errors.KindDecode, "token could not be decoded", err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid),
			errors.Is(err, jwt.ErrTokenNotValidYet),
			errors.Is(err, jwt.ErrTokenInvalidAudience),
			errors.Is(err, jwt.ErrTokenInvalidIssuer),
			errors.Is(err, jwt.ErrTokenUnverifiable):
			return nil, errors.New(errors.KindInvalidToken, "invalid token", err)
		default:
			return nil, errors.New(errors.KindValidationFailed, "token validation failed", err)
		}
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New(errors.KindInvalidToken, "invalid claims format", nil)
	}

	return domain.Claims(mapClaims), nil
}

// ValidateWithRetry runs Validate up to the policy's maximum attempts,
// retrying only transient failures. Deterministic failures (expired,
// invalid, undecodable, unconfigured, unknown kid) return on the first
// attempt: retrying a cryptographically rejected token only adds load and
// latency. Backoff between attempts doubles from the base delay and is
// cancellable through ctx.
func (v *Validator) ValidateWithRetry(ctx context.Context, tokenString string) (domain.Claims, error) {
	start := time.Now()
	defer func() {
		metrics.Default.ValidationDuration.Observe(time.Since(start).Seconds())
	}()

	var lastErr error
	for attempt := 1; attempt <= v.policy.MaxRetries; attempt++ {
		claims, err := v.Validate(ctx, tokenString)
		if err == nil {
			metrics.Default.ValidationsTotal.WithLabelValues("success").Inc()
			return claims, nil
		}
		lastErr = err

		if !errors.Retryable(err) {
			metrics.Default.ValidationsTotal.WithLabelValues(string(errors.KindOf(err))).Inc()
			return nil, err
		}

		if attempt == v.policy.MaxRetries {
			break
		}

		delay := v.policy.RetryBaseDelay * time.Duration(1<<(attempt-1))
		logger.Warn("token validation attempt failed, retrying",
			logger.Int("attempt", attempt),
			logger.Duration("backoff", delay),
			logger.Err(err),
		)
		metrics.Default.ValidationRetries.Inc()

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			metrics.Default.ValidationsTotal.WithLabelValues("cancelled").Inc()
			return nil, errors.New(errors.KindValidationFailed, "validation cancelled", ctx.Err())
		case <-timer.C:
		}
	}

	logger.Warn("token validation failed after all attempts",
		logger.Int("attempts", v.policy.MaxRetries),
		logger.Err(lastErr),
	)
	metrics.Default.ValidationsTotal.WithLabelValues(string(errors.KindOf(lastErr))).Inc()

	return nil, lastErr
}
