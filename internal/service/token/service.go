// Package token implements bearer token validation: a JWKS key source with a
// TTL-bounded cache, the resolved validation policy, and a validator with
// bounded retry.
package token

import (
	"context"
	"strings"

	"github.com/your-org/authgate/internal/config"
	"github.com/your-org/authgate/internal/domain"
	"github.com/your-org/authgate/pkg/errors"
)

// Service bundles the key source and validator behind one constructor.
type Service struct {
	policy    Policy
	keySource *KeySource
	validator *Validator
}

// NewService creates a token service from auth configuration.
func NewService(cfg config.AuthConfig) *Service {
	policy := NewPolicy(cfg)
	keySource := NewKeySource(policy)

	return &Service{
		policy:    policy,
		keySource: keySource,
		validator: NewValidator(keySource, policy),
	}
}

// Policy returns the resolved validation policy.
func (s *Service) Policy() Policy { return s.policy }

// Validate validates a token once.
func (s *Service) Validate(ctx context.Context, tokenString string) (domain.Claims, error) {
	return s.validator.Validate(ctx, tokenString)
}

// ValidateWithRetry validates a token with the policy's retry budget.
func (s *Service) ValidateWithRetry(ctx context.Context, tokenString string) (domain.Claims, error) {
	return s.validator.ValidateWithRetry(ctx, tokenString)
}

// ExtractBearer extracts the bearer token from an Authorization header value.
// The scheme keyword is case-insensitive and whitespace around the header and
// the token is tolerated. Returns ErrTokenMissing when the header or the
// token itself is absent, and ErrSchemeInvalid for any non-Bearer scheme.
func ExtractBearer(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.ErrTokenMissing
	}

	parts := strings.SplitN(header, " ", 2)
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.ErrSchemeInvalid
	}
	if len(parts) < 2 {
		return "", errors.ErrTokenMissing
	}

	tok := strings.TrimSpace(parts[1])
	if tok == "" {
		return "", errors.ErrTokenMissing
	}

	return tok, nil
}
