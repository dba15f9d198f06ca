// Package domain holds the core types shared across the gateway: decoded
// token claims and the identity projection handed to downstream handlers.
package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Claims is the full decoded claim set of a successfully validated token.
// It is produced only by the token validator and never constructed from
// unverified input. Instances live for a single request.
type Claims map[string]any

// String returns the named claim as a string, or "" when absent or not a
// string.
func (c Claims) String(key string) string {
	v, _ := c[key].(string)
	return v
}

// Subject returns the "sub" claim.
func (c Claims) Subject() string { return c.String("sub") }

// Issuer returns the "iss" claim.
func (c Claims) Issuer() string { return c.String("iss") }

// Email returns the "email" claim.
func (c Claims) Email() string { return c.String("email") }

// Audience returns the "aud" claim normalized to a slice. JWT allows both a
// single string and an array.
func (c Claims) Audience() []string {
	switch aud := c["aud"].(type) {
	case string:
		return []string{aud}
	case []any:
		out := make([]string, 0, len(aud))
		for _, a := range aud {
			if s, ok := a.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return aud
	}
	return nil
}

// ExpiresAt returns the "exp" claim as a time, or the zero time when absent.
func (c Claims) ExpiresAt() time.Time { return c.timeClaim("exp") }

// IssuedAt returns the "iat" claim as a time, or the zero time when absent.
func (c Claims) IssuedAt() time.Time { return c.timeClaim("iat") }

func (c Claims) timeClaim(key string) time.Time {
	switch v := c[key].(type) {
	case float64:
		return time.Unix(int64(v), 0)
	case int64:
		return time.Unix(v, 0)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return time.Unix(i, 0)
		}
	}
	return time.Time{}
}

// Roles returns role claims, accepting both a direct "roles" array and a
// space-separated string.
func (c Claims) Roles() []string {
	switch v := c["roles"].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, r := range v {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return strings.Fields(v)
	}
	return nil
}

// Scopes returns OAuth scopes from the "scope" claim.
func (c Claims) Scopes() []string {
	if s := c.String("scope"); s != "" {
		return strings.Fields(s)
	}
	if scp, ok := c["scp"].([]any); ok {
		out := make([]string, 0, len(scp))
		for _, s := range scp {
			if str, ok := s.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// Identity is the projection of validated claims attached to the request
// context for downstream handlers. It carries no raw token material.
type Identity struct {
	Subject string   `json:"sub"`
	Email   string   `json:"email,omitempty"`
	Issuer  string   `json:"iss,omitempty"`
	Roles   []string `json:"roles,omitempty"`
	Scopes  []string `json:"scopes,omitempty"`
}

// NewIdentity builds an Identity from validated claims.
func NewIdentity(claims Claims) *Identity {
	return &Identity{
		Subject: claims.Subject(),
		Email:   claims.Email(),
		Issuer:  claims.Issuer(),
		Roles:   claims.Roles(),
		Scopes:  claims.Scopes(),
	}
}

// HasRole checks whether the identity carries the given role.
func (i *Identity) HasRole(role string) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasScope checks whether the identity carries the given scope.
func (i *Identity) HasScope(scope string) bool {
	for _, s := range i.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}
