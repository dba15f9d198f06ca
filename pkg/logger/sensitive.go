package logger

import (
	"strings"

	"go.uber.org/zap"
)

// jwtSegments is the number of dot-separated segments in a compact JWT.
const jwtSegments = 3

// MaskToken reduces a bearer token to a short, non-reversible reference that
// is safe to log. Credentials must never appear verbatim in log output, so
// every log site that mentions a token goes through this function.
func MaskToken(token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// Token returns a zap field carrying the masked form of a token.
func Token(key, token string) zap.Field {
	return zap.String(key, MaskToken(token))
}

// LooksLikeJWT reports whether a string has the shape of a compact JWT.
// Used to keep claim dumps and header echoes out of log lines.
func LooksLikeJWT(s string) bool {
	return strings.Count(s, ".") == jwtSegments-1 && len(s) > 20
}
