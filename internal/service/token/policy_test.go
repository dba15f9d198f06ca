package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/your-org/authgate/internal/config"
)

func TestNewPolicy_Precedence(t *testing.T) {
	tests := []struct {
		name        string
		provider    config.ProfileConfig
		legacy      config.ProfileConfig
		expectedAud string
		expectedIss string
	}{
		{
			name:        "provider wins when both set",
			provider:    config.ProfileConfig{Audience: "A", Issuer: "iss-a"},
			legacy:      config.ProfileConfig{Audience: "B", Issuer: "iss-b"},
			expectedAud: "A",
			expectedIss: "iss-a",
		},
		{
			name:        "legacy fills provider gaps",
			provider:    config.ProfileConfig{},
			legacy:      config.ProfileConfig{Audience: "B", Issuer: "iss-b"},
			expectedAud: "B",
			expectedIss: "iss-b",
		},
		{
			name:        "fallback is per field",
			provider:    config.ProfileConfig{Audience: "A"},
			legacy:      config.ProfileConfig{Audience: "B", Issuer: "iss-b"},
			expectedAud: "A",
			expectedIss: "iss-b",
		},
		{
			name:        "neither set means verification skipped",
			provider:    config.ProfileConfig{},
			legacy:      config.ProfileConfig{},
			expectedAud: "",
			expectedIss: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPolicy(config.AuthConfig{
				Algorithm: "RS256",
				Provider:  tt.provider,
				Legacy:    tt.legacy,
			})

			assert.Equal(t, tt.expectedAud, p.EffectiveAudience())
			assert.Equal(t, tt.expectedIss, p.EffectiveIssuer())
		})
	}
}

func TestNewPolicy_ProfilesStayInspectable(t *testing.T) {
	p := NewPolicy(config.AuthConfig{
		Provider: config.ProfileConfig{Audience: "A"},
		Legacy:   config.ProfileConfig{Audience: "B", Issuer: "iss-b"},
	})

	// The fallback resolves effective values without overwriting either
	// profile.
	assert.Equal(t, "A", p.Provider.Audience)
	assert.Equal(t, "B", p.Legacy.Audience)
	assert.Equal(t, "", p.Provider.Issuer)
	assert.Equal(t, "iss-b", p.Legacy.Issuer)
}

func TestNewPolicy_Configured(t *testing.T) {
	assert.False(t, NewPolicy(config.AuthConfig{}).Configured())
	assert.True(t, NewPolicy(config.AuthConfig{JWKSURL: "https://idp.example.com/jwks.json"}).Configured())
}

func TestNewPolicy_RetriesAtLeastOne(t *testing.T) {
	p := NewPolicy(config.AuthConfig{ValidationRetries: 0})
	assert.Equal(t, 1, p.MaxRetries)

	p = NewPolicy(config.AuthConfig{ValidationRetries: 5, RetryBaseDelay: 50 * time.Millisecond})
	assert.Equal(t, 5, p.MaxRetries)
	assert.Equal(t, 50*time.Millisecond, p.RetryBaseDelay)
}
