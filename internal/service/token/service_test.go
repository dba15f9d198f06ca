package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/authgate/internal/config"
	autherrors "github.com/your-org/authgate/pkg/errors"
)

func TestExtractBearer(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{name: "standard", header: "Bearer abc.def.ghi", want: "abc.def.ghi"},
		{name: "lowercase scheme", header: "bearer abc.def.ghi", want: "abc.def.ghi"},
		{name: "mixed case scheme", header: "BeArEr abc.def.ghi", want: "abc.def.ghi"},
		{name: "surrounding whitespace", header: "  Bearer abc.def.ghi  ", want: "abc.def.ghi"},
		{name: "extra space before token", header: "Bearer   abc.def.ghi", want: "abc.def.ghi"},
		{name: "empty header", header: "", wantErr: autherrors.ErrTokenMissing},
		{name: "whitespace only", header: "   ", wantErr: autherrors.ErrTokenMissing},
		{name: "scheme without token", header: "Bearer", wantErr: autherrors.ErrTokenMissing},
		{name: "scheme with empty token", header: "Bearer ", wantErr: autherrors.ErrTokenMissing},
		{name: "scheme with blank token", header: "Bearer    ", wantErr: autherrors.ErrTokenMissing},
		{name: "wrong scheme", header: "Basic dXNlcjpwYXNz", wantErr: autherrors.ErrSchemeInvalid},
		{name: "bare token", header: "abc.def.ghi", wantErr: autherrors.ErrSchemeInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractBearer(tt.header)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, autherrors.Is(err, tt.wantErr))
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewServiceWiresPolicy(t *testing.T) {
	svc := NewService(config.AuthConfig{
		Algorithm:         "RS256",
		JWKSURL:           "https://idp.example.com/keys",
		CacheTTL:          time.Hour,
		ValidationTimeout: 5 * time.Second,
		ValidationRetries: 3,
		RetryBaseDelay:    100 * time.Millisecond,
	})
	assert.Equal(t, "https://idp.example.com/keys", svc.Policy().JWKSURL)
	assert.True(t, svc.Policy().Configured())
}
