package buffer

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveCredential(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		fallback   string
		wantOK     bool
		wantToken  string
		wantSource string
	}{
		{"bearer", map[string]string{"Authorization": "Bearer abc123"}, "", true, "abc123", SourceAuthorization},
		{"bearer case insensitive", map[string]string{"Authorization": "bEaReR abc123"}, "", true, "abc123", SourceAuthorization},
		{"bearer trimmed", map[string]string{"Authorization": "Bearer   abc123  "}, "", true, "abc123", SourceAuthorization},
		{"buffer header", map[string]string{"X-Buffer-Token": " xyz "}, "", true, "xyz", SourceBufferHeader},
		{"bearer wins over buffer header", map[string]string{"Authorization": "Bearer abc", "X-Buffer-Token": "xyz"}, "env", true, "abc", SourceAuthorization},
		{"basic auth falls through", map[string]string{"Authorization": "Basic dXNlcjpwYXNz", "X-Buffer-Token": "xyz"}, "", true, "xyz", SourceBufferHeader},
		{"empty bearer falls through", map[string]string{"Authorization": "Bearer   ", "X-Buffer-Token": "xyz"}, "", true, "xyz", SourceBufferHeader},
		{"empty bearer uses fallback", map[string]string{"Authorization": "Bearer   "}, "env-token", true, "env-token", SourceEnvironment},
		{"fallback", nil, "env-token", true, "env-token", SourceEnvironment},
		{"blank header uses fallback", map[string]string{"X-Buffer-Token": "  "}, "env-token", true, "env-token", SourceEnvironment},
		{"nothing", nil, "", false, "", ""},
		{"blank fallback", nil, "   ", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			cred, ok := ResolveCredential(h, tt.fallback)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantToken, cred.Token)
			assert.Equal(t, tt.wantSource, cred.Source)
		})
	}
}
