package buffer

import (
	"net/http"
	"strings"
)

// Where a resolved credential came from.
const (
	SourceAuthorization = "authorization"
	SourceBufferHeader  = "x-buffer-token"
	SourceEnvironment   = "environment"
)

const HeaderBufferToken = "X-Buffer-Token"

// Credential is a bearer token for the Buffer API plus its origin.
type Credential struct {
	Token  string
	Source string
}

// ResolveCredential picks the caller's token: an Authorization bearer header
// first, then X-Buffer-Token, then the configured fallback. Blank values are
// skipped.
func ResolveCredential(h http.Header, fallback string) (Credential, bool) {
	if token, ok := bearerToken(h.Get("Authorization")); ok {
		return Credential{Token: token, Source: SourceAuthorization}, true
	}
	if token := strings.TrimSpace(h.Get(HeaderBufferToken)); token != "" {
		return Credential{Token: token, Source: SourceBufferHeader}, true
	}
	if token := strings.TrimSpace(fallback); token != "" {
		return Credential{Token: token, Source: SourceEnvironment}, true
	}
	return Credential{}, false
}

// bearerToken treats a bearer header with a blank token as absent, so
// resolution moves on to X-Buffer-Token and the fallback instead of failing.
func bearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
