package buffer

import (
	"io"
	"net/http"
	"strings"
	"time"
)

// Doer is the outbound HTTP client used by the Forwarder.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Forwarder performs exactly one upstream call per inbound request.
type Forwarder struct {
	BaseURL string
	// Fallback is the process-wide credential used when the caller sends none.
	Fallback string
	Client   Doer
}

// NewForwarder returns a Forwarder using a transport that leaves response
// bytes untouched and does not follow redirects.
func NewForwarder(baseURL, fallback string) *Forwarder {
	return &Forwarder{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Fallback: fallback,
		Client:   newUpstreamClient(),
	}
}

func newUpstreamClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			DisableCompression:  true,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Forward authenticates r and relays it to target. The returned Credential
// source is empty when authentication failed. A non-nil *Error means nothing
// was written to w yet.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request, target Target) (string, *Error) {
	cred, ok := ResolveCredential(r.Header, f.Fallback)
	if !ok {
		return "", ErrMissingToken
	}

	var body io.Reader
	if target.Method != http.MethodGet && target.Method != http.MethodHead {
		body = r.Body
	}

	// Not bound to r.Context(): a caller abort does not cancel the upstream call.
	req, err := http.NewRequest(target.Method, f.BaseURL+target.Path, body)
	if err != nil {
		logg.Error("buffer/forward", "Failed to build upstream request for route "+target.Route, err)
		return cred.Source, &Error{Kind: KindBadGateway, Message: "failed to build upstream request"}
	}
	if body != nil && r.ContentLength > 0 {
		req.ContentLength = r.ContentLength
	}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		req.Header.Set("Content-Type", ct)
	}
	if accept := r.Header.Get("Accept"); accept != "" {
		req.Header.Set("Accept", accept)
	}
	req.Header.Set("Authorization", "Bearer "+cred.Token)

	resp, err := f.Client.Do(req)
	if err != nil {
		logg.Error("buffer/forward", "Upstream call failed for route "+target.Route, err)
		return cred.Source, &Error{Kind: KindBadGateway, Message: "Buffer API is unreachable"}
	}
	defer resp.Body.Close()

	dst := w.Header()
	for key, values := range resp.Header {
		if isHopByHopHeader(key) {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		logg.Error("buffer/forward", "Failed to relay upstream body for route "+target.Route, err)
	}
	return cred.Source, nil
}

var hopByHopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

func isHopByHopHeader(key string) bool {
	return hopByHopHeaders[http.CanonicalHeaderKey(key)]
}
