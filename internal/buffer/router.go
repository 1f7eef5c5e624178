// Package buffer routes /api/buffer/* requests onto the Buffer API and
// forwards them with the caller's credential substituted in.
package buffer

import (
	"net/http"
	"net/url"
	"strings"
)

// Route maps one (method, path pattern) pair onto an upstream endpoint.
// Pattern segments starting with ':' capture the profile id.
type Route struct {
	Name     string
	Method   string
	Pattern  []string
	Upstream string // may contain :id
	// ForwardQuery copies the inbound query string to the upstream call.
	ForwardQuery bool
}

// Target is a resolved upstream call.
type Target struct {
	Route  string
	Method string
	// Path is relative to the upstream base and includes the query string.
	Path string
}

// Routes is checked in order; the first match wins.
var Routes = []Route{
	{Name: "user", Method: http.MethodGet, Pattern: []string{"user"}, Upstream: "/user.json"},
	{Name: "profiles", Method: http.MethodGet, Pattern: []string{"profiles"}, Upstream: "/profiles.json"},
	{
		Name: "pending_updates", Method: http.MethodGet,
		Pattern:      []string{"profiles", ":id", "updates", "pending"},
		Upstream:     "/profiles/:id/updates/pending.json",
		ForwardQuery: true,
	},
	{
		Name: "sent_updates", Method: http.MethodGet,
		Pattern:      []string{"profiles", ":id", "updates", "sent"},
		Upstream:     "/profiles/:id/updates/sent.json",
		ForwardQuery: true,
	},
	{
		Name: "shuffle_updates", Method: http.MethodPost,
		Pattern:  []string{"profiles", ":id", "updates", "shuffle"},
		Upstream: "/profiles/:id/updates/shuffle.json",
	},
	{Name: "create_update", Method: http.MethodPost, Pattern: []string{"updates", "create"}, Upstream: "/updates/create.json"},
}

// Resolve matches a wildcard path (the part after /api/buffer/) against Routes.
// rawQuery is forwarded verbatim, keeping the caller's parameter order.
func Resolve(method, path, rawQuery string) (Target, error) {
	method = strings.ToUpper(method)
	segments := splitPath(path)
	if len(segments) == 0 {
		return Target{}, ErrUnknownRoute
	}

	for _, rt := range Routes {
		if rt.Method != method {
			continue
		}
		id, ok := match(rt.Pattern, segments)
		if !ok {
			continue
		}
		upstream := strings.Replace(rt.Upstream, ":id", url.PathEscape(id), 1)
		if rt.ForwardQuery && rawQuery != "" {
			upstream += "?" + rawQuery
		}
		return Target{Route: rt.Name, Method: rt.Method, Path: upstream}, nil
	}

	// Anything under profiles/ other than the bare listing needs an id.
	if segments[0] == "profiles" && len(segments) == 1 {
		return Target{}, ErrMissingProfileID
	}
	return Target{}, ErrUnknownRoute
}

func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	segments := parts[:0]
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}

func match(pattern, segments []string) (string, bool) {
	if len(pattern) != len(segments) {
		return "", false
	}
	var id string
	for i, p := range pattern {
		if strings.HasPrefix(p, ":") {
			id = segments[i]
			continue
		}
		if p != segments[i] {
			return "", false
		}
	}
	return id, true
}
