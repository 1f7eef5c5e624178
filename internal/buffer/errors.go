package buffer

import (
	"encoding/json"
	"net/http"
)

// Kind classifies errors produced locally by the proxy. Upstream failures are
// never mapped onto a Kind; they are relayed as-is.
type Kind string

const (
	KindUnauthorized Kind = "Unauthorized"
	KindBadRequest   Kind = "BadRequest"
	KindNotFound     Kind = "NotFound"
	KindBadGateway   Kind = "BadGateway"
)

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindBadGateway:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// Error is a structured proxy error, rendered as {"error": Kind, "message": Message}.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

const (
	msgUnknownRoute = "Unknown Buffer API route. Check /api/buffer/user, /api/buffer/profiles, " +
		"/api/buffer/updates/create, /api/buffer/profiles/:id/updates/pending, /sent, /shuffle."
	msgMissingProfileID = "Missing profile id."
	msgMissingToken     = "Missing Buffer access token. Send Authorization: Bearer <token> " +
		"or X-Buffer-Token: <token>, or set BUFFER_ACCESS_TOKEN in the proxy environment."
)

var (
	ErrUnknownRoute     = &Error{Kind: KindNotFound, Message: msgUnknownRoute}
	ErrMissingProfileID = &Error{Kind: KindBadRequest, Message: msgMissingProfileID}
	ErrMissingToken     = &Error{Kind: KindUnauthorized, Message: msgMissingToken}
)

type errorBody struct {
	Error   Kind   `json:"error"`
	Message string `json:"message"`
}

// WriteError renders e as the proxy's JSON error body.
func WriteError(w http.ResponseWriter, e *Error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(e.Kind.Status())
	json.NewEncoder(w).Encode(errorBody{Error: e.Kind, Message: e.Message})
}
