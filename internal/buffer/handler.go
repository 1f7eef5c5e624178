package buffer

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/bufferproxy/internal/logger"
)

var logg = logger.New()

// Call summarises one handled request for observers. It never holds the token.
type Call struct {
	Method           string
	Path             string
	Route            string
	Status           int
	CredentialSource string
	Duration         time.Duration
}

// Handler serves ANY <prefix>*path: CORS preflight, routing and forwarding.
type Handler struct {
	Prefix    string
	Forwarder *Forwarder
	// Observe, if set, is called after every request.
	Observe func(r *http.Request, c Call)
}

// NewHandler mounts the proxy under prefix (e.g. "/api/buffer/").
func NewHandler(prefix string, fwd *Forwarder) *Handler {
	return &Handler{Prefix: prefix, Forwarder: fwd}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w}
	call := Call{Method: r.Method, Path: r.URL.Path}

	defer func() {
		call.Status = sw.status()
		call.Duration = time.Since(start)
		if h.Observe != nil {
			h.Observe(r, call)
		}
	}()

	if r.Method == http.MethodOptions {
		writePreflight(sw)
		return
	}

	// The bare mount point ("/api/buffer") resolves to no segments.
	wildcard := strings.TrimPrefix(r.URL.Path, strings.TrimSuffix(h.Prefix, "/"))
	target, err := Resolve(r.Method, wildcard, r.URL.RawQuery)
	if err != nil {
		var perr *Error
		if !errors.As(err, &perr) {
			perr = ErrUnknownRoute
		}
		logg.Info("buffer/router", "Rejected "+r.Method+" "+r.URL.Path+": "+string(perr.Kind))
		WriteError(sw, perr)
		return
	}
	call.Route = target.Route

	source, perr := h.Forwarder.Forward(sw, r, target)
	call.CredentialSource = source
	if perr != nil {
		logg.Info("buffer/forward", "Route "+target.Route+" failed locally: "+string(perr.Kind))
		WriteError(sw, perr)
		return
	}
	logg.Debug("buffer/forward", "Route "+target.Route+" relayed upstream status "+strconv.Itoa(sw.status()))
}

func writePreflight(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	h.Set("Access-Control-Allow-Headers", "authorization,content-type,x-buffer-token")
	w.WriteHeader(http.StatusNoContent)
}

// statusWriter records the status code written through it.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.code == 0 {
		w.code = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.code == 0 {
		w.code = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) status() int {
	if w.code == 0 {
		return http.StatusOK
	}
	return w.code
}
