package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/bufferproxy/internal/buffer"
	"example.com/bufferproxy/internal/bufferclient"
	"example.com/bufferproxy/internal/dashboard"
	"example.com/bufferproxy/internal/middleware"
	"example.com/bufferproxy/internal/models"
)

const (
	defaultAuditLimit = 50
	maxComposeBody    = 1 << 20
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, map[string]string{"error": kind, "message": msg})
}

// writeBufferError relays a Buffer API failure. API errors keep their status;
// anything else means Buffer could not be reached.
func writeBufferError(w http.ResponseWriter, err error) {
	var apiErr *bufferclient.APIError
	if errors.As(err, &apiErr) {
		writeError(w, apiErr.StatusCode, "Upstream", apiErr.Message)
		return
	}
	writeError(w, http.StatusBadGateway, string(buffer.KindBadGateway), "Buffer API unreachable.")
}

// client builds a Buffer client for the caller's credential, resolved the same
// way as on the proxy.
func (s *Server) client(w http.ResponseWriter, r *http.Request) (dashboard.BufferAPI, bool) {
	cred, ok := buffer.ResolveCredential(r.Header, s.opts.BufferAccessToken)
	if !ok {
		buffer.WriteError(w, buffer.ErrMissingToken)
		return nil, false
	}
	return s.newClient(cred.Token), true
}

// profilesHandler lists the connected profiles.
// GET /api/dashboard/profiles
func (s *Server) profilesHandler(w http.ResponseWriter, r *http.Request) {
	api, ok := s.client(w, r)
	if !ok {
		return
	}

	res, err := s.dashboard.Profiles(r.Context(), api)
	if err != nil {
		logg.Error("http/dashboard", "Failed to load profiles", err)
		writeBufferError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// updatesHandler lists queued or sent updates of several profiles.
// GET /api/dashboard/updates?profile_ids=a,b&tab=pending|history
func (s *Server) updatesHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	tab, err := dashboard.ParseTab(q.Get("tab"))
	if err != nil {
		writeError(w, http.StatusBadRequest, string(buffer.KindBadRequest), err.Error())
		return
	}

	var ids []string
	for _, raw := range q["profile_ids"] {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		writeError(w, http.StatusBadRequest, string(buffer.KindBadRequest), "profile_ids is required.")
		return
	}

	api, ok := s.client(w, r)
	if !ok {
		return
	}

	results := s.dashboard.Updates(r.Context(), api, tab, ids)
	writeJSON(w, http.StatusOK, map[string]any{
		"tab":     tab,
		"results": results,
	})
}

// composeHandler sends a post to the selected profiles.
// POST /api/dashboard/compose
// Expects JSON body: {"profile_ids": [...], "text": "...", "attachment": "none|image|link", "media": {...}}
func (s *Server) composeHandler(w http.ResponseWriter, r *http.Request) {
	var req dashboard.ComposeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxComposeBody)).Decode(&req); err != nil {
		logg.Error("http/dashboard", "Invalid compose body", err)
		writeError(w, http.StatusBadRequest, string(buffer.KindBadRequest), "invalid request body")
		return
	}

	api, ok := s.client(w, r)
	if !ok {
		return
	}

	res, err := s.dashboard.Compose(r.Context(), api, req)
	switch {
	case errors.Is(err, dashboard.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, string(buffer.KindBadRequest), err.Error())
	case err != nil:
		logg.Error("http/dashboard", "Compose failed", err)
		writeBufferError(w, err)
	default:
		logg.Info("http/dashboard", "Post sent to "+strconv.Itoa(len(req.ProfileIDs))+" profiles")
		writeJSON(w, http.StatusOK, res)
	}
}

// auditHandler lists recorded proxy calls.
// GET /api/admin/audit?day=YYYY-MM-DD&limit=50&route=user
func (s *Server) auditHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	day := q.Get("day")
	if day == "" {
		day = time.Now().UTC().Format(time.DateOnly)
	} else if _, err := time.Parse(time.DateOnly, day); err != nil {
		writeError(w, http.StatusBadRequest, string(buffer.KindBadRequest), "day must be YYYY-MM-DD")
		return
	}

	limit := defaultAuditLimit
	if l, err := strconv.Atoi(q.Get("limit")); err == nil && l > 0 {
		limit = l
	}

	var (
		calls []models.ProxyCall
		err   error
	)
	if route := q.Get("route"); route != "" {
		calls, err = s.store.RouteProxyCalls(route, day, limit)
	} else {
		calls, err = s.store.RecentProxyCalls(day, limit)
	}
	if err != nil {
		logg.Error("http/audit", "Failed to list proxy calls", err)
		writeError(w, http.StatusInternalServerError, "Internal", "failed to list proxy calls")
		return
	}
	if calls == nil {
		calls = []models.ProxyCall{}
	}

	sub, _ := middleware.SubjectFromContext(r.Context())
	logg.Debug("http/audit", "Audit listed by "+sub+" for "+day)

	writeJSON(w, http.StatusOK, map[string]any{
		"day":   day,
		"calls": calls,
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"demo":   s.opts.Demo,
		"audit":  s.opts.Recorder != nil,
	})
}
