package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/bufferproxy/internal/audit"
	"example.com/bufferproxy/internal/broker"
	"example.com/bufferproxy/internal/middleware"
	"example.com/bufferproxy/internal/models"
	"example.com/bufferproxy/internal/store"
)

var testSecret = []byte("test-secret")

//
// --- Fake Buffer API ---
//

type fakeBuffer struct {
	mu       sync.Mutex
	auth     []string
	composed url.Values
}

func (f *fakeBuffer) seen(r *http.Request) {
	f.mu.Lock()
	f.auth = append(f.auth, r.Header.Get("Authorization"))
	f.mu.Unlock()
}

func (f *fakeBuffer) lastAuth() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.auth) == 0 {
		return ""
	}
	return f.auth[len(f.auth)-1]
}

func (f *fakeBuffer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.auth)
}

func newFakeBuffer(t *testing.T) (*fakeBuffer, *httptest.Server) {
	t.Helper()
	f := &fakeBuffer{}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /1/user.json", func(w http.ResponseWriter, r *http.Request) {
		f.seen(r)
		io.WriteString(w, `{"id":"u1","name":"Ada"}`)
	})
	mux.HandleFunc("GET /1/profiles.json", func(w http.ResponseWriter, r *http.Request) {
		f.seen(r)
		io.WriteString(w, `[{"id":"p1","service":"twitter"},{"id":"p2","service":"linkedin"}]`)
	})
	mux.HandleFunc("GET /1/profiles/{id}/updates/pending.json", func(w http.ResponseWriter, r *http.Request) {
		f.seen(r)
		if r.PathValue("id") == "broken" {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"success":false,"message":"Profile not found"}`)
			return
		}
		io.WriteString(w, `{"total":1,"updates":[{"id":"up-`+r.PathValue("id")+`","status":"buffer"}]}`)
	})
	mux.HandleFunc("POST /1/updates/create.json", func(w http.ResponseWriter, r *http.Request) {
		f.seen(r)
		r.ParseForm()
		f.mu.Lock()
		f.composed = r.PostForm
		f.mu.Unlock()
		io.WriteString(w, `{"success":true,"buffer_count":1,"updates":[{"id":"new","status":"sent"}]}`)
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return f, ts
}

//
// --- Setup test server ---
//

type testEnv struct {
	buffer *fakeBuffer
	store  *store.MockStore
	srv    *httptest.Server
}

func setupTestServer(t *testing.T, mutate func(*Options)) *testEnv {
	t.Helper()
	fb, upstream := newFakeBuffer(t)
	mockStore := store.NewMock()

	rec := audit.NewRecorder(broker.NewKafkaPublisher(&broker.MockKafka{Store: mockStore}), 16)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { rec.Run(ctx); close(done) }()
	t.Cleanup(func() { cancel(); <-done })

	opts := Options{
		BufferAPIBase: upstream.URL + "/1/",
		AdminSecret:   testSecret,
		Store:         mockStore,
		Recorder:      rec,
	}
	if mutate != nil {
		mutate(&opts)
	}

	ts := httptest.NewServer(New(opts).Handler())
	t.Cleanup(ts.Close)
	return &testEnv{buffer: fb, store: mockStore, srv: ts}
}

func do(t *testing.T, method, url string, body io.Reader, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

func adminHeader(t *testing.T) map[string]string {
	t.Helper()
	token, err := middleware.IssueAdminToken(testSecret, "ops", time.Hour)
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

//
// --- Proxy ---
//

func TestProxy_RelaysAndAudits(t *testing.T) {
	env := setupTestServer(t, nil)

	resp, body := do(t, http.MethodGet, env.srv.URL+"/api/buffer/user", nil,
		map[string]string{"X-Buffer-Token": "tok", middleware.HeaderRequestID: "req-42"})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"id":"u1","name":"Ada"}`, string(body))
	assert.Equal(t, "req-42", resp.Header.Get(middleware.HeaderRequestID))
	assert.Equal(t, "Bearer tok", env.buffer.lastAuth())

	require.Eventually(t, func() bool { return env.store.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	calls, err := env.store.RecentProxyCalls(time.Now().UTC().Format(time.DateOnly), 10)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "req-42", calls[0].RequestID)
	assert.Equal(t, "user", calls[0].Route)
	assert.Equal(t, http.StatusOK, calls[0].Status)
	assert.Equal(t, "x-buffer-token", calls[0].CredentialSource)
}

func TestProxy_LocalErrorsAreAuditedWithoutUpstreamCall(t *testing.T) {
	env := setupTestServer(t, nil)

	resp, _ := do(t, http.MethodGet, env.srv.URL+"/api/buffer/nope", nil, map[string]string{"Authorization": "Bearer t"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, env.srv.URL+"/api/buffer/profiles", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	assert.Zero(t, env.buffer.calls())
	require.Eventually(t, func() bool { return env.store.Len() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestProxy_FallbackCredential(t *testing.T) {
	env := setupTestServer(t, func(o *Options) { o.BufferAccessToken = "server-tok" })

	resp, _ := do(t, http.MethodGet, env.srv.URL+"/api/buffer/profiles", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Bearer server-tok", env.buffer.lastAuth())
}

// Requests on the bare mount point or with doubled slashes reach the proxy
// instead of being redirected by the mux.
func TestProxy_UncleanPathsAreNotRedirected(t *testing.T) {
	fb, upstream := newFakeBuffer(t)
	h := New(Options{BufferAPIBase: upstream.URL + "/1"}).Handler()

	serve := func(method, target string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, body)
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	for _, target := range []string{"/api/buffer", "/api/buffer/", "/api/buffer//user", "/api/buffer/updates//create"} {
		rec := serve(http.MethodOptions, target, nil, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code, target)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"), target)
		assert.Empty(t, rec.Header().Get("Location"), target)
	}

	rec := serve(http.MethodGet, "/api/buffer", nil, map[string]string{"X-Buffer-Token": "tok"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"NotFound"`)

	rec = serve(http.MethodGet, "/api/buffer//user", nil, map[string]string{"X-Buffer-Token": "tok"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"u1","name":"Ada"}`, rec.Body.String())

	rec = serve(http.MethodPost, "/api/buffer/updates//create", strings.NewReader("text=hi&profile_ids%5B%5D=p1"),
		map[string]string{"X-Buffer-Token": "tok", "Content-Type": "application/x-www-form-urlencoded"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"success":true`)

	fb.mu.Lock()
	form := fb.composed
	fb.mu.Unlock()
	assert.Equal(t, "hi", form.Get("text"))
	assert.Equal(t, []string{"p1"}, form["profile_ids[]"])
	assert.Equal(t, "Bearer tok", fb.lastAuth())
}

//
// --- Dashboard ---
//

func TestDashboard_Profiles(t *testing.T) {
	env := setupTestServer(t, nil)

	resp, body := do(t, http.MethodGet, env.srv.URL+"/api/dashboard/profiles", nil,
		map[string]string{"Authorization": "Bearer tok"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var res struct {
		Profiles []models.Profile `json:"profiles"`
		Mock     bool             `json:"mock"`
	}
	require.NoError(t, json.Unmarshal(body, &res))
	assert.Len(t, res.Profiles, 2)
	assert.False(t, res.Mock)
}

func TestDashboard_RequiresCredential(t *testing.T) {
	env := setupTestServer(t, nil)

	resp, body := do(t, http.MethodGet, env.srv.URL+"/api/dashboard/profiles", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, string(body), `"error":"Unauthorized"`)
	assert.Zero(t, env.buffer.calls())
}

func TestDashboard_UpdatesPerProfile(t *testing.T) {
	env := setupTestServer(t, nil)

	resp, body := do(t, http.MethodGet, env.srv.URL+"/api/dashboard/updates?profile_ids=p1,broken&profile_ids=p2", nil,
		map[string]string{"Authorization": "Bearer tok"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var res struct {
		Tab     string `json:"tab"`
		Results []struct {
			ProfileID string          `json:"profile_id"`
			Updates   []models.Update `json:"updates"`
			Error     string          `json:"error"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(body, &res))
	assert.Equal(t, "pending", res.Tab)
	require.Len(t, res.Results, 3)
	assert.Equal(t, "up-p1", res.Results[0].Updates[0].ID)
	assert.Equal(t, "Profile not found", res.Results[1].Error)
	assert.Equal(t, "up-p2", res.Results[2].Updates[0].ID)
}

func TestDashboard_UpdatesValidation(t *testing.T) {
	env := setupTestServer(t, nil)
	auth := map[string]string{"Authorization": "Bearer tok"}

	resp, _ := do(t, http.MethodGet, env.srv.URL+"/api/dashboard/updates", nil, auth)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, env.srv.URL+"/api/dashboard/updates?profile_ids=p1&tab=compose", nil, auth)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, env.srv.URL+"/api/dashboard/updates?profile_ids=p1", nil, auth)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestDashboard_Compose(t *testing.T) {
	env := setupTestServer(t, nil)

	payload := `{"profile_ids":["p1","p2"],"text":"Hello","attachment":"image","media":{"picture":"https://img/x.png","link":"https://dropped"}}`
	resp, body := do(t, http.MethodPost, env.srv.URL+"/api/dashboard/compose", strings.NewReader(payload),
		map[string]string{"Authorization": "Bearer tok", "Content-Type": "application/json"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), `"success":true`)

	env.buffer.mu.Lock()
	form := env.buffer.composed
	env.buffer.mu.Unlock()
	assert.Equal(t, []string{"p1", "p2"}, form["profile_ids[]"])
	assert.Equal(t, "true", form.Get("now"))
	assert.Equal(t, "https://img/x.png", form.Get("media[thumbnail]"))
	assert.Empty(t, form.Get("media[link]"))
}

func TestDashboard_ComposeInvalid(t *testing.T) {
	env := setupTestServer(t, nil)
	auth := map[string]string{"Authorization": "Bearer tok"}

	resp, _ := do(t, http.MethodPost, env.srv.URL+"/api/dashboard/compose", strings.NewReader(`{bad`), auth)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, env.srv.URL+"/api/dashboard/compose", strings.NewReader(`{"text":"x"}`), auth)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, env.buffer.calls())
}

func TestDashboard_UnreachableBuffer(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()

	env := setupTestServer(t, func(o *Options) { o.BufferAPIBase = dead.URL })
	resp, _ := do(t, http.MethodGet, env.srv.URL+"/api/dashboard/profiles", nil, map[string]string{"Authorization": "Bearer tok"})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	demo := setupTestServer(t, func(o *Options) { o.BufferAPIBase = dead.URL; o.Demo = true })
	resp, body := do(t, http.MethodGet, demo.srv.URL+"/api/dashboard/profiles", nil, map[string]string{"Authorization": "Bearer tok"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"mock":true`)
}

//
// --- Admin audit ---
//

func TestAudit_ListsRecordedCalls(t *testing.T) {
	env := setupTestServer(t, nil)
	do(t, http.MethodGet, env.srv.URL+"/api/buffer/user", nil, map[string]string{"Authorization": "Bearer tok"})
	do(t, http.MethodGet, env.srv.URL+"/api/buffer/profiles", nil, map[string]string{"Authorization": "Bearer tok"})
	require.Eventually(t, func() bool { return env.store.Len() == 2 }, 2*time.Second, 10*time.Millisecond)

	resp, body := do(t, http.MethodGet, env.srv.URL+"/api/admin/audit?limit=10", nil, adminHeader(t))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var res struct {
		Day   string             `json:"day"`
		Calls []models.ProxyCall `json:"calls"`
	}
	require.NoError(t, json.Unmarshal(body, &res))
	assert.Len(t, res.Calls, 2)
	assert.NotContains(t, string(body), "tok\"")

	resp, body = do(t, http.MethodGet, env.srv.URL+"/api/admin/audit?route=user", nil, adminHeader(t))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &res))
	require.Len(t, res.Calls, 1)
	assert.Equal(t, "user", res.Calls[0].Route)
}

func TestAudit_Rejections(t *testing.T) {
	env := setupTestServer(t, nil)

	resp, _ := do(t, http.MethodGet, env.srv.URL+"/api/admin/audit", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, env.srv.URL+"/api/admin/audit?day=yesterday", nil, adminHeader(t))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := do(t, http.MethodGet, env.srv.URL+"/api/admin/audit?day=2020-01-01", nil, adminHeader(t))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"calls":[]`)
}

func TestAudit_StoreFailure(t *testing.T) {
	env := setupTestServer(t, func(o *Options) { o.Store = &store.MockStoreFail{} })

	resp, _ := do(t, http.MethodGet, env.srv.URL+"/api/admin/audit", nil, adminHeader(t))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestAudit_DisabledWithoutStore(t *testing.T) {
	env := setupTestServer(t, func(o *Options) { o.Store = nil })

	resp, _ := do(t, http.MethodGet, env.srv.URL+"/api/admin/audit", nil, adminHeader(t))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	env := setupTestServer(t, nil)

	resp, body := do(t, http.MethodGet, env.srv.URL+"/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","demo":false,"audit":true}`, string(bytes.TrimSpace(body)))
	assert.NotEmpty(t, resp.Header.Get(middleware.HeaderRequestID))
}
