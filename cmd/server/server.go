package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"example.com/bufferproxy/internal/audit"
	"example.com/bufferproxy/internal/buffer"
	"example.com/bufferproxy/internal/bufferclient"
	"example.com/bufferproxy/internal/dashboard"
	"example.com/bufferproxy/internal/logger"
	"example.com/bufferproxy/internal/middleware"
	"example.com/bufferproxy/internal/store"
)

const proxyPrefix = "/api/buffer/"

var logg = logger.New()

type Options struct {
	Addr        string
	TLSCertFile string
	TLSKeyFile  string

	BufferAPIBase     string
	BufferAccessToken string
	Demo              bool

	// AdminSecret signs admin tokens. The audit endpoint also needs Store.
	AdminSecret []byte
	Store       store.StoreInterface
	// Recorder receives every proxied call; nil disables the audit trail.
	Recorder *audit.Recorder
}

type Server struct {
	opts      Options
	proxy     *buffer.Handler
	dashboard *dashboard.Service
	store     store.StoreInterface
	newClient func(token string) dashboard.BufferAPI
}

func New(opts Options) *Server {
	base := strings.TrimRight(opts.BufferAPIBase, "/")

	proxy := buffer.NewHandler(proxyPrefix, buffer.NewForwarder(base, opts.BufferAccessToken))
	if opts.Recorder != nil {
		proxy.Observe = opts.Recorder.Observe
	}

	return &Server{
		opts:      opts,
		proxy:     proxy,
		dashboard: dashboard.New(opts.Demo),
		store:     opts.Store,
		newClient: func(token string) dashboard.BufferAPI {
			return bufferclient.NewDirect(token, bufferclient.WithBaseURL(base))
		},
	}
}

// Handler returns the routed application with request ids attached.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/dashboard/profiles", s.profilesHandler)
	mux.HandleFunc("GET /api/dashboard/updates", s.updatesHandler)
	mux.HandleFunc("POST /api/dashboard/compose", s.composeHandler)

	if s.store != nil && len(s.opts.AdminSecret) > 0 {
		auth := middleware.JWTAuth(s.opts.AdminSecret)
		mux.Handle("GET /api/admin/audit", auth(http.HandlerFunc(s.auditHandler)))
	}

	mux.HandleFunc("GET /healthz", s.healthHandler)

	return middleware.RequestID(s.dispatch(mux))
}

// dispatch hands every /api/buffer request to the proxy untouched. ServeMux
// would answer the bare mount point and non-clean paths with a redirect.
func (s *Server) dispatch(mux *http.ServeMux) http.Handler {
	mount := strings.TrimSuffix(proxyPrefix, "/")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := r.URL.Path; p == mount || strings.HasPrefix(p, proxyPrefix) {
			s.proxy.ServeHTTP(w, r)
			return
		}
		mux.ServeHTTP(w, r)
	})
}

// Run serves until ctx is cancelled, then shuts down gracefully. It returns
// early with an error when the listener cannot be started.
func Run(ctx context.Context, opts Options) error {
	s := New(opts)

	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// No WriteTimeout: the proxy never cuts an upstream call short.
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if opts.TLSCertFile != "" {
			logg.Info("server", "Starting HTTPS server on "+opts.Addr)
			err = srv.ListenAndServeTLS(opts.TLSCertFile, opts.TLSKeyFile)
		} else {
			logg.Info("server", "Starting HTTP server on "+opts.Addr)
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error("server", "Server stopped unexpectedly", err)
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logg.Info("server", "Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("server", "Error during server shutdown", err)
		return err
	}
	logg.Info("server", "Server stopped gracefully")
	return nil
}
