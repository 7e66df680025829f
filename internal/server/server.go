package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flagged-dev/flagged/internal/utils"
	"github.com/flagged-dev/flagged/pkg/flagged"
)

const shutdownTimeout = 5 * time.Second

// Locker guards bulk writes to the store against other processes.
type Locker interface {
	Lock(ctx context.Context) error
	Unlock() error
}

type Server struct {
	Svc      *flagged.Service
	Username string
	Password string
	Lock     Locker // optional; nil = no cross-process locking
}

func New(svc *flagged.Service, user, pass string) *Server {
	return &Server{
		Svc:      svc,
		Username: user,
		Password: pass,
	}
}

// Handler returns the bridge routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Cache
	mux.HandleFunc("GET /api/cache/{handle}", s.basicAuth(s.handleCacheGet))
	mux.HandleFunc("PUT /api/cache/{handle}", s.basicAuth(s.handleCachePut))
	mux.HandleFunc("DELETE /api/cache/{handle}", s.basicAuth(s.handleCacheEvict))
	mux.HandleFunc("POST /api/refetch", s.basicAuth(s.handleRefetch))

	// Store maintenance
	mux.HandleFunc("GET /api/store/count", s.basicAuth(s.handleCount))
	mux.HandleFunc("POST /api/store/clear", s.basicAuth(s.handleClear))
	mux.HandleFunc("GET /api/store/export", s.basicAuth(s.handleExport))
	mux.HandleFunc("POST /api/store/import", s.basicAuth(s.handleImport))

	mux.HandleFunc("GET /api/verdict/{handle}", s.basicAuth(s.handleVerdict))
	mux.HandleFunc("GET /api/status", s.basicAuth(s.handleStatus))
	mux.HandleFunc("GET /api/settings", s.basicAuth(s.handleSettingsGet))
	mux.HandleFunc("PUT /api/settings", s.basicAuth(s.handleSettingsPut))

	mux.Handle("GET /metrics", s.basicAuthMiddleware(promhttp.Handler()))
	return mux
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		utils.Log.Infof("Starting server on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) authorized(r *http.Request) bool {
	if s.Username == "" && s.Password == "" {
		return true
	}
	user, pass, ok := r.BasicAuth()
	return ok && user == s.Username && pass == s.Password
}

func (s *Server) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authorized(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	return s.basicAuth(next.ServeHTTP)
}
