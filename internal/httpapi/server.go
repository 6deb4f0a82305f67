// Package httpapi is the thin translation layer between HTTP and the
// session/deployment control plane: it holds no state of its own.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/bluedex/internal/cluster"
	"github.com/go-go-golems/bluedex/internal/deploy"
	"github.com/go-go-golems/bluedex/internal/health"
	"github.com/go-go-golems/bluedex/internal/session"
)

const basePath = "/api/v1/products"

// maxBodyBytes caps request bodies at 100 MiB per the external
// interface contract.
const maxBodyBytes = 100 << 20

// Server wires the control plane's components to HTTP routes. It
// carries no mutable state beyond its collaborators.
type Server struct {
	gateway     cluster.Gateway
	coordinator *deploy.Coordinator
	sessions    *session.Manager
	probe       *health.Probe
	mux         *http.ServeMux
}

// New builds a Server and registers every route.
func New(gateway cluster.Gateway, coordinator *deploy.Coordinator, sessions *session.Manager, probe *health.Probe) *Server {
	s := &Server{gateway: gateway, coordinator: coordinator, sessions: sessions, probe: probe, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST "+basePath+"/{alias}/batch/start", s.handleStartSession)
	s.mux.HandleFunc("POST "+basePath+"/batch/{sessionId}/process", s.handleProcessBatch)
	s.mux.HandleFunc("POST "+basePath+"/batch/{sessionId}/complete", s.handleCompleteSession)
	s.mux.HandleFunc("POST "+basePath+"/batch/{sessionId}/cancel", s.handleCancelSession)
	s.mux.HandleFunc("GET "+basePath+"/batch/{sessionId}/status", s.handleSessionStatus)
	s.mux.HandleFunc("GET "+basePath+"/batch/active", s.handleListActive)

	s.mux.HandleFunc("POST "+basePath+"/{alias}/promote", s.handlePromote)
	s.mux.HandleFunc("POST "+basePath+"/{alias}/rollback", s.handleRollback)
	s.mux.HandleFunc("GET "+basePath+"/{alias}/status", s.handleAliasStatus)
	s.mux.HandleFunc("GET "+basePath+"/{alias}/schema", s.handleSchema)

	s.mux.HandleFunc("POST "+basePath+"/search/text", s.handleSearchText)
	s.mux.HandleFunc("POST "+basePath+"/search/criteria", s.handleSearchCriteria)
	s.mux.HandleFunc("GET "+basePath+"/{productId}", s.handleGetDocument)

	s.mux.HandleFunc("GET "+basePath+"/health", s.handleHealth)
}

// Handler returns the fully wrapped HTTP handler: body-limit, CORS and
// logging middleware chained around the route mux.
func (s *Server) Handler() http.Handler {
	return withLogging(withCORS(withBodyLimit(s.mux)))
}

func withBodyLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("handled request")
	})
}

// contextWithTimeout bounds a single handler's downstream cluster
// calls; HTTP requests carry no cancellation signal of their own per
// the concurrency model, so this is the only deadline in play.
func contextWithTimeout(r *http.Request, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), d)
}
