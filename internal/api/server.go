// File path: internal/api/server.go
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/launchbase/opsgate/internal/access"
	"github.com/launchbase/opsgate/internal/artifact"
	"github.com/launchbase/opsgate/internal/common"
	"github.com/launchbase/opsgate/internal/config"
	"github.com/launchbase/opsgate/internal/knowledge"
	"github.com/launchbase/opsgate/internal/livestate"
	"github.com/launchbase/opsgate/internal/ratelimit"
)

// Server wires the delivery gateway behind an HTTP surface.
type Server struct {
	router    chi.Router
	resolver  TokenResolver
	verifier  *access.Verifier
	limiter   *ratelimit.Limiter
	gateway   *artifact.Gateway
	projector *livestate.Projector
	knowledge *knowledge.Store

	downloadRule config.LimitRule
}

// NewServer builds the router over the already-constructed components.
func NewServer(resolver TokenResolver, verifier *access.Verifier, limiter *ratelimit.Limiter, gateway *artifact.Gateway, projector *livestate.Projector, ledger *knowledge.Store, cfg config.Config) *Server {
	srv := &Server{
		router:       chi.NewRouter(),
		resolver:     resolver,
		verifier:     verifier,
		limiter:      limiter,
		gateway:      gateway,
		projector:    projector,
		knowledge:    ledger,
		downloadRule: cfg.DownloadLimit,
	}
	srv.routes()
	return srv
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	logger := common.Logger()
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request", "method", r.Method, "path", r.URL.Path, "dur", time.Since(start), "remote", r.RemoteAddr)
		})
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.router.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Get("/artifacts/{id}", s.handleArtifact)
		r.Get("/v1/runs/{id}/live", s.handleLiveState)
		r.Get("/v1/projects", s.handleProjects)
		r.Get("/v1/projects/{id}/knowledge", s.handleKnowledgeGet)
		r.Put("/v1/projects/{id}/knowledge", s.handleKnowledgePut)
		r.Get("/v1/logs", s.handleLogs)
	})
}

// setRateHeaders emits the standard throttle headers on every rate-limited
// response.
func setRateHeaders(w http.ResponseWriter, decision ratelimit.Decision) {
	remaining := int64(decision.Limit) - decision.Current
	if remaining < 0 {
		remaining = 0
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
}

func writeThrottled(w http.ResponseWriter, decision ratelimit.Decision) {
	retryAfter := decision.RetryAfter(time.Now())
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	logger := common.Logger()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
