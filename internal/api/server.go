// File path: internal/api/server.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/showfolio/scribe/internal/common"
	"github.com/showfolio/scribe/internal/crawler"
	"github.com/showfolio/scribe/internal/docstore"
	"github.com/showfolio/scribe/internal/llm"
	"github.com/showfolio/scribe/internal/pipeline"
)

// Server exposes the documentation pipeline over HTTP.
type Server struct {
	router    chi.Router
	crawler   *crawler.Crawler
	gateway   *llm.Gateway
	store     *docstore.Store
	generator *pipeline.Generator
}

// NewServer wires the API around its collaborators.
func NewServer(c *crawler.Crawler, gateway *llm.Gateway, store *docstore.Store) (*Server, error) {
	if c == nil || gateway == nil || store == nil {
		return nil, fmt.Errorf("crawler, gateway and store required")
	}
	srv := &Server{
		router:    chi.NewRouter(),
		crawler:   c,
		gateway:   gateway,
		store:     store,
		generator: pipeline.New(c, gateway, store),
	}
	srv.routes()
	common.Logger().Info("api: server ready")
	return srv, nil
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

	s.router.Post("/v1/crawl", s.handleCrawl)
	s.router.Post("/v1/generate", s.handleGenerate)
	s.router.Get("/v1/providers", s.handleProviders)
	s.router.Get("/v1/projects", s.handleProjects)
	s.router.Get("/v1/projects/{slug}", s.handleProject)
	s.router.Get("/v1/projects/{slug}/chapters/{filename}", s.handleChapter)
	s.router.Delete("/v1/projects/{slug}", s.handleDeleteProject)
	s.router.Get("/v1/projects/{slug}/download", s.handleDownload)
	s.router.Get("/v1/logs", s.handleLogs)
	s.router.Get("/v1/stats", s.handleStats)
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"providers": llm.Providers()})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"logs": common.LogEntries()})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.gateway.Stats())
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
