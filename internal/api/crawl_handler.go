// File path: internal/api/crawl_handler.go
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/showfolio/scribe/internal/common"
	"github.com/showfolio/scribe/internal/crawler"
)

type crawlRequest struct {
	RepoURL     string `json:"repo_url"`
	GithubToken string `json:"github_token,omitempty"`
}

type crawlResponse struct {
	Success   bool               `json:"success"`
	Files     []crawler.RepoFile `json:"files,omitempty"`
	Stats     *crawler.Stats     `json:"stats,omitempty"`
	Error     string             `json:"error,omitempty"`
	LatencyMs int64              `json:"latency_ms"`
}

func (s *Server) handleCrawl(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	start := time.Now()
	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	result, err := s.crawler.Crawl(r.Context(), req.RepoURL, req.GithubToken)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		status := crawlErrorStatus(err)
		logger.Warn("api: crawl failed", "repo", req.RepoURL, "status", status, "error", err)
		writeJSON(w, status, crawlResponse{Success: false, Error: err.Error(), LatencyMs: latency})
		return
	}
	logger.Info("api: crawl succeeded", "repo", req.RepoURL, "files", result.Stats.TotalFiles, "latency_ms", latency)
	writeJSON(w, http.StatusOK, crawlResponse{
		Success:   true,
		Files:     result.Files,
		Stats:     &result.Stats,
		LatencyMs: latency,
	})
}

func crawlErrorStatus(err error) int {
	switch {
	case errors.Is(err, crawler.ErrInvalidRepoURL):
		return http.StatusBadRequest
	case errors.Is(err, crawler.ErrRepoNotFound):
		return http.StatusNotFound
	case errors.Is(err, crawler.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}
