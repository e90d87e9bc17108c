// File path: internal/api/generate_handler.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/showfolio/scribe/internal/common"
	"github.com/showfolio/scribe/internal/crawler"
	"github.com/showfolio/scribe/internal/llm"
	"github.com/showfolio/scribe/internal/pipeline"
)

type generateRequest struct {
	RepoURL         string `json:"repo_url"`
	GithubToken     string `json:"github_token,omitempty"`
	LLMProvider     string `json:"llm_provider"`
	LLMModel        string `json:"llm_model"`
	LLMAPIKey       string `json:"llm_api_key,omitempty"`
	LLMBaseURL      string `json:"llm_base_url,omitempty"`
	LinkedProjectID string `json:"linked_project_id,omitempty"`
	WriteWorkers    int    `json:"write_workers,omitempty"`
}

// handleGenerate runs a generation and streams its events as server-sent
// events, one JSON object per `data:` line. The client disconnecting cancels
// the run.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if _, err := crawler.ParseRepoURL(req.RepoURL); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if _, ok := llm.LookupProvider(req.LLMProvider); !ok {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown llm provider %q", req.LLMProvider))
		return
	}
	if strings.TrimSpace(req.LLMModel) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("llm_model required"))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	logger.Info("api: generation started", "repo", req.RepoURL, "provider", req.LLMProvider, "model", req.LLMModel)
	events := s.generator.Run(r.Context(), pipeline.Request{
		RepoURL:         req.RepoURL,
		GithubToken:     req.GithubToken,
		Provider:        req.LLMProvider,
		Model:           req.LLMModel,
		APIKey:          req.LLMAPIKey,
		BaseURL:         req.LLMBaseURL,
		UserID:          strings.TrimSpace(r.Header.Get("X-User-ID")),
		LinkedProjectID: req.LinkedProjectID,
		WriteWorkers:    req.WriteWorkers,
	})
	for event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			logger.Error("api: encode event failed", "error", err)
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			logger.Warn("api: client disconnected mid-stream", "repo", req.RepoURL)
			return
		}
		flusher.Flush()
	}
}
