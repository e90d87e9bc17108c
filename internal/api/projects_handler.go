// File path: internal/api/projects_handler.go
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	chi "github.com/go-chi/chi/v5"

	"github.com/showfolio/scribe/internal/common"
	"github.com/showfolio/scribe/internal/docstore"
)

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		userID = strings.TrimSpace(r.Header.Get("X-User-ID"))
	}
	docs, err := s.store.List(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"projects": docs})
}

func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	doc, err := s.store.Get(r.Context(), slug)
	if errors.Is(err, docstore.ErrProjectNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleChapter(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	filename := chi.URLParam(r, "filename")
	body, err := s.store.Read(slug, filename)
	if errors.Is(err, docstore.ErrChapterNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	err := s.store.Delete(r.Context(), slug)
	if errors.Is(err, docstore.ErrProjectNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "slug": slug})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if _, err := s.store.Get(r.Context(), slug); err != nil {
		writeError(w, http.StatusNotFound, docstore.ErrProjectNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", docstore.Slugify(slug)+"-docs.zip"))
	if err := s.store.Zip(slug, w); err != nil {
		common.Logger().Warn("api: zip download failed", "slug", slug, "error", err)
	}
}
