// File path: internal/api/server_test.go
package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/showfolio/scribe/internal/crawler"
	"github.com/showfolio/scribe/internal/docstore"
	"github.com/showfolio/scribe/internal/llm"
)

func newTestServer(t *testing.T) (*Server, *docstore.Store) {
	t.Helper()
	base := t.TempDir()
	store, err := docstore.Open(docstore.Config{
		Root:        filepath.Join(base, "docs"),
		DBPath:      filepath.Join(base, "scribe.db"),
		BusyTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	srv, err := NewServer(crawler.New(), llm.NewGateway(llm.NewCache()), store)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv, store
}

func seedProject(t *testing.T, store *docstore.Store, slug string) {
	t.Helper()
	err := store.Save(context.Background(), docstore.ProjectDoc{
		Slug:        slug,
		ProjectName: "demo",
		RepoURL:     "https://github.com/octocat/demo",
		UserID:      "user-1",
		Chapters: []docstore.Chapter{
			{Title: "Overview", Order: 0, Content: "# demo\n"},
			{Title: "Router", Order: 1, Content: "# Router\n\nbody\n"},
		},
	})
	if err != nil {
		t.Fatalf("seed project: %v", err)
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rec.Code, rec.Body.String())
	}
}

func TestCrawlRejectsBadRequests(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/crawl", strings.NewReader("{not json")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed body: got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/crawl", strings.NewReader(`{"repo_url":"not-a-url"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid repo url: got %d", rec.Code)
	}
	var resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Success || resp.Error == "" {
		t.Fatalf("error payload wrong: %+v", resp)
	}
}

func TestGenerateValidatesBeforeStreaming(t *testing.T) {
	srv, _ := newTestServer(t)
	cases := []struct {
		name string
		body string
	}{
		{"bad url", `{"repo_url":"not-a-url","llm_provider":"openai","llm_model":"gpt-4o"}`},
		{"unknown provider", `{"repo_url":"octocat/demo","llm_provider":"nonesuch","llm_model":"m"}`},
		{"missing model", `{"repo_url":"octocat/demo","llm_provider":"openai"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/generate", strings.NewReader(tc.body)))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("got %d, want 400", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
				t.Fatalf("validation failure must not start the event stream, got %q", ct)
			}
		})
	}
}

func TestGenerateStreamsEventsAsSSE(t *testing.T) {
	base := t.TempDir()
	store, err := docstore.Open(docstore.Config{
		Root:        filepath.Join(base, "docs"),
		DBPath:      filepath.Join(base, "scribe.db"),
		BusyTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	// The crawl fails fast against an unroutable endpoint; the stream must
	// still open and deliver a terminal error event.
	c := crawler.New(crawler.WithAPIBaseURL("http://127.0.0.1:1"))
	srv, err := NewServer(c, llm.NewGateway(llm.NewCache()), store)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	body := `{"repo_url":"https://github.com/octocat/demo","llm_provider":"openai","llm_model":"gpt-4o","llm_api_key":"k"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/generate", strings.NewReader(body))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req.WithContext(ctx))

	if rec.Code != http.StatusOK {
		t.Fatalf("stream status %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type %q", ct)
	}
	var sawData, sawTerminal bool
	scanner := bufio.NewScanner(bytes.NewReader(rec.Body.Bytes()))
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		sawData = true
		var event struct {
			Error     string `json:"error"`
			ErrorKind string `json:"error_kind"`
		}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
			t.Fatalf("event line not JSON: %q", line)
		}
		if event.Error != "" {
			sawTerminal = true
			if event.ErrorKind == "" {
				t.Fatal("terminal error event missing its kind")
			}
		}
	}
	if !sawData {
		t.Fatal("no SSE data lines delivered")
	}
	if !sawTerminal {
		t.Fatal("stream ended without a terminal event")
	}
}

func TestProvidersEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/providers", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d", rec.Code)
	}
	var resp struct {
		Providers []llm.ProviderInfo `json:"providers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Providers) < 4 {
		t.Fatalf("expected the provider table, got %d entries", len(resp.Providers))
	}
}

func TestProjectLifecycleEndpoints(t *testing.T) {
	srv, store := newTestServer(t)
	seedProject(t, store, "octocat-demo")

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/projects?user_id=user-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d", rec.Code)
	}
	var listResp struct {
		Projects []docstore.ProjectDoc `json:"projects"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listResp.Projects) != 1 || listResp.Projects[0].Slug != "octocat-demo" {
		t.Fatalf("unexpected listing: %+v", listResp.Projects)
	}

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/projects/octocat-demo", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get: %d", rec.Code)
	}
	var doc docstore.ProjectDoc
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode get: %v", err)
	}
	if len(doc.Chapters) != 2 {
		t.Fatalf("expected chapter listing, got %+v", doc)
	}

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/projects/octocat-demo/chapters/01_router.md", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("chapter: %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Fatalf("chapter content type %q", ct)
	}
	if body := rec.Body.String(); !strings.HasPrefix(body, "# Router") || strings.Contains(body, "---") {
		t.Fatalf("chapter body wrong: %q", body)
	}

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/projects/octocat-demo/download", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("download: %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/zip" {
		t.Fatalf("download content type %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "octocat-demo-docs.zip") {
		t.Fatalf("download disposition %q", cd)
	}

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/projects/octocat-demo", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/projects/octocat-demo", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: %d", rec.Code)
	}
}

func TestProjectNotFoundResponses(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, path := range []string{
		"/v1/projects/nope",
		"/v1/projects/nope/chapters/index.md",
		"/v1/projects/nope/download",
	} {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s: got %d, want 404", path, rec.Code)
		}
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/projects/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("DELETE: got %d, want 404", rec.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d", rec.Code)
	}
	var stats llm.GatewayStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Calls != 0 {
		t.Fatalf("fresh gateway should report zero calls, got %d", stats.Calls)
	}
}
