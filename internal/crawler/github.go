// File path: internal/crawler/github.go
package crawler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultAPIBaseURL = "https://api.github.com"

var (
	// ErrInvalidRepoURL reports a repository reference that is not a
	// recognizable GitHub repository URL.
	ErrInvalidRepoURL = errors.New("invalid repository url")
	// ErrRepoNotFound reports a repository that does not exist or is private
	// without a usable token.
	ErrRepoNotFound = errors.New("repository not found")
	// ErrRateLimited reports an exhausted GitHub API quota.
	ErrRateLimited = errors.New("github rate limit exceeded")
)

// RepoRef identifies a GitHub repository parsed from a user-supplied URL.
type RepoRef struct {
	Owner string
	Name  string
	Ref   string
}

// String renders the canonical owner/name form.
func (r RepoRef) String() string {
	return r.Owner + "/" + r.Name
}

// ParseRepoURL validates a repository URL and extracts its owner and name.
// Accepted forms: https://github.com/owner/repo[.git][/tree/ref], plus the
// bare owner/repo shorthand.
func ParseRepoURL(raw string) (RepoRef, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return RepoRef{}, fmt.Errorf("%w: empty", ErrInvalidRepoURL)
	}
	if !strings.Contains(trimmed, "://") {
		if parts := strings.Split(strings.Trim(trimmed, "/"), "/"); len(parts) == 2 && parts[0] != "" && parts[1] != "" && !strings.ContainsAny(trimmed, " \t") {
			return RepoRef{Owner: parts[0], Name: strings.TrimSuffix(parts[1], ".git")}, nil
		}
		return RepoRef{}, fmt.Errorf("%w: %q", ErrInvalidRepoURL, raw)
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return RepoRef{}, fmt.Errorf("%w: %q", ErrInvalidRepoURL, raw)
	}
	host := strings.ToLower(parsed.Hostname())
	if host != "github.com" && host != "www.github.com" {
		return RepoRef{}, fmt.Errorf("%w: unsupported host %q", ErrInvalidRepoURL, parsed.Hostname())
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(segments) < 2 || segments[0] == "" || segments[1] == "" {
		return RepoRef{}, fmt.Errorf("%w: %q", ErrInvalidRepoURL, raw)
	}
	ref := RepoRef{Owner: segments[0], Name: strings.TrimSuffix(segments[1], ".git")}
	if len(segments) >= 4 && (segments[2] == "tree" || segments[2] == "blob") {
		ref.Ref = segments[3]
	}
	return ref, nil
}

// githubClient is a minimal GitHub REST v3 client covering tree listing and
// content fetches. The token is optional; unauthenticated calls run under
// GitHub's much lower per-IP quota.
type githubClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

func newGithubClient(token string) *githubClient {
	return &githubClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultAPIBaseURL,
		token:      strings.TrimSpace(token),
	}
}

type treeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
	Size int64  `json:"size"`
	SHA  string `json:"sha"`
}

type repoInfo struct {
	FullName      string `json:"full_name"`
	DefaultBranch string `json:"default_branch"`
}

func (c *githubClient) repository(ctx context.Context, ref RepoRef) (*repoInfo, error) {
	var info repoInfo
	if err := c.getJSON(ctx, fmt.Sprintf("/repos/%s/%s", ref.Owner, ref.Name), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// tree lists every blob in the repository at the given ref, using the
// recursive tree endpoint so one request covers the whole listing. GitHub
// caps the recursive listing; the truncated flag reports when the repository
// exceeded it and the listing is incomplete.
func (c *githubClient) tree(ctx context.Context, ref RepoRef, branch string) ([]treeEntry, bool, error) {
	var result struct {
		Tree      []treeEntry `json:"tree"`
		Truncated bool        `json:"truncated"`
	}
	path := fmt.Sprintf("/repos/%s/%s/git/trees/%s?recursive=1", ref.Owner, ref.Name, url.PathEscape(branch))
	if err := c.getJSON(ctx, path, &result); err != nil {
		return nil, false, err
	}
	blobs := make([]treeEntry, 0, len(result.Tree))
	for _, entry := range result.Tree {
		if entry.Type == "blob" {
			blobs = append(blobs, entry)
		}
	}
	return blobs, result.Truncated, nil
}

// fileContent fetches one file's decoded content via the contents endpoint.
func (c *githubClient) fileContent(ctx context.Context, ref RepoRef, branch, path string) (string, error) {
	var payload struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	apiPath := fmt.Sprintf("/repos/%s/%s/contents/%s?ref=%s", ref.Owner, ref.Name, escapePath(path), url.QueryEscape(branch))
	if err := c.getJSON(ctx, apiPath, &payload); err != nil {
		return "", err
	}
	if payload.Encoding != "base64" {
		return payload.Content, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(payload.Content, "\n", ""))
	if err != nil {
		return "", fmt.Errorf("decode content for %s: %w", path, err)
	}
	return string(decoded), nil
}

func escapePath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

func (c *githubClient) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("github request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrRepoNotFound
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: token rejected", ErrRepoNotFound)
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		if resp.Header.Get("X-RateLimit-Remaining") == "0" || resp.StatusCode == http.StatusTooManyRequests {
			return ErrRateLimited
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("github forbidden: %s", strings.TrimSpace(string(body)))
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("github api error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
