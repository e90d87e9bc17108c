// File path: internal/docstore/store_test.go
package docstore

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	base := t.TempDir()
	store, err := Open(Config{
		Root:        filepath.Join(base, "docs"),
		DBPath:      filepath.Join(base, "scribe.db"),
		BusyTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleDoc(slug string) ProjectDoc {
	return ProjectDoc{
		Slug:        slug,
		ProjectName: "demo",
		RepoURL:     "https://github.com/octocat/demo",
		UserID:      "user-1",
		Chapters: []Chapter{
			{Filename: "index.md", Title: "Overview", Order: 0, Content: "# demo\n\nIntro.\n"},
			{Title: "Router", Order: 1, Content: "# Router\n\nDispatch.\n"},
			{Title: "Store", Order: 2, Content: "# Store\n\nPersist.\n"},
		},
	}
}

func TestSaveGetReadRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.Save(ctx, sampleDoc("octocat-demo")); err != nil {
		t.Fatalf("save: %v", err)
	}

	doc, err := store.Get(ctx, "octocat-demo")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.ProjectName != "demo" || doc.ChapterCount != 3 {
		t.Fatalf("unexpected record: %+v", doc)
	}
	if len(doc.Chapters) != 3 {
		t.Fatalf("expected 3 chapter entries, got %d", len(doc.Chapters))
	}
	for i := 1; i < len(doc.Chapters); i++ {
		if doc.Chapters[i-1].Order > doc.Chapters[i].Order {
			t.Fatal("chapters not sorted by order")
		}
	}
	if doc.Chapters[0].Title != "Overview" || doc.Chapters[1].Title != "Router" {
		t.Fatalf("chapter titles lost: %+v", doc.Chapters)
	}

	body, err := store.Read("octocat-demo", "01_router.md")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.Contains(body, "---") || strings.Contains(body, "title:") {
		t.Fatalf("frontmatter leaked into chapter body: %q", body)
	}
	if !strings.HasPrefix(body, "# Router") {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestSaveOverwritesExistingSlug(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.Save(ctx, sampleDoc("octocat-demo")); err != nil {
		t.Fatalf("first save: %v", err)
	}
	replacement := ProjectDoc{
		Slug:        "octocat-demo",
		ProjectName: "demo v2",
		RepoURL:     "https://github.com/octocat/demo",
		Chapters:    []Chapter{{Title: "Only", Order: 1, Content: "body\n"}},
	}
	if err := store.Save(ctx, replacement); err != nil {
		t.Fatalf("second save: %v", err)
	}
	doc, err := store.Get(ctx, "octocat-demo")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.ProjectName != "demo v2" || doc.ChapterCount != 1 || len(doc.Chapters) != 1 {
		t.Fatalf("old document survived overwrite: %+v", doc)
	}
	if _, err := store.Read("octocat-demo", "index.md"); !errors.Is(err, ErrChapterNotFound) {
		t.Fatal("stale chapter file survived overwrite")
	}
}

func TestSaveRejectsEmptyChapterSet(t *testing.T) {
	store := openTestStore(t)
	err := store.Save(context.Background(), ProjectDoc{Slug: "empty", ProjectName: "x", RepoURL: "y"})
	if err == nil {
		t.Fatal("expected error saving zero chapters")
	}
}

func TestListFiltersByUser(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	a := sampleDoc("proj-a")
	b := sampleDoc("proj-b")
	b.UserID = "user-2"
	if err := store.Save(ctx, a); err != nil {
		t.Fatalf("save a: %v", err)
	}
	if err := store.Save(ctx, b); err != nil {
		t.Fatalf("save b: %v", err)
	}
	all, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 projects, got %d", len(all))
	}
	mine, err := store.List(ctx, "user-2")
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(mine) != 1 || mine[0].Slug != "proj-b" {
		t.Fatalf("user filter failed: %+v", mine)
	}
}

func TestDeleteRemovesRecordAndFiles(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.Save(ctx, sampleDoc("octocat-demo")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Delete(ctx, "octocat-demo"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "octocat-demo"); !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("record survived delete: %v", err)
	}
	if _, err := store.Read("octocat-demo", "index.md"); !errors.Is(err, ErrChapterNotFound) {
		t.Fatal("chapter files survived delete")
	}
	if err := store.Delete(ctx, "octocat-demo"); !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("double delete should report not found, got %v", err)
	}
}

func TestReadRejectsPathTraversal(t *testing.T) {
	store := openTestStore(t)
	if err := store.Save(context.Background(), sampleDoc("octocat-demo")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := store.Read("octocat-demo", "../../etc/passwd"); !errors.Is(err, ErrChapterNotFound) {
		t.Fatalf("traversal should read nothing, got %v", err)
	}
}

func TestReadOverviewFallbackPair(t *testing.T) {
	store := openTestStore(t)
	if err := store.Save(context.Background(), sampleDoc("octocat-demo")); err != nil {
		t.Fatalf("save: %v", err)
	}
	// The overview is stored as index.md; the legacy name resolves to it.
	byIndex, err := store.Read("octocat-demo", "index.md")
	if err != nil {
		t.Fatalf("read index.md: %v", err)
	}
	byLegacy, err := store.Read("octocat-demo", "-1_overview.md")
	if err != nil {
		t.Fatalf("read -1_overview.md: %v", err)
	}
	if byIndex != byLegacy {
		t.Fatal("overview fallback pair returned different content")
	}
}

func TestZipArchivesEveryChapter(t *testing.T) {
	store := openTestStore(t)
	if err := store.Save(context.Background(), sampleDoc("octocat-demo")); err != nil {
		t.Fatalf("save: %v", err)
	}
	var buf bytes.Buffer
	if err := store.Zip("octocat-demo", &buf); err != nil {
		t.Fatalf("zip: %v", err)
	}
	reader, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	names := map[string]bool{}
	for _, f := range reader.File {
		names[f.Name] = true
	}
	for _, want := range []string{"index.md", "01_router.md", "02_store.md"} {
		if !names[want] {
			t.Fatalf("archive missing %s, has %v", want, names)
		}
	}
	if err := store.Zip("nope", &bytes.Buffer{}); !errors.Is(err, ErrProjectNotFound) {
		t.Fatal("zip of unknown project should report not found")
	}
}

func TestSlugify(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Hello World", "hello-world"},
		{"octocat/Hello-World", "octocat-hello-world"},
		{"  spaced  out  ", "spaced-out"},
		{"déjà vu", "d-j-vu"},
		{"___", "untitled"},
		{"", "untitled"},
	}
	for _, tc := range cases {
		if got := Slugify(tc.in); got != tc.want {
			t.Errorf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
	long := Slugify(strings.Repeat("a", 200))
	if len(long) > 80 {
		t.Fatalf("slug not capped: %d chars", len(long))
	}
}

func TestChapterFilename(t *testing.T) {
	if got := ChapterFilename(0, "Overview"); got != "index.md" {
		t.Fatalf("order zero should map to index.md, got %q", got)
	}
	if got := ChapterFilename(3, "Request Router"); got != "03_request-router.md" {
		t.Fatalf("got %q", got)
	}
}

func TestFrontmatterRoundTrip(t *testing.T) {
	raw := renderFrontmatter("Router & Friends", 2) + "# Router\n\nbody text\n"
	title, order, body := parseFrontmatter(raw)
	if title != "Router & Friends" || order != 2 {
		t.Fatalf("metadata lost: %q %d", title, order)
	}
	if body != "# Router\n\nbody text\n" {
		t.Fatalf("body mangled: %q", body)
	}
	title, order, body = parseFrontmatter("no frontmatter here")
	if title != "" || order != 0 || body != "no frontmatter here" {
		t.Fatal("plain content should pass through untouched")
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	merged := base.Merge(Config{Root: "/custom/docs"})
	if merged.Root != "/custom/docs" {
		t.Fatalf("override lost: %s", merged.Root)
	}
	if merged.DBPath != base.DBPath || merged.MaxOpenConns != base.MaxOpenConns {
		t.Fatal("unset override fields must keep base values")
	}
}
