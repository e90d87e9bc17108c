// File path: internal/docstore/store.go
package docstore

import (
	"archive/zip"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/showfolio/scribe/internal/common"
)

var (
	// ErrProjectNotFound reports an unknown project slug.
	ErrProjectNotFound = errors.New("project not found")
	// ErrChapterNotFound reports an unknown chapter filename.
	ErrChapterNotFound = errors.New("chapter not found")
)

// Chapter is one generated documentation file. Immutable once written.
type Chapter struct {
	Filename string `json:"filename"`
	Title    string `json:"title"`
	Content  string `json:"content,omitempty"`
	Order    int    `json:"order"`
}

// ProjectDoc is the persisted record of one successful generation run.
type ProjectDoc struct {
	Slug            string    `json:"slug" db:"slug"`
	ProjectName     string    `json:"project_name" db:"project_name"`
	RepoURL         string    `json:"repo_url" db:"repo_url"`
	UserID          string    `json:"user_id,omitempty" db:"user_id"`
	LinkedProjectID string    `json:"linked_project_id,omitempty" db:"linked_project_id"`
	ChapterCount    int       `json:"chapter_count" db:"chapter_count"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`

	Chapters []Chapter `json:"chapters,omitempty" db:"-"`
}

// Store persists chapter files on disk under a per-slug directory and tracks
// project records in a SQLite catalog.
type Store struct {
	root string
	db   *sqlx.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS project_docs (
	slug              TEXT PRIMARY KEY,
	project_name      TEXT NOT NULL,
	repo_url          TEXT NOT NULL,
	user_id           TEXT NOT NULL DEFAULT '',
	linked_project_id TEXT NOT NULL DEFAULT '',
	chapter_count     INTEGER NOT NULL DEFAULT 0,
	created_at        TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_project_docs_user ON project_docs(user_id);
`

// Open constructs a Store at the configured paths, creating the root
// directory and migrating the catalog schema.
func Open(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Root) == "" || strings.TrimSpace(cfg.DBPath) == "" {
		return nil, errors.New("docstore root and db path required")
	}
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create docstore root: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	busy := int(cfg.BusyTimeout / time.Millisecond)
	if busy <= 0 {
		busy = 5000
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", cfg.DBPath, busy)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate docstore: %w", err)
	}
	return &Store{root: cfg.Root, db: db}, nil
}

// Close releases the catalog connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Root returns the chapter file root directory.
func (s *Store) Root() string { return s.root }

// Save persists the document set atomically: chapters land in a staging
// directory that is renamed into place, then the catalog row is upserted.
// Saving over an existing slug replaces it.
func (s *Store) Save(ctx context.Context, doc ProjectDoc) error {
	logger := common.Logger()
	slug := Slugify(doc.Slug)
	if slug == "" {
		return errors.New("docstore: empty slug")
	}
	if len(doc.Chapters) == 0 {
		return errors.New("docstore: no chapters to save")
	}
	staging, err := os.MkdirTemp(s.root, ".staging-"+slug+"-*")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	for _, chapter := range doc.Chapters {
		name := chapter.Filename
		if name == "" {
			name = ChapterFilename(chapter.Order, chapter.Title)
		}
		payload := renderFrontmatter(chapter.Title, chapter.Order) + chapter.Content
		if err := os.WriteFile(filepath.Join(staging, name), []byte(payload), 0o644); err != nil {
			return fmt.Errorf("write chapter %s: %w", name, err)
		}
	}

	final := filepath.Join(s.root, slug)
	if err := os.RemoveAll(final); err != nil {
		return fmt.Errorf("clear existing docs: %w", err)
	}
	if err := os.Rename(staging, final); err != nil {
		return fmt.Errorf("publish docs: %w", err)
	}

	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO project_docs (slug, project_name, repo_url, user_id, linked_project_id, chapter_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET
			project_name = excluded.project_name,
			repo_url = excluded.repo_url,
			user_id = excluded.user_id,
			linked_project_id = excluded.linked_project_id,
			chapter_count = excluded.chapter_count,
			created_at = excluded.created_at`,
		slug, doc.ProjectName, doc.RepoURL, doc.UserID, doc.LinkedProjectID, len(doc.Chapters), createdAt,
	)
	if err != nil {
		os.RemoveAll(final)
		return fmt.Errorf("record project: %w", err)
	}
	logger.Info("docstore: project saved", "slug", slug, "chapters", len(doc.Chapters))
	return nil
}

// List returns project records, optionally filtered by user.
func (s *Store) List(ctx context.Context, userID string) ([]ProjectDoc, error) {
	query := `SELECT slug, project_name, repo_url, user_id, linked_project_id, chapter_count, created_at
		FROM project_docs`
	args := []interface{}{}
	if strings.TrimSpace(userID) != "" {
		query += ` WHERE user_id = ?`
		args = append(args, strings.TrimSpace(userID))
	}
	query += ` ORDER BY created_at DESC`
	var docs []ProjectDoc
	if err := s.db.SelectContext(ctx, &docs, query, args...); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return docs, nil
}

// Get returns one project record plus its chapter listing (titles and
// filenames, no content).
func (s *Store) Get(ctx context.Context, slug string) (*ProjectDoc, error) {
	var doc ProjectDoc
	err := s.db.GetContext(ctx, &doc, `
		SELECT slug, project_name, repo_url, user_id, linked_project_id, chapter_count, created_at
		FROM project_docs WHERE slug = ?`, Slugify(slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	entries, err := os.ReadDir(filepath.Join(s.root, doc.Slug))
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(s.root, doc.Slug, entry.Name()))
		if err != nil {
			continue
		}
		title, order, _ := parseFrontmatter(string(raw))
		doc.Chapters = append(doc.Chapters, Chapter{Filename: entry.Name(), Title: title, Order: order})
	}
	sortChapters(doc.Chapters)
	return &doc, nil
}

// Read returns one chapter's markdown body with frontmatter stripped. The
// overview is addressable as either index.md or -1_overview.md.
func (s *Store) Read(slug, filename string) (string, error) {
	dir := filepath.Join(s.root, Slugify(slug))
	candidates := []string{filename}
	switch filename {
	case "index.md":
		candidates = append(candidates, "-1_overview.md")
	case "-1_overview.md":
		candidates = append(candidates, "index.md")
	}
	for _, name := range candidates {
		if filepath.Base(name) != name {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		_, _, body := parseFrontmatter(string(raw))
		return body, nil
	}
	return "", ErrChapterNotFound
}

// Delete removes the project record and every chapter file. Immediate and
// total; soft-delete belongs to the surrounding application.
func (s *Store) Delete(ctx context.Context, slug string) error {
	normalized := Slugify(slug)
	result, err := s.db.ExecContext(ctx, `DELETE FROM project_docs WHERE slug = ?`, normalized)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ErrProjectNotFound
	}
	if err := os.RemoveAll(filepath.Join(s.root, normalized)); err != nil {
		return fmt.Errorf("remove chapter files: %w", err)
	}
	common.Logger().Info("docstore: project deleted", "slug", normalized)
	return nil
}

// Zip streams a zip archive of the project's chapter files to w.
func (s *Store) Zip(slug string, w io.Writer) error {
	dir := filepath.Join(s.root, Slugify(slug))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ErrProjectNotFound
	}
	archive := zip.NewWriter(w)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		writer, err := archive.Create(entry.Name())
		if err != nil {
			return fmt.Errorf("archive %s: %w", entry.Name(), err)
		}
		if _, err := writer.Write(raw); err != nil {
			return fmt.Errorf("write %s: %w", entry.Name(), err)
		}
	}
	return archive.Close()
}

// ChapterFilename renders the canonical chapter filename: two-digit
// zero-padded order plus the slugified title. Order zero is the synthesized
// overview and maps to the index sentinel.
func ChapterFilename(order int, title string) string {
	if order <= 0 {
		return "index.md"
	}
	return fmt.Sprintf("%02d_%s.md", order, Slugify(title))
}

func sortChapters(chapters []Chapter) {
	sort.Slice(chapters, func(i, j int) bool { return chapters[i].Order < chapters[j].Order })
}
