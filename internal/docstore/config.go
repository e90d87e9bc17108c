// File path: internal/docstore/config.go
package docstore

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config controls where generated documentation lives.
type Config struct {
	// Root holds one directory of chapter files per project slug.
	Root string `json:"root"`
	// DBPath is the SQLite catalog of project records.
	DBPath string `json:"db_path"`

	MaxOpenConns int           `json:"max_open_conns"`
	BusyTimeout  time.Duration `json:"-"`
}

// DefaultConfig returns the standard layout under SCRIBE_DATA_DIR, falling
// back to ./data.
func DefaultConfig() Config {
	base := strings.TrimSpace(os.Getenv("SCRIBE_DATA_DIR"))
	if base == "" {
		base = "data"
	}
	return Config{
		Root:         filepath.Join(base, "docs"),
		DBPath:       filepath.Join(base, "scribe.db"),
		MaxOpenConns: 4,
		BusyTimeout:  5 * time.Second,
	}
}

// Merge overlays non-empty override fields onto the base configuration.
func (c Config) Merge(override Config) Config {
	result := c
	if strings.TrimSpace(override.Root) != "" {
		result.Root = strings.TrimSpace(override.Root)
	}
	if strings.TrimSpace(override.DBPath) != "" {
		result.DBPath = strings.TrimSpace(override.DBPath)
	}
	if override.MaxOpenConns > 0 {
		result.MaxOpenConns = override.MaxOpenConns
	}
	if override.BusyTimeout > 0 {
		result.BusyTimeout = override.BusyTimeout
	}
	return result
}
