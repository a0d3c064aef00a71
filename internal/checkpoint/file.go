// Package checkpoint persists full result snapshots durably. Every flush
// replaces the previous snapshot; a reader never observes a half-written one.
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tadevos/newsrange/internal/acquire"
)

// FileStore writes JSON snapshots to a local path using a temp-file-then-
// rename replace, so an interrupted write never corrupts the last snapshot.
type FileStore struct {
	path string
}

// NewFileStore prepares a store rooted at path, creating parent directories.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("checkpoint path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create checkpoint dir %s: %w", dir, err)
		}
	}
	return &FileStore{path: path}, nil
}

// Flush serializes the entire snapshot and atomically replaces the previous
// file.
func (s *FileStore) Flush(ctx context.Context, results []acquire.ArticleResult) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("checkpoint flush canceled: %w", err)
	}
	if results == nil {
		results = []acquire.ArticleResult{}
	}
	payload, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return fmt.Errorf("write snapshot temp %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace snapshot %s: %w", s.path, err)
	}
	return nil
}

// Path returns the snapshot location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads a snapshot file back into memory. The downstream sentiment and
// convert commands consume checkpoints through this.
func Load(path string) ([]acquire.ArticleResult, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	var results []acquire.ArticleResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	return results, nil
}
