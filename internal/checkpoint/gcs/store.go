// Package gcs implements a checkpoint store backed by Google Cloud Storage.
// Object writes in GCS are already atomic-replace: readers see either the
// previous snapshot or the new one, never a partial object.
package gcs

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/storage"

	"github.com/tadevos/newsrange/internal/acquire"
)

// Config captures the bucket and object holding the snapshot.
type Config struct {
	Bucket string
	Object string
}

// Store writes the snapshot object on every flush.
type Store struct {
	client *storage.Client
	bucket *storage.BucketHandle
	object string
}

// New connects a GCS client and validates the configuration.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	if cfg.Object == "" {
		cfg.Object = "newsrange/checkpoint.json"
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &Store{
		client: client,
		bucket: client.Bucket(cfg.Bucket),
		object: cfg.Object,
	}, nil
}

// Flush overwrites the snapshot object with the full result set.
func (s *Store) Flush(ctx context.Context, results []acquire.ArticleResult) error {
	if results == nil {
		results = []acquire.ArticleResult{}
	}
	w := s.bucket.Object(s.object).NewWriter(ctx)
	w.ContentType = "application/json"
	if err := json.NewEncoder(w).Encode(results); err != nil {
		_ = w.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("write snapshot gs://%s/%s: %w", s.bucket.BucketName(), s.object, err)
	}
	return nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close gcs client: %w", err)
	}
	return nil
}
