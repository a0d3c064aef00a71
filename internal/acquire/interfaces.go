package acquire

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
)

// SearchProvider returns candidate documents for one day and keyword. A
// provider failure surfaces as an error and degrades that single day only.
type SearchProvider interface {
	Search(ctx context.Context, day civil.Date, keyword string) ([]Candidate, error)
}

// ContentFetcher downloads and extracts a candidate document. Content with a
// missing title or body signals "unusable", not an error.
type ContentFetcher interface {
	Fetch(ctx context.Context, url string) (FetchedContent, error)
}

// CheckpointStore durably persists the full result snapshot, atomically
// enough that a reader never observes a half-written checkpoint.
type CheckpointStore interface {
	Flush(ctx context.Context, results []ArticleResult) error
}

// Publisher pushes per-result completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
