package acquire

import (
	"fmt"
	"sort"
	"sync"

	"cloud.google.com/go/civil"
)

// ResultSet accumulates ArticleResults in completion order. It is append-only
// and safe for concurrent use; the scheduler is its only writer.
type ResultSet struct {
	mu      sync.Mutex
	entries []ArticleResult
	days    map[civil.Date]struct{}
}

// NewResultSet returns an empty ResultSet.
func NewResultSet() *ResultSet {
	return &ResultSet{days: make(map[civil.Date]struct{})}
}

// Append adds a result and returns a snapshot of the whole set taken under
// the same lock, so callers can hand the snapshot straight to a checkpoint
// flush without racing a concurrent append. Appending a second result for a
// day that already has one is rejected.
func (s *ResultSet) Append(res ArticleResult) ([]ArticleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.days[res.Day]; exists {
		return nil, fmt.Errorf("day %s already has a result", res.Day)
	}
	s.days[res.Day] = struct{}{}
	s.entries = append(s.entries, res)
	return s.snapshotLocked(), nil
}

// Snapshot returns a copy of the current entries in completion order.
func (s *ResultSet) Snapshot() []ArticleResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *ResultSet) snapshotLocked() []ArticleResult {
	out := make([]ArticleResult, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len reports the number of days that yielded a result so far.
func (s *ResultSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// SortedByDay returns a copy of the entries in calendar order. Completion
// order is what the checkpoint persists; calendar order is for readers.
func (s *ResultSet) SortedByDay() []ArticleResult {
	out := s.Snapshot()
	sort.Slice(out, func(i, j int) bool {
		return out[i].Day.Before(out[j].Day)
	})
	return out
}
