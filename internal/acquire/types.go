// Package acquire implements the date-range acquisition engine: one search
// and selection task per calendar day, run under a bounded concurrency limit,
// with every completed result checkpointed durably.
package acquire

import (
	"fmt"

	"cloud.google.com/go/civil"
)

// DateRange is a closed range of calendar days, iterated one day per task.
type DateRange struct {
	Start civil.Date
	End   civil.Date
}

// Validate checks that both endpoints are set and ordered.
func (r DateRange) Validate() error {
	if !r.Start.IsValid() {
		return fmt.Errorf("start date %v is not a valid date", r.Start)
	}
	if !r.End.IsValid() {
		return fmt.Errorf("end date %v is not a valid date", r.End)
	}
	if r.End.Before(r.Start) {
		return fmt.Errorf("end date %s precedes start date %s", r.End, r.Start)
	}
	return nil
}

// Len returns the number of calendar days in the range, endpoints included.
func (r DateRange) Len() int {
	if r.End.Before(r.Start) {
		return 0
	}
	return r.End.DaysSince(r.Start) + 1
}

// Days enumerates every day in the range in calendar order.
func (r DateRange) Days() []civil.Date {
	if r.End.Before(r.Start) {
		return nil
	}
	days := make([]civil.Date, 0, r.Len())
	for d := r.Start; !d.After(r.End); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

// Candidate is a reference to a possibly matching document, produced by a
// SearchProvider before any content has been fetched. ListingDate carries the
// approximate publish date shown in the search listing, when one was present.
type Candidate struct {
	URL         string
	ListingDate *civil.Date
}

// FetchedContent is what a ContentFetcher extracted from a candidate URL.
// A missing title or body marks the candidate unusable.
type FetchedContent struct {
	Title       string
	Text        string
	PublishDate *civil.Date
}

// Usable reports whether the content carries both a title and a body.
func (c FetchedContent) Usable() bool {
	return c.Title != "" && c.Text != ""
}

// ArticleResult is the single best document selected for one day. At most one
// exists per day; it is immutable once created.
type ArticleResult struct {
	Day         civil.Date  `json:"day"`
	Query       string      `json:"query"`
	Title       string      `json:"title"`
	URL         string      `json:"url"`
	PublishDate *civil.Date `json:"publish_date"`
	Content     string      `json:"content"`
}

// Distance returns the absolute difference in whole days between the result's
// publish date and its target day. Results without a date report ok=false.
func (a ArticleResult) Distance() (days int, ok bool) {
	if a.PublishDate == nil {
		return 0, false
	}
	return absDays(*a.PublishDate, a.Day), true
}

func absDays(a, b civil.Date) int {
	d := a.DaysSince(b)
	if d < 0 {
		return -d
	}
	return d
}
