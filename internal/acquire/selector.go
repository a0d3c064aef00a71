package acquire

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"
	"go.uber.org/zap"
)

// Selector picks the single best candidate for a target day by publish-date
// proximity. Candidate fetch failures are skipped, never propagated.
type Selector struct {
	fetcher ContentFetcher
	logger  *zap.Logger
}

// NewSelector constructs a Selector.
func NewSelector(fetcher ContentFetcher, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{fetcher: fetcher, logger: logger}
}

// Select fetches each candidate in order and returns the usable one whose
// effective date lies closest to target. The first exact-day match wins
// immediately. Without an exact match the minimum distance wins, first
// candidate on ties. Candidates with no date at all only win when no dated
// candidate is usable. A nil result with a nil error means no candidate for
// this day was usable.
func (s *Selector) Select(
	ctx context.Context,
	candidates []Candidate,
	target civil.Date,
	query string,
) (*ArticleResult, error) {
	seen := make(map[string]struct{}, len(candidates))
	var (
		best     *ArticleResult
		bestDist int
	)

	for _, cand := range candidates {
		if _, dup := seen[cand.URL]; dup {
			continue
		}
		seen[cand.URL] = struct{}{}

		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("candidate scan canceled: %w", err)
		}

		content, err := s.fetcher.Fetch(ctx, cand.URL)
		if err != nil {
			s.logger.Debug("candidate fetch failed",
				zap.String("url", cand.URL),
				zap.Error(err),
			)
			continue
		}
		if !content.Usable() {
			s.logger.Debug("candidate has no usable content", zap.String("url", cand.URL))
			continue
		}

		eff := effectiveDate(cand, content)
		res := &ArticleResult{
			Day:         target,
			Query:       query,
			Title:       content.Title,
			URL:         cand.URL,
			PublishDate: eff,
			Content:     content.Text,
		}

		if eff == nil {
			// Dateless content is a last resort; the first one stands in
			// until any dated candidate appears.
			if best == nil {
				best = res
				bestDist = -1
			}
			continue
		}

		dist := absDays(*eff, target)
		s.logger.Debug("candidate scored",
			zap.String("url", cand.URL),
			zap.Stringer("effective_date", *eff),
			zap.Int("distance_days", dist),
		)
		if dist == 0 {
			return res, nil
		}
		if best == nil || bestDist < 0 || dist < bestDist {
			best = res
			bestDist = dist
		}
	}

	if best != nil && bestDist >= 0 {
		s.logger.Debug("no exact match; using closest candidate",
			zap.String("url", best.URL),
			zap.Int("distance_days", bestDist),
		)
	}
	return best, nil
}

// effectiveDate prefers the date from the search listing over the one
// extracted from the fetched document.
func effectiveDate(cand Candidate, content FetchedContent) *civil.Date {
	if cand.ListingDate != nil {
		d := *cand.ListingDate
		return &d
	}
	if content.PublishDate != nil {
		d := *content.PublishDate
		return &d
	}
	return nil
}
