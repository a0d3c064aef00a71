package googlenews

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/PuerkitoBio/goquery"

	"github.com/tadevos/newsrange/internal/acquire"
)

// ParseCandidates extracts candidate articles from a rendered news listing.
// Each <article> element contributes at most one candidate: its first anchor
// with an href, plus a listing date when a <time> element is present.
// Relative "./..." links are resolved against the news host. Duplicate URLs
// are dropped, first occurrence kept.
func ParseCandidates(html string, limit int) ([]acquire.Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}

	seen := make(map[string]struct{})
	var candidates []acquire.Candidate

	doc.Find("article").EachWithBreak(func(_ int, art *goquery.Selection) bool {
		var listingDate *civil.Date
		if timeText := strings.TrimSpace(art.Find("time").First().Text()); timeText != "" {
			listingDate = parseListingDate(timeText)
		}
		if listingDate == nil {
			if dt, ok := art.Find("time").First().Attr("datetime"); ok {
				listingDate = parseListingDate(dt)
			}
		}

		href := firstHref(art)
		if href == "" {
			return true
		}
		href = resolveLink(href)
		if _, dup := seen[href]; dup {
			return true
		}
		seen[href] = struct{}{}
		candidates = append(candidates, acquire.Candidate{URL: href, ListingDate: listingDate})
		return limit <= 0 || len(candidates) < limit
	})

	return candidates, nil
}

func firstHref(art *goquery.Selection) string {
	var href string
	art.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		v, ok := a.Attr("href")
		if ok && v != "" && v != "#" {
			href = v
			return false
		}
		return true
	})
	return href
}

func resolveLink(href string) string {
	if strings.HasPrefix(href, "./") {
		return "https://news.google.com" + href[1:]
	}
	return href
}

// listingDateLayouts are tried in order: abbreviated then full month names,
// matching the strings the listing renders for older articles.
var listingDateLayouts = []string{
	"Jan 2, 2006",
	"January 2, 2006",
}

// parseListingDate parses the date text shown in a search listing. ISO-like
// timestamps are handled first; relative strings ("2 hours ago") yield nil.
func parseListingDate(raw string) *civil.Date {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if strings.Contains(raw, "T") {
		if t, err := time.Parse(time.RFC3339, strings.Replace(raw, "Z", "+00:00", 1)); err == nil {
			d := civil.DateOf(t)
			return &d
		}
		if t, err := time.Parse("2006-01-02T15:04:05", raw); err == nil {
			d := civil.DateOf(t)
			return &d
		}
	}
	for _, layout := range listingDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			d := civil.DateOf(t)
			return &d
		}
	}
	return nil
}
