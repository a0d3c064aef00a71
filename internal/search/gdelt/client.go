// Package gdelt implements a SearchProvider against the GDELT DOC 2.0 API.
package gdelt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"cloud.google.com/go/civil"
	"go.uber.org/zap"

	"github.com/tadevos/newsrange/internal/acquire"
	"github.com/tadevos/newsrange/internal/policy/ratelimit"
)

const (
	defaultBaseURL    = "https://api.gdeltproject.org/api/v2/doc/doc"
	defaultMaxRecords = 6
	// GDELT's datetime parameter format.
	stampLayout = "20060102150405"
	// GDELT's seendate field format.
	seenDateLayout = "20060102T150405Z"
)

// Config controls the GDELT client.
type Config struct {
	// BaseURL overrides the API endpoint (tests).
	BaseURL string
	// Country restricts results by source country code (e.g. "US").
	Country string
	// MaxRecords caps candidates per day.
	MaxRecords int
	// Timeout bounds each API call.
	Timeout time.Duration
	// UserAgent is sent with every request.
	UserAgent string
	// EnglishOnly keeps only English-language articles.
	EnglishOnly bool
}

// Client queries GDELT for one calendar-day window at a time.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *ratelimit.Limiter
	logger  *zap.Logger
}

// New builds a Client. limiter may be nil.
func New(cfg Config, limiter *ratelimit.Limiter, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = defaultMaxRecords
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		logger:  logger,
	}
}

type article struct {
	URL           string `json:"url"`
	Title         string `json:"title"`
	SeenDate      string `json:"seendate"`
	Language      string `json:"language"`
	SourceCountry string `json:"sourcecountry"`
	Domain        string `json:"domain"`
}

type artList struct {
	Articles []article `json:"articles"`
}

// Search requests the artlist for the [day, day+1) window and converts it to
// candidates, carrying the listing date parsed from GDELT's seendate.
func (c *Client) Search(ctx context.Context, day civil.Date, keyword string) ([]acquire.Candidate, error) {
	endpoint := c.buildURL(day, keyword)
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, endpoint); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build gdelt request: %w", err)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gdelt request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("gdelt status %d: %s", resp.StatusCode, body)
	}

	var list artList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode gdelt response: %w", err)
	}

	candidates := make([]acquire.Candidate, 0, len(list.Articles))
	for _, art := range list.Articles {
		if art.URL == "" {
			continue
		}
		if c.cfg.EnglishOnly && art.Language != "English" {
			continue
		}
		candidates = append(candidates, acquire.Candidate{
			URL:         art.URL,
			ListingDate: parseSeenDate(art.SeenDate),
		})
		if len(candidates) >= c.cfg.MaxRecords {
			break
		}
	}
	c.logger.Debug("gdelt search finished",
		zap.Stringer("day", day),
		zap.Int("articles", len(list.Articles)),
		zap.Int("candidates", len(candidates)),
	)
	return candidates, nil
}

func (c *Client) buildURL(day civil.Date, keyword string) string {
	start := day.In(time.UTC)
	end := start.AddDate(0, 0, 1)

	params := url.Values{}
	params.Set("query", c.queryString(keyword))
	params.Set("mode", "artlist")
	params.Set("format", "json")
	params.Set("maxrecords", fmt.Sprint(c.cfg.MaxRecords))
	params.Set("startdatetime", start.Format(stampLayout))
	params.Set("enddatetime", end.Format(stampLayout))
	return c.cfg.BaseURL + "?" + params.Encode()
}

func (c *Client) queryString(keyword string) string {
	if c.cfg.Country != "" {
		return fmt.Sprintf("%s sourcecountry:%s", keyword, c.cfg.Country)
	}
	return keyword
}

func parseSeenDate(raw string) *civil.Date {
	if raw == "" {
		return nil
	}
	t, err := time.Parse(seenDateLayout, raw)
	if err != nil {
		return nil
	}
	d := civil.DateOf(t)
	return &d
}
