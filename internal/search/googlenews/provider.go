// Package googlenews implements a SearchProvider that drives headless Chrome
// over the Google News search page. The result listing is rendered
// client-side, so a plain HTTP GET returns an empty shell; the provider
// waits for the article elements before snapshotting the DOM.
package googlenews

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"cloud.google.com/go/civil"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/tadevos/newsrange/internal/acquire"
	"github.com/tadevos/newsrange/internal/policy/ratelimit"
)

const baseURL = "https://news.google.com/search"

// Config controls the headless search provider.
type Config struct {
	// UserAgent overrides the browser user agent when set.
	UserAgent string
	// NavigationTimeout bounds one search page load (default 45s).
	NavigationTimeout time.Duration
	// SettleDelay waits after the article elements appear; the listing
	// loads in stages (default 2s).
	SettleDelay time.Duration
	// MaxCandidates caps candidates per day (default 6).
	MaxCandidates int
}

// Provider owns a Chrome exec allocator shared by all searches.
type Provider struct {
	cfg         Config
	allocator   context.Context
	allocCancel context.CancelFunc
	limiter     *ratelimit.Limiter
	logger      *zap.Logger
}

// New creates a Provider backed by chromedp. limiter may be nil.
func New(cfg Config, limiter *ratelimit.Limiter, logger *zap.Logger) (*Provider, error) {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	if cfg.SettleDelay < 0 {
		cfg.SettleDelay = 0
	} else if cfg.SettleDelay == 0 {
		cfg.SettleDelay = 2 * time.Second
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = 6
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Provider{
		cfg:         cfg,
		allocator:   allocCtx,
		allocCancel: allocCancel,
		limiter:     limiter,
		logger:      logger,
	}, nil
}

// Close cancels the allocator context, shutting down the browser.
func (p *Provider) Close() {
	p.allocCancel()
}

// Search renders the news listing for the day and keyword and parses out
// candidate articles with their listing dates.
func (p *Provider) Search(ctx context.Context, day civil.Date, keyword string) ([]acquire.Candidate, error) {
	searchURL, query := SearchURL(day, keyword)
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx, searchURL); err != nil {
			return nil, err
		}
	}

	taskCtx, taskCancel := chromedp.NewContext(p.allocator)
	defer taskCancel()
	taskCtx, cancel := context.WithTimeout(taskCtx, p.cfg.NavigationTimeout)
	defer cancel()

	// Tie the browser task to the caller so an interrupted run abandons the
	// navigation instead of waiting it out.
	stop := context.AfterFunc(ctx, taskCancel)
	defer stop()

	var html string
	actions := []chromedp.Action{
		p.userAgentAction(),
		chromedp.Navigate(searchURL),
		chromedp.WaitReady("article", chromedp.ByQuery),
		chromedp.Sleep(p.cfg.SettleDelay),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return nil, fmt.Errorf("render news search %q: %w", query, err)
	}

	candidates, err := ParseCandidates(html, p.cfg.MaxCandidates)
	if err != nil {
		return nil, fmt.Errorf("parse news listing %q: %w", query, err)
	}
	p.logger.Debug("news search finished",
		zap.Stringer("day", day),
		zap.String("query", query),
		zap.Int("candidates", len(candidates)),
	)
	return candidates, nil
}

func (p *Provider) userAgentAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if p.cfg.UserAgent == "" {
			return nil
		}
		if err := emulation.SetUserAgentOverride(p.cfg.UserAgent).Do(ctx); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
		return nil
	})
}

// SearchURL builds the Google News search URL for a day and keyword. The
// query takes the form "dd.mm.yyyy keyword"; both the URL and the query
// string are returned.
func SearchURL(day civil.Date, keyword string) (string, string) {
	query := fmt.Sprintf("%s %s", day.In(time.UTC).Format("02.01.2006"), keyword)
	params := url.Values{}
	params.Set("q", query)
	params.Set("hl", "en-US")
	params.Set("gl", "US")
	params.Set("ceid", "US:en")
	return baseURL + "?" + params.Encode(), query
}
