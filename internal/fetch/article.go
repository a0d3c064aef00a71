// Package fetch implements the ContentFetcher capability: download a
// candidate URL and extract title, body text, and publish date.
package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/tadevos/newsrange/internal/acquire"
	"github.com/tadevos/newsrange/internal/policy/ratelimit"
)

// Config controls fetcher behavior.
type Config struct {
	UserAgent string
	// Timeout bounds one fetch (default 15s).
	Timeout time.Duration
	// MaxBodyBytes rejects pages larger than this (default 5 MiB).
	MaxBodyBytes int
}

// ArticleFetcher implements acquire.ContentFetcher using a Colly collector.
type ArticleFetcher struct {
	cfg           Config
	limiter       *ratelimit.Limiter
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// New builds an ArticleFetcher. limiter may be nil.
func New(cfg Config, limiter *ratelimit.Limiter, logger *zap.Logger) *ArticleFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 5 * 1024 * 1024
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())
	return &ArticleFetcher{
		cfg:           cfg,
		limiter:       limiter,
		baseCollector: c,
		logger:        logger,
	}
}

// Fetch executes a single GET and extracts the article content. A page that
// parses but yields no title or body comes back as unusable content with a
// nil error; transport failures come back as errors.
func (f *ArticleFetcher) Fetch(ctx context.Context, url string) (acquire.FetchedContent, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, url); err != nil {
			return acquire.FetchedContent{}, err
		}
	}

	body, err := f.download(ctx, url)
	if err != nil {
		return acquire.FetchedContent{}, err
	}
	if len(body) > f.cfg.MaxBodyBytes {
		return acquire.FetchedContent{}, fmt.Errorf("page size %d exceeds max %d", len(body), f.cfg.MaxBodyBytes)
	}

	content, err := Extract(body)
	if err != nil {
		return acquire.FetchedContent{}, fmt.Errorf("extract %s: %w", url, err)
	}
	return content, nil
}

func (f *ArticleFetcher) download(ctx context.Context, url string) ([]byte, error) {
	collector := f.baseCollector.Clone()
	// Clones share the visited-URL store; the same article can legitimately
	// surface as a candidate for more than one day.
	collector.AllowURLRevisit = true
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)

	var (
		body     []byte
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		if r.StatusCode != http.StatusOK {
			fetchErr = fmt.Errorf("unexpected status %d", r.StatusCode)
			return
		}
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("visit %s: %w", url, err)
		}
		if fetchErr != nil {
			return nil, fmt.Errorf("fetch %s: %w", url, fetchErr)
		}
		return body, nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
