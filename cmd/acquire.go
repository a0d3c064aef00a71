package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tadevos/newsrange/internal/acquire"
	"github.com/tadevos/newsrange/internal/api"
	"github.com/tadevos/newsrange/internal/checkpoint"
	cpgcs "github.com/tadevos/newsrange/internal/checkpoint/gcs"
	cppostgres "github.com/tadevos/newsrange/internal/checkpoint/postgres"
	"github.com/tadevos/newsrange/internal/clock/system"
	"github.com/tadevos/newsrange/internal/config"
	"github.com/tadevos/newsrange/internal/fetch"
	"github.com/tadevos/newsrange/internal/policy/ratelimit"
	"github.com/tadevos/newsrange/internal/progress"
	"github.com/tadevos/newsrange/internal/progress/sinks"
	pspubsub "github.com/tadevos/newsrange/internal/publish/pubsub"
	"github.com/tadevos/newsrange/internal/search/gdelt"
	"github.com/tadevos/newsrange/internal/search/googlenews"
)

func newAcquireCmd() *cobra.Command {
	var (
		keyword     string
		startDate   string
		endDate     string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "acquire",
		Short: "Run a date-range acquisition.",
		Long: `acquire runs one search-fetch-select task per calendar day in the
configured range, checkpointing the collected results after every successful
day. SIGINT/SIGTERM stops dispatching new days, flushes what completed, and
exits with status 2.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			cfg := e.cfg
			if keyword != "" {
				cfg.Acquire.Keyword = keyword
			}
			if startDate != "" {
				cfg.Acquire.StartDate = startDate
			}
			if endDate != "" {
				cfg.Acquire.EndDate = endDate
			}
			if concurrency > 0 {
				cfg.Acquire.Concurrency = concurrency
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runAcquire(cmd.Context(), cfg, e.logger)
		},
	}

	cmd.Flags().StringVar(&keyword, "keyword", "", "search keyword (overrides config)")
	cmd.Flags().StringVar(&startDate, "start", "", "first day, YYYY-MM-DD (overrides config)")
	cmd.Flags().StringVar(&endDate, "end", "", "last day, YYYY-MM-DD (overrides config)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "max day tasks in flight (overrides config)")

	return cmd
}

func runAcquire(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rng, err := cfg.Acquire.Range()
	if err != nil {
		return err
	}

	limiter := ratelimit.New(ratelimit.Config{
		RPS:   cfg.Search.RatePerSecond,
		Burst: cfg.Search.RateBurst,
	})

	provider, closeProvider, err := buildProvider(cfg, limiter, logger)
	if err != nil {
		return err
	}
	defer closeProvider()

	fetcher := fetch.New(fetch.Config{
		UserAgent:    cfg.Fetch.UserAgent,
		Timeout:      cfg.Fetch.FetchTimeout(),
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
	}, limiter, logger.Named("fetch"))

	store, closeStore, err := buildCheckpointStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var publisher acquire.Publisher
	if cfg.PubSub.ProjectID != "" && cfg.PubSub.Topic != "" {
		p, err := pspubsub.New(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return fmt.Errorf("create pubsub publisher: %w", err)
		}
		defer func() {
			if err := p.Close(); err != nil {
				logger.Warn("closing pubsub publisher", zap.Error(err))
			}
		}()
		publisher = p
	}

	promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	hub := progress.NewHub(
		progress.Config{Logger: logger.Named("progress")},
		sinks.NewLogSink(logger.Named("progress")),
		promSink,
	)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := hub.Close(closeCtx); err != nil {
			logger.Warn("closing progress hub", zap.Error(err))
		}
	}()

	selector := acquire.NewSelector(fetcher, logger.Named("selector"))
	scheduler := acquire.NewScheduler(
		provider,
		selector,
		store,
		publisher,
		hub,
		system.New(),
		acquire.Config{
			Concurrency: cfg.Acquire.Concurrency,
			Topic:       cfg.PubSub.Topic,
		},
		logger.Named("scheduler"),
	)

	if cfg.Server.Enabled {
		srv := api.NewServer(scheduler, logger.Named("api"))
		go func() {
			if err := srv.Serve(ctx, cfg.Server.Port); err != nil {
				logger.Error("status server stopped", zap.Error(err))
			}
		}()
	}

	_, err = scheduler.Run(ctx, rng, cfg.Acquire.Keyword)
	return err
}

func buildProvider(cfg config.Config, limiter *ratelimit.Limiter, logger *zap.Logger) (acquire.SearchProvider, func(), error) {
	switch cfg.Search.Backend {
	case "gdelt":
		c := gdelt.New(gdelt.Config{
			Country:     cfg.Search.Country,
			MaxRecords:  cfg.Search.MaxCandidates,
			Timeout:     cfg.Search.SearchTimeout(),
			UserAgent:   cfg.Fetch.UserAgent,
			EnglishOnly: cfg.Search.EnglishOnly,
		}, limiter, logger.Named("gdelt"))
		return c, func() {}, nil
	case "googlenews":
		p, err := googlenews.New(googlenews.Config{
			UserAgent:         cfg.Fetch.UserAgent,
			NavigationTimeout: cfg.Search.NavTimeout(),
			SettleDelay:       cfg.Search.SettleDelay(),
			MaxCandidates:     cfg.Search.MaxCandidates,
		}, limiter, logger.Named("googlenews"))
		if err != nil {
			return nil, nil, fmt.Errorf("start headless search: %w", err)
		}
		return p, p.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown search backend %q", cfg.Search.Backend)
	}
}

func buildCheckpointStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (acquire.CheckpointStore, func(), error) {
	switch cfg.Checkpoint.Backend {
	case "file":
		s, err := checkpoint.NewFileStore(cfg.Checkpoint.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("create file checkpoint store: %w", err)
		}
		return s, func() {}, nil
	case "gcs":
		s, err := cpgcs.New(ctx, cpgcs.Config{
			Bucket: cfg.Checkpoint.GCSBucket,
			Object: cfg.Checkpoint.GCSObject,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create gcs checkpoint store: %w", err)
		}
		return s, func() {
			if err := s.Close(); err != nil {
				logger.Warn("closing gcs checkpoint store", zap.Error(err))
			}
		}, nil
	case "postgres":
		s, err := cppostgres.New(ctx, cppostgres.Config{
			DSN:   cfg.Checkpoint.DSN,
			Table: cfg.Checkpoint.Table,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create postgres checkpoint store: %w", err)
		}
		if err := s.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, nil, fmt.Errorf("ensure checkpoint schema: %w", err)
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown checkpoint backend %q", cfg.Checkpoint.Backend)
	}
}
