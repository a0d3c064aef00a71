package acquire

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tadevos/newsrange/internal/progress"
)

// ErrInterrupted reports that a run stopped on an external cancellation
// signal after flushing whatever it had collected. It distinguishes the
// graceful "interrupted with partial results" exit from a completed run.
var ErrInterrupted = errors.New("acquisition interrupted")

// Config controls Scheduler behavior.
type Config struct {
	// Concurrency bounds the number of day tasks in flight (default 1).
	Concurrency int
	// Topic, when set, enables per-result completion publishing.
	Topic string
}

// Status is a point-in-time view of a run, served by the status API.
type Status struct {
	RunID     string     `json:"run_id"`
	Keyword   string     `json:"keyword"`
	Start     civil.Date `json:"start"`
	End       civil.Date `json:"end"`
	DaysTotal int        `json:"days_total"`
	DaysDone  int        `json:"days_done"`
	Results   int        `json:"results"`
	Running   bool       `json:"running"`
}

// Scheduler enumerates a day range, dispatches one Day Task per day under a
// bounded concurrency limit, collects results in completion order, and
// drives checkpointing after every success.
type Scheduler struct {
	provider  SearchProvider
	selector  *Selector
	store     CheckpointStore
	publisher Publisher
	emitter   progress.Emitter
	clock     Clock
	cfg       Config
	logger    *zap.Logger

	runID [16]byte

	// commitMu serializes result appends and the checkpoint flushes they
	// trigger, so concurrent day completions cannot interleave.
	commitMu sync.Mutex
	results  *ResultSet

	keyword   string
	rng       DateRange
	daysDone  atomic.Int64
	daysTotal atomic.Int64
	running   atomic.Bool
}

// NewScheduler constructs a Scheduler. publisher and emitter may be nil.
func NewScheduler(
	provider SearchProvider,
	selector *Selector,
	store CheckpointStore,
	publisher Publisher,
	emitter progress.Emitter,
	clock Clock,
	cfg Config,
	logger *zap.Logger,
) *Scheduler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if emitter == nil {
		emitter = progress.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return &Scheduler{
		provider:  provider,
		selector:  selector,
		store:     store,
		publisher: publisher,
		emitter:   emitter,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
		runID:     progress.UUIDToBytes(id),
		results:   NewResultSet(),
	}
}

// Run executes one Day Task for every day in rng under the concurrency
// bound, then performs a final checkpoint flush. The returned ResultSet is
// always valid, even when the error is ErrInterrupted.
func (s *Scheduler) Run(ctx context.Context, rng DateRange, keyword string) (*ResultSet, error) {
	if err := rng.Validate(); err != nil {
		return nil, fmt.Errorf("invalid date range: %w", err)
	}
	if keyword == "" {
		return nil, errors.New("keyword is required")
	}

	days := rng.Days()
	s.keyword = keyword
	s.rng = rng
	s.daysTotal.Store(int64(len(days)))
	s.running.Store(true)
	defer s.running.Store(false)

	s.logger.Info("starting acquisition run",
		zap.String("run_id", uuid.UUID(s.runID).String()),
		zap.String("keyword", keyword),
		zap.Stringer("start", rng.Start),
		zap.Stringer("end", rng.End),
		zap.Int("days", len(days)),
		zap.Int("concurrency", s.cfg.Concurrency),
	)

	sem := make(chan struct{}, s.cfg.Concurrency)
	var wg sync.WaitGroup
	interrupted := false

dispatch:
	for _, day := range days {
		select {
		case <-ctx.Done():
			interrupted = true
			break dispatch
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(day civil.Date) {
			defer wg.Done()
			defer func() { <-sem }()
			s.runDay(ctx, day)
		}(day)
	}
	wg.Wait()

	// The final flush must happen even after cancellation.
	s.finalFlush(context.WithoutCancel(ctx))

	if !interrupted && ctx.Err() != nil {
		interrupted = true
	}
	s.summarize(len(days), interrupted)

	if interrupted {
		return s.results, ErrInterrupted
	}
	return s.results, nil
}

// Results exposes the accumulating result set for the status API.
func (s *Scheduler) Results() *ResultSet {
	return s.results
}

// CurrentStatus returns a snapshot of run progress.
func (s *Scheduler) CurrentStatus() Status {
	return Status{
		RunID:     uuid.UUID(s.runID).String(),
		Keyword:   s.keyword,
		Start:     s.rng.Start,
		End:       s.rng.End,
		DaysTotal: int(s.daysTotal.Load()),
		DaysDone:  int(s.daysDone.Load()),
		Results:   s.results.Len(),
		Running:   s.running.Load(),
	}
}

// runDay is the Day Task boundary: any failure below it is logged with its
// day and converted to an absent outcome, never aborting the run.
func (s *Scheduler) runDay(ctx context.Context, day civil.Date) {
	start := s.clock.Now()
	s.emit(progress.Event{Stage: progress.StageDayStart, Day: day})

	res, err := s.acquireDay(ctx, day)
	dur := s.clock.Now().Sub(start)

	switch {
	case err != nil:
		s.logger.Warn("day task failed",
			zap.Stringer("day", day),
			zap.Error(err),
		)
		s.emit(progress.Event{Stage: progress.StageDayError, Day: day, Dur: dur, Note: err.Error()})
	case res == nil:
		s.logger.Info("no article found for day", zap.Stringer("day", day))
		s.emit(progress.Event{Stage: progress.StageDayEmpty, Day: day, Dur: dur})
	default:
		s.commit(ctx, *res)
		s.logger.Info("article selected",
			zap.Stringer("day", day),
			zap.String("title", res.Title),
			zap.String("url", res.URL),
		)
		s.emit(progress.Event{Stage: progress.StageDayFound, Day: day, URL: res.URL, Dur: dur})
	}
	s.daysDone.Add(1)
}

func (s *Scheduler) acquireDay(ctx context.Context, day civil.Date) (*ArticleResult, error) {
	candidates, err := s.provider.Search(ctx, day, s.keyword)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", day, err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	res, err := s.selector.Select(ctx, candidates, day, s.keyword)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", day, err)
	}
	return res, nil
}

// commit appends the result and triggers a checkpoint flush under a single
// lock, then publishes the completion event.
func (s *Scheduler) commit(ctx context.Context, res ArticleResult) {
	s.commitMu.Lock()
	snapshot, err := s.results.Append(res)
	if err == nil {
		s.flushSnapshot(ctx, snapshot)
	}
	s.commitMu.Unlock()
	if err != nil {
		// One task per day makes this unreachable in practice; guard anyway.
		s.logger.Error("result append rejected", zap.Stringer("day", res.Day), zap.Error(err))
		return
	}
	s.publishResult(ctx, res)
}

func (s *Scheduler) flushSnapshot(ctx context.Context, snapshot []ArticleResult) {
	if err := s.store.Flush(ctx, snapshot); err != nil {
		// Non-fatal: the next successful day retries with a larger snapshot.
		s.logger.Error("checkpoint flush failed",
			zap.Int("results", len(snapshot)),
			zap.Error(err),
		)
		s.emit(progress.Event{Stage: progress.StageCheckpointError, Results: len(snapshot), Note: err.Error()})
		return
	}
	s.emit(progress.Event{Stage: progress.StageCheckpointSaved, Results: len(snapshot)})
}

func (s *Scheduler) finalFlush(ctx context.Context) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	s.flushSnapshot(ctx, s.results.Snapshot())
}

func (s *Scheduler) publishResult(ctx context.Context, res ArticleResult) {
	if s.publisher == nil || s.cfg.Topic == "" {
		return
	}
	payload := map[string]any{
		"day":          res.Day.String(),
		"query":        res.Query,
		"title":        res.Title,
		"url":          res.URL,
		"publish_date": res.PublishDate,
	}
	if _, err := s.publisher.Publish(ctx, s.cfg.Topic, payload); err != nil {
		s.logger.Warn("result publish failed", zap.Stringer("day", res.Day), zap.Error(err))
	}
}

func (s *Scheduler) summarize(daysPlanned int, interrupted bool) {
	found := s.results.Len()
	s.logger.Info("acquisition run finished",
		zap.Int("days_planned", daysPlanned),
		zap.Int("days_attempted", int(s.daysDone.Load())),
		zap.Int("days_with_result", found),
		zap.Int("days_without_result", int(s.daysDone.Load())-found),
		zap.Bool("interrupted", interrupted),
	)
	s.emit(progress.Event{Stage: progress.StageRunDone, Results: found})
}

func (s *Scheduler) emit(evt progress.Event) {
	evt.RunID = s.runID
	evt.TS = s.clock.Now()
	s.emitter.Emit(evt)
}
