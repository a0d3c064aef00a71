package acquire

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tadevos/newsrange/internal/progress"
)

// fakeProvider answers searches via a per-day function and tracks how many
// searches run concurrently.
type fakeProvider struct {
	fn func(day civil.Date) ([]Candidate, error)

	delay    time.Duration
	inFlight atomic.Int64
	maxSeen  atomic.Int64
	calls    atomic.Int64
}

func (p *fakeProvider) Search(ctx context.Context, day civil.Date, _ string) ([]Candidate, error) {
	cur := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		max := p.maxSeen.Load()
		if cur <= max || p.maxSeen.CompareAndSwap(max, cur) {
			break
		}
	}
	p.calls.Add(1)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return p.fn(day)
}

// fakeStore records every flushed snapshot.
type fakeStore struct {
	mu      sync.Mutex
	flushes [][]ArticleResult
	err     error
}

func (s *fakeStore) Flush(_ context.Context, results []ArticleResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	snap := make([]ArticleResult, len(results))
	copy(snap, results)
	s.flushes = append(s.flushes, snap)
	return nil
}

func (s *fakeStore) flushCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.flushes)
}

func (s *fakeStore) lastFlush() []ArticleResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.flushes) == 0 {
		return nil
	}
	return s.flushes[len(s.flushes)-1]
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
	err      error
}

type publishedMessage struct {
	topic   string
	payload any
}

func (p *fakePublisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.messages = append(p.messages, publishedMessage{topic: topic, payload: payload})
	return "msg-1", nil
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

// fakeEmitter records emitted progress events.
type fakeEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (e *fakeEmitter) Emit(evt progress.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, evt)
}

func (e *fakeEmitter) stages() []progress.Stage {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]progress.Stage, len(e.events))
	for i, evt := range e.events {
		out[i] = evt.Stage
	}
	return out
}

// singleCandidateFixture builds a provider that always yields one exact-day
// candidate, paired with a fetcher that serves it.
func singleCandidateFixture() (*fakeProvider, ContentFetcher) {
	provider := &fakeProvider{fn: func(d civil.Date) ([]Candidate, error) {
		return []Candidate{{URL: "https://example.com/" + d.String(), ListingDate: datePtr(d)}}, nil
	}}
	return provider, dynamicFetcher{}
}

// dynamicFetcher serves usable content for any URL.
type dynamicFetcher struct{}

func (dynamicFetcher) Fetch(_ context.Context, url string) (FetchedContent, error) {
	return FetchedContent{Title: "title " + url, Text: "body " + url}, nil
}

func newTestScheduler(
	provider SearchProvider,
	fetcher ContentFetcher,
	store CheckpointStore,
	publisher Publisher,
	emitter progress.Emitter,
	cfg Config,
) *Scheduler {
	return NewScheduler(
		provider,
		NewSelector(fetcher, zap.NewNop()),
		store,
		publisher,
		emitter,
		&fakeClock{now: time.Unix(1000, 0)},
		cfg,
		zap.NewNop(),
	)
}

func TestScheduler_OneResultPerDayAndFlushAfterEverySuccess(t *testing.T) {
	t.Parallel()

	provider, fetcher := singleCandidateFixture()
	store := &fakeStore{}
	sched := newTestScheduler(provider, fetcher, store, nil, nil, Config{Concurrency: 3})

	rng := DateRange{Start: day(2024, time.March, 1), End: day(2024, time.March, 5)}
	results, err := sched.Run(context.Background(), rng, "inflation")
	require.NoError(t, err)
	require.Equal(t, 5, results.Len())
	require.Equal(t, int64(5), provider.calls.Load())

	// Every day appears exactly once.
	seen := make(map[civil.Date]bool)
	for _, res := range results.Snapshot() {
		require.False(t, seen[res.Day])
		seen[res.Day] = true
		require.Equal(t, "inflation", res.Query)
	}
	for _, d := range rng.Days() {
		require.True(t, seen[d])
	}

	// One flush per success plus the final flush.
	require.Equal(t, 6, store.flushCount())
	require.Len(t, store.lastFlush(), 5)

	// Snapshots only ever grow.
	for i := 1; i < store.flushCount(); i++ {
		require.GreaterOrEqual(t, len(store.flushes[i]), len(store.flushes[i-1]))
	}
}

func TestScheduler_ConcurrencyBoundIsRespected(t *testing.T) {
	t.Parallel()

	provider, fetcher := singleCandidateFixture()
	provider.delay = 30 * time.Millisecond
	store := &fakeStore{}
	sched := newTestScheduler(provider, fetcher, store, nil, nil, Config{Concurrency: 2})

	rng := DateRange{Start: day(2024, time.March, 1), End: day(2024, time.March, 8)}
	results, err := sched.Run(context.Background(), rng, "q")
	require.NoError(t, err)
	require.Equal(t, 8, results.Len())
	require.LessOrEqual(t, provider.maxSeen.Load(), int64(2))
	require.Greater(t, provider.maxSeen.Load(), int64(0))
}

func TestScheduler_MixedOutcomesAcrossRange(t *testing.T) {
	t.Parallel()

	d1 := day(2024, time.March, 1)
	d2 := day(2024, time.March, 2)
	d3 := day(2024, time.March, 3)

	provider := &fakeProvider{fn: func(d civil.Date) ([]Candidate, error) {
		switch d {
		case d1:
			return []Candidate{{URL: "https://one", ListingDate: datePtr(d1)}}, nil
		case d2:
			// No exact match; the nearer of the two must win.
			return []Candidate{
				{URL: "https://off-by-three", ListingDate: datePtr(d2.AddDays(3))},
				{URL: "https://off-by-one", ListingDate: datePtr(d2.AddDays(-1))},
			}, nil
		default:
			return nil, nil
		}
	}}
	store := &fakeStore{}
	sched := newTestScheduler(provider, dynamicFetcher{}, store, nil, nil, Config{Concurrency: 1})

	results, err := sched.Run(context.Background(), DateRange{Start: d1, End: d3}, "q")
	require.NoError(t, err)
	require.Equal(t, 2, results.Len())

	byDay := make(map[civil.Date]ArticleResult)
	for _, res := range results.Snapshot() {
		byDay[res.Day] = res
	}
	require.Equal(t, "https://one", byDay[d1].URL)
	require.Equal(t, "https://off-by-one", byDay[d2].URL)
	_, found := byDay[d3]
	require.False(t, found)

	// Two successes, two incremental flushes, one final.
	require.Equal(t, 3, store.flushCount())
	require.Len(t, store.lastFlush(), 2)
}

func TestScheduler_SearchFailureDegradesOnlyThatDay(t *testing.T) {
	t.Parallel()

	bad := day(2024, time.March, 2)
	provider := &fakeProvider{fn: func(d civil.Date) ([]Candidate, error) {
		if d == bad {
			return nil, errors.New("backend unavailable")
		}
		return []Candidate{{URL: "https://ok/" + d.String(), ListingDate: datePtr(d)}}, nil
	}}
	store := &fakeStore{}
	emitter := &fakeEmitter{}
	sched := newTestScheduler(provider, dynamicFetcher{}, store, nil, emitter, Config{Concurrency: 1})

	rng := DateRange{Start: day(2024, time.March, 1), End: day(2024, time.March, 3)}
	results, err := sched.Run(context.Background(), rng, "q")
	require.NoError(t, err)
	require.Equal(t, 2, results.Len())

	var dayErrors int
	for _, stage := range emitter.stages() {
		if stage == progress.StageDayError {
			dayErrors++
		}
	}
	require.Equal(t, 1, dayErrors)
}

func TestScheduler_InterruptionKeepsCompletedResults(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int64
	provider := &fakeProvider{fn: func(d civil.Date) ([]Candidate, error) {
		// Cancel mid-range; completed days must survive.
		if calls.Add(1) == 3 {
			cancel()
			return nil, ctx.Err()
		}
		return []Candidate{{URL: "https://ok/" + d.String(), ListingDate: datePtr(d)}}, nil
	}}
	store := &fakeStore{}
	sched := newTestScheduler(provider, dynamicFetcher{}, store, nil, nil, Config{Concurrency: 1})

	rng := DateRange{Start: day(2024, time.March, 1), End: day(2024, time.March, 10)}
	results, err := sched.Run(ctx, rng, "q")
	require.ErrorIs(t, err, ErrInterrupted)
	require.Equal(t, 2, results.Len())

	// Final flush still ran despite the canceled context.
	require.Len(t, store.lastFlush(), 2)
}

func TestScheduler_CheckpointFailureDoesNotAbortRun(t *testing.T) {
	t.Parallel()

	provider, fetcher := singleCandidateFixture()
	store := &fakeStore{err: errors.New("disk full")}
	emitter := &fakeEmitter{}
	sched := newTestScheduler(provider, fetcher, store, nil, emitter, Config{Concurrency: 1})

	rng := DateRange{Start: day(2024, time.March, 1), End: day(2024, time.March, 3)}
	results, err := sched.Run(context.Background(), rng, "q")
	require.NoError(t, err)
	require.Equal(t, 3, results.Len())

	var checkpointErrors int
	for _, stage := range emitter.stages() {
		if stage == progress.StageCheckpointError {
			checkpointErrors++
		}
	}
	// Three incremental flushes plus the final one, all failed.
	require.Equal(t, 4, checkpointErrors)
}

func TestScheduler_PublishesEachResult(t *testing.T) {
	t.Parallel()

	provider, fetcher := singleCandidateFixture()
	store := &fakeStore{}
	publisher := &fakePublisher{}
	sched := newTestScheduler(provider, fetcher, store, publisher, nil, Config{
		Concurrency: 2,
		Topic:       "articles",
	})

	rng := DateRange{Start: day(2024, time.March, 1), End: day(2024, time.March, 4)}
	_, err := sched.Run(context.Background(), rng, "q")
	require.NoError(t, err)

	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	require.Len(t, publisher.messages, 4)
	for _, msg := range publisher.messages {
		require.Equal(t, "articles", msg.topic)
	}
}

func TestScheduler_ProgressEventsCarryRunID(t *testing.T) {
	t.Parallel()

	provider, fetcher := singleCandidateFixture()
	emitter := &fakeEmitter{}
	sched := newTestScheduler(provider, fetcher, &fakeStore{}, nil, emitter, Config{Concurrency: 1})

	rng := DateRange{Start: day(2024, time.March, 1), End: day(2024, time.March, 1)}
	_, err := sched.Run(context.Background(), rng, "q")
	require.NoError(t, err)

	emitter.mu.Lock()
	require.NotEmpty(t, emitter.events)
	var zero [16]byte
	for _, evt := range emitter.events {
		require.NotEqual(t, zero, evt.RunID)
		require.Equal(t, emitter.events[0].RunID, evt.RunID)
		require.False(t, evt.TS.IsZero())
	}
	emitter.mu.Unlock()
	stages := emitter.stages()
	require.Equal(t, progress.StageRunDone, stages[len(stages)-1])
}

func TestScheduler_StatusReflectsProgress(t *testing.T) {
	t.Parallel()

	provider, fetcher := singleCandidateFixture()
	sched := newTestScheduler(provider, fetcher, &fakeStore{}, nil, nil, Config{Concurrency: 1})

	rng := DateRange{Start: day(2024, time.March, 1), End: day(2024, time.March, 4)}
	_, err := sched.Run(context.Background(), rng, "rates")
	require.NoError(t, err)

	status := sched.CurrentStatus()
	require.Equal(t, "rates", status.Keyword)
	require.Equal(t, 4, status.DaysTotal)
	require.Equal(t, 4, status.DaysDone)
	require.Equal(t, 4, status.Results)
	require.False(t, status.Running)
	require.NotEmpty(t, status.RunID)
}

func TestScheduler_RejectsInvalidInput(t *testing.T) {
	t.Parallel()

	provider, fetcher := singleCandidateFixture()
	sched := newTestScheduler(provider, fetcher, &fakeStore{}, nil, nil, Config{})

	_, err := sched.Run(context.Background(), DateRange{
		Start: day(2024, time.March, 5),
		End:   day(2024, time.March, 1),
	}, "q")
	require.Error(t, err)

	_, err = sched.Run(context.Background(), DateRange{
		Start: day(2024, time.March, 1),
		End:   day(2024, time.March, 5),
	}, "")
	require.Error(t, err)
}
