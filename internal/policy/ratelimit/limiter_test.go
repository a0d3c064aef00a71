package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiter_ThrottlesPerHost(t *testing.T) {
	t.Parallel()

	limiter := New(Config{RPS: 20, Burst: 1})
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Wait(ctx, "https://slow.example.com/page"))
	}
	// Burst 1 at 20 rps: the second and third waits each cost ~50ms.
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestLimiter_HostsHaveIndependentBuckets(t *testing.T) {
	t.Parallel()

	limiter := New(Config{RPS: 1, Burst: 1})
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx, "https://a.example.com/x"))
	require.NoError(t, limiter.Wait(ctx, "https://b.example.com/x"))
	require.NoError(t, limiter.Wait(ctx, "https://c.example.com/x"))
	// First token per host is free.
	require.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestLimiter_ZeroRPSDisablesLimiting(t *testing.T) {
	t.Parallel()

	limiter := New(Config{})
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, limiter.Wait(ctx, "https://example.com"))
	}
	require.Less(t, time.Since(start), time.Second)
}

func TestLimiter_CanceledContextUnblocksWait(t *testing.T) {
	t.Parallel()

	limiter := New(Config{RPS: 0.001, Burst: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, limiter.Wait(ctx, "https://example.com"))
	require.Error(t, limiter.Wait(ctx, "https://example.com"))
}

func TestLimiter_UnparseableURLStillRateLimited(t *testing.T) {
	t.Parallel()

	limiter := New(Config{RPS: 100, Burst: 1})
	require.NoError(t, limiter.Wait(context.Background(), "::not a url::"))
}
