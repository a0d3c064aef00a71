package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/tadevos/newsrange/internal/progress"
)

func TestPrometheusSink_CountsOutcomes(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	runID := progress.UUIDToBytes(uuid.New())
	batch := []progress.Event{
		{RunID: runID, TS: time.Unix(1, 0), Stage: progress.StageDayFound, URL: "https://a", Dur: 2 * time.Second},
		{RunID: runID, TS: time.Unix(2, 0), Stage: progress.StageDayFound, URL: "https://b", Dur: time.Second},
		{RunID: runID, TS: time.Unix(3, 0), Stage: progress.StageDayEmpty},
		{RunID: runID, TS: time.Unix(4, 0), Stage: progress.StageDayError, Note: "backend unavailable"},
		{RunID: runID, TS: time.Unix(5, 0), Stage: progress.StageCheckpointSaved, Results: 2},
		{RunID: runID, TS: time.Unix(6, 0), Stage: progress.StageCheckpointError},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, float64(2), testutil.ToFloat64(sink.daysTotal.WithLabelValues("found")))
	require.Equal(t, float64(1), testutil.ToFloat64(sink.daysTotal.WithLabelValues("empty")))
	require.Equal(t, float64(1), testutil.ToFloat64(sink.daysTotal.WithLabelValues("error")))
	require.Equal(t, float64(2), testutil.ToFloat64(sink.results))
	require.Equal(t, float64(1), testutil.ToFloat64(sink.flushes.WithLabelValues("ok")))
	require.Equal(t, float64(1), testutil.ToFloat64(sink.flushes.WithLabelValues("error")))
}

func TestPrometheusSink_DoubleRegisterFails(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
