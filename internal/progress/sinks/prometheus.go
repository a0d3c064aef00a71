package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tadevos/newsrange/internal/progress"
)

// PrometheusSink exports acquisition progress via Prometheus. It owns the
// per-day outcome counters and the checkpoint collectors.
type PrometheusSink struct {
	daysTotal   *prometheus.CounterVec
	dayDuration *prometheus.HistogramVec
	results     prometheus.Gauge
	flushes     *prometheus.CounterVec
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		daysTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsrange_days_total",
			Help: "Day tasks completed, partitioned by outcome.",
		}, []string{"outcome"}),
		dayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "newsrange_day_duration_seconds",
			Help:    "Wall time per completed day task.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),
		results: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "newsrange_results",
			Help: "Number of days with a selected article so far.",
		}),
		flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsrange_checkpoint_flushes_total",
			Help: "Checkpoint flushes, partitioned by status.",
		}, []string{"status"}),
	}
	for _, collector := range []prometheus.Collector{
		s.daysTotal, s.dayDuration, s.results, s.flushes,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch. Safe for concurrent use.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageDayFound:
		s.observeDay("found", evt)
	case progress.StageDayEmpty:
		s.observeDay("empty", evt)
	case progress.StageDayError:
		s.observeDay("error", evt)
	case progress.StageCheckpointSaved:
		s.flushes.WithLabelValues("ok").Inc()
		s.results.Set(float64(evt.Results))
	case progress.StageCheckpointError:
		s.flushes.WithLabelValues("error").Inc()
	}
}

func (s *PrometheusSink) observeDay(outcome string, evt progress.Event) {
	s.daysTotal.WithLabelValues(outcome).Inc()
	if evt.Dur > 0 {
		s.dayDuration.WithLabelValues(outcome).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; collectors stay registered.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
