// Package metrics exports bot telemetry to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "regelebot"

// Status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds the collectors for backend calls, tool calls, turns and
// the webhook surface. A nil *Metrics records nothing.
type Metrics struct {
	backendCalls    *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
	toolCalls       *prometheus.CounterVec
	toolDuration    *prometheus.HistogramVec
	turns           *prometheus.CounterVec
	turnBackendUse  prometheus.Histogram
	rateLimited     prometheus.Counter
	webhooks        *prometheus.CounterVec
}

// New creates and registers the collectors. Collectors already present on
// reg are reused, so New may be called more than once per process.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{}
	var err error
	if m.backendCalls, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backend_calls_total",
		Help:      "Model backend calls by provider and status.",
	}, []string{"provider", "status"})); err != nil {
		return nil, err
	}
	if m.backendDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backend_call_duration_seconds",
		Help:      "Latency of model backend calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"provider"})); err != nil {
		return nil, err
	}
	if m.toolCalls, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tool_calls_total",
		Help:      "Tool dispatches by tool and status.",
	}, []string{"tool", "status"})); err != nil {
		return nil, err
	}
	if m.toolDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "tool_call_duration_seconds",
		Help:      "Latency of tool dispatches.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"tool"})); err != nil {
		return nil, err
	}
	if m.turns, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "turns_total",
		Help:      "Processed conversation turns by outcome.",
	}, []string{"outcome"})); err != nil {
		return nil, err
	}
	if m.turnBackendUse, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "turn_backend_calls",
		Help:      "Backend calls spent per turn.",
		Buckets:   []float64{1, 2, 3, 4, 5},
	})); err != nil {
		return nil, err
	}
	if m.rateLimited, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Messages rejected by the per-sender rate limiter.",
	})); err != nil {
		return nil, err
	}
	if m.webhooks, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_requests_total",
		Help:      "Webhook requests by route and HTTP status code.",
	}, []string{"route", "code"})); err != nil {
		return nil, err
	}
	return m, nil
}

// MustNew is like New but panics on registration failure.
func MustNew(reg prometheus.Registerer) *Metrics {
	m, err := New(reg)
	if err != nil {
		panic(err)
	}
	return m
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register metric: %w", err)
	}
	return c, nil
}

func status(ok bool) string {
	if ok {
		return StatusOK
	}
	return StatusError
}

// RecordBackend tracks one model backend call.
func (m *Metrics) RecordBackend(provider string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.backendCalls.WithLabelValues(provider, status(err == nil)).Inc()
	m.backendDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// RecordTool tracks one tool dispatch.
func (m *Metrics) RecordTool(name string, d time.Duration, ok bool) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(name, status(ok)).Inc()
	m.toolDuration.WithLabelValues(name).Observe(d.Seconds())
}

// RecordTurn tracks a finished turn and the backend calls it used.
func (m *Metrics) RecordTurn(outcome string, backendCalls int) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(outcome).Inc()
	m.turnBackendUse.Observe(float64(backendCalls))
}

// RecordRateLimited counts a rejected message.
func (m *Metrics) RecordRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

// RecordWebhook counts a webhook request.
func (m *Metrics) RecordWebhook(route string, code int) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(route, fmt.Sprint(code)).Inc()
}
