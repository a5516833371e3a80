package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordersUpdateCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.RecordBackend("gemini", time.Second, nil)
	m.RecordBackend("gemini", time.Second, errors.New("boom"))
	m.RecordTool("movie_search", 10*time.Millisecond, true)
	m.RecordTool("movie_search", 10*time.Millisecond, false)
	m.RecordTool("movie_search", 10*time.Millisecond, false)
	m.RecordTurn("answer", 3)
	m.RecordRateLimited()
	m.RecordWebhook("/webhook/message", 401)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.backendCalls.WithLabelValues("gemini", StatusError)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.toolCalls.WithLabelValues("movie_search", StatusError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.turns.WithLabelValues("answer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateLimited))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.webhooks.WithLabelValues("/webhook/message", "401")))
}

func TestNewReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := New(reg)
	require.NoError(t, err)
	second, err := New(reg)
	require.NoError(t, err)

	first.RecordRateLimited()
	assert.Equal(t, 1.0, testutil.ToFloat64(second.rateLimited))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordBackend("openai", time.Second, nil)
	m.RecordTool("x", time.Second, true)
	m.RecordTurn("answer", 1)
	m.RecordRateLimited()
	m.RecordWebhook("/health", 200)
}
