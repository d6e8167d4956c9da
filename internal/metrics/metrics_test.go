package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveExecution(t *testing.T) {
	m := New()

	m.ObserveExecution("", 10*time.Millisecond)
	m.ObserveExecution(OutcomeOK, 20*time.Millisecond)
	m.ObserveExecution("TIMEOUT", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ExecutionsTotal.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExecutionsTotal.WithLabelValues("TIMEOUT")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.ExecutionDuration))
}

func TestCounters(t *testing.T) {
	m := New()

	m.SecurityInjected("accounts")
	m.SecurityInjected("accounts")
	m.SecurityInjected("visits")
	m.SubqueryResolved("")
	m.SubqueryResolved("SUBQUERY_FAILED")
	m.Validated("SCHEMA_VIOLATION")
	m.ObserveRows(42)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SecurityInjections.WithLabelValues("accounts")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SecurityInjections.WithLabelValues("visits")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SubqueriesTotal.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SubqueriesTotal.WithLabelValues("SUBQUERY_FAILED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationsTotal.WithLabelValues("SCHEMA_VIOLATION")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RowsScanned))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveExecution("", time.Millisecond)
		m.ObserveRows(1)
		m.SecurityInjected("accounts")
		m.SubqueryResolved("")
		m.Validated("")
	})
	assert.Nil(t, m.Registry())
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.SecurityInjected("accounts")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `planq_security_injections_total{table="accounts"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
