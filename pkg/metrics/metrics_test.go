package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	require := require.New(t)
	m := New()

	m.ObserveDecode("tasks", 10, 2)
	m.ObserveWritten("tasks", 10)
	m.ObserveCommit("tasks", nil)
	m.ObserveCommit("tasks", errors.New("boom"))
	m.ObserveOutcome("roles", "dropped")
	m.ObserveOutcome("roles", "dropped")

	require.Equal(float64(10), testutil.ToFloat64(m.rowsDecoded.WithLabelValues("tasks")))
	require.Equal(float64(2), testutil.ToFloat64(m.rowsRejected.WithLabelValues("tasks")))
	require.Equal(float64(10), testutil.ToFloat64(m.documentsWritten.WithLabelValues("tasks")))
	require.Equal(float64(1), testutil.ToFloat64(m.batchCommits.WithLabelValues("tasks", "error")))
	require.Equal(float64(2), testutil.ToFloat64(m.rowOutcomes.WithLabelValues("roles", "dropped")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.ObserveDecode("t", 1, 0)
		m.ObserveWritten("t", 1)
		m.ObserveCommit("t", nil)
		m.ObserveOutcome("p", "s")
		m.Serve(context.Background(), ":0")
	})
	require.Nil(t, m.Registry())
}
