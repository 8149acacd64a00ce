package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const namespace = "datamigrator"

// Metrics holds the counters for one migration run. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	rowsDecoded      *prometheus.CounterVec
	rowsRejected     *prometheus.CounterVec
	documentsWritten *prometheus.CounterVec
	batchCommits     *prometheus.CounterVec
	rowOutcomes      *prometheus.CounterVec
}

// New registers the run's metrics on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		rowsDecoded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_decoded_total",
			Help:      "Rows decoded from export files.",
		}, []string{"table"}),
		rowsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_rejected_total",
			Help:      "Rows dropped by schema validation while decoding.",
		}, []string{"table"}),
		documentsWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_written_total",
			Help:      "Documents written to the destination store.",
		}, []string{"collection"}),
		batchCommits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_commits_total",
			Help:      "Batch commits against the destination store.",
		}, []string{"collection", "result"}),
		rowOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "account_row_outcomes_total",
			Help:      "Per-row outcomes of the account migration phases.",
		}, []string{"phase", "status"}),
	}
}

// Registry exposes the underlying registry, mostly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveDecode records decoded and rejected row counts for a table
func (m *Metrics) ObserveDecode(table string, rows, rejected int) {
	if m == nil {
		return
	}
	m.rowsDecoded.WithLabelValues(table).Add(float64(rows))
	m.rowsRejected.WithLabelValues(table).Add(float64(rejected))
}

// ObserveWritten records documents written to a collection
func (m *Metrics) ObserveWritten(collection string, n int) {
	if m == nil {
		return
	}
	m.documentsWritten.WithLabelValues(collection).Add(float64(n))
}

// ObserveCommit records the result of one batch commit
func (m *Metrics) ObserveCommit(collection string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.batchCommits.WithLabelValues(collection, result).Inc()
}

// ObserveOutcome records one account-migration row outcome
func (m *Metrics) ObserveOutcome(phase, status string) {
	if m == nil {
		return
	}
	m.rowOutcomes.WithLabelValues(phase, status).Inc()
}

// Serve exposes the registry on addr until ctx is done. It returns
// immediately; listen errors are logged.
func (m *Metrics) Serve(ctx context.Context, addr string) {
	if m == nil || addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info().Str("addr", addr).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
