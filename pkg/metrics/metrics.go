// Package metrics exposes Prometheus instrumentation for quote fetching and
// proposal submission.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const namespace = "treasury_exchange"

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "metrics").Logger()
}

// Metrics holds the exchange pipeline collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	fetches        *prometheus.CounterVec
	fetchDuration  *prometheus.HistogramVec
	staleResponses *prometheus.CounterVec
	proposals      *prometheus.CounterVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quote_fetches_total",
				Help:      "Quote fetches by step and outcome.",
			},
			[]string{"step", "outcome"},
		),
		fetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "quote_fetch_duration_seconds",
				Help:      "Latency of quote fetches.",
				Buckets:   []float64{0.25, 0.5, 1, 2, 3, 5, 10},
			},
			[]string{"step"},
		),
		staleResponses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quote_stale_responses_total",
				Help:      "Quote responses discarded because the inputs changed.",
			},
			[]string{"step"},
		),
		proposals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "proposals_total",
				Help:      "Exchange proposals by asset kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
	}
	reg.MustRegister(m.fetches)
	reg.MustRegister(m.fetchDuration)
	reg.MustRegister(m.staleResponses)
	reg.MustRegister(m.proposals)
	return m
}

// ObserveFetch records one completed quote fetch
func (m *Metrics) ObserveFetch(step string, took time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.fetches.WithLabelValues(step, outcome).Inc()
	m.fetchDuration.WithLabelValues(step).Observe(took.Seconds())
}

// StaleResponse records a discarded out-of-date response
func (m *Metrics) StaleResponse(step string) {
	if m == nil {
		return
	}
	m.staleResponses.WithLabelValues(step).Inc()
}

// Proposal records a proposal submission attempt
func (m *Metrics) Proposal(kind, outcome string) {
	if m == nil {
		return
	}
	m.proposals.WithLabelValues(kind, outcome).Inc()
}

// Handler returns a router serving /metrics and /health
func Handler(gatherer prometheus.Gatherer) http.Handler {
	mux := chi.NewMux()
	mux.Use(middleware.Recoverer)
	mux.Use(middleware.Timeout(10 * time.Second))
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})
	return mux
}

// Serve runs the metrics endpoint on addr until ctx is cancelled
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(gatherer),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("Metrics endpoint enabled: /metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
