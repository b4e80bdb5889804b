// Package metrics exposes Prometheus collectors for the analysis pipeline
// and an optional scrape endpoint enabled by the CLI.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SecurityRonin/nfchat-sub001/internal/logging"
	"github.com/SecurityRonin/nfchat-sub001/internal/models"
)

const namespace = "nfchat"

// Training outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics holds every collector on its own registry so concurrent runs and
// tests never collide on the default registry.
type Metrics struct {
	registry *prometheus.Registry

	TrainingsTotal          *prometheus.CounterVec
	TrainingDurationSeconds prometheus.Histogram
	TrainingIterations      prometheus.Histogram
	SelectedStates          prometheus.Gauge
	FlowsIngested           prometheus.Counter
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		TrainingsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trainings_total",
			Help:      "Training runs by outcome.",
		}, []string{"outcome"}),
		TrainingDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "training_duration_seconds",
			Help:      "Wall-clock duration of training runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
		TrainingIterations: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "training_iterations",
			Help:      "EM iterations per training run.",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}),
		SelectedStates: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "selected_states",
			Help:      "State count of the most recent training run.",
		}),
		FlowsIngested: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flows_ingested_total",
			Help:      "Flow records loaded from input files.",
		}),
	}
}

// ObserveTraining records the outcome of one training run.
func (m *Metrics) ObserveTraining(result *models.TrainingResult, err error, elapsed time.Duration) {
	m.TrainingDurationSeconds.Observe(elapsed.Seconds())
	if err != nil {
		m.TrainingsTotal.WithLabelValues(OutcomeError).Inc()
		return
	}
	m.TrainingsTotal.WithLabelValues(OutcomeSuccess).Inc()
	m.TrainingIterations.Observe(float64(result.Iterations))
	m.SelectedStates.Set(float64(result.NStates))
}

// Handler returns the scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until the context is cancelled. Serve
// blocks; run it in its own goroutine.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	log := logging.Default().WithComponent("metrics")
	log.Info("metrics endpoint listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}
