// Package metrics collects Prometheus metrics for training and evaluation runs.
// Runs are batch jobs, so the registry is exported to a node-exporter textfile
// instead of being served.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	registry *prometheus.Registry

	// Training
	EpochsTotal  prometheus.Counter
	BatchesTotal prometheus.Counter
	TrainingLoss prometheus.Gauge

	// Evaluation
	PredictionsTotal prometheus.Counter
	PredictionScores prometheus.Histogram
	ForwardLatency   prometheus.Histogram
	EvaluationLoss   *prometheus.GaugeVec
	EvaluationAUC    *prometheus.GaugeVec
	EvaluationF1     *prometheus.GaugeVec

	DataErrors prometheus.Counter
}

// New creates metrics on a fresh registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

func NewWithRegistry(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		EpochsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "cbfusion_training_epochs_total",
			Help: "Number of completed training epochs",
		}),
		BatchesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "cbfusion_training_batches_total",
			Help: "Number of optimised training batches",
		}),
		TrainingLoss: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cbfusion_training_loss",
			Help: "Mean binary cross-entropy of the last training epoch",
		}),
		PredictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "cbfusion_predictions_total",
			Help: "Number of samples scored",
		}),
		PredictionScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cbfusion_prediction_scores",
			Help:    "Distribution of predicted positive-class probabilities",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 9),
		}),
		ForwardLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cbfusion_forward_latency_seconds",
			Help:    "Forward pass latency per batch in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		EvaluationLoss: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cbfusion_evaluation_loss",
			Help: "Mean binary cross-entropy of an evaluated data set",
		}, []string{"set"}),
		EvaluationAUC: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cbfusion_evaluation_auc",
			Help: "Area under the ROC curve of an evaluated data set",
		}, []string{"set"}),
		EvaluationF1: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cbfusion_evaluation_f1",
			Help: "Positive-class F1 score of an evaluated data set",
		}, []string{"set"}),
		DataErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "cbfusion_data_errors_total",
			Help: "Number of input rows skipped because they could not be parsed",
		}),
	}
}

// ObserveForward records the latency of one forward pass.
func (m *Metrics) ObserveForward(start time.Time) {
	m.ForwardLatency.Observe(time.Since(start).Seconds())
}

// ObservePrediction records one scored sample.
func (m *Metrics) ObservePrediction(probability float64) {
	m.PredictionsTotal.Inc()
	m.PredictionScores.Observe(probability)
}

// Evaluation records the summary of an evaluated data set.
func (m *Metrics) Evaluation(set string, loss, auc, f1 float64) {
	m.EvaluationLoss.WithLabelValues(set).Set(loss)
	m.EvaluationAUC.WithLabelValues(set).Set(auc)
	m.EvaluationF1.WithLabelValues(set).Set(f1)
}

func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes the current values in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
