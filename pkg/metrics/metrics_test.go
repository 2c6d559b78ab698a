package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Observe(t *testing.T) {
	m := New()

	m.ObservePrediction(0.2)
	m.ObservePrediction(0.9)
	m.ObserveForward(time.Now())
	m.Evaluation("test", 0.5, 0.75, 0.6)
	m.EpochsTotal.Inc()

	require.Equal(t, 2.0, testutil.ToFloat64(m.PredictionsTotal))
	require.Equal(t, 1.0, testutil.ToFloat64(m.EpochsTotal))
	require.Equal(t, 0.75, testutil.ToFloat64(m.EvaluationAUC.WithLabelValues("test")))
	require.Equal(t, 0.6, testutil.ToFloat64(m.EvaluationF1.WithLabelValues("test")))

	families, err := m.Gatherer().Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a := New()
	b := New()
	a.PredictionsTotal.Inc()
	require.Equal(t, 0.0, testutil.ToFloat64(b.PredictionsTotal))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := New()
	m.TrainingLoss.Set(0.42)
	path := filepath.Join(t.TempDir(), "cbfusion.prom")

	require.NoError(t, m.WriteTextfile(path))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(content), "cbfusion_training_loss 0.42")

	require.Error(t, m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "cbfusion.prom")))
}
