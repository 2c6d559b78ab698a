package pkg

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/nlpodyssey/spago/pkg/mat32/rand"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"github.com/nlpodyssey/spago/pkg/ml/nn"
	"github.com/nlpodyssey/spago/pkg/ml/stats"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"

	"cbfusion/pkg/io"
	"cbfusion/pkg/metrics"
	"cbfusion/pkg/model"
	"cbfusion/pkg/store"
)

// DecisionThreshold is the probability from which a sample is predicted positive.
const DecisionThreshold = 0.5

const evaluationBatchSize = 32

type TestParameters struct {
	ModelFile  string
	DataFile   string
	TextFile   string
	OutputFile string
	// OutputDB is a BoltDB file receiving the predictions under Run.
	OutputDB string
	Run      string
}

func Test(p TestParameters, m *metrics.Metrics) error {
	modelFile, err := os.Open(p.ModelFile)
	if err != nil {
		return fmt.Errorf("error opening model file %s: %w", p.ModelFile, err)
	}
	defer modelFile.Close()

	saved, err := io.LoadModel(modelFile)
	if err != nil {
		return fmt.Errorf("error loading model from file %s: %w", p.ModelFile, err)
	}
	targetColumn := ""
	if saved.MetaData.TargetColumn >= 0 {
		targetColumn = saved.MetaData.Columns[saved.MetaData.TargetColumn]
	}
	_, data, dataErrors, err := io.LoadData(
		dataParameters(saved.Classifier.Config, p.DataFile, p.TextFile, targetColumn), saved.MetaData)
	if err != nil {
		return fmt.Errorf("error loading data from %s: %w", p.DataFile, err)
	}
	printDataErrors(dataErrors, m)
	if len(data) == 0 {
		return fmt.Errorf("no data to test")
	}

	writer := &predictionWriter{}
	if p.OutputFile != "" {
		outputFile, err := os.Create(p.OutputFile)
		if err != nil {
			return fmt.Errorf("error opening output file %s: %w", p.OutputFile, err)
		}
		defer outputFile.Close()
		writer.csv = csv.NewWriter(outputFile)
	} else {
		writer.csv = csv.NewWriter(NoopWriter{})
	}
	if err := writer.csv.Write([]string{"id", "target", "logit", "probability", "predicted"}); err != nil {
		return fmt.Errorf("error writing predictions: %w", err)
	}
	if p.OutputDB != "" {
		db, err := store.Open(p.OutputDB)
		if err != nil {
			return err
		}
		defer db.Close()
		writer.store = db
		writer.run = p.Run
		if writer.run == "" {
			writer.run = time.Now().UTC().Format(time.RFC3339)
		}
		writer.model = p.ModelFile
	}

	result, err := evaluate(saved.Classifier, data, &evaluationObserver{writer: writer, metrics: m})
	if err != nil {
		return err
	}
	if err := writer.flush(); err != nil {
		return err
	}
	result.log("test", m)
	return nil
}

type evaluationObserver struct {
	writer  *predictionWriter
	metrics *metrics.Metrics
}

type predictionWriter struct {
	csv     *csv.Writer
	store   *store.Store
	run     string
	model   string
	pending []store.Prediction
}

func (w *predictionWriter) write(record *io.DataRecord, logit, probability float64) error {
	predicted := 0
	if probability >= DecisionThreshold {
		predicted = 1
	}
	err := w.csv.Write([]string{
		record.ID,
		strconv.FormatFloat(record.Target, 'f', -1, 64),
		strconv.FormatFloat(logit, 'f', 5, 64),
		strconv.FormatFloat(probability, 'f', 5, 64),
		strconv.Itoa(predicted),
	})
	if err != nil {
		return fmt.Errorf("error writing predictions: %w", err)
	}
	if w.store != nil {
		w.pending = append(w.pending, store.Prediction{
			ID:          record.ID,
			Run:         w.run,
			Model:       w.model,
			Probability: probability,
			Logit:       logit,
			Target:      record.Target,
			Timestamp:   time.Now().UTC(),
		})
	}
	return nil
}

func (w *predictionWriter) flush() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return fmt.Errorf("error writing predictions: %w", err)
	}
	if w.store != nil && len(w.pending) > 0 {
		if err := w.store.Put(w.pending...); err != nil {
			return err
		}
		w.pending = nil
	}
	return nil
}

type evaluation struct {
	Count    int
	Loss     float64
	AUC      float64
	Positive *stats.ClassMetrics
	Negative *stats.ClassMetrics
}

func (e evaluation) log(set string, m *metrics.Metrics) {
	for _, class := range []struct {
		name    string
		metrics *stats.ClassMetrics
	}{{"1", e.Positive}, {"0", e.Negative}} {
		log.Info().Str("Set", set).Str("Class", class.name).
			Int("TP", class.metrics.TruePos).
			Int("FP", class.metrics.FalsePos).
			Int("FN", class.metrics.FalseNeg).
			Float64("Precision", float64(class.metrics.Precision())).
			Float64("Recall", float64(class.metrics.Recall())).
			Float64("F1", float64(class.metrics.F1Score())).
			Msg("")
	}
	log.Info().Str("Set", set).Int("Samples", e.Count).Float64("Loss", e.Loss).Float64("AUC", e.AUC).
		Float64("MacroF1", e.macroF1()).Msg("")
	if m != nil {
		m.Evaluation(set, e.Loss, e.AUC, float64(e.Positive.F1Score()))
	}
}

func (e evaluation) macroF1() float64 {
	return (float64(e.Positive.F1Score()) + float64(e.Negative.F1Score())) / 2
}

// evaluate scores records in inference mode, one graph per batch.
func evaluate(classifier *model.Classifier, records []*io.DataRecord, observer *evaluationObserver) (evaluation, error) {
	e := evaluation{
		Positive: stats.NewMetricCounter(),
		Negative: stats.NewMetricCounter(),
	}
	scores := make([]float64, 0, len(records))
	labels := make([]bool, 0, len(records))

	g := ag.NewGraph(ag.Rand(rand.NewLockedRand(42)))
	for start := 0; start < len(records); start += evaluationBatchSize {
		end := start + evaluationBatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := io.DataBatch(records[start:end])

		began := time.Now()
		proc := nn.Reify(nn.Context{Graph: g, Mode: nn.Inference}, classifier).(*model.Classifier)
		logits, err := proc.Forward(batch.Samples())
		if err != nil {
			return e, err
		}
		if observer != nil && observer.metrics != nil {
			observer.metrics.ObserveForward(began)
		}

		for i, node := range logits {
			record := batch[i]
			logit := float64(node.ScalarValue())
			probability := sigmoid(logit)
			e.Loss += float64(binaryCrossEntropy(g, node, record.Target).ScalarValue())
			e.count(record.Target, probability)
			scores = append(scores, probability)
			labels = append(labels, record.Target == 1)

			if observer != nil {
				if observer.metrics != nil {
					observer.metrics.ObservePrediction(probability)
				}
				if err := observer.writer.write(record, logit, probability); err != nil {
					return e, err
				}
			}
		}
		g.Clear()
	}
	e.Count = len(records)
	if e.Count > 0 {
		e.Loss /= float64(e.Count)
	}
	e.AUC = rocAUC(scores, labels)
	return e, nil
}

func (e *evaluation) count(target, probability float64) {
	predicted := probability >= DecisionThreshold
	actual := target == 1
	switch {
	case predicted && actual:
		e.Positive.IncTruePos()
		e.Negative.IncTrueNeg()
	case predicted && !actual:
		e.Positive.IncFalsePos()
		e.Negative.IncFalseNeg()
	case !predicted && actual:
		e.Positive.IncFalseNeg()
		e.Negative.IncFalsePos()
	default:
		e.Positive.IncTrueNeg()
		e.Negative.IncTruePos()
	}
}

// rocAUC is the area under the ROC curve, NaN when only one class is present.
func rocAUC(scores []float64, labels []bool) float64 {
	positives := 0
	for _, l := range labels {
		if l {
			positives++
		}
	}
	if positives == 0 || positives == len(labels) {
		return math.NaN()
	}
	y := make([]float64, len(scores))
	classes := make([]bool, len(labels))
	copy(y, scores)
	copy(classes, labels)
	stat.SortWeightedLabeled(y, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	return integrate.Trapezoidal(fpr, tpr)
}
