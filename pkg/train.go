package pkg

import (
	"fmt"
	mrand "math/rand"
	"os"

	mat "github.com/nlpodyssey/spago/pkg/mat32"
	"github.com/nlpodyssey/spago/pkg/mat32/rand"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"github.com/nlpodyssey/spago/pkg/ml/nn"
	"github.com/nlpodyssey/spago/pkg/ml/optimizers/gd"
	"github.com/nlpodyssey/spago/pkg/ml/optimizers/gd/adam"
	"github.com/rs/zerolog/log"

	"cbfusion/pkg/io"
	"cbfusion/pkg/metrics"
	"cbfusion/pkg/model"
	"cbfusion/pkg/model/transformer"
)

type TrainingParameters struct {
	BatchSize      int
	NumEpochs      int
	LearningRate   float64
	GradientClip   float64
	Holdout        float64
	ReportInterval int
	RndSeed        uint64
	InputDropout   float64
}

type Trainer struct {
	params    TrainingParameters
	optimizer *gd.GradientDescent
	model     *model.Classifier
	rnd       *rand.LockedRand
	dropout   *DropoutPreprocessor
	metrics   *metrics.Metrics
}

// Train fits a classifier on the labelled rows of dataFile joined with the
// texts of textFile and saves it to outputFileName.
func Train(dataFile, textFile, outputFileName, targetColumn string, config model.Config, provider transformer.Provider,
	trainingParams TrainingParameters, m *metrics.Metrics) error {

	classifier, err := model.New(config, provider)
	if err != nil {
		return fmt.Errorf("error building model: %w", err)
	}

	metaData, data, dataErrors, err := io.LoadData(dataParameters(config, dataFile, textFile, targetColumn), nil)
	if err != nil {
		return fmt.Errorf("error reading training data: %w", err)
	}
	printDataErrors(dataErrors, m)
	if len(data) == 0 {
		return fmt.Errorf("no data to train")
	}
	if err := classifier.Validate(io.DataBatch(data).Samples()); err != nil {
		return fmt.Errorf("invalid training data: %w", err)
	}

	t := &Trainer{
		params:  trainingParams,
		model:   classifier,
		rnd:     rand.NewLockedRand(trainingParams.RndSeed),
		metrics: m,
	}
	t.model.Init(t.rnd)
	if trainingParams.InputDropout > 0 {
		t.dropout = NewDropoutPreprocessor(trainingParams.InputDropout, mrand.New(mrand.NewSource(int64(trainingParams.RndSeed))),
			config.Nontext.SeriesLength)
	}

	updaterConfig := adam.NewDefaultConfig()
	updaterConfig.StepSize = mat.Float(trainingParams.LearningRate)
	updater := adam.New(updaterConfig)
	var options []gd.Option
	if trainingParams.GradientClip > 0 {
		options = append(options, gd.ClipGradByValue(mat.Float(trainingParams.GradientClip)))
	}
	t.optimizer = gd.NewOptimizer(updater, nn.NewDefaultParamsIterator(t.model), options...)

	dataset := io.NewDataSet(data, trainingParams.BatchSize, int64(trainingParams.RndSeed))
	trainSet, validationSet := dataset, (*io.DataSet)(nil)
	if trainingParams.Holdout > 0 && dataset.Size() > 1 {
		trainSet, validationSet = dataset.Split(trainingParams.Holdout)
	}
	log.Info().Int("Train", trainSet.Size()).Int("Validation", setSize(validationSet)).Msg("Loaded data")

	for epoch := 0; epoch < trainingParams.NumEpochs; epoch++ {
		loss, err := t.trainEpoch(epoch, trainSet)
		if err != nil {
			return err
		}
		log.Info().Int("Epoch", epoch).Float64("Loss", loss).Msg("Finished epoch")
		if m != nil {
			m.EpochsTotal.Inc()
			m.TrainingLoss.Set(loss)
		}
		if validationSet != nil && validationSet.Size() > 0 {
			result, err := evaluate(t.model, validationSet.Records(), nil)
			if err != nil {
				return err
			}
			result.log("validation", m)
		}
	}

	saved := model.Model{
		MetaData:   metaData,
		Classifier: t.model,
	}
	outputFile, err := os.Create(outputFileName)
	if err != nil {
		return fmt.Errorf("error creating output file %s: %w", outputFileName, err)
	}
	defer outputFile.Close()
	if err := io.SaveModel(&saved, outputFile); err != nil {
		return fmt.Errorf("error saving model to %s: %w", outputFileName, err)
	}

	result, err := evaluate(t.model, trainSet.Records(), nil)
	if err != nil {
		return err
	}
	result.log("train", m)
	return nil
}

func (t *Trainer) trainEpoch(epoch int, data *io.DataSet) (float64, error) {
	t.optimizer.IncEpoch()
	data.ResetOrder(io.RandomOrder)
	total, count := 0.0, 0
	for i, batch := 0, data.Next(); len(batch) > 0; i, batch = i+1, data.Next() {
		loss, err := t.trainBatch(batch)
		if err != nil {
			return 0, fmt.Errorf("epoch %d batch %d: %w", epoch, i, err)
		}
		t.optimizer.Optimize()
		if t.metrics != nil {
			t.metrics.BatchesTotal.Inc()
		}
		if t.params.ReportInterval > 0 && i%t.params.ReportInterval == 0 {
			log.Debug().Int("Epoch", epoch).Int("Batch", i).Float64("Loss", loss).Msg("")
		}
		total += loss * float64(len(batch))
		count += len(batch)
	}
	return total / float64(count), nil
}

func (t *Trainer) trainBatch(batch io.DataBatch) (float64, error) {
	t.optimizer.IncBatch()

	g := ag.NewGraph(ag.Rand(t.rnd))
	defer g.Clear()
	proc := nn.Reify(nn.Context{Graph: g, Mode: nn.Training}, t.model).(*model.Classifier)

	samples := batch.Samples()
	if t.dropout != nil {
		samples = t.dropout.process(samples)
	}
	logits, err := proc.Forward(samples)
	if err != nil {
		return 0, err
	}

	var loss ag.Node
	for i, logit := range logits {
		example := binaryCrossEntropy(g, logit, batch[i].Target)
		if loss == nil {
			loss = example
		} else {
			loss = g.Add(loss, example)
		}
	}
	loss = g.DivScalar(loss, g.Constant(mat.Float(len(batch))))

	g.Backward(loss)
	return float64(loss.ScalarValue()), nil
}

func setSize(ds *io.DataSet) int {
	if ds == nil {
		return 0
	}
	return ds.Size()
}
