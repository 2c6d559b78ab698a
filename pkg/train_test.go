package pkg

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/nlpodyssey/spago/pkg/mat32/rand"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"github.com/stretchr/testify/require"

	"cbfusion/pkg/metrics"
	"cbfusion/pkg/model"
	"cbfusion/pkg/model/head"
	"cbfusion/pkg/model/transformer"
	"cbfusion/pkg/store"
)

type testRand struct {
	values []float32
	index  int
}

func (t *testRand) Float32() float32 {
	v := t.values[t.index]
	t.index = (t.index + 1) % len(t.values)
	return v
}

func TestInputDropout(t *testing.T) {
	tr := testRand{
		values: []float32{0.0, 0.09, 0.101, 1.0, 0.0, 0.0, 1.0, 1.0, 0.0, 0.0},
	}
	dropout := NewDropoutPreprocessor(0.1, &tr, 10)
	features := make([]float64, 19)
	for i := range features {
		features[i] = 100
	}
	samples := []model.Sample{{Nontext: features}, {Nontext: features}, {}}

	output := dropout.process(samples)
	require.Equal(t, len(samples), len(output))
	require.Nil(t, output[2].Nontext)
	require.Nil(t, dropout.CurrentMasks[2])

	for i := range output[:2] {
		require.Equal(t, []bool{false, false, true, true, false, false, true, true, false, false}, dropout.CurrentMasks[i])
		require.Equal(t, []float64{0, 0, 100, 100, 0, 0, 100, 100, 0, 0}, output[i].Nontext[:10])
		for _, v := range output[i].Nontext[10:] {
			require.Equal(t, 100.0, v)
		}
	}
	require.Equal(t, 100.0, features[0])
}

func TestBinaryCrossEntropy(t *testing.T) {
	g := ag.NewGraph(ag.Rand(rand.NewLockedRand(42)))
	tests := []struct {
		logit    float32
		target   float64
		expected float64
	}{
		{logit: 0, target: 1, expected: math.Log(2)},
		{logit: 0, target: 0, expected: math.Log(2)},
		{logit: -2, target: 0, expected: math.Log(1 + math.Exp(-2))},
		{logit: -2, target: 1, expected: 2 + math.Log(1+math.Exp(-2))},
		{logit: 30, target: 1, expected: 0},
	}
	for _, tt := range tests {
		loss := binaryCrossEntropy(g, g.NewScalar(tt.logit), tt.target)
		require.InDelta(t, tt.expected, float64(loss.ScalarValue()), 1e-5)
	}
}

func TestRocAUC(t *testing.T) {
	require.InDelta(t, 1.0, rocAUC([]float64{0.9, 0.1, 0.8, 0.2}, []bool{true, false, true, false}), 1e-9)
	require.InDelta(t, 0.0, rocAUC([]float64{0.1, 0.9, 0.2, 0.8}, []bool{true, false, true, false}), 1e-9)
	require.InDelta(t, 0.5, rocAUC([]float64{0.5, 0.5, 0.5, 0.5}, []bool{true, false, true, false}), 1e-9)
	require.True(t, math.IsNaN(rocAUC([]float64{0.3, 0.4}, []bool{true, true})))
}

const testSeqLen = 6

func tinyConfig() model.Config {
	config := model.DefaultConfig()
	config.TextEncoder = transformer.Config{
		VocabularySize:    30,
		HiddenSize:        4,
		NumAttentionHeads: 2,
		NumHiddenLayers:   1,
		IntermediateSize:  8,
		MaxPositions:      testSeqLen,
	}
	config.Corpus.SequenceLength = testSeqLen
	config.Corpus.EmbeddingDim = 3
	config.Nontext.InputChannels = 4
	config.Nontext.Layers = 2
	config.Head = head.Config{CorpusEmbDim: 6, NontextDim: 19, Layers: 2, HiddenDim: 4}
	return config
}

func writeTinyData(t *testing.T, dir string, rows int) (string, string) {
	t.Helper()
	var features, texts strings.Builder
	features.WriteString("ID,Label," + strings.Join(model.NontextualColumns, ",") + "\n")
	for i := 0; i < rows; i++ {
		label := i % 2
		values := []string{fmt.Sprintf("s%d", i), strconv.Itoa(label)}
		for j := 0; j < 10; j++ {
			values = append(values, strconv.FormatFloat(float64(label)-0.5+0.01*float64(j), 'f', -1, 64))
		}
		for j := 0; j < 9; j++ {
			if j == i%9 {
				values = append(values, "1")
			} else {
				values = append(values, "0")
			}
		}
		features.WriteString(strings.Join(values, ",") + "\n")

		c := fmt.Sprintf(`{"tokens": [[1, %d, %d, 2, 0, 0], [1, %d, 2, 0, 0, 0]], "masks": [[1, 1, 1, 1, 0, 0], [1, 1, 1, 0, 0, 0]]}`,
			3+i%20, 4+label, 5+i%7)
		fmt.Fprintf(&texts, `{"id": "s%d", "ecb": %s, "fed": %s}`+"\n", i, c, c)
	}
	featureFile := filepath.Join(dir, "features.csv")
	textFile := filepath.Join(dir, "text.jsonl")
	require.NoError(t, os.WriteFile(featureFile, []byte(features.String()), 0o644))
	require.NoError(t, os.WriteFile(textFile, []byte(texts.String()), 0o644))
	return featureFile, textFile
}

func TestTrainAndTest(t *testing.T) {
	dir := t.TempDir()
	featureFile, textFile := writeTinyData(t, dir, 6)
	modelFile := filepath.Join(dir, "model.bin")
	m := metrics.New()

	err := Train(featureFile, textFile, modelFile, "Label", tinyConfig(), nil, TrainingParameters{
		BatchSize:      2,
		NumEpochs:      2,
		LearningRate:   0.01,
		GradientClip:   5,
		Holdout:        0.34,
		ReportInterval: 1,
		RndSeed:        7,
		InputDropout:   0.1,
	}, m)
	require.NoError(t, err)
	_, err = os.Stat(modelFile)
	require.NoError(t, err)

	predictionsFile := filepath.Join(dir, "predictions.csv")
	dbFile := filepath.Join(dir, "predictions.db")
	err = Test(TestParameters{
		ModelFile:  modelFile,
		DataFile:   featureFile,
		TextFile:   textFile,
		OutputFile: predictionsFile,
		OutputDB:   dbFile,
		Run:        "tiny",
	}, m)
	require.NoError(t, err)

	f, err := os.Open(predictionsFile)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 7)
	require.Equal(t, []string{"id", "target", "logit", "probability", "predicted"}, rows[0])
	for _, row := range rows[1:] {
		p, err := strconv.ParseFloat(row[3], 64)
		require.NoError(t, err)
		require.True(t, p >= 0 && p <= 1)
	}

	db, err := store.Open(dbFile)
	require.NoError(t, err)
	defer db.Close()
	predictions, err := db.List("tiny")
	require.NoError(t, err)
	require.Len(t, predictions, 6)
}

func TestTrain_Errors(t *testing.T) {
	dir := t.TempDir()
	featureFile, textFile := writeTinyData(t, dir, 2)
	params := TrainingParameters{BatchSize: 2, NumEpochs: 1, LearningRate: 0.01, RndSeed: 1}

	config := tinyConfig()
	config.Head.CorpusEmbDim = 5
	err := Train(featureFile, textFile, filepath.Join(dir, "model.bin"), "Label", config, nil, params, nil)
	require.Error(t, err)

	err = Train(featureFile, textFile, filepath.Join(dir, "model.bin"), "Missing", tinyConfig(), nil, params, nil)
	require.Error(t, err)

	empty := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(empty, []byte("ID,Label,"+strings.Join(model.NontextualColumns, ",")+"\n"), 0o644))
	err = Train(empty, textFile, filepath.Join(dir, "model.bin"), "Label", tinyConfig(), nil, params, nil)
	require.Error(t, err)
}

func TestTest_MissingModel(t *testing.T) {
	err := Test(TestParameters{ModelFile: filepath.Join(t.TempDir(), "missing.bin")}, nil)
	require.Error(t, err)
}
