package pkg

import (
	"math"

	mat "github.com/nlpodyssey/spago/pkg/mat32"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"github.com/rs/zerolog/log"

	"cbfusion/pkg/io"
	"cbfusion/pkg/metrics"
	"cbfusion/pkg/model"
	"cbfusion/pkg/model/corpus"
)

type NoopWriter struct{}

func (x NoopWriter) Write(p []byte) (n int, err error) {
	return len(p), nil
}

func printDataErrors(errors []io.DataError, m *metrics.Metrics) {
	for _, err := range errors {
		log.Error().Int("Line", err.Line).Msgf("Error parsing data: %s", err.Error)
	}
	if m != nil {
		m.DataErrors.Add(float64(len(errors)))
	}
}

// dataParameters derives which parts of the input files a classifier reads.
func dataParameters(config model.Config, dataFile, textFile, targetColumn string) io.DataParameters {
	institutions := 0
	switch {
	case config.Method == corpus.MethodNone:
	case config.Separate:
		institutions = len(corpus.Institutions)
	default:
		institutions = 1
	}
	return io.DataParameters{
		DataFile:       dataFile,
		TextFile:       textFile,
		IDColumn:       idColumn,
		TargetColumn:   targetColumn,
		Institutions:   institutions,
		WithoutNontext: config.Head.NontextDim == 0,
	}
}

const idColumn = "ID"

// binaryCrossEntropy is the numerically stable cross-entropy of a logit z
// against a 0/1 target y: max(z, 0) - z*y + log(1 + exp(-|z|)).
func binaryCrossEntropy(g *ag.Graph, logit ag.Node, target float64) ag.Node {
	softplus := g.Log(g.AddScalar(g.Exp(g.Neg(g.Abs(logit))), g.Constant(1)))
	return g.Add(g.Sub(g.ReLU(logit), g.ProdScalar(logit, g.Constant(mat.Float(target)))), softplus)
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
