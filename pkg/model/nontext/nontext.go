// Package nontext turns the flat market-index feature vector into a sequence of
// per-time-step embeddings. The categorical block (which index the sample is
// about) is embedded once and repeated over every step, so it conditions the
// whole convolution over the lag series.
package nontext

import (
	mat "github.com/nlpodyssey/spago/pkg/mat32"
	"github.com/nlpodyssey/spago/pkg/mat32/rand"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"github.com/nlpodyssey/spago/pkg/ml/initializers"
	"github.com/nlpodyssey/spago/pkg/ml/nn"
	"github.com/nlpodyssey/spago/pkg/ml/nn/linear"

	"cbfusion/pkg/model/modelerr"
)

var (
	_ nn.Model = &Network{}
)

type Network struct {
	nn.BaseModel
	Config
	CategoryEmbedding *linear.Model
	Convolutions      []*Conv1D
}

func New(config Config) (*Network, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	convolutions := make([]*Conv1D, config.Layers)
	in := config.InputChannels
	for i := range convolutions {
		convolutions[i] = NewConv1D(in, config.OutputDim, config.KernelSize)
		in = config.OutputDim
	}
	return &Network{
		Config:            config,
		CategoryEmbedding: linear.New(config.Categories(), config.InputChannels-1),
		Convolutions:      convolutions,
	}, nil
}

func (m *Network) Init(generator *rand.LockedRand) {
	initializers.XavierUniform(m.CategoryEmbedding.W.Value(), initializers.Gain(ag.OpIdentity), generator)
	for _, c := range m.Convolutions {
		c.Init(generator)
	}
}

// Check validates one raw feature vector.
func (m *Network) Check(features []float64) error {
	return modelerr.CheckSize("nontextual features", m.InputDim, len(features))
}

// Forward maps one InputDim-long feature vector to SeriesLength vectors of OutputDim.
func (m *Network) Forward(x ag.Node) []ag.Node {
	modelerr.MustSize("nontextual features", m.InputDim, x.Value().Rows())
	g := m.Graph()

	series := g.View(x, 0, 0, m.SeriesLength, 1)
	category := g.View(x, m.SeriesLength, 0, m.Categories(), 1)
	embedded := m.CategoryEmbedding.Forward(category)[0]

	steps := make([]ag.Node, m.SeriesLength)
	for t := range steps {
		steps[t] = g.Concat(embedded, g.AtVec(series, t))
	}

	last := len(m.Convolutions) - 1
	for i, conv := range m.Convolutions {
		steps = conv.Forward(steps)
		if i == last {
			break
		}
		for t := range steps {
			steps[t] = g.ReLU(steps[t])
			if m.Mode() == nn.Training && m.Dropout > 0 {
				steps[t] = g.Dropout(steps[t], mat.Float(m.Dropout))
			}
		}
	}
	return steps
}

// NewInput wraps a raw feature vector as a graph constant.
func NewInput(g *ag.Graph, features []float64) ag.Node {
	data := make([]mat.Float, len(features))
	for i, v := range features {
		data[i] = mat.Float(v)
	}
	return g.NewVariable(mat.NewVecDense(data), false)
}
