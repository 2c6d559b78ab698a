// Package mlp provides the feed-forward networks used by the classification
// head. Both variants map an input vector to a single logit.
package mlp

import (
	"encoding/gob"

	mat "github.com/nlpodyssey/spago/pkg/mat32"
	"github.com/nlpodyssey/spago/pkg/mat32/rand"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"github.com/nlpodyssey/spago/pkg/ml/initializers"
	"github.com/nlpodyssey/spago/pkg/ml/nn"
	"github.com/nlpodyssey/spago/pkg/ml/nn/linear"

	"cbfusion/pkg/model/modelerr"
)

var (
	_ Network = &Simple{}
	_ Network = &Residual{}
)

func init() {
	gob.Register(&Simple{})
	gob.Register(&Residual{})
}

type Network interface {
	nn.Model
	Init(generator *rand.LockedRand)
	Forward(x ag.Node) ag.Node
}

type Config struct {
	InputDim  int
	Layers    int
	HiddenDim int
	Dropout   float64
	Residual  bool
}

func New(config Config) (Network, error) {
	switch {
	case config.InputDim <= 0:
		return nil, modelerr.Configuration("mlp input dimension must be positive")
	case config.HiddenDim <= 0:
		return nil, modelerr.Configuration("mlp hidden dimension must be positive")
	case config.Dropout < 0 || config.Dropout >= 1:
		return nil, modelerr.Configuration("mlp dropout %.3f outside [0, 1)", config.Dropout)
	}
	if config.Residual {
		if config.Layers < 2 {
			return nil, modelerr.Configuration("residual mlp needs at least 2 layers, got %d", config.Layers)
		}
		return NewResidual(config), nil
	}
	if config.Layers < 1 {
		return nil, modelerr.Configuration("mlp needs at least 1 layer, got %d", config.Layers)
	}
	return NewSimple(config), nil
}

// Simple is a stack of Layers dense layers with ReLU and dropout in between.
type Simple struct {
	nn.BaseModel
	Dropout float64
	Layers  []*linear.Model
}

func NewSimple(config Config) *Simple {
	layers := make([]*linear.Model, config.Layers)
	in := config.InputDim
	for i := range layers {
		out := config.HiddenDim
		if i == len(layers)-1 {
			out = 1
		}
		layers[i] = linear.New(in, out)
		in = out
	}
	return &Simple{Dropout: config.Dropout, Layers: layers}
}

func (m *Simple) Init(generator *rand.LockedRand) {
	for i, l := range m.Layers {
		gain := initializers.Gain(ag.OpReLU)
		if i == len(m.Layers)-1 {
			gain = initializers.Gain(ag.OpSigmoid)
		}
		initializers.XavierUniform(l.W.Value(), gain, generator)
	}
}

func (m *Simple) Forward(x ag.Node) ag.Node {
	g := m.Graph()
	last := len(m.Layers) - 1
	for i, l := range m.Layers {
		x = l.Forward(x)[0]
		if i < last {
			x = dropout(g, m.Mode(), m.Dropout, g.ReLU(x))
		}
	}
	return x
}

func dropout(g *ag.Graph, mode nn.ProcessingMode, p float64, x ag.Node) ag.Node {
	if mode != nn.Training || p == 0 {
		return x
	}
	return g.Dropout(x, mat.Float(p))
}
