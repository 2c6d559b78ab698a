// Package recurrent implements a bidirectional GRU followed by context-attention
// pooling, encoding an ordered sequence into one fixed-size vector.
package recurrent

import (
	"encoding/gob"
	"fmt"

	mat "github.com/nlpodyssey/spago/pkg/mat32"
	"github.com/nlpodyssey/spago/pkg/mat32/rand"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"github.com/nlpodyssey/spago/pkg/ml/initializers"
	"github.com/nlpodyssey/spago/pkg/ml/nn"
	"github.com/nlpodyssey/spago/pkg/ml/nn/birnn"
	"github.com/nlpodyssey/spago/pkg/ml/nn/recurrent/gru"

	"cbfusion/pkg/model/attention"
	"cbfusion/pkg/model/modelerr"
)

var (
	_ nn.Model = &Encoder{}
)

func init() {
	gob.Register(&gru.Model{})
}

type Encoder struct {
	nn.BaseModel
	InputDim  int
	HiddenDim int
	Dropout   float64
	BiGRU     *birnn.Model
	Attention *attention.ContextAttention
}

// New returns an encoder reading inputDim-wide steps and producing 2*hiddenDim-wide vectors.
func New(inputDim, hiddenDim int, dropout float64) (*Encoder, error) {
	if inputDim <= 0 || hiddenDim <= 0 {
		return nil, modelerr.Configuration("recurrent encoder needs positive sizes, got input %d hidden %d", inputDim, hiddenDim)
	}
	if dropout < 0 || dropout >= 1 {
		return nil, modelerr.Configuration("recurrent encoder dropout %.3f outside [0, 1)", dropout)
	}
	return &Encoder{
		InputDim:  inputDim,
		HiddenDim: hiddenDim,
		Dropout:   dropout,
		BiGRU:     birnn.New(gru.New(inputDim, hiddenDim), gru.New(inputDim, hiddenDim), birnn.Concat),
		Attention: attention.NewContextAttention(2 * hiddenDim),
	}, nil
}

func (m *Encoder) OutputDim() int {
	return 2 * m.HiddenDim
}

func (m *Encoder) Init(generator *rand.LockedRand) {
	gain := initializers.Gain(ag.OpSigmoid)
	nn.ForEachParam(m.BiGRU, func(param nn.Param) {
		if param.Type() == nn.Weights {
			initializers.XavierUniform(param.Value(), gain, generator)
		}
	})
	m.Attention.Init(generator)
}

// Encode reduces xs to one vector; mask follows the attention.ContextAttention convention.
func (m *Encoder) Encode(xs []ag.Node, mask []bool) ag.Node {
	for i, x := range xs {
		if x.Value().Rows() != m.InputDim {
			panic(&modelerr.ShapeError{What: fmt.Sprintf("recurrent step %d", i), Expected: m.InputDim, Actual: x.Value().Rows()})
		}
	}
	g := m.Graph()
	m.resetStates()
	hidden := m.BiGRU.Forward(xs...)
	if m.Mode() == nn.Training && m.Dropout > 0 {
		for i := range hidden {
			hidden[i] = g.Dropout(hidden[i], mat.Float(m.Dropout))
		}
	}
	return m.Attention.Forward(hidden, mask).Pooled
}

// resetStates drops the hidden states both GRU directions carry over from the
// previous Encode call, so every sequence starts from an empty state.
func (m *Encoder) resetStates() {
	for _, direction := range []nn.StandardModel{m.BiGRU.Positive, m.BiGRU.Negative} {
		direction.(*gru.Model).States = nil
	}
}
