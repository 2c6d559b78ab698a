package attention

import (
	"github.com/nlpodyssey/spago/pkg/mat32/rand"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"github.com/nlpodyssey/spago/pkg/ml/initializers"
	"github.com/nlpodyssey/spago/pkg/ml/nn"
	"github.com/nlpodyssey/spago/pkg/ml/nn/linear"

	"cbfusion/pkg/model/modelerr"
)

var (
	_ nn.Model = &VectorAttention{}
)

// VectorAttention attends over a sequence with a single query vector using an
// additive compatibility score e_t = v·tanh(K s_t + Q q + b). The query selects
// which steps of the sequence contribute to the fused output.
type VectorAttention struct {
	nn.BaseModel
	Size  int
	Keys  *linear.Model
	Query *linear.Model
	Score *linear.Model
}

// NewVectorAttention returns an attention layer whose query and steps are both size wide.
func NewVectorAttention(size int) *VectorAttention {
	return &VectorAttention{
		Size:  size,
		Keys:  linear.New(size, size, linear.BiasGrad(false)),
		Query: linear.New(size, size),
		Score: linear.New(size, 1, linear.BiasGrad(false)),
	}
}

// Init applies Xavier initialisation to every projection.
func (m *VectorAttention) Init(generator *rand.LockedRand) {
	gain := initializers.Gain(ag.OpTanh)
	initializers.XavierUniform(m.Keys.W.Value(), gain, generator)
	initializers.XavierUniform(m.Query.W.Value(), gain, generator)
	initializers.XavierUniform(m.Score.W.Value(), initializers.Gain(ag.OpIdentity), generator)
}

// Forward returns the softmax-weighted sum of the sequence steps.
func (m *VectorAttention) Forward(sequence []ag.Node, query ag.Node) Result {
	if len(sequence) == 0 {
		panic(&modelerr.ShapeError{What: "vector attention sequence", Expected: 1, Actual: 0})
	}
	modelerr.MustSize("attention query", m.Size, query.Value().Rows())
	g := m.Graph()

	q := m.Query.Forward(query)[0]
	keys := m.Keys.Forward(sequence...)
	hidden := make([]ag.Node, len(keys))
	for t, k := range keys {
		hidden[t] = g.Tanh(g.Add(k, q))
	}
	weights := g.Softmax(g.Concat(m.Score.Forward(hidden...)...))

	coefficients := make([]ag.Node, len(sequence))
	var fused ag.Node
	for t, s := range sequence {
		coefficients[t] = g.AtVec(weights, t)
		weighted := g.ProdScalar(s, coefficients[t])
		if fused == nil {
			fused = weighted
		} else {
			fused = g.Add(fused, weighted)
		}
	}
	return Result{Pooled: fused, Coefficients: coefficients}
}
