// Package attention provides the soft-attention reductions used by the classifier:
// context-attention pooling of a sequence and query-driven vector attention.
package attention

import (
	mat "github.com/nlpodyssey/spago/pkg/mat32"
	"github.com/nlpodyssey/spago/pkg/mat32/rand"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"github.com/nlpodyssey/spago/pkg/ml/initializers"
	"github.com/nlpodyssey/spago/pkg/ml/nn"
	"github.com/nlpodyssey/spago/pkg/ml/nn/linear"
	"github.com/rs/zerolog/log"

	"cbfusion/pkg/model/modelerr"
)

var (
	_ nn.Model = &ContextAttention{}
)

// Epsilon keeps the normalisation finite when every score is masked out or
// collapses towards zero.
const Epsilon = 1e-9

// InitRange bounds the uniform initialisation of the context attention weights.
const InitRange = 0.1

// Result holds a pooled vector together with the weight given to each step.
type Result struct {
	Pooled       ag.Node
	Coefficients []ag.Node
}

// ContextAttention reduces a sequence to one vector, weighting each step by its
// similarity to a learned context vector:
//   u_i = tanh(W x_i + b), a_i = exp(u·u_i), alpha_i = a_i / (sum_j a_j + eps)
// "Hierarchical Attention Networks for Document Classification" - https://www.cs.cmu.edu/~diyiy/docs/naacl16.pdf
type ContextAttention struct {
	nn.BaseModel
	Size       int
	Projection *linear.Model
	Context    *linear.Model
}

// NewContextAttention returns a pooling layer over size-wide steps.
func NewContextAttention(size int) *ContextAttention {
	return &ContextAttention{
		Size:       size,
		Projection: linear.New(size, size),
		Context:    linear.New(size, 1, linear.BiasGrad(false)),
	}
}

// Init draws all weights from uniform(-InitRange, InitRange).
func (m *ContextAttention) Init(generator *rand.LockedRand) {
	initializers.Uniform(m.Projection.W.Value(), -InitRange, InitRange, generator)
	initializers.Uniform(m.Projection.B.Value(), -InitRange, InitRange, generator)
	initializers.Uniform(m.Context.W.Value(), -InitRange, InitRange, generator)
}

// Forward pools xs. A nil mask marks every step as valid; otherwise steps with a
// false mask entry get a zero weight. A fully masked sequence pools to the zero vector.
func (m *ContextAttention) Forward(xs []ag.Node, mask []bool) Result {
	if len(xs) == 0 {
		panic(&modelerr.ShapeError{What: "attention sequence", Expected: 1, Actual: 0})
	}
	if mask != nil {
		modelerr.MustSize("attention mask", len(xs), len(mask))
	}
	g := m.Graph()

	projected := m.Projection.Forward(xs...)
	scores := make([]ag.Node, len(xs))
	var total ag.Node
	valid := 0
	for i := range xs {
		if mask != nil && !mask[i] {
			scores[i] = g.NewScalar(0)
			continue
		}
		valid++
		scores[i] = g.Exp(m.Context.Forward(g.Tanh(projected[i]))[0])
		if total == nil {
			total = scores[i]
		} else {
			total = g.Add(total, scores[i])
		}
	}
	if valid == 0 {
		log.Debug().Int("Steps", len(xs)).Msg("attention pooling over a fully masked sequence")
		total = g.NewScalar(0)
	}
	denominator := g.AddScalar(total, g.Constant(mat.Float(Epsilon)))

	coefficients := make([]ag.Node, len(xs))
	var pooled ag.Node
	for i, x := range xs {
		coefficients[i] = g.Div(scores[i], denominator)
		weighted := g.ProdScalar(x, coefficients[i])
		if pooled == nil {
			pooled = weighted
		} else {
			pooled = g.Add(pooled, weighted)
		}
	}
	return Result{Pooled: pooled, Coefficients: coefficients}
}
