// Package transformer implements the BERT-style text encoder whose summary
// token representation feeds the document encoder.
package transformer

import (
	"fmt"
	"math"

	mat "github.com/nlpodyssey/spago/pkg/mat32"
	"github.com/nlpodyssey/spago/pkg/mat32/rand"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"github.com/nlpodyssey/spago/pkg/ml/initializers"
	"github.com/nlpodyssey/spago/pkg/ml/nn"
	"github.com/nlpodyssey/spago/pkg/ml/nn/linear"
	"github.com/nlpodyssey/spago/pkg/ml/nn/normalization/layernorm"

	"cbfusion/pkg/model/modelerr"
)

var (
	_ nn.Model = &Model{}
	_ nn.Model = &Layer{}
)

const embeddingInitRange = 0.1

type Model struct {
	nn.BaseModel
	Config
	// Pretrained is set on models restored from a checkpoint; Init leaves them untouched.
	Pretrained         bool
	WordEmbeddings     nn.Param `spago:"type:weights"`
	PositionEmbeddings nn.Param `spago:"type:weights"`
	EmbeddingsNorm     *layernorm.Model
	Layers             []*Layer
}

func New(config Config) *Model {
	layers := make([]*Layer, config.NumHiddenLayers)
	for i := range layers {
		layers[i] = newLayer(config)
	}
	return &Model{
		Config:             config,
		WordEmbeddings:     nn.NewParam(mat.NewEmptyDense(config.HiddenSize, config.VocabularySize)),
		PositionEmbeddings: nn.NewParam(mat.NewEmptyDense(config.HiddenSize, config.MaxPositions)),
		EmbeddingsNorm:     layernorm.New(config.HiddenSize),
		Layers:             layers,
	}
}

func (m *Model) Init(generator *rand.LockedRand) {
	if m.Pretrained {
		return
	}
	initializers.Uniform(m.WordEmbeddings.Value(), -embeddingInitRange, embeddingInitRange, generator)
	initializers.Uniform(m.PositionEmbeddings.Value(), -embeddingInitRange, embeddingInitRange, generator)
	initializers.Constant(m.EmbeddingsNorm.W.Value(), 1)
	for _, l := range m.Layers {
		l.Init(generator)
	}
}

// CheckTokens reports token ids outside the vocabulary and sequences longer
// than the position table.
func (m *Model) CheckTokens(ids []int) error {
	if len(ids) > m.MaxPositions {
		return &modelerr.ShapeError{What: "token sequence", Expected: m.MaxPositions, Actual: len(ids)}
	}
	for i, id := range ids {
		if id < 0 || id >= m.VocabularySize {
			return fmt.Errorf("%w: token %d at position %d outside vocabulary of %d", modelerr.ErrShape, id, i, m.VocabularySize)
		}
	}
	return nil
}

// Encode returns the last hidden state of every attended position, in order.
// Masked positions are neither attended to nor returned, so the result is empty
// when the mask has no true entry.
func (m *Model) Encode(ids []int, mask []bool) []ag.Node {
	modelerr.MustSize("attention mask", len(ids), len(mask))
	g := m.Graph()

	var xs []ag.Node
	for position, id := range ids {
		if !mask[position] {
			continue
		}
		// ColView yields a row vector; the encoder works on columns.
		word := g.T(g.ColView(m.WordEmbeddings, id))
		xs = append(xs, g.Add(word, g.T(g.ColView(m.PositionEmbeddings, position))))
	}
	if len(xs) == 0 {
		return nil
	}
	xs = m.dropout(m.EmbeddingsNorm.Forward(xs...))
	for _, l := range m.Layers {
		xs = l.Forward(xs)
	}
	return xs
}

func (m *Model) dropout(xs []ag.Node) []ag.Node {
	return dropout(m.Graph(), m.Mode(), m.Dropout, xs)
}

func dropout(g *ag.Graph, mode nn.ProcessingMode, p float64, xs []ag.Node) []ag.Node {
	if mode != nn.Training || p == 0 {
		return xs
	}
	for i := range xs {
		xs[i] = g.Dropout(xs[i], mat.Float(p))
	}
	return xs
}

// Layer is one post-norm encoder block: multi-head self-attention followed by a
// GELU feed-forward network, each wrapped in a residual connection.
type Layer struct {
	nn.BaseModel
	NumHeads          int
	Dropout           float64
	Query             *linear.Model
	Key               *linear.Model
	Value             *linear.Model
	AttentionOutput   *linear.Model
	AttentionNorm     *layernorm.Model
	Intermediate      *linear.Model
	FeedForwardOutput *linear.Model
	OutputNorm        *layernorm.Model
}

func newLayer(config Config) *Layer {
	h := config.HiddenSize
	return &Layer{
		NumHeads:          config.NumAttentionHeads,
		Dropout:           config.Dropout,
		Query:             linear.New(h, h),
		Key:               linear.New(h, h),
		Value:             linear.New(h, h),
		AttentionOutput:   linear.New(h, h),
		AttentionNorm:     layernorm.New(h),
		Intermediate:      linear.New(h, config.IntermediateSize),
		FeedForwardOutput: linear.New(config.IntermediateSize, h),
		OutputNorm:        layernorm.New(h),
	}
}

func (l *Layer) Init(generator *rand.LockedRand) {
	gain := initializers.Gain(ag.OpIdentity)
	for _, dense := range []*linear.Model{l.Query, l.Key, l.Value, l.AttentionOutput, l.Intermediate, l.FeedForwardOutput} {
		initializers.XavierUniform(dense.W.Value(), gain, generator)
	}
	initializers.Constant(l.AttentionNorm.W.Value(), 1)
	initializers.Constant(l.OutputNorm.W.Value(), 1)
}

func (l *Layer) Forward(xs []ag.Node) []ag.Node {
	g := l.Graph()

	attended := dropout(g, l.Mode(), l.Dropout, l.AttentionOutput.Forward(l.selfAttention(xs)...))
	for i := range xs {
		attended[i] = g.Add(xs[i], attended[i])
	}
	attended = l.AttentionNorm.Forward(attended...)

	intermediate := l.Intermediate.Forward(attended...)
	for i := range intermediate {
		intermediate[i] = g.GELU(intermediate[i])
	}
	out := dropout(g, l.Mode(), l.Dropout, l.FeedForwardOutput.Forward(intermediate...))
	for i := range out {
		out[i] = g.Add(attended[i], out[i])
	}
	return l.OutputNorm.Forward(out...)
}

// selfAttention is scaled dot-product attention computed head by head over
// views of the projected vectors.
func (l *Layer) selfAttention(xs []ag.Node) []ag.Node {
	g := l.Graph()
	queries := l.Query.Forward(xs...)
	keys := l.Key.Forward(xs...)
	values := l.Value.Forward(xs...)

	size := queries[0].Value().Rows()
	headSize := size / l.NumHeads
	scale := g.Constant(mat.Float(1 / math.Sqrt(float64(headSize))))

	context := make([]ag.Node, len(xs))
	for i := range xs {
		heads := make([]ag.Node, l.NumHeads)
		for h := range heads {
			offset := h * headSize
			q := g.View(queries[i], offset, 0, headSize, 1)
			scores := make([]ag.Node, len(xs))
			for j := range xs {
				scores[j] = g.ProdScalar(g.Dot(q, g.View(keys[j], offset, 0, headSize, 1)), scale)
			}
			weights := g.Softmax(g.Concat(scores...))
			var head ag.Node
			for j := range xs {
				weighted := g.ProdScalar(g.View(values[j], offset, 0, headSize, 1), g.AtVec(weights, j))
				if head == nil {
					head = weighted
				} else {
					head = g.Add(head, weighted)
				}
			}
			heads[h] = head
		}
		context[i] = g.Concat(heads...)
	}
	return context
}
