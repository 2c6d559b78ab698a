package mlp

import (
	"math"

	mat "github.com/nlpodyssey/spago/pkg/mat32"
	"github.com/nlpodyssey/spago/pkg/mat32/rand"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"github.com/nlpodyssey/spago/pkg/ml/initializers"
	"github.com/nlpodyssey/spago/pkg/ml/nn"
	"github.com/nlpodyssey/spago/pkg/ml/nn/linear"
)

var (
	_ nn.Model = &GLULayer{}
	_ nn.Model = &Block{}
)

var SquareRootHalf = mat.Float(math.Sqrt(0.5))

// GLULayer is a dense layer doubling the width followed by a gated linear unit.
type GLULayer struct {
	nn.BaseModel
	Dimension  int
	DenseLayer *linear.Model
}

func newGLULayer(dimension int) *GLULayer {
	return &GLULayer{
		Dimension:  dimension,
		DenseLayer: linear.New(dimension, 2*dimension),
	}
}

func (m *GLULayer) Init(generator *rand.LockedRand) {
	initializers.XavierUniform(m.DenseLayer.W.Value(), initializers.Gain(ag.OpSigmoid), generator)
}

func (m *GLULayer) Forward(x ag.Node) ag.Node {
	return glu(m.Graph(), m.Dimension, m.DenseLayer.Forward(x)[0])
}

func glu(g *ag.Graph, half int, x ag.Node) ag.Node {
	value := g.View(x, 0, 0, half, 1)
	gate := g.View(x, half, 0, half, 1)
	return g.Prod(value, g.Sigmoid(gate))
}

// Block chains two GLU layers, each added to its input and scaled by sqrt(0.5)
// to keep the variance of the residual sum stable.
type Block struct {
	nn.BaseModel
	Layer1 *GLULayer
	Layer2 *GLULayer
}

func newBlock(dimension int) *Block {
	return &Block{
		Layer1: newGLULayer(dimension),
		Layer2: newGLULayer(dimension),
	}
}

func (m *Block) Init(generator *rand.LockedRand) {
	m.Layer1.Init(generator)
	m.Layer2.Init(generator)
}

func (m *Block) Forward(x ag.Node) ag.Node {
	g := m.Graph()
	theta := g.Constant(SquareRootHalf)
	l1 := g.ProdScalar(g.Add(m.Layer1.Forward(x), x), theta)
	return g.ProdScalar(g.Add(m.Layer2.Forward(l1), l1), theta)
}

// Residual projects the input to HiddenDim, applies Layers-2 residual GLU
// blocks and a final dense layer producing the logit.
type Residual struct {
	nn.BaseModel
	Dropout     float64
	InputLayer  *linear.Model
	Blocks      []*Block
	OutputLayer *linear.Model
}

func NewResidual(config Config) *Residual {
	blocks := make([]*Block, config.Layers-2)
	for i := range blocks {
		blocks[i] = newBlock(config.HiddenDim)
	}
	return &Residual{
		Dropout:     config.Dropout,
		InputLayer:  linear.New(config.InputDim, config.HiddenDim),
		Blocks:      blocks,
		OutputLayer: linear.New(config.HiddenDim, 1),
	}
}

func (m *Residual) Init(generator *rand.LockedRand) {
	initializers.XavierUniform(m.InputLayer.W.Value(), initializers.Gain(ag.OpIdentity), generator)
	for _, b := range m.Blocks {
		b.Init(generator)
	}
	initializers.XavierUniform(m.OutputLayer.W.Value(), initializers.Gain(ag.OpSigmoid), generator)
}

func (m *Residual) Forward(x ag.Node) ag.Node {
	g := m.Graph()
	h := m.InputLayer.Forward(x)[0]
	for _, b := range m.Blocks {
		h = dropout(g, m.Mode(), m.Dropout, b.Forward(h))
	}
	return m.OutputLayer.Forward(h)[0]
}
