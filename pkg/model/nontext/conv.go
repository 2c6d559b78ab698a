package nontext

import (
	mat "github.com/nlpodyssey/spago/pkg/mat32"
	"github.com/nlpodyssey/spago/pkg/mat32/rand"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"github.com/nlpodyssey/spago/pkg/ml/initializers"
	"github.com/nlpodyssey/spago/pkg/ml/nn"
	"github.com/nlpodyssey/spago/pkg/ml/nn/linear"
)

var (
	_ nn.Model = &Conv1D{}
)

// Conv1D is a same-padded 1-D convolution over a sequence of channel vectors.
// Each output step is a dense layer applied to the concatenated window of
// KernelSize input steps centred on it; steps outside the sequence are zero.
type Conv1D struct {
	nn.BaseModel
	InChannels  int
	OutChannels int
	KernelSize  int
	Window      *linear.Model
}

func NewConv1D(inChannels, outChannels, kernelSize int) *Conv1D {
	return &Conv1D{
		InChannels:  inChannels,
		OutChannels: outChannels,
		KernelSize:  kernelSize,
		Window:      linear.New(inChannels*kernelSize, outChannels),
	}
}

func (m *Conv1D) Init(generator *rand.LockedRand) {
	initializers.XavierUniform(m.Window.W.Value(), initializers.Gain(ag.OpReLU), generator)
}

func (m *Conv1D) Forward(xs []ag.Node) []ag.Node {
	g := m.Graph()
	padding := m.KernelSize / 2
	zero := g.NewVariable(mat.NewEmptyVecDense(m.InChannels), false)

	windows := make([]ag.Node, len(xs))
	for t := range xs {
		parts := make([]ag.Node, m.KernelSize)
		for k := range parts {
			if i := t - padding + k; i >= 0 && i < len(xs) {
				parts[k] = xs[i]
			} else {
				parts[k] = zero
			}
		}
		windows[t] = g.Concat(parts...)
	}
	return m.Window.Forward(windows...)
}
