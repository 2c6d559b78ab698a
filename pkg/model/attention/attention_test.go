package attention

import (
	"math"
	"testing"

	mat "github.com/nlpodyssey/spago/pkg/mat32"
	"github.com/nlpodyssey/spago/pkg/mat32/rand"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"github.com/nlpodyssey/spago/pkg/ml/nn"
	"github.com/stretchr/testify/require"
)

const testSize = 6

func createSequence(g *ag.Graph, length int) []ag.Node {
	r := rand.NewLockedRand(7)
	xs := make([]ag.Node, length)
	for i := range xs {
		data := make([]mat.Float, testSize)
		for j := range data {
			data[j] = r.Float()*2 - 1
		}
		xs[i] = g.NewVariable(mat.NewVecDense(data), false)
	}
	return xs
}

func sumOf(nodes []ag.Node) float64 {
	sum := 0.0
	for _, n := range nodes {
		sum += float64(n.ScalarValue())
	}
	return sum
}

func requireFinite(t *testing.T, m mat.Matrix) {
	for _, v := range m.Data() {
		require.False(t, math.IsNaN(float64(v)))
		require.False(t, math.IsInf(float64(v), 0))
	}
}

func newContextAttention(g *ag.Graph) *ContextAttention {
	model := NewContextAttention(testSize)
	model.Init(rand.NewLockedRand(42))
	return nn.Reify(nn.Context{Graph: g, Mode: nn.Inference}, model).(*ContextAttention)
}

func TestContextAttention_CoefficientsSumToOne(t *testing.T) {
	tests := []struct {
		name string
		mask []bool
	}{
		{name: "no mask", mask: nil},
		{name: "all valid", mask: []bool{true, true, true, true, true}},
		{name: "trailing padding", mask: []bool{true, true, true, false, false}},
		{name: "single valid step", mask: []bool{false, false, true, false, false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := ag.NewGraph(ag.Rand(rand.NewLockedRand(42)))
			proc := newContextAttention(g)
			result := proc.Forward(createSequence(g, 5), tt.mask)

			require.Equal(t, testSize, result.Pooled.Value().Rows())
			require.Len(t, result.Coefficients, 5)
			require.InDelta(t, 1.0, sumOf(result.Coefficients), 1e-6)
			for i, c := range result.Coefficients {
				require.GreaterOrEqual(t, c.ScalarValue(), mat.Float(0))
				if tt.mask != nil && !tt.mask[i] {
					require.Equal(t, mat.Float(0), c.ScalarValue())
				}
			}
		})
	}
}

func TestContextAttention_SingleValidStepReturnsThatStep(t *testing.T) {
	g := ag.NewGraph(ag.Rand(rand.NewLockedRand(42)))
	proc := newContextAttention(g)
	xs := createSequence(g, 4)
	result := proc.Forward(xs, []bool{false, true, false, false})

	expected := xs[1].Value().Data()
	for i, v := range result.Pooled.Value().Data() {
		require.InDelta(t, expected[i], v, 1e-5)
	}
}

func TestContextAttention_FullyMaskedIsStable(t *testing.T) {
	g := ag.NewGraph(ag.Rand(rand.NewLockedRand(42)))
	proc := newContextAttention(g)
	result := proc.Forward(createSequence(g, 3), []bool{false, false, false})

	requireFinite(t, result.Pooled.Value())
	for _, v := range result.Pooled.Value().Data() {
		require.Equal(t, mat.Float(0), v)
	}
	require.Equal(t, 0.0, sumOf(result.Coefficients))
}

func TestContextAttention_MaskLengthMismatchPanics(t *testing.T) {
	g := ag.NewGraph(ag.Rand(rand.NewLockedRand(42)))
	proc := newContextAttention(g)
	require.Panics(t, func() {
		proc.Forward(createSequence(g, 3), []bool{true, false})
	})
}

func TestVectorAttention_Forward(t *testing.T) {
	g := ag.NewGraph(ag.Rand(rand.NewLockedRand(42)))
	model := NewVectorAttention(testSize)
	model.Init(rand.NewLockedRand(42))
	proc := nn.Reify(nn.Context{Graph: g, Mode: nn.Inference}, model).(*VectorAttention)

	sequence := createSequence(g, 10)
	query := createSequence(g, 1)[0]
	result := proc.Forward(sequence, query)

	require.Equal(t, testSize, result.Pooled.Value().Rows())
	require.Len(t, result.Coefficients, 10)
	require.InDelta(t, 1.0, sumOf(result.Coefficients), 1e-6)
	requireFinite(t, result.Pooled.Value())
}

func TestVectorAttention_QueryChangesWeights(t *testing.T) {
	g := ag.NewGraph(ag.Rand(rand.NewLockedRand(42)))
	model := NewVectorAttention(testSize)
	model.Init(rand.NewLockedRand(42))
	proc := nn.Reify(nn.Context{Graph: g, Mode: nn.Inference}, model).(*VectorAttention)

	sequence := createSequence(g, 4)
	first := proc.Forward(sequence, g.NewVariable(mat.NewInitVecDense(testSize, 1), false))
	second := proc.Forward(sequence, g.NewVariable(mat.NewInitVecDense(testSize, -1), false))
	require.NotEqual(t, first.Coefficients[0].ScalarValue(), second.Coefficients[0].ScalarValue())
}
