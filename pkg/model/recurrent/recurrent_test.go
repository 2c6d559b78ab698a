package recurrent

import (
	"errors"
	"testing"

	mat "github.com/nlpodyssey/spago/pkg/mat32"
	"github.com/nlpodyssey/spago/pkg/mat32/rand"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"github.com/nlpodyssey/spago/pkg/ml/nn"
	"github.com/stretchr/testify/require"

	"cbfusion/pkg/model/modelerr"
)

func createSteps(g *ag.Graph, n, size int) []ag.Node {
	xs := make([]ag.Node, n)
	for i := range xs {
		xs[i] = g.NewVariable(mat.NewInitVecDense(size, mat.Float(i+1)/10), false)
	}
	return xs
}

func TestNew_InvalidSizes(t *testing.T) {
	_, err := New(0, 4, 0)
	require.True(t, errors.Is(err, modelerr.ErrConfiguration))

	_, err = New(4, 4, 1.5)
	require.True(t, errors.Is(err, modelerr.ErrConfiguration))
}

func TestEncoder_Encode(t *testing.T) {
	model, err := New(5, 3, 0.5)
	require.NoError(t, err)
	model.Init(rand.NewLockedRand(42))
	require.Equal(t, 6, model.OutputDim())

	g := ag.NewGraph(ag.Rand(rand.NewLockedRand(42)))
	proc := nn.Reify(nn.Context{Graph: g, Mode: nn.Inference}, model).(*Encoder)

	out := proc.Encode(createSteps(g, 4, 5), []bool{true, true, true, false})
	require.Equal(t, 6, out.Value().Rows())

	again := proc.Encode(createSteps(g, 4, 5), []bool{true, true, true, false})
	require.Equal(t, out.Value().Data(), again.Value().Data())
}

func TestEncoder_SequencesDoNotShareState(t *testing.T) {
	model, err := New(5, 3, 0)
	require.NoError(t, err)
	model.Init(rand.NewLockedRand(42))

	g := ag.NewGraph(ag.Rand(rand.NewLockedRand(42)))
	fresh := nn.Reify(nn.Context{Graph: g, Mode: nn.Inference}, model).(*Encoder)
	alone := fresh.Encode(createSteps(g, 3, 5), nil)

	used := nn.Reify(nn.Context{Graph: g, Mode: nn.Inference}, model).(*Encoder)
	other := createSteps(g, 6, 5)
	for i := range other {
		other[i] = g.ProdScalar(other[i], g.NewScalar(-2))
	}
	used.Encode(other, nil)
	after := used.Encode(createSteps(g, 3, 5), nil)

	require.Equal(t, alone.Value().Data(), after.Value().Data())
}

func TestEncoder_WrongStepSizePanics(t *testing.T) {
	model, err := New(5, 3, 0)
	require.NoError(t, err)
	model.Init(rand.NewLockedRand(42))

	g := ag.NewGraph(ag.Rand(rand.NewLockedRand(42)))
	proc := nn.Reify(nn.Context{Graph: g, Mode: nn.Inference}, model).(*Encoder)
	require.Panics(t, func() { proc.Encode(createSteps(g, 2, 4), nil) })
}
