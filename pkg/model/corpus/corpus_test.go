package corpus

import (
	"errors"
	"testing"

	"github.com/nlpodyssey/spago/pkg/mat32/rand"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"github.com/nlpodyssey/spago/pkg/ml/nn"
	"github.com/stretchr/testify/require"

	"cbfusion/pkg/model/document"
	"cbfusion/pkg/model/modelerr"
	"cbfusion/pkg/model/transformer"
)

const testSeqLen = 6

var textConfig = transformer.Config{
	VocabularySize:    40,
	HiddenSize:        8,
	NumAttentionHeads: 2,
	NumHiddenLayers:   1,
	IntermediateSize:  16,
	MaxPositions:      testSeqLen,
}

func testConfig() Config {
	config := DefaultConfig()
	config.SequenceLength = testSeqLen
	config.EmbeddingDim = 4
	config.RecurrentHidden = 3
	return config
}

func createDocument(first int, attended int) document.Document {
	d := document.Document{TokenIDs: make([]int, testSeqLen), Mask: make([]bool, testSeqLen)}
	for i := 0; i < attended; i++ {
		d.TokenIDs[i] = (first + i) % textConfig.VocabularySize
		d.Mask[i] = true
	}
	return d
}

func emptyDocument() document.Document {
	return createDocument(0, 0)
}

func reify(g *ag.Graph, m nn.Model) nn.Model {
	return nn.Reify(nn.Context{Graph: g, Mode: nn.Inference}, m)
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("")
	require.NoError(t, err)
	require.Equal(t, MethodNone, m)

	m, err = ParseMethod("Model_03")
	require.NoError(t, err)
	require.Equal(t, MethodModel03, m)

	_, err = ParseMethod("tfidf")
	require.True(t, errors.Is(err, modelerr.ErrConfiguration))
}

func TestNew_UnsupportedMethods(t *testing.T) {
	for _, method := range []Method{MethodBagOfWords, MethodMaxPooling, MethodHierBERT, MethodModel01} {
		t.Run(string(method), func(t *testing.T) {
			require.False(t, method.Supported())
			_, err := NewDual(method, true, testConfig(), transformer.Fresh(textConfig))
			require.True(t, errors.Is(err, modelerr.ErrConfiguration))
		})
	}
}

func TestMaxPooling_DimensionIndependentOfDocumentCount(t *testing.T) {
	encoder, err := New(MethodModel03, testConfig(), transformer.Fresh(textConfig))
	require.NoError(t, err)
	encoder.Init(rand.NewLockedRand(42))
	g := ag.NewGraph(ag.Rand(rand.NewLockedRand(42)))
	proc := reify(g, encoder).(*MaxPooling)

	three := Corpus{createDocument(1, 5), createDocument(10, 4), createDocument(20, 6)}
	five := append(Corpus{}, three...)
	five = append(five, emptyDocument(), emptyDocument())
	duplicated := append(Corpus{}, three...)
	duplicated = append(duplicated, three[0], three[1])

	a := proc.Encode(three)
	b := proc.Encode(five)
	c := proc.Encode(duplicated)
	require.Equal(t, 4, a.Value().Rows())
	require.Equal(t, 4, b.Value().Rows())
	require.Equal(t, 4, c.Value().Rows())
	require.Equal(t, a.Value().Data(), b.Value().Data())
	require.Equal(t, a.Value().Data(), c.Value().Data())
}

func TestMaxPooling_OnlyEmptyDocuments(t *testing.T) {
	encoder, err := New(MethodModel03, testConfig(), transformer.Fresh(textConfig))
	require.NoError(t, err)
	encoder.Init(rand.NewLockedRand(42))
	g := ag.NewGraph(ag.Rand(rand.NewLockedRand(42)))
	proc := reify(g, encoder).(*MaxPooling)

	out := proc.Encode(Corpus{emptyDocument(), createDocument(3, 2)})
	require.Equal(t, 4, out.Value().Rows())
	require.Equal(t, proc.Projection.B.Value().Data(), out.Value().Data())
}

func TestMaxPooling_MaskedDocumentsExcluded(t *testing.T) {
	encoder, err := New(MethodModel03, testConfig(), transformer.Fresh(textConfig))
	require.NoError(t, err)
	encoder.Init(rand.NewLockedRand(42))
	g := ag.NewGraph(ag.Rand(rand.NewLockedRand(42)))
	proc := reify(g, encoder).(*MaxPooling)

	single := proc.Encode(Corpus{createDocument(1, 5)})
	withPadding := proc.Encode(Corpus{emptyDocument(), createDocument(1, 5), emptyDocument()})
	withShort := proc.Encode(Corpus{createDocument(1, 5), createDocument(9, testConfig().MinDocumentTokens-1)})
	withText := proc.Encode(Corpus{createDocument(1, 5), createDocument(9, 6)})

	require.Equal(t, single.Value().Data(), withPadding.Value().Data())
	require.Equal(t, single.Value().Data(), withShort.Value().Data())
	require.NotEqual(t, single.Value().Data(), withText.Value().Data())
}

func TestHierarchical_Encode(t *testing.T) {
	encoder, err := New(MethodModel02, testConfig(), transformer.Fresh(textConfig))
	require.NoError(t, err)
	encoder.Init(rand.NewLockedRand(42))
	g := ag.NewGraph(ag.Rand(rand.NewLockedRand(42)))
	proc := reify(g, encoder).(*Hierarchical)

	out := proc.Encode(Corpus{createDocument(1, 5), emptyDocument(), createDocument(7, 3)})
	require.Equal(t, 4, out.Value().Rows())
}

func TestDual_OutputDim(t *testing.T) {
	tests := []struct {
		method   Method
		separate bool
		dim      int
		sources  int
	}{
		{method: MethodNone, separate: true, dim: 0, sources: 0},
		{method: MethodModel03, separate: false, dim: 4, sources: 1},
		{method: MethodModel03, separate: true, dim: 8, sources: 2},
		{method: MethodModel02, separate: true, dim: 8, sources: 2},
	}
	for _, tt := range tests {
		d, err := NewDual(tt.method, tt.separate, testConfig(), transformer.Fresh(textConfig))
		require.NoError(t, err)
		require.Equal(t, tt.dim, d.OutputDim())
		require.Equal(t, tt.sources, d.Sources())
	}
}

func TestDual_NoneReturnsNoEmbedding(t *testing.T) {
	d, err := NewDual(MethodNone, true, testConfig(), transformer.Fresh(textConfig))
	require.NoError(t, err)
	g := ag.NewGraph(ag.Rand(rand.NewLockedRand(42)))
	proc := reify(g, d).(*Dual)
	require.NoError(t, proc.Check(nil))
	require.Nil(t, proc.Encode(nil))
}

func TestDual_ConcatenationOrder(t *testing.T) {
	d, err := NewDual(MethodModel03, true, testConfig(), transformer.Fresh(textConfig))
	require.NoError(t, err)
	d.Init(rand.NewLockedRand(42))
	g := ag.NewGraph(ag.Rand(rand.NewLockedRand(42)))
	proc := reify(g, d).(*Dual)

	ecb := Corpus{createDocument(1, 5), createDocument(2, 4)}
	fed := Corpus{createDocument(30, 6)}

	out := proc.Encode([]Corpus{ecb, fed})
	swapped := proc.Encode([]Corpus{fed, ecb})
	require.Equal(t, 8, out.Value().Rows())
	require.NotEqual(t, out.Value().Data(), swapped.Value().Data())

	ecbOnly := proc.Encoders[0].Encode(ecb)
	require.Equal(t, ecbOnly.Value().Data(), out.Value().Data()[:4])
	fedOnly := proc.Encoders[1].Encode(fed)
	require.Equal(t, fedOnly.Value().Data(), out.Value().Data()[4:])
}

func TestDual_Check(t *testing.T) {
	d, err := NewDual(MethodModel03, true, testConfig(), transformer.Fresh(textConfig))
	require.NoError(t, err)

	ok := Corpus{createDocument(1, 5)}
	require.NoError(t, d.Check([]Corpus{ok, ok}))
	require.True(t, errors.Is(d.Check([]Corpus{ok}), modelerr.ErrShape))
	require.True(t, errors.Is(d.Check([]Corpus{ok, {}}), modelerr.ErrShape))

	short := Corpus{{TokenIDs: []int{1, 2}, Mask: []bool{true, true}}}
	require.True(t, errors.Is(d.Check([]Corpus{ok, short}), modelerr.ErrShape))

	shared, err := NewDual(MethodModel03, false, testConfig(), transformer.Fresh(textConfig))
	require.NoError(t, err)
	require.NoError(t, shared.Check([]Corpus{ok}))
	require.True(t, errors.Is(shared.Check([]Corpus{ok, ok}), modelerr.ErrShape))
}
