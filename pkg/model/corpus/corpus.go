// Package corpus reduces the variable-size set of documents of one institution
// to a fixed-size embedding, and combines the ECB and FED embeddings.
package corpus

import (
	"encoding/gob"
	"fmt"

	mat "github.com/nlpodyssey/spago/pkg/mat32"
	"github.com/nlpodyssey/spago/pkg/mat32/rand"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"github.com/nlpodyssey/spago/pkg/ml/initializers"
	"github.com/nlpodyssey/spago/pkg/ml/nn"
	"github.com/nlpodyssey/spago/pkg/ml/nn/linear"

	"cbfusion/pkg/model/document"
	"cbfusion/pkg/model/modelerr"
	"cbfusion/pkg/model/recurrent"
	"cbfusion/pkg/model/transformer"
)

var (
	_ Encoder = &MaxPooling{}
	_ Encoder = &Hierarchical{}
)

func init() {
	gob.Register(&MaxPooling{})
	gob.Register(&Hierarchical{})
}

// Corpus is the ordered set of documents of one institution for one sample.
type Corpus []document.Document

// Encoder is a single-source corpus encoding strategy.
type Encoder interface {
	nn.Model
	Init(generator *rand.LockedRand)
	OutputDim() int
	Check(c Corpus) error
	Encode(c Corpus) ag.Node
}

// New builds the single-source encoder for method, drawing its text encoder from provider.
func New(method Method, config Config, provider transformer.Provider) (Encoder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if !method.Supported() {
		return nil, modelerr.Configuration("corpus encoding method %q is not supported", method)
	}
	textEncoder, err := provider()
	if err != nil {
		return nil, err
	}
	documents, err := document.New(textEncoder, config.DocumentDropout)
	if err != nil {
		return nil, err
	}
	switch method {
	case MethodModel03:
		return newMaxPooling(config, documents), nil
	case MethodModel02:
		return newHierarchical(config, documents)
	default:
		return nil, modelerr.Configuration("corpus encoding method %q has no single-source encoder", method)
	}
}

func checkCorpus(documents *document.Encoder, c Corpus, seqLen int) error {
	if len(c) == 0 {
		return &modelerr.ShapeError{What: "corpus documents", Expected: 1, Actual: 0}
	}
	for i, d := range c {
		if err := documents.Check(d, seqLen); err != nil {
			return fmt.Errorf("document %d: %w", i, err)
		}
	}
	return nil
}

// MaxPooling encodes every document, takes the element-wise maximum over the
// documents that carry text and projects the result to EmbeddingDim.
type MaxPooling struct {
	nn.BaseModel
	Config
	Documents  *document.Encoder
	Projection *linear.Model
}

func newMaxPooling(config Config, documents *document.Encoder) *MaxPooling {
	return &MaxPooling{
		Config:     config,
		Documents:  documents,
		Projection: linear.New(documents.OutputDim(), config.EmbeddingDim),
	}
}

func (m *MaxPooling) OutputDim() int {
	return m.EmbeddingDim
}

func (m *MaxPooling) Init(generator *rand.LockedRand) {
	m.Documents.Init(generator)
	initializers.XavierUniform(m.Projection.W.Value(), initializers.Gain(ag.OpIdentity), generator)
}

func (m *MaxPooling) Check(c Corpus) error {
	return checkCorpus(m.Documents, c, m.SequenceLength)
}

func (m *MaxPooling) Encode(c Corpus) ag.Node {
	g := m.Graph()
	var pooled ag.Node
	for _, d := range c {
		if d.AttendedTokens() < m.MinDocumentTokens {
			continue
		}
		x := m.Documents.Encode(d)
		if pooled == nil {
			pooled = x
		} else {
			pooled = g.Max(pooled, x)
		}
	}
	if pooled == nil {
		pooled = g.NewVariable(mat.NewEmptyVecDense(m.Documents.OutputDim()), false)
	}
	return m.Projection.Forward(pooled)[0]
}

// Hierarchical reads the documents in order with a recurrent-attention encoder,
// attending only to documents that carry text.
type Hierarchical struct {
	nn.BaseModel
	Config
	Documents  *document.Encoder
	Sequence   *recurrent.Encoder
	Projection *linear.Model
}

func newHierarchical(config Config, documents *document.Encoder) (*Hierarchical, error) {
	sequence, err := recurrent.New(documents.OutputDim(), config.RecurrentHidden, config.RecurrentDropout)
	if err != nil {
		return nil, err
	}
	return &Hierarchical{
		Config:     config,
		Documents:  documents,
		Sequence:   sequence,
		Projection: linear.New(sequence.OutputDim(), config.EmbeddingDim),
	}, nil
}

func (m *Hierarchical) OutputDim() int {
	return m.EmbeddingDim
}

func (m *Hierarchical) Init(generator *rand.LockedRand) {
	m.Documents.Init(generator)
	m.Sequence.Init(generator)
	initializers.XavierUniform(m.Projection.W.Value(), initializers.Gain(ag.OpIdentity), generator)
}

func (m *Hierarchical) Check(c Corpus) error {
	return checkCorpus(m.Documents, c, m.SequenceLength)
}

func (m *Hierarchical) Encode(c Corpus) ag.Node {
	xs := make([]ag.Node, len(c))
	mask := make([]bool, len(c))
	for i, d := range c {
		xs[i] = m.Documents.Encode(d)
		mask[i] = d.AttendedTokens() >= m.MinDocumentTokens
	}
	return m.Projection.Forward(m.Sequence.Encode(xs, mask))[0]
}
