// Package document encodes a single tokenized document into one vector: the
// text encoder's representation of the summary token at position 0.
package document

import (
	mat "github.com/nlpodyssey/spago/pkg/mat32"
	"github.com/nlpodyssey/spago/pkg/mat32/rand"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"github.com/nlpodyssey/spago/pkg/ml/nn"

	"cbfusion/pkg/model/modelerr"
	"cbfusion/pkg/model/transformer"
)

var (
	_ nn.Model = &Encoder{}
)

// Document is one text unit tokenized to a fixed length. Mask marks the
// positions the text encoder attends to.
type Document struct {
	TokenIDs []int
	Mask     []bool
}

func (d Document) Len() int {
	return len(d.TokenIDs)
}

// AttendedTokens counts the true entries of the mask.
func (d Document) AttendedTokens() int {
	n := 0
	for _, m := range d.Mask {
		if m {
			n++
		}
	}
	return n
}

type Encoder struct {
	nn.BaseModel
	Dropout     float64
	TextEncoder *transformer.Model
}

func New(textEncoder *transformer.Model, dropout float64) (*Encoder, error) {
	if dropout < 0 || dropout >= 1 {
		return nil, modelerr.Configuration("document dropout %.3f outside [0, 1)", dropout)
	}
	return &Encoder{Dropout: dropout, TextEncoder: textEncoder}, nil
}

// OutputDim is the text encoder hidden width.
func (m *Encoder) OutputDim() int {
	return m.TextEncoder.HiddenSize
}

func (m *Encoder) Init(generator *rand.LockedRand) {
	m.TextEncoder.Init(generator)
}

// Check validates a document against the text encoder: equal token and mask
// lengths, length seqLen and in-vocabulary ids.
func (m *Encoder) Check(d Document, seqLen int) error {
	if err := modelerr.CheckSize("document tokens", seqLen, len(d.TokenIDs)); err != nil {
		return err
	}
	if err := modelerr.CheckSize("document mask", seqLen, len(d.Mask)); err != nil {
		return err
	}
	return m.TextEncoder.CheckTokens(d.TokenIDs)
}

// Encode returns the summary representation of d. A document whose summary
// position is masked out encodes to the zero vector.
func (m *Encoder) Encode(d Document) ag.Node {
	g := m.Graph()
	if d.Len() == 0 || !d.Mask[0] {
		return g.NewVariable(mat.NewEmptyVecDense(m.OutputDim()), false)
	}
	summary := m.TextEncoder.Encode(d.TokenIDs, d.Mask)[0]
	if m.Mode() == nn.Training && m.Dropout > 0 {
		summary = g.Dropout(summary, mat.Float(m.Dropout))
	}
	return summary
}
