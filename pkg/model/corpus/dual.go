package corpus

import (
	"fmt"

	"github.com/nlpodyssey/spago/pkg/mat32/rand"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"github.com/nlpodyssey/spago/pkg/ml/nn"

	"cbfusion/pkg/model/modelerr"
	"cbfusion/pkg/model/transformer"
)

var (
	_ nn.Model = &Dual{}
)

// Institutions names the text sources in the order they are passed to Dual.
var Institutions = []string{"ECB", "FED"}

// Dual encodes the corpora of both institutions. In separate mode each
// institution has its own encoder and the embeddings are concatenated ECB
// first; otherwise a single shared encoder reads one corpus. With MethodNone
// there is no encoder and no embedding.
type Dual struct {
	nn.BaseModel
	Method   Method
	Separate bool
	Encoders []Encoder
}

func NewDual(method Method, separate bool, config Config, provider transformer.Provider) (*Dual, error) {
	d := &Dual{Method: method, Separate: separate}
	if method == MethodNone {
		return d, nil
	}
	count := 1
	if separate {
		count = len(Institutions)
	}
	for i := 0; i < count; i++ {
		encoder, err := New(method, config, provider)
		if err != nil {
			return nil, err
		}
		d.Encoders = append(d.Encoders, encoder)
	}
	return d, nil
}

// OutputDim is the width of the combined corpus embedding, 0 for MethodNone.
func (m *Dual) OutputDim() int {
	dim := 0
	for _, e := range m.Encoders {
		dim += e.OutputDim()
	}
	return dim
}

// Sources is the number of corpora expected per sample.
func (m *Dual) Sources() int {
	return len(m.Encoders)
}

func (m *Dual) Init(generator *rand.LockedRand) {
	for _, e := range m.Encoders {
		e.Init(generator)
	}
}

// Check validates the per-institution corpora of one sample.
func (m *Dual) Check(texts []Corpus) error {
	if m.Method == MethodNone {
		return nil
	}
	if err := modelerr.CheckSize("institution corpora", m.Sources(), len(texts)); err != nil {
		return err
	}
	for i, e := range m.Encoders {
		if err := e.Check(texts[i]); err != nil {
			return fmt.Errorf("%s corpus: %w", m.institution(i), err)
		}
	}
	return nil
}

// Encode returns the corpus embedding of one sample, or nil when the method is MethodNone.
func (m *Dual) Encode(texts []Corpus) ag.Node {
	if m.Method == MethodNone {
		return nil
	}
	modelerr.MustSize("institution corpora", m.Sources(), len(texts))
	embeddings := make([]ag.Node, len(m.Encoders))
	for i, e := range m.Encoders {
		embeddings[i] = e.Encode(texts[i])
	}
	if len(embeddings) == 1 {
		return embeddings[0]
	}
	return m.Graph().Concat(embeddings...)
}

func (m *Dual) institution(i int) string {
	if !m.Separate {
		return "shared"
	}
	return Institutions[i]
}
