// Package head maps the corpus embedding and the nontextual embedding sequence
// of a sample to a single logit.
package head

import (
	"encoding/gob"

	"github.com/nlpodyssey/spago/pkg/mat32/rand"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"github.com/nlpodyssey/spago/pkg/ml/initializers"
	"github.com/nlpodyssey/spago/pkg/ml/nn"
	"github.com/nlpodyssey/spago/pkg/ml/nn/linear"

	"cbfusion/pkg/model/attention"
	"cbfusion/pkg/model/mlp"
	"cbfusion/pkg/model/modelerr"
)

var (
	_ nn.Model = &Head{}
	_ Variant  = &Fused{}
	_ Variant  = &NontextOnlyHead{}
	_ Variant  = &CorpusOnlyHead{}
)

func init() {
	gob.Register(&Fused{})
	gob.Register(&NontextOnlyHead{})
	gob.Register(&CorpusOnlyHead{})
}

type Config struct {
	CorpusEmbDim int     `yaml:"corpus_emb_dim"`
	NontextDim   int     `yaml:"nontext_dim"`
	Layers       int     `yaml:"layers"`
	HiddenDim    int     `yaml:"mlp_hidden_dim"`
	Dropout      float64 `yaml:"dropout"`
	Residual     bool    `yaml:"residual"`
}

func DefaultConfig() Config {
	return Config{
		CorpusEmbDim: 64,
		NontextDim:   19,
		Layers:       3,
		HiddenDim:    64,
		Dropout:      0.1,
	}
}

// Variant is the head wiring chosen once from the configured dimensions.
type Variant interface {
	nn.Model
	Init(generator *rand.LockedRand)
	Forward(in Inputs) (ag.Node, error)
}

type Head struct {
	nn.BaseModel
	Config
	Variant Variant
}

// New selects the head variant: fused when both dimensions are set, otherwise
// the single modality that has a width.
func New(config Config) (*Head, error) {
	if config.CorpusEmbDim < 0 || config.NontextDim < 0 {
		return nil, modelerr.Configuration("head dimensions must not be negative (corpus %d, nontext %d)",
			config.CorpusEmbDim, config.NontextDim)
	}
	if config.CorpusEmbDim == 0 && config.NontextDim == 0 {
		return nil, modelerr.Configuration("both entries are absent: corpus and nontext dimensions are 0")
	}
	inputDim := config.NontextDim
	if inputDim == 0 {
		inputDim = config.CorpusEmbDim
	}
	network, err := mlp.New(mlp.Config{
		InputDim:  inputDim,
		Layers:    config.Layers,
		HiddenDim: config.HiddenDim,
		Dropout:   config.Dropout,
		Residual:  config.Residual,
	})
	if err != nil {
		return nil, err
	}

	var variant Variant
	switch {
	case config.CorpusEmbDim > 0 && config.NontextDim > 0:
		variant = &Fused{
			Projection: linear.New(config.CorpusEmbDim, config.NontextDim, linear.BiasGrad(false)),
			Fusion:     attention.NewVectorAttention(config.NontextDim),
			Pooling:    attention.NewContextAttention(config.NontextDim),
			MLP:        network,
		}
	case config.NontextDim > 0:
		variant = &NontextOnlyHead{
			Pooling: attention.NewContextAttention(config.NontextDim),
			MLP:     network,
		}
	default:
		variant = &CorpusOnlyHead{Size: config.CorpusEmbDim, MLP: network}
	}
	return &Head{Config: config, Variant: variant}, nil
}

func (m *Head) Init(generator *rand.LockedRand) {
	m.Variant.Init(generator)
}

// Forward returns the logit of one sample.
func (m *Head) Forward(in Inputs) (ag.Node, error) {
	if in.Kind() == Neither {
		return nil, modelerr.Configuration("both entries are absent")
	}
	return m.Variant.Forward(in)
}

// Probability squashes a logit into (0, 1).
func (m *Head) Probability(logit ag.Node) ag.Node {
	return m.Graph().Sigmoid(logit)
}

// Fused projects the corpus embedding into the nontextual space and uses it as
// the query of a vector attention over the nontextual sequence.
type Fused struct {
	nn.BaseModel
	Projection *linear.Model
	Fusion     *attention.VectorAttention
	Pooling    *attention.ContextAttention
	MLP        mlp.Network
}

func (m *Fused) Init(generator *rand.LockedRand) {
	initializers.XavierUniform(m.Projection.W.Value(), initializers.Gain(ag.OpTanh), generator)
	m.Fusion.Init(generator)
	m.Pooling.Init(generator)
	m.MLP.Init(generator)
}

func (m *Fused) Forward(in Inputs) (ag.Node, error) {
	switch in.Kind() {
	case Both:
		if err := checkNontext(m.Fusion.Size, in.Nontext); err != nil {
			return nil, err
		}
		if err := checkCorpus(m.Projection.W.Value().Columns(), in.Corpus); err != nil {
			return nil, err
		}
		query := m.Projection.Forward(in.Corpus)[0]
		return m.MLP.Forward(m.Fusion.Forward(in.Nontext, query).Pooled), nil
	case TextOnly:
		if err := checkCorpus(m.Projection.W.Value().Columns(), in.Corpus); err != nil {
			return nil, err
		}
		return m.MLP.Forward(m.Projection.Forward(in.Corpus)[0]), nil
	case NontextOnly:
		if err := checkNontext(m.Pooling.Size, in.Nontext); err != nil {
			return nil, err
		}
		return m.MLP.Forward(m.Pooling.Forward(in.Nontext, nil).Pooled), nil
	default:
		return nil, modelerr.Configuration("both entries are absent")
	}
}

// NontextOnlyHead pools the nontextual sequence and ignores any corpus embedding.
type NontextOnlyHead struct {
	nn.BaseModel
	Pooling *attention.ContextAttention
	MLP     mlp.Network
}

func (m *NontextOnlyHead) Init(generator *rand.LockedRand) {
	m.Pooling.Init(generator)
	m.MLP.Init(generator)
}

func (m *NontextOnlyHead) Forward(in Inputs) (ag.Node, error) {
	switch in.Kind() {
	case Both, NontextOnly:
		if err := checkNontext(m.Pooling.Size, in.Nontext); err != nil {
			return nil, err
		}
		return m.MLP.Forward(m.Pooling.Forward(in.Nontext, nil).Pooled), nil
	case TextOnly:
		return nil, modelerr.Configuration("nontext head received no nontextual embedding")
	default:
		return nil, modelerr.Configuration("both entries are absent")
	}
}

// CorpusOnlyHead feeds the corpus embedding straight into the MLP.
type CorpusOnlyHead struct {
	nn.BaseModel
	Size int
	MLP  mlp.Network
}

func (m *CorpusOnlyHead) Init(generator *rand.LockedRand) {
	m.MLP.Init(generator)
}

func (m *CorpusOnlyHead) Forward(in Inputs) (ag.Node, error) {
	switch in.Kind() {
	case Both, TextOnly:
		if err := checkCorpus(m.Size, in.Corpus); err != nil {
			return nil, err
		}
		return m.MLP.Forward(in.Corpus), nil
	case NontextOnly:
		return nil, modelerr.Configuration("corpus head received no corpus embedding")
	default:
		return nil, modelerr.Configuration("both entries are absent")
	}
}

func checkNontext(size int, sequence []ag.Node) error {
	for _, step := range sequence {
		if err := modelerr.CheckSize("nontextual embedding", size, step.Value().Rows()); err != nil {
			return err
		}
	}
	return nil
}

func checkCorpus(size int, corpus ag.Node) error {
	return modelerr.CheckSize("corpus embedding", size, corpus.Value().Rows())
}
