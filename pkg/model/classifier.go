package model

import (
	"fmt"

	mat "github.com/nlpodyssey/spago/pkg/mat32"
	"github.com/nlpodyssey/spago/pkg/mat32/rand"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"github.com/nlpodyssey/spago/pkg/ml/nn"

	"cbfusion/pkg/model/corpus"
	"cbfusion/pkg/model/head"
	"cbfusion/pkg/model/modelerr"
	"cbfusion/pkg/model/nontext"
	"cbfusion/pkg/model/transformer"
)

var (
	_ nn.Model = &Classifier{}
)

type Config struct {
	Method      corpus.Method      `yaml:"method"`
	Separate    bool               `yaml:"separate"`
	TextEncoder transformer.Config `yaml:"text_encoder"`
	Corpus      corpus.Config      `yaml:"corpus"`
	Nontext     nontext.Config     `yaml:"nontext"`
	Head        head.Config        `yaml:"head"`
}

func DefaultConfig() Config {
	return Config{
		Method:      corpus.MethodModel03,
		Separate:    true,
		TextEncoder: transformer.DistilBERTBase,
		Corpus:      corpus.DefaultConfig(),
		Nontext:     nontext.DefaultConfig(),
		Head:        head.DefaultConfig(),
	}
}

// Sample is the input of one classification instance. Text holds one corpus per
// institution, ECB first, or a single corpus when the encoder is shared. A nil
// Nontext marks the nontextual modality as absent.
type Sample struct {
	Text    []corpus.Corpus
	Nontext []float64
}

// Classifier fuses the corpus embedding of a sample with its nontextual
// embedding sequence and maps the result to one logit.
type Classifier struct {
	nn.BaseModel
	Config  Config
	Corpus  *corpus.Dual
	Nontext *nontext.Network
	Head    *head.Head
}

// New builds the classifier, drawing its text encoders from provider. With a
// nil provider the text encoders are untrained instances of config.TextEncoder.
func New(config Config, provider transformer.Provider) (*Classifier, error) {
	if provider == nil {
		provider = transformer.Fresh(config.TextEncoder)
	}
	dual, err := corpus.NewDual(config.Method, config.Separate, config.Corpus, provider)
	if err != nil {
		return nil, err
	}
	if config.Head.CorpusEmbDim != dual.OutputDim() {
		return nil, modelerr.Configuration("head expects a corpus embedding of %d, the %s corpus encoder produces %d",
			config.Head.CorpusEmbDim, config.Method, dual.OutputDim())
	}
	network, err := nontext.New(config.Nontext)
	if err != nil {
		return nil, err
	}
	if config.Head.NontextDim != 0 && config.Head.NontextDim != network.OutputDim {
		return nil, modelerr.Configuration("head expects a nontextual embedding of %d, the nontextual network produces %d",
			config.Head.NontextDim, network.OutputDim)
	}
	classificationHead, err := head.New(config.Head)
	if err != nil {
		return nil, err
	}
	return &Classifier{
		Config:  config,
		Corpus:  dual,
		Nontext: network,
		Head:    classificationHead,
	}, nil
}

func (m *Classifier) Init(generator *rand.LockedRand) {
	m.Corpus.Init(generator)
	m.Nontext.Init(generator)
	m.Head.Init(generator)
}

// UsesText reports whether the classifier reads the text of a sample.
func (m *Classifier) UsesText() bool {
	return m.Corpus.Sources() > 0
}

// UsesNontext reports whether the classifier reads the nontextual features of a sample.
func (m *Classifier) UsesNontext() bool {
	return m.Head.NontextDim > 0
}

// Validate checks every sample of the batch against the configured shapes.
func (m *Classifier) Validate(batch []Sample) error {
	for i, s := range batch {
		if err := m.validate(s); err != nil {
			return fmt.Errorf("sample %d: %w", i, err)
		}
	}
	return nil
}

func (m *Classifier) validate(s Sample) error {
	if m.UsesText() {
		if err := m.Corpus.Check(s.Text); err != nil {
			return err
		}
	}
	if m.UsesNontext() && s.Nontext != nil {
		if err := m.Nontext.Check(s.Nontext); err != nil {
			return err
		}
	}
	if !m.UsesText() && (!m.UsesNontext() || s.Nontext == nil) {
		return modelerr.Configuration("both entries are absent")
	}
	return nil
}

// Forward returns one logit node per sample. Every sample gets its own chain
// of nodes, so a logit never depends on the other samples of the batch.
func (m *Classifier) Forward(batch []Sample) ([]ag.Node, error) {
	if err := m.Validate(batch); err != nil {
		return nil, err
	}
	logits := make([]ag.Node, len(batch))
	for i, s := range batch {
		logit, err := m.forward(s)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		logits[i] = logit
	}
	return logits, nil
}

func (m *Classifier) forward(s Sample) (ag.Node, error) {
	in := head.Inputs{}
	if m.UsesText() {
		in.Corpus = m.Corpus.Encode(s.Text)
	}
	if m.UsesNontext() && s.Nontext != nil {
		in.Nontext = m.Nontext.Forward(nontext.NewInput(m.Graph(), s.Nontext))
	}
	return m.Head.Forward(in)
}

// Probabilities squashes the logits returned by Forward.
func (m *Classifier) Probabilities(logits []ag.Node) []mat.Float {
	probabilities := make([]mat.Float, len(logits))
	for i, logit := range logits {
		probabilities[i] = m.Head.Probability(logit).ScalarValue()
	}
	return probabilities
}
