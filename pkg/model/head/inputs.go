package head

import "github.com/nlpodyssey/spago/pkg/ml/ag"

// Kind tells which modalities reached the head for one sample.
type Kind int

const (
	Neither Kind = iota
	TextOnly
	NontextOnly
	Both
)

func (k Kind) String() string {
	switch k {
	case TextOnly:
		return "text only"
	case NontextOnly:
		return "nontext only"
	case Both:
		return "both"
	default:
		return "neither"
	}
}

// Inputs carries the per-sample embeddings. A nil Corpus or an empty Nontext
// sequence marks the corresponding modality as absent.
type Inputs struct {
	Corpus  ag.Node
	Nontext []ag.Node
}

func (in Inputs) Kind() Kind {
	text := in.Corpus != nil
	nontext := len(in.Nontext) > 0
	switch {
	case text && nontext:
		return Both
	case text:
		return TextOnly
	case nontext:
		return NontextOnly
	default:
		return Neither
	}
}
