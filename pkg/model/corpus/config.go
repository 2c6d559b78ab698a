package corpus

import (
	"strings"

	"cbfusion/pkg/model/modelerr"
)

// Method selects the corpus encoding strategy.
type Method string

const (
	MethodNone       Method = "none"
	MethodBagOfWords Method = "bow"
	MethodMaxPooling Method = "max_pooling"
	MethodHierBERT   Method = "hierbert"
	MethodModel01    Method = "model_01"
	MethodModel02    Method = "model_02"
	MethodModel03    Method = "model_03"
)

var knownMethods = []Method{
	MethodNone, MethodBagOfWords, MethodMaxPooling, MethodHierBERT, MethodModel01, MethodModel02, MethodModel03,
}

// ParseMethod maps a configuration value to a Method. The empty string means MethodNone.
func ParseMethod(value string) (Method, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return MethodNone, nil
	}
	for _, m := range knownMethods {
		if string(m) == value {
			return m, nil
		}
	}
	return "", modelerr.Configuration("unknown corpus encoding method %q", value)
}

// Supported reports whether an encoder exists for the method.
func (m Method) Supported() bool {
	switch m {
	case MethodNone, MethodModel02, MethodModel03:
		return true
	default:
		return false
	}
}

// Config holds the settings shared by the single-source corpus encoders.
type Config struct {
	// SequenceLength is the fixed number of tokens of every document.
	SequenceLength int `yaml:"sequence_length"`
	// EmbeddingDim is the width of one institution's corpus embedding.
	EmbeddingDim    int     `yaml:"embedding_dim"`
	DocumentDropout float64 `yaml:"document_dropout"`
	// MinDocumentTokens is the number of attended tokens a document needs to
	// take part in pooling; [CLS] and [SEP] alone make an empty document.
	MinDocumentTokens int     `yaml:"min_document_tokens"`
	RecurrentHidden   int     `yaml:"recurrent_hidden"`
	RecurrentDropout  float64 `yaml:"recurrent_dropout"`
}

func DefaultConfig() Config {
	return Config{
		SequenceLength:    512,
		EmbeddingDim:      32,
		DocumentDropout:   0.5,
		MinDocumentTokens: 3,
		RecurrentHidden:   64,
		RecurrentDropout:  0,
	}
}

func (c Config) Validate() error {
	switch {
	case c.SequenceLength <= 0:
		return modelerr.Configuration("document sequence length must be positive")
	case c.EmbeddingDim <= 0:
		return modelerr.Configuration("corpus embedding dimension must be positive")
	case c.MinDocumentTokens < 0:
		return modelerr.Configuration("minimum document tokens must not be negative")
	}
	return nil
}
