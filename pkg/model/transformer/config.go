package transformer

import "cbfusion/pkg/model/modelerr"

// Config describes a BERT-style text encoder.
type Config struct {
	VocabularySize    int     `yaml:"vocabulary_size"`
	HiddenSize        int     `yaml:"hidden_size"`
	NumAttentionHeads int     `yaml:"num_attention_heads"`
	NumHiddenLayers   int     `yaml:"num_hidden_layers"`
	IntermediateSize  int     `yaml:"intermediate_size"`
	MaxPositions      int     `yaml:"max_positions"`
	Dropout           float64 `yaml:"dropout"`
}

// DistilBERTBase mirrors the shape of distilbert-base-uncased.
var DistilBERTBase = Config{
	VocabularySize:    30522,
	HiddenSize:        768,
	NumAttentionHeads: 12,
	NumHiddenLayers:   6,
	IntermediateSize:  3072,
	MaxPositions:      512,
	Dropout:           0.1,
}

func (c Config) Validate() error {
	switch {
	case c.VocabularySize <= 0:
		return modelerr.Configuration("text encoder vocabulary size must be positive")
	case c.HiddenSize <= 0 || c.IntermediateSize <= 0 || c.MaxPositions <= 0:
		return modelerr.Configuration("text encoder sizes must be positive")
	case c.NumHiddenLayers <= 0:
		return modelerr.Configuration("text encoder needs at least one layer")
	case c.NumAttentionHeads <= 0 || c.HiddenSize%c.NumAttentionHeads != 0:
		return modelerr.Configuration("hidden size %d is not divisible by %d attention heads", c.HiddenSize, c.NumAttentionHeads)
	case c.Dropout < 0 || c.Dropout >= 1:
		return modelerr.Configuration("text encoder dropout %.3f outside [0, 1)", c.Dropout)
	}
	return nil
}
