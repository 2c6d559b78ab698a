package transformer

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
)

// Provider supplies a text encoder each time one is needed, so that separate
// corpus encoders never share parameters.
type Provider func() (*Model, error)

// Fresh provides untrained encoders; their weights are set by Init.
func Fresh(config Config) Provider {
	return func() (*Model, error) {
		if err := config.Validate(); err != nil {
			return nil, err
		}
		return New(config), nil
	}
}

// FromCheckpoint provides encoders restored from a pretrained checkpoint file
// written by Save.
func FromCheckpoint(path string) Provider {
	return func() (*Model, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("error opening text encoder checkpoint %s: %w", path, err)
		}
		defer f.Close()
		m, err := Load(f)
		if err != nil {
			return nil, fmt.Errorf("error loading text encoder checkpoint %s: %w", path, err)
		}
		log.Debug().Str("Checkpoint", path).Int("Layers", m.NumHiddenLayers).Int("Hidden", m.HiddenSize).Msg("loaded text encoder")
		return m, nil
	}
}

func Save(m *Model, writer io.Writer) error {
	if err := gob.NewEncoder(writer).Encode(m); err != nil {
		return fmt.Errorf("error encoding text encoder: %w", err)
	}
	return nil
}

func Load(input io.Reader) (*Model, error) {
	m := &Model{}
	if err := gob.NewDecoder(input).Decode(m); err != nil {
		return nil, fmt.Errorf("error decoding text encoder: %w", err)
	}
	if err := m.Config.Validate(); err != nil {
		return nil, err
	}
	m.Pretrained = true
	return m, nil
}
