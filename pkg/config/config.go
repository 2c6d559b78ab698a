// Package config reads the model and training settings from a YAML file, with
// environment overrides that may come from a .env file.
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"cbfusion/pkg/model"
	"cbfusion/pkg/model/corpus"
)

const (
	EnvTextEncoder = "CBFUSION_TEXT_ENCODER"
	EnvSeed        = "CBFUSION_SEED"
	EnvMethod      = "CBFUSION_METHOD"
)

type Training struct {
	Epochs         int     `yaml:"epochs"`
	BatchSize      int     `yaml:"batch_size"`
	LearningRate   float64 `yaml:"learning_rate"`
	GradientClip   float64 `yaml:"gradient_clip"`
	Holdout        float64 `yaml:"holdout"`
	ReportInterval int     `yaml:"report_interval"`
	InputDropout   float64 `yaml:"input_dropout"`
}

type Settings struct {
	Model model.Config `yaml:"model"`
	// TextEncoder is the path of a pretrained text encoder checkpoint; empty
	// means the text encoders start untrained.
	TextEncoder string   `yaml:"text_encoder"`
	Seed        uint64   `yaml:"seed"`
	Training    Training `yaml:"training"`
}

func Default() Settings {
	return Settings{
		Model: model.DefaultConfig(),
		Seed:  42,
		Training: Training{
			Epochs:         10,
			BatchSize:      16,
			LearningRate:   0.001,
			GradientClip:   5,
			Holdout:        0.1,
			ReportInterval: 10,
		},
	}
}

// Load returns the default settings overlaid with the YAML file at path, when
// given, and then with the environment.
func Load(path string) (Settings, error) {
	settings := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &settings); err != nil {
			return Settings{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	if err := applyEnv(&settings); err != nil {
		return Settings{}, err
	}
	if err := settings.Validate(); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

// LoadEnvFiles exports the variables of the given .env files that are not set
// yet. Missing files are skipped.
func LoadEnvFiles(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}
	return nil
}

func applyEnv(s *Settings) error {
	if v := os.Getenv(EnvTextEncoder); v != "" {
		s.TextEncoder = v
	}
	if v := os.Getenv(EnvMethod); v != "" {
		s.Model.Method = corpus.Method(v)
	}
	if v := os.Getenv(EnvSeed); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvSeed, v, err)
		}
		s.Seed = seed
	}
	return nil
}

func (s *Settings) Validate() error {
	method, err := corpus.ParseMethod(string(s.Model.Method))
	if err != nil {
		return err
	}
	s.Model.Method = method
	t := s.Training
	switch {
	case t.Epochs < 0:
		return fmt.Errorf("epochs must not be negative")
	case t.BatchSize <= 0:
		return fmt.Errorf("batch size must be positive")
	case t.LearningRate <= 0:
		return fmt.Errorf("learning rate must be positive")
	case t.Holdout < 0 || t.Holdout >= 1:
		return fmt.Errorf("holdout fraction %.3f outside [0, 1)", t.Holdout)
	case t.InputDropout < 0 || t.InputDropout >= 1:
		return fmt.Errorf("input dropout %.3f outside [0, 1)", t.InputDropout)
	}
	return nil
}

// Write encodes the settings as YAML.
func Write(s Settings, w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(s); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return encoder.Close()
}
