package nontext

import "cbfusion/pkg/model/modelerr"

type Config struct {
	// InputDim is the length of the raw feature vector: the series followed by
	// the categorical indicator block.
	InputDim int `yaml:"input_dim"`
	// SeriesLength is the number of lag values at the start of the vector.
	SeriesLength int `yaml:"series_length"`
	// InputChannels counts the channels fed to the first convolution: one numeric
	// channel plus InputChannels-1 category embedding channels.
	InputChannels int     `yaml:"input_channels"`
	OutputDim     int     `yaml:"output_dim"`
	Layers        int     `yaml:"layers"`
	KernelSize    int     `yaml:"kernel_size"`
	Dropout       float64 `yaml:"dropout"`
}

func DefaultConfig() Config {
	return Config{
		InputDim:      19,
		SeriesLength:  10,
		InputChannels: 16,
		OutputDim:     19,
		Layers:        3,
		KernelSize:    3,
		Dropout:       0,
	}
}

// Categories is the width of the categorical block.
func (c Config) Categories() int {
	return c.InputDim - c.SeriesLength
}

func (c Config) Validate() error {
	switch {
	case c.SeriesLength <= 0:
		return modelerr.Configuration("nontextual series length must be positive")
	case c.InputDim <= c.SeriesLength:
		return modelerr.Configuration("nontextual input of %d values leaves no categorical block after %d lags", c.InputDim, c.SeriesLength)
	case c.InputChannels < 2:
		return modelerr.Configuration("nontextual network needs at least 2 input channels, got %d", c.InputChannels)
	case c.OutputDim <= 0:
		return modelerr.Configuration("nontextual output dimension must be positive")
	case c.Layers <= 0:
		return modelerr.Configuration("nontextual network needs at least one layer")
	case c.KernelSize <= 0 || c.KernelSize%2 == 0:
		return modelerr.Configuration("convolution kernel size must be odd and positive, got %d", c.KernelSize)
	case c.Dropout < 0 || c.Dropout >= 1:
		return modelerr.Configuration("nontextual dropout %.3f outside [0, 1)", c.Dropout)
	}
	return nil
}
