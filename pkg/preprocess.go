package pkg

import "cbfusion/pkg/model"

type randomSource interface {
	Float32() float32
}

// DropoutPreprocessor zeroes random lag values of the nontextual series during
// training. The categorical block is never touched and the text is shared
// with the original samples.
type DropoutPreprocessor struct {
	Probability  float32
	SeriesLength int
	rand         randomSource
	CurrentMasks [][]bool
}

func NewDropoutPreprocessor(probability float64, rand randomSource, seriesLength int) *DropoutPreprocessor {
	return &DropoutPreprocessor{
		Probability:  float32(probability),
		SeriesLength: seriesLength,
		rand:         rand,
	}
}

func (d *DropoutPreprocessor) process(samples []model.Sample) []model.Sample {
	output := make([]model.Sample, len(samples))
	d.CurrentMasks = make([][]bool, len(samples))
	for i, s := range samples {
		output[i] = s
		if s.Nontext == nil {
			continue
		}
		features := make([]float64, len(s.Nontext))
		copy(features, s.Nontext)
		mask := make([]bool, d.SeriesLength)
		for j := range mask {
			mask[j] = d.rand.Float32() >= d.Probability
			if !mask[j] {
				features[j] = 0
			}
		}
		output[i].Nontext = features
		d.CurrentMasks[i] = mask
	}
	return output
}
