package fft

import "gonum.org/v1/gonum/dsp/fourier"

type gonumEngine struct{}

// Gonum returns the engine backed by gonum's dsp/fourier package.
func Gonum() Engine { return gonumEngine{} }

func (gonumEngine) Name() string { return "gonum" }

func (gonumEngine) NewPlan(n int) (Plan, error) {
	if n < 2 {
		return nil, ErrInvalidLength
	}
	return &gonumPlan{fft: fourier.NewFFT(n)}, nil
}

type gonumPlan struct {
	fft *fourier.FFT
}

func (p *gonumPlan) Transform(out []complex128, in []float64) {
	p.fft.Coefficients(out, in)
}

func (p *gonumPlan) Close() error {
	p.fft = nil
	return nil
}
