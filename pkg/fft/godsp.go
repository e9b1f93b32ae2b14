package fft

import dspfft "github.com/mjibson/go-dsp/fft"

type godspEngine struct{}

// GoDSP returns the engine backed by github.com/mjibson/go-dsp. It accepts
// any length, including non powers of two.
func GoDSP() Engine { return godspEngine{} }

func (godspEngine) Name() string { return "godsp" }

func (godspEngine) NewPlan(n int) (Plan, error) {
	if n < 2 {
		return nil, ErrInvalidLength
	}
	return &godspPlan{n: n}, nil
}

// godspPlan has no prepared state of its own; go-dsp caches twiddle
// factors internally per length.
type godspPlan struct {
	n int
}

func (p *godspPlan) Transform(out []complex128, in []float64) {
	full := dspfft.FFTReal(in[:p.n])
	copy(out, full[:p.n/2+1])
}

func (p *godspPlan) Close() error { return nil }
