//go:build fftw

package fft

import "github.com/runningwild/go-fftw/fftw"

func init() {
	Register("fftw", FFTW)
}

type fftwEngine struct{}

// FFTW returns the engine backed by libfftw3. Plans are built with
// FFTW_ESTIMATE on arrays owned by the plan.
func FFTW() Engine { return fftwEngine{} }

func (fftwEngine) Name() string { return "fftw" }

func (fftwEngine) NewPlan(n int) (Plan, error) {
	if n < 2 {
		return nil, ErrInvalidLength
	}
	in := fftw.NewArray(n)
	out := fftw.NewArray(n)
	return &fftwPlan{
		n:    n,
		in:   in,
		out:  out,
		plan: fftw.NewPlan(in, out, fftw.Forward, fftw.Estimate),
	}, nil
}

type fftwPlan struct {
	n    int
	in   *fftw.Array
	out  *fftw.Array
	plan *fftw.Plan
}

func (p *fftwPlan) Transform(out []complex128, in []float64) {
	for i := 0; i < p.n; i++ {
		p.in.Set(i, complex(in[i], 0))
	}
	p.plan.Execute()
	for i := 0; i < p.n/2+1 && i < len(out); i++ {
		out[i] = p.out.At(i)
	}
}

// Close drops the plan and its arrays. The bindings release native memory
// through finalizers on the arrays.
func (p *fftwPlan) Close() error {
	p.plan = nil
	p.in = nil
	p.out = nil
	return nil
}
