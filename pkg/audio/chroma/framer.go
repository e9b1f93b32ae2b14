package chroma

import (
	"fmt"
	"math/cmplx"

	"github.com/haivivi/audioprint/pkg/fft"
)

// Framer slices a mono sample stream into overlapping windowed frames and
// turns each one into a magnitude spectrum.
//
// Callers alternate Fill and Transform:
//
//	for len(samples) > 0 {
//		n := f.Fill(samples)
//		samples = samples[n:]
//		if f.Full() {
//			spectrum, err := f.Transform()
//			...
//		}
//	}
type Framer struct {
	pool   *fft.Pool
	size   int
	hop    int
	window []float64

	buf    []float64
	filled int

	frame    []float64
	coeffs   []complex128
	spectrum []float64
}

// NewFramer creates a framer for frames of size samples advancing by hop.
// It panics if hop is not in [1, size].
func NewFramer(pool *fft.Pool, size, hop int) *Framer {
	if size < 2 || hop < 1 || hop > size {
		panic(fmt.Sprintf("chroma: invalid framing size=%d hop=%d", size, hop))
	}
	return &Framer{
		pool:     pool,
		size:     size,
		hop:      hop,
		window:   windowFor(size),
		buf:      make([]float64, size),
		frame:    make([]float64, size),
		spectrum: make([]float64, size/2+1),
	}
}

// Size returns the frame length in samples.
func (f *Framer) Size() int { return f.size }

// Bins returns the spectrum length, Size()/2+1.
func (f *Framer) Bins() int { return len(f.spectrum) }

// Fill copies samples into the frame buffer until it is full and returns the
// number of samples consumed.
func (f *Framer) Fill(samples []float64) int {
	n := copy(f.buf[f.filled:], samples)
	f.filled += n
	return n
}

// Full reports whether a complete frame is buffered.
func (f *Framer) Full() bool { return f.filled == f.size }

// Buffered returns the number of samples waiting for a complete frame.
func (f *Framer) Buffered() int { return f.filled }

// Transform windows the buffered frame, runs the FFT and advances the buffer
// by one hop. The returned spectrum is reused by the next call.
func (f *Framer) Transform() ([]float64, error) {
	if !f.Full() {
		return nil, ErrShortFrame
	}

	for i, s := range f.buf {
		f.frame[i] = s * f.window[i]
	}
	err := f.pool.Do(f.size, func(c *fft.Context) error {
		var err error
		f.coeffs, err = f.pool.Execute(c, f.frame, f.coeffs)
		return err
	})
	if err != nil {
		return nil, err
	}
	for k, c := range f.coeffs {
		f.spectrum[k] = cmplx.Abs(c)
	}

	copy(f.buf, f.buf[f.hop:])
	f.filled = f.size - f.hop
	return f.spectrum, nil
}

// Reset drops any buffered samples. A trailing partial frame is never
// transformed.
func (f *Framer) Reset() {
	f.filled = 0
}
