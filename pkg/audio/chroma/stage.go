package chroma

import (
	"fmt"
	"math"
)

// Stage transforms one feature vector into the next. Process returns
// ok=false when the stage has nothing to emit yet. Stages never retain or
// modify their input.
type Stage interface {
	Process(in []float64) (out []float64, ok bool)
	Reset()
}

// binFreq returns the center frequency of spectrum bin k.
func binFreq(k, sampleRate, frameSize int) float64 {
	return float64(k) * float64(sampleRate) / float64(frameSize)
}

// Chroma folds a magnitude spectrum into 12 pitch classes.
type Chroma struct {
	bins  int
	lo    []int     // pitch class per bin, -1 outside [MinFreq, MaxFreq]
	hi    []int     // second pitch class when interpolating
	share []float64 // weight of hi when interpolating
}

// NewChroma builds the bin mapping for spectra of frameSize/2+1 bins at
// sampleRate.
//
// Without interpolation each bin adds its magnitude to pitch class
// round(12*log2(f/Reference)) mod 12. With interpolation the magnitude is
// split linearly between the two nearest pitch classes.
func NewChroma(sampleRate, frameSize int, interpolate bool) *Chroma {
	bins := frameSize/2 + 1
	c := &Chroma{
		bins: bins,
		lo:   make([]int, bins),
		hi:   make([]int, bins),
	}
	if interpolate {
		c.share = make([]float64, bins)
	}
	for k := range bins {
		c.lo[k], c.hi[k] = -1, -1
		f := binFreq(k, sampleRate, frameSize)
		if f < MinFreq || f > MaxFreq {
			continue
		}
		octave := NumPitchClasses * math.Log2(f/Reference)
		if !interpolate {
			c.lo[k] = int(math.Round(octave)) % NumPitchClasses
			continue
		}
		base := math.Floor(octave)
		c.lo[k] = int(base) % NumPitchClasses
		c.hi[k] = (int(base) + 1) % NumPitchClasses
		c.share[k] = octave - base
	}
	return c
}

// Width returns 12.
func (c *Chroma) Width() int { return NumPitchClasses }

// Process implements Stage. It panics if in does not have the configured
// bin count.
func (c *Chroma) Process(in []float64) ([]float64, bool) {
	if len(in) != c.bins {
		panic(fmt.Sprintf("chroma: spectrum has %d bins, want %d", len(in), c.bins))
	}
	out := make([]float64, NumPitchClasses)
	for k, m := range in {
		lo := c.lo[k]
		if lo < 0 {
			continue
		}
		if c.share == nil {
			out[lo] += m
			continue
		}
		out[lo] += m * (1 - c.share[k])
		out[c.hi[k]] += m * c.share[k]
	}
	return out, true
}

// Reset implements Stage. Chroma is stateless.
func (c *Chroma) Reset() {}

// Bands sums a magnitude spectrum into n equal-width linear bands over
// [MinFreq, MaxFreq].
type Bands struct {
	n    int
	bins int
	band []int // -1 outside the range
}

// NewBands builds the band mapping. It panics if n < 1.
func NewBands(sampleRate, frameSize, n int) *Bands {
	if n < 1 {
		panic(fmt.Sprintf("chroma: band count %d", n))
	}
	bins := frameSize/2 + 1
	b := &Bands{n: n, bins: bins, band: make([]int, bins)}
	width := (MaxFreq - MinFreq) / float64(n)
	for k := range bins {
		b.band[k] = -1
		f := binFreq(k, sampleRate, frameSize)
		if f < MinFreq || f > MaxFreq {
			continue
		}
		b.band[k] = min(int((f-MinFreq)/width), n-1)
	}
	return b
}

// Width returns the band count.
func (b *Bands) Width() int { return b.n }

// Process implements Stage.
func (b *Bands) Process(in []float64) ([]float64, bool) {
	if len(in) != b.bins {
		panic(fmt.Sprintf("chroma: spectrum has %d bins, want %d", len(in), b.bins))
	}
	out := make([]float64, b.n)
	for k, m := range in {
		if i := b.band[k]; i >= 0 {
			out[i] += m
		}
	}
	return out, true
}

// Reset implements Stage. Bands is stateless.
func (b *Bands) Reset() {}

// FilterKernel is the temporal smoothing kernel. Its weights sum to 3 and
// the output is not divided by that sum.
var FilterKernel = [5]float64{0.25, 0.75, 1.0, 0.75, 0.25}

// Filter smooths consecutive vectors with FilterKernel.
//
// Nothing is emitted until five vectors have arrived; after that every input
// produces one output, the weighted sum of the last five inputs. There is no
// output for the tail when the stream ends.
type Filter struct {
	window [len(FilterKernel)][]float64
	next   int
	count  int
}

// NewFilter returns an empty filter.
func NewFilter() *Filter {
	return &Filter{}
}

// Process implements Stage. It panics if the vector width changes.
func (f *Filter) Process(in []float64) ([]float64, bool) {
	if f.count > 0 {
		prev := f.window[(f.next+len(f.window)-1)%len(f.window)]
		if len(in) != len(prev) {
			panic(fmt.Sprintf("chroma: filter input width %d, want %d", len(in), len(prev)))
		}
	}

	slot := f.window[f.next]
	if cap(slot) < len(in) {
		slot = make([]float64, len(in))
	}
	slot = slot[:len(in)]
	copy(slot, in)
	f.window[f.next] = slot
	f.next = (f.next + 1) % len(f.window)
	f.count++

	if f.count < len(FilterKernel) {
		return nil, false
	}

	// f.next now points at the oldest vector
	out := make([]float64, len(in))
	for j, w := range FilterKernel {
		v := f.window[(f.next+j)%len(f.window)]
		for i := range out {
			out[i] += w * v[i]
		}
	}
	return out, true
}

// Reset implements Stage.
func (f *Filter) Reset() {
	f.next = 0
	f.count = 0
}

// Normalizer scales vectors to unit Euclidean length. Vectors whose norm is
// below the threshold become all zeros.
type Normalizer struct {
	threshold float64
}

// NewNormalizer returns a normalizer with the given zeroing threshold.
func NewNormalizer(threshold float64) *Normalizer {
	return &Normalizer{threshold: threshold}
}

// Process implements Stage.
func (n *Normalizer) Process(in []float64) ([]float64, bool) {
	out := make([]float64, len(in))
	var sum float64
	for _, v := range in {
		sum += v * v
	}
	norm := math.Sqrt(sum)
	if norm < n.threshold {
		return out, true
	}
	for i, v := range in {
		out[i] = v / norm
	}
	return out, true
}

// Reset implements Stage. Normalizer is stateless.
func (n *Normalizer) Reset() {}
