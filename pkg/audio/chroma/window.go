package chroma

import (
	"math"
	"sync"
)

// sampleScale maps 16-bit sample values into [-1, 1].
const sampleScale = 1.0 / 32767

// hammingWindow generates a Hamming window of the given length, with every
// coefficient multiplied by scale.
func hammingWindow(n int, scale float64) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = (0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))) * scale
	}
	return w
}

// frameWindow is the window for FrameSize. Never mutated.
var frameWindow = sync.OnceValue(func() []float64 {
	return hammingWindow(FrameSize, sampleScale)
})

func windowFor(n int) []float64 {
	if n == FrameSize {
		return frameWindow()
	}
	return hammingWindow(n, sampleScale)
}
