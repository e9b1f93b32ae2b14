package fingerprint

import (
	"encoding/hex"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/haivivi/audioprint/pkg/audio/chroma"
)

// Hash defaults shared by the CLI, the catalog and the print server. Hashes
// are only comparable when computed with the same bits and seed.
const (
	DefaultHashBits        = 16
	DefaultSeed     uint64 = 0x61756469
)

// Hasher projects the average row of a feature image into a short
// locality-sensitive hash using random hyperplanes.
//
// The average row is centered on its own mean before projection, so the
// hash depends on the shape of the profile rather than its overall level.
// Each hyperplane contributes one bit: positive dot product → 1.
//
// Hashes are uppercase hex of bits/4 characters. Truncating a hash gives a
// coarser bucket:
//
//	full  "A3F8" 16-bit exact
//	[:2]  "A3"    8-bit group
type Hasher struct {
	dim    int
	bits   int
	planes [][]float64 // bits × dim, unit length
}

// NewHasher creates a Hasher for images of width dim. bits must be a
// positive multiple of 4. The seed fixes the hyperplanes; use the same seed
// everywhere hashes are compared.
func NewHasher(dim, bits int, seed uint64) *Hasher {
	if bits <= 0 || bits%4 != 0 {
		panic("fingerprint: bits must be a positive multiple of 4")
	}
	if dim <= 0 {
		panic("fingerprint: dim must be positive")
	}

	rng := rand.New(rand.NewPCG(seed, seed^0xdeadbeef))
	planes := make([][]float64, bits)
	for i := range planes {
		plane := make([]float64, dim)
		var norm float64
		for j := range plane {
			v := rng.NormFloat64()
			plane[j] = v
			norm += v * v
		}
		norm = math.Sqrt(norm)
		if norm > 0 {
			for j := range plane {
				plane[j] /= norm
			}
		}
		planes[i] = plane
	}
	return &Hasher{dim: dim, bits: bits, planes: planes}
}

// Hash returns the hash of img's average row. It panics if the image width
// differs from the hasher dimension.
func (h *Hasher) Hash(img *chroma.FeatureImage) string {
	if img.Width() != h.dim {
		panic("fingerprint: image width mismatch")
	}
	profile := make([]float64, h.dim)
	for _, row := range img.Rows() {
		for j, v := range row {
			profile[j] += v
		}
	}
	if n := img.NumRows(); n > 0 {
		for j := range profile {
			profile[j] /= float64(n)
		}
	}
	return h.HashVector(profile)
}

// HashVector hashes a single vector of length Dim.
func (h *Hasher) HashVector(v []float64) string {
	if len(v) != h.dim {
		panic("fingerprint: vector dimension mismatch")
	}

	var mean float64
	for _, x := range v {
		mean += x
	}
	mean /= float64(h.dim)

	out := make([]byte, (h.bits+7)/8)
	for i, plane := range h.planes {
		var dot float64
		for j, p := range plane {
			dot += p * (v[j] - mean)
		}
		if dot > 0 {
			out[i/8] |= 1 << (7 - uint(i%8))
		}
	}
	return strings.ToUpper(hex.EncodeToString(out))[:h.bits/4]
}

// Bits returns the number of hash bits.
func (h *Hasher) Bits() int { return h.bits }

// Dim returns the expected image width.
func (h *Hasher) Dim() int { return h.dim }
