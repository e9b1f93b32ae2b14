// Package fingerprint quantizes a chroma feature image into a compact bit
// fingerprint and serializes it to text.
//
// Each pair of consecutive image rows yields one [Item] of two bit masks:
//
//	Delta bit j: row[i][j] > row[i-1][j]  (energy rising in band j)
//	Level bit j: row[i][j] > mean(row[i]) (band j above the row average)
//
// # Payload
//
// The binary payload is packed with [encoding.BitWriter]:
//
//	[8 bits version] [8 bits width] [32 bits item count]
//	per item: [width bits Delta] [width bits Level]
//
// and rendered as text with [encoding.EncodeFingerprint].
package fingerprint

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/haivivi/audioprint/pkg/audio/chroma"
	"github.com/haivivi/audioprint/pkg/encoding"
)

// Version is the payload version written by Marshal.
const Version = 1

// MaxWidth is the widest image that can be quantized.
const MaxWidth = 32

const headerBits = 8 + 8 + 32

var (
	// ErrTruncated is returned when a payload ends before its declared items.
	ErrTruncated = errors.New("fingerprint: truncated payload")

	// ErrVersion is returned for payloads written by an unknown version.
	ErrVersion = errors.New("fingerprint: unsupported version")

	// ErrWidth is returned for widths outside [1, MaxWidth] and for
	// comparisons between fingerprints of different widths.
	ErrWidth = errors.New("fingerprint: invalid width")

	// ErrNoOverlap is returned when comparing against an empty fingerprint.
	ErrNoOverlap = errors.New("fingerprint: no items to compare")
)

// Item is one quantized frame transition.
type Item struct {
	Delta uint32
	Level uint32
}

// Fingerprint is a sequence of items of a fixed bit width.
type Fingerprint struct {
	Version int
	Width   int
	Items   []Item
}

// FromImage quantizes img. An image with fewer than two rows yields a
// fingerprint without items.
func FromImage(img *chroma.FeatureImage) (*Fingerprint, error) {
	w := img.Width()
	if w > MaxWidth {
		return nil, fmt.Errorf("%w: image width %d exceeds %d", ErrWidth, w, MaxWidth)
	}
	fp := &Fingerprint{Version: Version, Width: w}
	if img.NumRows() < 2 {
		return fp, nil
	}

	fp.Items = make([]Item, 0, img.NumRows()-1)
	prev := img.Row(0)
	for i := 1; i < img.NumRows(); i++ {
		row := img.Row(i)
		var mean float64
		for _, v := range row {
			mean += v
		}
		mean /= float64(w)

		var it Item
		for j, v := range row {
			if v > prev[j] {
				it.Delta |= 1 << j
			}
			if v > mean {
				it.Level |= 1 << j
			}
		}
		fp.Items = append(fp.Items, it)
		prev = row
	}
	return fp, nil
}

// Len returns the number of items.
func (fp *Fingerprint) Len() int { return len(fp.Items) }

// Marshal packs the fingerprint into its binary payload.
func (fp *Fingerprint) Marshal() []byte {
	if fp.Width < 1 || fp.Width > MaxWidth {
		panic(fmt.Sprintf("fingerprint: width %d out of range", fp.Width))
	}
	w := encoding.NewBitWriter((headerBits + 2*fp.Width*len(fp.Items) + 7) / 8)
	w.Write(uint32(fp.Version), 8)
	w.Write(uint32(fp.Width), 8)
	w.Write(uint32(len(fp.Items)), 32)
	for _, it := range fp.Items {
		w.Write(it.Delta, fp.Width)
		w.Write(it.Level, fp.Width)
	}
	w.Flush()
	return w.Bytes()
}

// Unmarshal parses a binary payload.
func Unmarshal(data []byte) (*Fingerprint, error) {
	r := encoding.NewBitReader(data)
	if r.AvailableBits() < headerBits {
		return nil, fmt.Errorf("%w: %d bytes", ErrTruncated, len(data))
	}
	version := int(r.Read(8))
	if version != Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, version)
	}
	width := int(r.Read(8))
	if width < 1 || width > MaxWidth {
		return nil, fmt.Errorf("%w: %d", ErrWidth, width)
	}
	count := int64(r.Read(32))
	if need := count * 2 * int64(width); need > int64(r.AvailableBits()) {
		return nil, fmt.Errorf("%w: %d items need %d bits, have %d", ErrTruncated, count, need, r.AvailableBits())
	}

	fp := &Fingerprint{Version: version, Width: width, Items: make([]Item, count)}
	for i := range fp.Items {
		fp.Items[i].Delta = r.Read(width)
		fp.Items[i].Level = r.Read(width)
	}
	return fp, nil
}

// String returns the text form of the payload.
func (fp *Fingerprint) String() string {
	return encoding.EncodeFingerprint(fp.Marshal())
}

// Parse decodes the text form. Text containing symbols outside the
// fingerprint alphabet is rejected.
func Parse(text string) (*Fingerprint, error) {
	data, err := encoding.DecodeFingerprintStrict(text)
	if err != nil {
		return nil, fmt.Errorf("fingerprint: parse: %w", err)
	}
	return Unmarshal(data)
}

// BitErrorRate returns the fraction of differing bits over the items both
// fingerprints share, aligned at their first item.
func BitErrorRate(a, b *Fingerprint) (float64, error) {
	if a.Width != b.Width {
		return 0, fmt.Errorf("%w: %d vs %d", ErrWidth, a.Width, b.Width)
	}
	n := min(len(a.Items), len(b.Items))
	if n == 0 {
		return 0, ErrNoOverlap
	}
	var diff int
	for i := range n {
		diff += bits.OnesCount32(a.Items[i].Delta ^ b.Items[i].Delta)
		diff += bits.OnesCount32(a.Items[i].Level ^ b.Items[i].Level)
	}
	return float64(diff) / float64(2*a.Width*n), nil
}
