package chroma

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxImageWidth bounds the width ReadImage accepts. It covers every
// spectrum a FrameSize frame can produce.
const MaxImageWidth = FrameSize

// ErrInvalidImage is returned by ReadImage for malformed headers.
var ErrInvalidImage = errors.New("chroma: invalid image")

// FeatureImage is an append-only matrix of feature vectors. Every row has
// the width fixed at construction.
type FeatureImage struct {
	width int
	rows  [][]float64
}

// NewFeatureImage creates an empty image. It panics if width < 1.
func NewFeatureImage(width int) *FeatureImage {
	if width < 1 {
		panic(fmt.Sprintf("chroma: image width %d", width))
	}
	return &FeatureImage{width: width}
}

// AddRow appends a copy of row. A row of the wrong width is a programming
// error and panics.
func (img *FeatureImage) AddRow(row []float64) {
	if len(row) != img.width {
		panic(fmt.Sprintf("chroma: row width %d, image width %d", len(row), img.width))
	}
	img.rows = append(img.rows, append([]float64(nil), row...))
}

// Width returns the row width.
func (img *FeatureImage) Width() int { return img.width }

// NumRows returns the number of rows.
func (img *FeatureImage) NumRows() int { return len(img.rows) }

// Row returns row i. The slice must not be modified.
func (img *FeatureImage) Row(i int) []float64 { return img.rows[i] }

// Rows returns all rows. The slices must not be modified.
func (img *FeatureImage) Rows() [][]float64 { return img.rows }

// Equal reports whether both images have the same width and identical
// values.
func (img *FeatureImage) Equal(other *FeatureImage) bool {
	if img.width != other.width || len(img.rows) != len(other.rows) {
		return false
	}
	for i, row := range img.rows {
		for j, v := range row {
			if v != other.rows[i][j] {
				return false
			}
		}
	}
	return true
}

var imageMagic = [4]byte{'F', 'I', 'M', 'G'}

const imageVersion uint32 = 1

// WriteTo serializes the image.
//
// Format:
//
//	[4B magic "FIMG"] [4B version]
//	[4B width] [4B numRows]
//	[numRows × width × 8B float64]
//
// All integers and floats are little-endian.
func (img *FeatureImage) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	le := binary.LittleEndian

	header := make([]byte, 0, 16)
	header = append(header, imageMagic[:]...)
	header = le.AppendUint32(header, imageVersion)
	header = le.AppendUint32(header, uint32(img.width))
	header = le.AppendUint32(header, uint32(len(img.rows)))
	n, err := bw.Write(header)
	written := int64(n)
	if err != nil {
		return written, fmt.Errorf("chroma: write image header: %w", err)
	}

	for _, row := range img.rows {
		if err := binary.Write(bw, le, row); err != nil {
			return written, fmt.Errorf("chroma: write image row: %w", err)
		}
		written += int64(8 * len(row))
	}
	if err := bw.Flush(); err != nil {
		return written, fmt.Errorf("chroma: flush image: %w", err)
	}
	return written, nil
}

// ReadImage deserializes an image written by WriteTo.
func ReadImage(r io.Reader) (*FeatureImage, error) {
	br := bufio.NewReader(r)
	le := binary.LittleEndian

	var header [16]byte
	if _, err := io.ReadFull(br, header[:]); err != nil {
		return nil, fmt.Errorf("chroma: read image header: %w", err)
	}
	if [4]byte(header[:4]) != imageMagic {
		return nil, fmt.Errorf("%w: magic %q", ErrInvalidImage, header[:4])
	}
	if version := le.Uint32(header[4:]); version != imageVersion {
		return nil, fmt.Errorf("chroma: unsupported image version %d (want %d)", version, imageVersion)
	}
	width := le.Uint32(header[8:])
	numRows := le.Uint32(header[12:])
	if width == 0 || width > MaxImageWidth {
		return nil, fmt.Errorf("%w: width %d outside [1, %d]", ErrInvalidImage, width, MaxImageWidth)
	}

	img := NewFeatureImage(int(width))
	for i := uint32(0); i < numRows; i++ {
		row := make([]float64, width)
		if err := binary.Read(br, le, row); err != nil {
			return nil, fmt.Errorf("chroma: read image row %d: %w", i, err)
		}
		img.rows = append(img.rows, row)
	}
	return img, nil
}
