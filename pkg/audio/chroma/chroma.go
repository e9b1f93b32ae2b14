// Package chroma turns PCM audio into a feature image: one fixed-width
// vector per analysis frame.
//
// Two layouts are supported. A chromagram folds every frame into 12
// pitch classes, smooths consecutive vectors over time and scales each one
// to unit length. A spectrogram sums each frame into N equal-width linear
// frequency bands.
//
// Default analysis parameters:
//
//	FrameSize:  4096 samples
//	Hop:        FrameSize/3 (two-thirds overlap)
//	MinFreq:      28 Hz
//	MaxFreq:    3520 Hz
//	Reference:  27.5 Hz (A0, pitch class 0)
//	Threshold:  0.01 (normalizer zeroing threshold)
//
// The pipeline is synchronous and single-threaded. Run one [Pipeline] per
// audio source; pipelines share FFT contexts through an [fft.Pool].
package chroma

import "errors"

const (
	// FrameSize is the number of samples per analysis frame.
	FrameSize = 4096

	// Overlap is the number of samples shared by consecutive frames.
	Overlap = FrameSize - FrameSize/3

	// Hop is the distance in samples between consecutive frame starts.
	Hop = FrameSize - Overlap

	// MinFreq and MaxFreq bound the spectrum bins that contribute to a
	// feature vector, in Hz.
	MinFreq = 28.0
	MaxFreq = 3520.0

	// Reference is the frequency of pitch class 0 (A0), in Hz.
	Reference = 27.5

	// NumPitchClasses is the width of a chroma vector.
	NumPitchClasses = 12

	// DefaultThreshold is the norm below which a vector is zeroed.
	DefaultThreshold = 0.01

	// DefaultBands is the spectrogram width used when none is configured.
	DefaultBands = 32
)

var (
	// ErrNotStarted is returned when samples arrive before Reset.
	ErrNotStarted = errors.New("chroma: pipeline not started")

	// ErrInvalidFormat is returned for a non-positive sample rate or
	// channel count.
	ErrInvalidFormat = errors.New("chroma: invalid audio format")

	// ErrShortFrame is returned when transforming a frame that is not full.
	ErrShortFrame = errors.New("chroma: frame not full")
)
