// Package fft manages reusable real-input FFT contexts.
//
// Preparing a transform (buffers plus an engine plan) is expensive compared
// to executing it, so a [Pool] caches prepared [Context] values keyed by
// transform length and hands each one out to a single caller at a time.
//
// The transform itself is provided by an [Engine]. Three engines are
// available:
//
//   - [Gonum]: pure Go, gonum.org/v1/gonum/dsp/fourier (default)
//   - [GoDSP]: pure Go, github.com/mjibson/go-dsp/fft
//   - FFTW: cgo bindings to libfftw3, built with the "fftw" tag
package fft

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrClosed is returned when a pool is used after Close.
	ErrClosed = errors.New("fft: pool closed")

	// ErrInvalidLength is returned for transform lengths below 2.
	ErrInvalidLength = errors.New("fft: invalid transform length")

	// ErrNotAcquired is returned when executing a context that is not
	// checked out.
	ErrNotAcquired = errors.New("fft: context not acquired")

	// ErrUnknownEngine is returned by EngineByName for unregistered names.
	ErrUnknownEngine = errors.New("fft: unknown engine")
)

// Engine builds transform plans of a given length.
type Engine interface {
	// Name returns the registered engine name.
	Name() string

	// NewPlan prepares a forward real transform of length n.
	NewPlan(n int) (Plan, error)
}

// Plan executes a prepared forward transform.
//
// Transform reads len n real input and writes the n/2+1 non-redundant
// complex coefficients into out. A plan is not safe for concurrent use.
type Plan interface {
	Transform(out []complex128, in []float64)
	Close() error
}

var (
	enginesMu sync.RWMutex
	engines   = map[string]func() Engine{
		"gonum": Gonum,
		"godsp": GoDSP,
	}
)

// Register makes an engine constructor available to EngineByName.
func Register(name string, ctor func() Engine) {
	enginesMu.Lock()
	defer enginesMu.Unlock()
	engines[name] = ctor
}

// EngineByName returns the engine registered as name. An empty name selects
// the default engine.
func EngineByName(name string) (Engine, error) {
	if name == "" {
		return Gonum(), nil
	}
	enginesMu.RLock()
	ctor, ok := engines[name]
	enginesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, name)
	}
	return ctor(), nil
}

// Engines returns the sorted names of the registered engines.
func Engines() []string {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
