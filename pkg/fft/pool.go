package fft

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Context is a prepared transform of one length: an input buffer, an output
// buffer and an engine plan. A Context is owned by exactly one caller between
// Acquire and Release.
type Context struct {
	n    int
	in   []float64
	out  []complex128
	plan Plan
	pool *Pool
	busy atomic.Bool
}

// Len returns the transform length.
func (c *Context) Len() int { return c.n }

// Bins returns the number of output coefficients, n/2+1.
func (c *Context) Bins() int { return len(c.out) }

// Stats is a snapshot of pool bookkeeping.
type Stats struct {
	Allocated int // live contexts, free or checked out
	Free      int
	InUse     int
}

// Pool caches transform contexts keyed by length.
//
// # Thread Safety
//
// Pool is safe for concurrent use. The pool mutex guards only the free lists
// and counters; plan construction and transform execution run without it.
//
// # Lifecycle
//
// Close frees every cached context exactly once. Contexts still checked out
// at Close remain usable by their owner and are freed when released.
type Pool struct {
	engine Engine
	logger *slog.Logger

	mu          sync.Mutex
	free        map[int][]*Context
	allocated   int
	outstanding int
	closed      bool
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the logger used for allocation and teardown events.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPool creates an empty pool whose plans come from engine.
func NewPool(engine Engine, opts ...Option) *Pool {
	p := &Pool{
		engine: engine,
		logger: slog.Default(),
		free:   make(map[int][]*Context),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var defaultPool = sync.OnceValue(func() *Pool {
	return NewPool(Gonum())
})

// Default returns the process-wide pool backed by the gonum engine. It is
// never closed.
func Default() *Pool {
	return defaultPool()
}

// Engine returns the engine the pool builds plans with.
func (p *Pool) Engine() Engine { return p.engine }

// Acquire checks out a context for length n, reusing a cached one when
// available. Engine failures are returned wrapped and leave the pool
// unchanged.
func (p *Pool) Acquire(n int) (*Context, error) {
	if n < 2 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLength, n)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	if list := p.free[n]; len(list) > 0 {
		c := list[len(list)-1]
		list[len(list)-1] = nil
		p.free[n] = list[:len(list)-1]
		p.outstanding++
		p.mu.Unlock()
		c.checkout()
		return c, nil
	}
	p.mu.Unlock()

	c, err := p.allocate(n)
	if err != nil {
		return nil, fmt.Errorf("fft: allocate %s plan of length %d: %w", p.engine.Name(), n, err)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		if err := c.plan.Close(); err != nil {
			p.logger.Warn("fft: close plan", "len", n, "error", err)
		}
		return nil, ErrClosed
	}
	p.allocated++
	p.outstanding++
	p.mu.Unlock()

	p.logger.Debug("fft: context allocated", "engine", p.engine.Name(), "len", n)
	c.checkout()
	return c, nil
}

func (p *Pool) allocate(n int) (*Context, error) {
	plan, err := p.engine.NewPlan(n)
	if err != nil {
		return nil, err
	}
	return &Context{
		n:    n,
		in:   make([]float64, n),
		out:  make([]complex128, n/2+1),
		plan: plan,
		pool: p,
	}, nil
}

func (c *Context) checkout() {
	if !c.busy.CompareAndSwap(false, true) {
		panic("fft: context handed out while in use")
	}
}

// Execute copies in into the context, runs the transform and copies the
// n/2+1 coefficients into dst, growing it if needed. Input shorter than the
// transform length is zero-padded.
func (p *Pool) Execute(c *Context, in []float64, dst []complex128) ([]complex128, error) {
	if c == nil || c.pool != p || !c.busy.Load() {
		return nil, ErrNotAcquired
	}
	if len(in) > c.n {
		return nil, fmt.Errorf("%w: %d samples for length %d", ErrInvalidLength, len(in), c.n)
	}

	copy(c.in, in)
	clear(c.in[len(in):])
	c.plan.Transform(c.out, c.in)

	if cap(dst) < len(c.out) {
		dst = make([]complex128, len(c.out))
	}
	dst = dst[:len(c.out)]
	copy(dst, c.out)
	return dst, nil
}

// Release returns c to the free list for its length. After Close the
// context is freed instead. Releasing a context twice, or to a pool that did
// not create it, panics.
func (p *Pool) Release(c *Context) {
	if c == nil {
		return
	}
	if c.pool != p {
		panic("fft: context released to a foreign pool")
	}
	if !c.busy.CompareAndSwap(true, false) {
		panic("fft: context released twice")
	}

	p.mu.Lock()
	p.outstanding--
	if p.closed {
		p.allocated--
		p.mu.Unlock()
		if err := c.plan.Close(); err != nil {
			p.logger.Warn("fft: close plan", "len", c.n, "error", err)
		}
		return
	}
	p.free[c.n] = append(p.free[c.n], c)
	p.mu.Unlock()
}

// Do acquires a context of length n, calls fn with it and releases it on
// every exit path, including a panic in fn.
func (p *Pool) Do(n int, fn func(*Context) error) error {
	c, err := p.Acquire(n)
	if err != nil {
		return err
	}
	defer p.Release(c)
	return fn(c)
}

// Close frees every cached context. It is idempotent.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	var cached []*Context
	for n, list := range p.free {
		cached = append(cached, list...)
		delete(p.free, n)
	}
	p.allocated -= len(cached)
	outstanding := p.outstanding
	p.mu.Unlock()

	if outstanding > 0 {
		p.logger.Warn("fft: pool closed with contexts in use", "outstanding", outstanding)
	}

	var errs []error
	for _, c := range cached {
		if err := c.plan.Close(); err != nil {
			errs = append(errs, fmt.Errorf("fft: close plan of length %d: %w", c.n, err))
		}
	}
	p.logger.Debug("fft: pool closed", "freed", len(cached))
	return errors.Join(errs...)
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	free := 0
	for _, list := range p.free {
		free += len(list)
	}
	return Stats{
		Allocated: p.allocated,
		Free:      free,
		InUse:     p.outstanding,
	}
}
